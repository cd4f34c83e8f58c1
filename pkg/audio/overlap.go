package audio

// OverlapWindow keeps the most recent frames forwarded during the current
// recognizer session. At the start of the next session the aggregator emits
// the window as one chunk and clears it, so speech straddling a session
// boundary is heard twice rather than lost.
//
// It is a fixed-capacity ring: appending to a full window evicts the oldest
// frame. OverlapWindow is not safe for concurrent use; only the active
// aggregator touches it.
type OverlapWindow struct {
	frames []AudioFrame
	head   int // index of the oldest frame
	size   int
}

// NewOverlapWindow returns a window holding at most capacity frames. A
// capacity of zero or less disables overlap replay.
func NewOverlapWindow(capacity int) *OverlapWindow {
	if capacity < 0 {
		capacity = 0
	}
	return &OverlapWindow{frames: make([]AudioFrame, capacity)}
}

// Cap returns the window capacity in frames.
func (w *OverlapWindow) Cap() int { return len(w.frames) }

// Len returns the number of frames currently held.
func (w *OverlapWindow) Len() int { return w.size }

// Append adds frames in order, evicting the oldest ones on overflow.
func (w *OverlapWindow) Append(frames ...AudioFrame) {
	c := len(w.frames)
	if c == 0 {
		return
	}
	for _, f := range frames {
		if w.size < c {
			w.frames[(w.head+w.size)%c] = f
			w.size++
			continue
		}
		w.frames[w.head] = f
		w.head = (w.head + 1) % c
	}
}

// Frames returns the held frames, oldest first.
func (w *OverlapWindow) Frames() []AudioFrame {
	out := make([]AudioFrame, w.size)
	for i := range w.size {
		out[i] = w.frames[(w.head+i)%len(w.frames)]
	}
	return out
}

// Flush returns the concatenation of all held frames and clears the window.
// It returns nil when the window is empty.
func (w *OverlapWindow) Flush() []byte {
	if w.size == 0 {
		return nil
	}
	data := concat(w.Frames())
	w.Clear()
	return data
}

// Clear drops all held frames.
func (w *OverlapWindow) Clear() {
	for i := range w.frames {
		w.frames[i] = AudioFrame{}
	}
	w.head = 0
	w.size = 0
}
