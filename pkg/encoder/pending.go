package encoder

import "sync"

// pendingFrame holds the frame metadata that cannot travel through the
// hardware codec. Records are joined with codec output in FIFO order.
type pendingFrame struct {
	timestampMs int64
	width       int
	height      int
	rotation    int
}

// pendingQueue is written by the encoding goroutine and read by the output
// goroutine.
type pendingQueue struct {
	mu     sync.Mutex
	frames []pendingFrame
}

func (q *pendingQueue) push(f pendingFrame) {
	q.mu.Lock()
	q.frames = append(q.frames, f)
	q.mu.Unlock()
}

// pop removes the oldest record.
func (q *pendingQueue) pop() (pendingFrame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.frames) == 0 {
		return pendingFrame{}, false
	}
	f := q.frames[0]
	q.frames = q.frames[1:]
	if len(q.frames) == 0 {
		q.frames = q.frames[:0:0]
	}
	return f, true
}

// popBack removes the newest record. Used to undo a push when the codec
// rejects the input buffer.
func (q *pendingQueue) popBack() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n := len(q.frames); n > 0 {
		q.frames = q.frames[:n-1]
	}
}

func (q *pendingQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}
