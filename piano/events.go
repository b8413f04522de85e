package piano

import "github.com/cwbudde/sf-bridge/bank"

type eventKind uint8

const (
	evNoteOn eventKind = iota + 1
	evNoteOff
)

type event struct {
	frame    int64
	kind     eventKind
	channel  int
	key      int
	velocity int
	preset   *bank.Preset
}

// eventQueue is a bounded queue ordered by frame. Events with equal frames
// keep their insertion order. Its backing array never grows.
type eventQueue struct {
	buf  []event
	head int
}

func newEventQueue(capacity int) eventQueue {
	return eventQueue{buf: make([]event, 0, capacity)}
}

func (q *eventQueue) Len() int {
	return len(q.buf) - q.head
}

// push inserts ev and reports false when the queue is full.
func (q *eventQueue) push(ev event) bool {
	if len(q.buf) == cap(q.buf) {
		if q.head == 0 {
			return false
		}
		n := copy(q.buf, q.buf[q.head:])
		q.buf = q.buf[:n]
		q.head = 0
	}
	i := len(q.buf)
	for i > q.head && q.buf[i-1].frame > ev.frame {
		i--
	}
	q.buf = append(q.buf, event{})
	copy(q.buf[i+1:], q.buf[i:len(q.buf)-1])
	q.buf[i] = ev
	return true
}

func (q *eventQueue) peek() *event {
	return &q.buf[q.head]
}

func (q *eventQueue) pop() event {
	ev := q.buf[q.head]
	q.buf[q.head] = event{}
	q.head++
	if q.head == len(q.buf) {
		q.buf = q.buf[:0]
		q.head = 0
	}
	return ev
}

func (q *eventQueue) clear() {
	clear(q.buf)
	q.buf = q.buf[:0]
	q.head = 0
}
