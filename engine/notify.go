package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
)

type (
	// Notification is something that happened on the audio thread and that
	// the control thread may want to know about.
	Notification struct {
		Kind    NotificationKind
		Channel int8
		// Index is the note, parameter index, program index or latency in
		// frames, depending on Kind.
		Index int
		Value float32
		// Frame is the frame within the cycle the notification relates to.
		Frame int
	}

	NotificationKind uint8

	// Notifier moves notifications from the audio thread to the control
	// thread. The audio thread collects notifications with Postpone and makes
	// them visible with a single TrySplice at the end of the cycle. If the
	// control thread is holding the lock at that moment, the notifications
	// stay pending until the next cycle. Nothing allocates after NewNotifier.
	Notifier struct {
		pending []Notification // audio thread only

		mu      sync.Mutex
		ready   []Notification
		spare   []Notification
		dropped atomic.Uint64
	}
)

const (
	NotifyNoteOn NotificationKind = iota + 1
	NotifyNoteOff
	NotifyParameterChanged
	NotifyProgramChanged
	NotifyAllNotesOff
	NotifyLatencyChanged
	NotifyTimingError   // event earlier than the already rendered frames
	NotifyEventSkipped  // event beyond the end of the cycle
	NotifyQueueFull     // native event queue overflow
	NotifyOversizeCycle // cycle longer than the buffer size
	// NotifyControlUnclaimed is a MIDI controller that no shortcut or
	// parameter binding took; Index is the controller number. A control
	// thread can use it for MIDI learn.
	NotifyControlUnclaimed
)

// Indices of the host-side parameters in NotifyParameterChanged.
const (
	ParameterDryWet       = -3
	ParameterVolume       = -4
	ParameterBalanceLeft  = -5
	ParameterBalanceRight = -6
)

func NewNotifier(capacity int) *Notifier {
	if capacity <= 0 {
		capacity = 512
	}
	return &Notifier{
		pending: make([]Notification, 0, capacity),
		ready:   make([]Notification, 0, capacity),
		spare:   make([]Notification, 0, capacity),
	}
}

// Postpone queues a notification. Audio thread only.
func (n *Notifier) Postpone(no Notification) {
	if len(n.pending) == cap(n.pending) {
		n.dropped.Add(1)
		return
	}
	n.pending = append(n.pending, no)
}

// TrySplice publishes the pending notifications in one go, if the lock can be
// taken without blocking. Audio thread only.
func (n *Notifier) TrySplice() bool {
	if len(n.pending) == 0 {
		return true
	}
	if !n.mu.TryLock() {
		return false
	}
	free := cap(n.ready) - len(n.ready)
	m := len(n.pending)
	if m > free {
		n.dropped.Add(uint64(m - free))
		m = free
	}
	n.ready = append(n.ready, n.pending[:m]...)
	n.mu.Unlock()
	n.pending = n.pending[:0]
	return true
}

// Drain calls f for every published notification, in the order they were
// postponed. Control thread only; f is called without holding the lock.
func (n *Notifier) Drain(f func(Notification)) {
	n.mu.Lock()
	batch := n.ready
	n.ready = n.spare[:0]
	n.spare = batch
	n.mu.Unlock()
	for _, no := range batch {
		f(no)
	}
}

// Dropped returns how many notifications were lost because a queue was full.
func (n *Notifier) Dropped() uint64 { return n.dropped.Load() }

func (k NotificationKind) String() string {
	switch k {
	case NotifyNoteOn:
		return "NoteOn"
	case NotifyNoteOff:
		return "NoteOff"
	case NotifyParameterChanged:
		return "ParameterChanged"
	case NotifyProgramChanged:
		return "ProgramChanged"
	case NotifyAllNotesOff:
		return "AllNotesOff"
	case NotifyLatencyChanged:
		return "LatencyChanged"
	case NotifyTimingError:
		return "TimingError"
	case NotifyEventSkipped:
		return "EventSkipped"
	case NotifyQueueFull:
		return "QueueFull"
	case NotifyOversizeCycle:
		return "OversizeCycle"
	case NotifyControlUnclaimed:
		return "ControlUnclaimed"
	}
	return fmt.Sprintf("NotificationKind(%d)", uint8(k))
}
