package status

import (
	"sync"
	"time"
)

type Kind string

const (
	KindLoading Kind = "loading"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

const DefaultInterval = 4 * time.Second

// Message is the single live status line. Generation identifies the Show
// call that produced it; an expiry only hides the generation it was
// scheduled for.
type Message struct {
	Text       string    `json:"text"`
	Kind       Kind      `json:"kind"`
	Expires    time.Time `json:"expires,omitzero"`
	Generation uint64    `json:"generation"`
}

type Timer interface {
	Stop() bool
}

type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealScheduler schedules expiries with time.AfterFunc.
var RealScheduler Scheduler = realScheduler{}

type Notifier struct {
	mu         sync.Mutex
	interval   time.Duration
	scheduler  Scheduler
	now        func() time.Time
	current    Message
	visible    bool
	generation uint64
	timer      Timer
}

func NewNotifier(interval time.Duration, scheduler Scheduler) *Notifier {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if scheduler == nil {
		scheduler = RealScheduler
	}
	return &Notifier{
		interval:  interval,
		scheduler: scheduler,
		now:       time.Now,
	}
}

// Show replaces the live message. Success and error messages hide
// themselves after the notifier interval; loading messages stay until
// replaced.
func (n *Notifier) Show(text string, kind Kind) Message {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}

	n.generation++
	msg := Message{
		Text:       text,
		Kind:       kind,
		Generation: n.generation,
	}

	if kind != KindLoading {
		gen := n.generation
		msg.Expires = n.now().Add(n.interval)
		n.timer = n.scheduler.AfterFunc(n.interval, func() { n.expire(gen) })
	}

	n.current = msg
	n.visible = true
	return msg
}

func (n *Notifier) expire(gen uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.visible || n.generation != gen {
		return
	}
	n.visible = false
	n.timer = nil
}

// Current returns the live message, if any.
func (n *Notifier) Current() (Message, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current, n.visible
}

func (n *Notifier) Hide() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.generation++
	n.visible = false
}

// Stop cancels any pending expiry without changing the live message.
func (n *Notifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}
