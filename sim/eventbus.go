package sim

import (
	"container/heap"
	"fmt"

	"go.uber.org/zap"
)

// EventPriority classifies queued events. Lower values dispatch first.
type EventPriority int

// Priority classes, from most to least urgent.
const (
	PriorityCritical EventPriority = iota
	PriorityHigh
	PriorityNormal
	PriorityLow
)

var priorityNames = map[EventPriority]string{
	PriorityCritical: "critical",
	PriorityHigh:     "high",
	PriorityNormal:   "normal",
	PriorityLow:      "low",
}

func (p EventPriority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return fmt.Sprintf("priority-%d", int(p))
}

// A QueuedEvent is a domain event wrapped with its priority class and a
// monotonic enqueue sequence. Priority orders first, sequence second, so
// same-priority events dispatch in publish order.
type QueuedEvent struct {
	Event    Event
	Priority EventPriority
	Source   string
	seq      uint64
}

// EventHandler reacts to a dispatched event.
type EventHandler func(Event)

// BusStatistics is a snapshot of event bus counters.
type BusStatistics struct {
	Published        uint64
	Dispatched       uint64
	Immediate        uint64
	HandlerFaults    uint64
	QueueLength      int
	SubscriberCount  int
	DispatchedByType map[EventType]uint64
}

type busSubscriber struct {
	handle  int
	name    string
	handler EventHandler
}

// An EventBus routes domain events to subscribers. Publication only enqueues;
// dispatch happens when ProcessEvents drains the queue in
// (priority, enqueue order), or synchronously through PublishImmediate.
//
// Subscriber invocations are individually fault-isolated: a panicking
// subscriber is recovered and logged, and never blocks the rest.
//
// The bus is hookable at HookPosDispatch, with the dispatched QueuedEvent as
// the hook item.
type EventBus struct {
	HookableBase

	typed     map[EventType][]busSubscriber
	universal []busSubscriber

	pending queuedEventHeap
	nextSeq uint64

	recent     []QueuedEvent
	recentCap  int
	processing bool

	nextHandle int
	stats      BusStatistics
	log        *zap.Logger
}

// NewEventBus creates an EventBus. A nil logger is replaced with a nop
// logger.
func NewEventBus(logger *zap.Logger) *EventBus {
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &EventBus{
		typed:     make(map[EventType][]busSubscriber),
		recentCap: 128,
		log:       logger,
	}
	b.stats.DispatchedByType = make(map[EventType]uint64)
	heap.Init(&b.pending)

	return b
}

// Subscribe registers a handler for one event type and returns a handle for
// unsubscribing. Registration is not unique: registering the same handler
// twice yields two invocations per event.
func (b *EventBus) Subscribe(t EventType, handler EventHandler, name string) int {
	handle := b.nextHandle
	b.nextHandle++

	if name == "" {
		name = fmt.Sprintf("subscriber-%d", handle)
	}

	b.typed[t] = append(b.typed[t], busSubscriber{
		handle:  handle,
		name:    name,
		handler: handler,
	})

	return handle
}

// SubscribeAll registers a handler for every event and returns a handle.
// Universal subscribers run before type-specific ones.
func (b *EventBus) SubscribeAll(handler EventHandler, name string) int {
	handle := b.nextHandle
	b.nextHandle++

	if name == "" {
		name = fmt.Sprintf("subscriber-%d", handle)
	}

	b.universal = append(b.universal, busSubscriber{
		handle:  handle,
		name:    name,
		handler: handler,
	})

	return handle
}

// Unsubscribe removes a typed registration by handle. Returns false if no
// registration with that handle exists for the type.
func (b *EventBus) Unsubscribe(t EventType, handle int) bool {
	subs := b.typed[t]
	for i, s := range subs {
		if s.handle == handle {
			b.typed[t] = append(subs[:i], subs[i+1:]...)
			return true
		}
	}
	return false
}

// UnsubscribeAll removes a universal registration by handle.
func (b *EventBus) UnsubscribeAll(handle int) bool {
	for i, s := range b.universal {
		if s.handle == handle {
			b.universal = append(b.universal[:i], b.universal[i+1:]...)
			return true
		}
	}
	return false
}

// Publish enqueues an event at the given priority. Nothing dispatches until
// ProcessEvents runs.
func (b *EventBus) Publish(evt Event, priority EventPriority, source string) {
	qe := &QueuedEvent{
		Event:    evt,
		Priority: priority,
		Source:   source,
		seq:      b.nextSeq,
	}
	b.nextSeq++

	heap.Push(&b.pending, qe)
	b.stats.Published++
}

// PublishImmediate dispatches an event synchronously, bypassing the queue.
// Use it when subscribers must observe the event before the caller proceeds,
// such as phase-change notifications.
func (b *EventBus) PublishImmediate(evt Event, source string) {
	b.stats.Published++
	b.stats.Immediate++
	b.dispatch(QueuedEvent{
		Event:    evt,
		Priority: PriorityCritical,
		Source:   source,
	})
}

// ProcessEvents drains queued events in (priority, enqueue order) and returns
// how many were dispatched.
//
// The queue is snapshotted per pass: events published by subscribers during a
// pass wait for the next pass, so FIFO within a priority class holds exactly.
// With maxCount <= 0, passes repeat until the queue is empty. With a positive
// maxCount, a single pass stops after maxCount events and re-enqueues the
// remainder in their original order.
//
// ProcessEvents must not be re-entered from a subscriber.
func (b *EventBus) ProcessEvents(maxCount int) int {
	if b.processing {
		panic("re-entrant ProcessEvents call from a subscriber")
	}
	b.processing = true
	defer func() { b.processing = false }()

	dispatched := 0
	for {
		snapshot := b.drainPending()
		if len(snapshot) == 0 {
			return dispatched
		}

		for i, qe := range snapshot {
			if maxCount > 0 && dispatched >= maxCount {
				b.requeue(snapshot[i:])
				return dispatched
			}
			b.dispatch(*qe)
			dispatched++
		}

		if maxCount > 0 {
			return dispatched
		}
	}
}

// ClearQueue discards all queued events without dispatching them.
func (b *EventBus) ClearQueue() {
	b.pending = b.pending[:0]
}

// HasQueuedEvents reports whether any event is waiting for dispatch.
func (b *EventBus) HasQueuedEvents() bool {
	return b.pending.Len() > 0
}

// HasHighPriorityEvents reports whether a High or Critical event is waiting.
func (b *EventBus) HasHighPriorityEvents() bool {
	for _, qe := range b.pending {
		if qe.Priority <= PriorityHigh {
			return true
		}
	}
	return false
}

// RecentEvents returns up to n of the most recently dispatched events, oldest
// first. The diagnostic buffer is bounded; older entries fall off.
func (b *EventBus) RecentEvents(n int) []QueuedEvent {
	if n <= 0 || n > len(b.recent) {
		n = len(b.recent)
	}
	out := make([]QueuedEvent, n)
	copy(out, b.recent[len(b.recent)-n:])
	return out
}

// Statistics returns a snapshot of the bus counters.
func (b *EventBus) Statistics() BusStatistics {
	stats := b.stats
	stats.QueueLength = b.pending.Len()
	stats.SubscriberCount = len(b.universal)
	for _, subs := range b.typed {
		stats.SubscriberCount += len(subs)
	}

	byType := make(map[EventType]uint64, len(b.stats.DispatchedByType))
	for t, c := range b.stats.DispatchedByType {
		byType[t] = c
	}
	stats.DispatchedByType = byType

	return stats
}

func (b *EventBus) drainPending() []*QueuedEvent {
	snapshot := make([]*QueuedEvent, 0, b.pending.Len())
	for b.pending.Len() > 0 {
		snapshot = append(snapshot, heap.Pop(&b.pending).(*QueuedEvent))
	}
	return snapshot
}

func (b *EventBus) requeue(leftover []*QueuedEvent) {
	for _, qe := range leftover {
		heap.Push(&b.pending, qe)
	}
}

func (b *EventBus) dispatch(qe QueuedEvent) {
	b.stats.Dispatched++
	b.stats.DispatchedByType[qe.Event.Type()]++
	b.remember(qe)

	b.InvokeHook(HookCtx{Domain: b, Pos: HookPosDispatch, Item: qe})

	for _, s := range b.universal {
		b.invoke(s, qe.Event)
	}
	for _, s := range b.typed[qe.Event.Type()] {
		b.invoke(s, qe.Event)
	}
}

func (b *EventBus) invoke(s busSubscriber, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			b.stats.HandlerFaults++
			b.log.Error("event subscriber fault",
				zap.String("subscriber", s.name),
				zap.String("event_type", string(evt.Type())),
				zap.Any("panic", r),
			)
		}
	}()

	s.handler(evt)
}

func (b *EventBus) remember(qe QueuedEvent) {
	if len(b.recent) >= b.recentCap {
		copy(b.recent, b.recent[1:])
		b.recent = b.recent[:len(b.recent)-1]
	}
	b.recent = append(b.recent, qe)
}

type queuedEventHeap []*QueuedEvent

// Len returns the number of queued events.
func (h queuedEventHeap) Len() int {
	return len(h)
}

// Less orders queued events by priority class first, enqueue sequence second.
func (h queuedEventHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].seq < h[j].seq
}

// Swap changes the position of two queued events.
func (h queuedEventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

// Push adds a queued event to the heap.
func (h *queuedEventHeap) Push(x interface{}) {
	*h = append(*h, x.(*QueuedEvent))
}

// Pop removes and returns the queued event that dispatches next.
func (h *queuedEventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	qe := old[n-1]
	*h = old[0 : n-1]
	return qe
}
