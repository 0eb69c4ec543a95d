package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func debugEvent(msg string) DebugMessageEvent {
	return DebugMessageEvent{
		EventBase: MakeEventBase(0, "", ""),
		Message:   msg,
	}
}

func logEvent(msg string) LogMessageEvent {
	return LogMessageEvent{
		EventBase: MakeEventBase(0, "", ""),
		Message:   msg,
	}
}

type recordingHook struct {
	ctxs []HookCtx
}

func (h *recordingHook) Func(ctx HookCtx) {
	h.ctxs = append(h.ctxs, ctx)
}

var _ = Describe("EventBus", func() {
	var bus *EventBus

	BeforeEach(func() {
		bus = NewEventBus(nil)
	})

	It("should not dispatch on publish", func() {
		seen := 0
		bus.Subscribe(EventDebugMessage, func(Event) { seen++ }, "")

		bus.Publish(debugEvent("queued"), PriorityNormal, "")
		Expect(seen).To(Equal(0))
		Expect(bus.HasQueuedEvents()).To(BeTrue())

		Expect(bus.ProcessEvents(0)).To(Equal(1))
		Expect(seen).To(Equal(1))
		Expect(bus.HasQueuedEvents()).To(BeFalse())
	})

	It("should invoke dispatch hooks for every dispatched event", func() {
		hook := &recordingHook{}
		bus.AcceptHook(hook)

		bus.Publish(debugEvent("queued"), PriorityNormal, "")
		bus.ProcessEvents(0)
		bus.PublishImmediate(debugEvent("immediate"), "")

		Expect(hook.ctxs).To(HaveLen(2))
		Expect(hook.ctxs[0].Pos).To(BeIdenticalTo(HookPosDispatch))

		qe := hook.ctxs[1].Item.(QueuedEvent)
		Expect(qe.Event.(DebugMessageEvent).Message).To(Equal("immediate"))
	})

	It("should dispatch by priority class, then publish order", func() {
		var order []string
		bus.SubscribeAll(func(e Event) {
			order = append(order, e.(DebugMessageEvent).Message)
		}, "recorder")

		bus.Publish(debugEvent("low"), PriorityLow, "")
		bus.Publish(debugEvent("normal-1"), PriorityNormal, "")
		bus.Publish(debugEvent("critical"), PriorityCritical, "")
		bus.Publish(debugEvent("normal-2"), PriorityNormal, "")
		bus.Publish(debugEvent("high"), PriorityHigh, "")

		bus.ProcessEvents(0)

		Expect(order).To(Equal([]string{
			"critical", "high", "normal-1", "normal-2", "low",
		}))
	})

	It("should stop early and preserve leftover order with a bounded pass", func() {
		var order []string
		bus.SubscribeAll(func(e Event) {
			order = append(order, e.(DebugMessageEvent).Message)
		}, "recorder")

		bus.Publish(debugEvent("a"), PriorityNormal, "")
		bus.Publish(debugEvent("b"), PriorityNormal, "")
		bus.Publish(debugEvent("c"), PriorityNormal, "")

		Expect(bus.ProcessEvents(2)).To(Equal(2))
		Expect(order).To(Equal([]string{"a", "b"}))
		Expect(bus.HasQueuedEvents()).To(BeTrue())

		Expect(bus.ProcessEvents(0)).To(Equal(1))
		Expect(order).To(Equal([]string{"a", "b", "c"}))
	})

	It("should defer events published during a pass to the next pass", func() {
		var order []string
		bus.Subscribe(EventDebugMessage, func(e Event) {
			msg := e.(DebugMessageEvent).Message
			order = append(order, msg)
			if msg == "first" {
				// Published mid-pass at the highest class; it must still
				// wait for the snapshot to finish.
				bus.Publish(debugEvent("injected"), PriorityCritical, "")
			}
		}, "injector")

		bus.Publish(debugEvent("first"), PriorityNormal, "")
		bus.Publish(debugEvent("second"), PriorityNormal, "")

		bus.ProcessEvents(0)

		Expect(order).To(Equal([]string{"first", "second", "injected"}))
	})

	It("should dispatch immediately through PublishImmediate", func() {
		seen := 0
		bus.Subscribe(EventDebugMessage, func(Event) { seen++ }, "")

		bus.PublishImmediate(debugEvent("now"), "")
		Expect(seen).To(Equal(1))
		Expect(bus.HasQueuedEvents()).To(BeFalse())
	})

	It("should invoke universal subscribers before typed ones", func() {
		var order []string
		bus.Subscribe(EventDebugMessage, func(Event) {
			order = append(order, "typed")
		}, "")
		bus.SubscribeAll(func(Event) {
			order = append(order, "universal")
		}, "")

		bus.PublishImmediate(debugEvent("x"), "")
		Expect(order).To(Equal([]string{"universal", "typed"}))
	})

	It("should isolate a panicking subscriber", func() {
		var survivors []string
		bus.Subscribe(EventDebugMessage, func(Event) {
			survivors = append(survivors, "before")
		}, "ok-before")
		bus.Subscribe(EventDebugMessage, func(Event) {
			panic("subscriber bug")
		}, "broken")
		bus.Subscribe(EventDebugMessage, func(Event) {
			survivors = append(survivors, "after")
		}, "ok-after")

		bus.PublishImmediate(debugEvent("x"), "")

		Expect(survivors).To(Equal([]string{"before", "after"}))
		Expect(bus.Statistics().HandlerFaults).To(Equal(uint64(1)))
	})

	It("should invoke a duplicate registration twice", func() {
		count := 0
		handler := func(Event) { count++ }
		bus.Subscribe(EventDebugMessage, handler, "twin")
		bus.Subscribe(EventDebugMessage, handler, "twin")

		bus.PublishImmediate(debugEvent("x"), "")
		Expect(count).To(Equal(2))
	})

	It("should stop delivering after unsubscribe", func() {
		count := 0
		handle := bus.Subscribe(EventDebugMessage, func(Event) { count++ }, "")

		bus.PublishImmediate(debugEvent("x"), "")
		Expect(bus.Unsubscribe(EventDebugMessage, handle)).To(BeTrue())
		Expect(bus.Unsubscribe(EventDebugMessage, handle)).To(BeFalse())

		bus.PublishImmediate(debugEvent("y"), "")
		Expect(count).To(Equal(1))
	})

	It("should report high priority events in the queue", func() {
		bus.Publish(debugEvent("x"), PriorityLow, "")
		Expect(bus.HasHighPriorityEvents()).To(BeFalse())

		bus.Publish(debugEvent("y"), PriorityCritical, "")
		Expect(bus.HasHighPriorityEvents()).To(BeTrue())

		bus.ClearQueue()
		Expect(bus.HasQueuedEvents()).To(BeFalse())
	})

	It("should keep a bounded record of recent dispatches", func() {
		bus.PublishImmediate(debugEvent("one"), "test")
		bus.Publish(logEvent("two"), PriorityNormal, "test")
		bus.ProcessEvents(0)

		recent := bus.RecentEvents(10)
		Expect(recent).To(HaveLen(2))
		Expect(recent[0].Event.Type()).To(Equal(EventDebugMessage))
		Expect(recent[1].Event.Type()).To(Equal(EventLogMessage))

		recent = bus.RecentEvents(1)
		Expect(recent).To(HaveLen(1))
		Expect(recent[0].Event.Type()).To(Equal(EventLogMessage))
	})

	It("should count published and dispatched events", func() {
		bus.Publish(debugEvent("a"), PriorityNormal, "")
		bus.Publish(debugEvent("b"), PriorityNormal, "")
		bus.ProcessEvents(0)
		bus.PublishImmediate(logEvent("c"), "")

		stats := bus.Statistics()
		Expect(stats.Published).To(Equal(uint64(3)))
		Expect(stats.Dispatched).To(Equal(uint64(3)))
		Expect(stats.Immediate).To(Equal(uint64(1)))
		Expect(stats.DispatchedByType[EventDebugMessage]).To(Equal(uint64(2)))
		Expect(stats.DispatchedByType[EventLogMessage]).To(Equal(uint64(1)))
	})
})
