package sim

import (
	"errors"

	"go.uber.org/mock/gomock"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type testUnit struct {
	id, team string
	speed    Tick
	hp       int
	x, y     int
}

func (u *testUnit) ID() string           { return u.id }
func (u *testUnit) Team() string         { return u.team }
func (u *testUnit) Alive() bool          { return u.hp > 0 }
func (u *testUnit) Speed() Tick          { return u.speed }
func (u *testUnit) Position() (int, int) { return u.x, u.y }

type testWorld struct {
	units []*testUnit
}

func (w *testWorld) Combatant(id string) (Combatant, bool) {
	for _, u := range w.units {
		if u.id == id {
			return u, true
		}
	}
	return nil, false
}

func (w *testWorld) LivingCombatants() []Combatant {
	var living []Combatant
	for _, u := range w.units {
		if u.Alive() {
			living = append(living, u)
		}
	}
	return living
}

func (w *testWorld) TeamsRemaining() int {
	teams := make(map[string]bool)
	for _, u := range w.units {
		if u.Alive() {
			teams[u.team] = true
		}
	}
	return len(teams)
}

var _ = Describe("TurnScheduler", func() {
	var (
		mockCtrl  *gomock.Controller
		bus       *EventBus
		machine   *PhaseStateMachine
		world     *testWorld
		scheduler *TurnScheduler

		unitA *testUnit
		unitB *testUnit

		actingOrder []string
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		bus = NewEventBus(nil)
		machine = NewPhaseStateMachine(bus, nil)
		machine.Attach()

		unitA = &testUnit{id: "A", team: "red", speed: 3, hp: 10}
		unitB = &testUnit{id: "B", team: "blue", speed: 6, hp: 10}
		world = &testWorld{units: []*testUnit{unitA, unitB}}

		scheduler = NewTurnScheduler(bus, machine, world, nil)

		machine.SetBattleActive(true)
		bus.PublishImmediate(ScenarioLoadedEvent{
			EventBase:    MakeEventBase(0, "", ""),
			ScenarioName: "test",
		}, "test")

		actingOrder = nil
		bus.SubscribeAll(func(e Event) {
			if e.Type() == EventUnitTurnStarted {
				actingOrder = append(actingOrder, e.Entity())
			}
		}, "order-recorder")
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	newMockAction := func(name string, weight Tick) *MockAction {
		a := NewMockAction(mockCtrl)
		a.EXPECT().Name().Return(name).AnyTimes()
		a.EXPECT().Category().Return(CategoryHeavy).AnyTimes()
		a.EXPECT().BaseWeight().Return(weight).AnyTimes()
		a.EXPECT().EffectiveWeight(gomock.Any(), gomock.Any()).
			Return(weight).AnyTimes()
		return a
	}

	waitSource := func() *MockDecisionSource {
		src := NewMockDecisionSource(mockCtrl)
		src.EXPECT().Decide(gomock.Any(), gomock.Any()).
			Return(Decision{ActionName: WaitName}, nil).AnyTimes()
		return src
	}

	It("should interleave turns by speed and action weight", func() {
		heavy := newMockAction("heavy", 100)
		heavy.EXPECT().Validate(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(Valid()).AnyTimes()
		heavy.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(ActionResult{Status: StatusSuccess}).AnyTimes()
		scheduler.RegisterAction(heavy)

		srcA := NewMockDecisionSource(mockCtrl)
		srcA.EXPECT().Decide(gomock.Any(), gomock.Any()).
			Return(Decision{ActionName: "heavy"}, nil).AnyTimes()

		scheduler.AttachCombatant(unitA, srcA)
		scheduler.AttachCombatant(unitB, waitSource())

		// A acts at 3, executes a weight-100 action, and reschedules far
		// out; B at 6 acts again before A comes back.
		for i := 0; i < 4; i++ {
			status, err := scheduler.ProcessNextTurn()
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(TurnCompleted))
		}

		Expect(actingOrder).To(Equal([]string{"A", "B", "B", "A"}))
		Expect(scheduler.Timeline().CurrentTime()).To(Equal(Tick(106)))
	})

	It("should drain the bus before returning from a turn", func() {
		scheduler.AttachCombatant(unitA, waitSource())
		scheduler.AttachCombatant(unitB, waitSource())

		_, err := scheduler.ProcessNextTurn()
		Expect(err).ToNot(HaveOccurred())
		Expect(bus.HasQueuedEvents()).To(BeFalse())
	})

	It("should leave the entry live while awaiting input", func() {
		requested := 0
		bus.Subscribe(EventPlayerActionRequested, func(Event) { requested++ }, "")

		scheduler.AttachCombatant(unitA, nil)
		scheduler.AttachCombatant(unitB, waitSource())

		status, err := scheduler.ProcessNextTurn()
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(TurnAwaitingInput))
		Expect(requested).To(Equal(1))

		// The entry was peeked, not popped: whose turn it is stays visible.
		Expect(scheduler.Timeline().PeekNext().EntityID).To(Equal("A"))
		Expect(scheduler.View().ActingEntity).To(Equal("A"))
	})

	It("should report an unknown action without popping", func() {
		scheduler.AttachCombatant(unitA, nil)
		scheduler.AttachCombatant(unitB, waitSource())
		scheduler.ProcessNextTurn()

		_, err := scheduler.SubmitAction("somersault", nil)
		Expect(errors.Is(err, ErrUnknownAction)).To(BeTrue())
		Expect(scheduler.Timeline().PeekNext().EntityID).To(Equal("A"))

		vr, err := scheduler.SubmitAction(WaitName, nil)
		Expect(err).ToNot(HaveOccurred())
		Expect(vr.Valid).To(BeTrue())
		Expect(scheduler.Timeline().PeekNext().EntityID).To(Equal("B"))
	})

	It("should report invalid actions without mutating state", func() {
		blocked := newMockAction("blocked", 70)
		blocked.EXPECT().Validate(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(Invalid("target out of range")).AnyTimes()
		scheduler.RegisterAction(blocked)

		scheduler.AttachCombatant(unitA, nil)
		scheduler.AttachCombatant(unitB, waitSource())
		scheduler.ProcessNextTurn()

		vr, err := scheduler.SubmitAction("blocked", &Target{EntityID: "B"})
		Expect(err).ToNot(HaveOccurred())
		Expect(vr.Valid).To(BeFalse())
		Expect(vr.Reason).To(Equal("target out of range"))

		// Still A's turn; nothing was popped or rescheduled.
		Expect(scheduler.Timeline().PeekNext().EntityID).To(Equal("A"))
		Expect(scheduler.Timeline().CurrentTime()).To(Equal(Tick(0)))
	})

	It("should reschedule an entity whose action fails after the pop", func() {
		fumble := newMockAction("fumble", 80)
		fumble.EXPECT().Validate(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(Valid()).AnyTimes()
		fumble.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(ActionResult{Status: StatusFailed, Message: "tripped"}).AnyTimes()
		scheduler.RegisterAction(fumble)

		srcA := NewMockDecisionSource(mockCtrl)
		srcA.EXPECT().Decide(gomock.Any(), gomock.Any()).
			Return(Decision{ActionName: "fumble"}, nil).AnyTimes()

		scheduler.AttachCombatant(unitA, srcA)
		scheduler.AttachCombatant(unitB, waitSource())

		_, err := scheduler.ProcessNextTurn()
		Expect(err).ToNot(HaveOccurred())

		// A is still on the timeline, charged the wait weight, never lost.
		found := false
		for _, e := range scheduler.Timeline().Preview(10) {
			if e.EntityID == "A" {
				found = true
				Expect(e.ExecutionTime).To(Equal(Tick(3 + 3 + WaitWeight)))
			}
		}
		Expect(found).To(BeTrue())
	})

	It("should fall back to wait when a decision source fails", func() {
		var executed []string
		bus.Subscribe(EventActionExecuted, func(e Event) {
			executed = append(executed, e.(ActionExecutedEvent).ActionName)
		}, "")

		broken := NewMockDecisionSource(mockCtrl)
		broken.EXPECT().Decide(gomock.Any(), gomock.Any()).
			Return(Decision{}, errors.New("model exploded")).AnyTimes()

		scheduler.AttachCombatant(unitA, broken)
		scheduler.AttachCombatant(unitB, waitSource())

		status, err := scheduler.ProcessNextTurn()
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(TurnCompleted))
		Expect(executed).To(Equal([]string{WaitName}))
	})

	It("should fall back to wait when a decision names an unknown action", func() {
		confused := NewMockDecisionSource(mockCtrl)
		confused.EXPECT().Decide(gomock.Any(), gomock.Any()).
			Return(Decision{ActionName: "mind-blast"}, nil).AnyTimes()

		scheduler.AttachCombatant(unitA, confused)
		scheduler.AttachCombatant(unitB, waitSource())

		status, err := scheduler.ProcessNextTurn()
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(TurnCompleted))
	})

	It("should never activate a detached entity", func() {
		scheduler.AttachCombatant(unitA, waitSource())
		scheduler.AttachCombatant(unitB, waitSource())

		Expect(scheduler.DetachEntity("B")).To(Equal(1))

		scheduler.ProcessNextTurn()
		scheduler.ProcessNextTurn()

		Expect(actingOrder).ToNot(ContainElement("B"))
	})

	It("should surface a stale entry loudly but keep going", func() {
		scheduler.AttachCombatant(unitA, waitSource())
		scheduler.AttachCombatant(unitB, waitSource())
		scheduler.Timeline().AddAbsolute(1, "ghost", EntryUnit, "", nil)

		_, err := scheduler.ProcessNextTurn()
		Expect(errors.Is(err, ErrStaleEntity)).To(BeTrue())

		status, err := scheduler.ProcessNextTurn()
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(TurnCompleted))
		Expect(actingOrder).To(Equal([]string{"A"}))
	})

	It("should skip a dead entity that surfaced without detaching", func() {
		scheduler.AttachCombatant(unitA, waitSource())
		scheduler.AttachCombatant(unitB, waitSource())
		unitA.hp = 0

		status, err := scheduler.ProcessNextTurn()
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(TurnCompleted))
		Expect(actingOrder).To(BeEmpty())
	})

	It("should repair an empty timeline while combatants remain", func() {
		// Neither unit was ever attached: the timeline is empty but both
		// sides are alive.
		scheduler.sources["A"] = waitSource()
		scheduler.sources["B"] = waitSource()

		status, err := scheduler.ProcessNextTurn()
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(TurnCompleted))
		Expect(actingOrder).To(Equal([]string{"A"}))
	})

	It("should execute a pre-committed action without asking anyone", func() {
		trap := newMockAction("spike-trap", 0)
		trap.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(ActionResult{Status: StatusSuccess}).Times(1)

		scheduler.AttachCombatant(unitA, waitSource())
		scheduler.AttachCombatant(unitB, waitSource())
		scheduler.Timeline().AddAbsolute(1, "trap-1", EntryHazard, "spike trap", trap)

		status, err := scheduler.ProcessNextTurn()
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(TurnCompleted))
	})

	It("should announce hazards without a pre-committed action", func() {
		triggered := 0
		bus.Subscribe(EventHazardTriggered, func(Event) { triggered++ }, "")

		scheduler.AttachCombatant(unitA, waitSource())
		scheduler.AttachCombatant(unitB, waitSource())
		scheduler.Timeline().AddAbsolute(1, "gas-vent", EntryHazard, "", nil)

		_, err := scheduler.ProcessNextTurn()
		Expect(err).ToNot(HaveOccurred())
		Expect(triggered).To(Equal(1))
	})

	It("should end the encounter when one team remains", func() {
		unitB.hp = 0

		status, err := scheduler.ProcessNextTurn()
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(TurnIdle))
		Expect(machine.GamePhase()).To(Equal(PhaseGameOver))
	})

	It("should invoke hooks around each turn", func() {
		hook := &recordingHook{}
		scheduler.AcceptHook(hook)

		scheduler.AttachCombatant(unitA, waitSource())
		scheduler.AttachCombatant(unitB, waitSource())

		_, err := scheduler.ProcessNextTurn()
		Expect(err).ToNot(HaveOccurred())

		Expect(hook.ctxs).To(HaveLen(2))
		Expect(hook.ctxs[0].Pos).To(BeIdenticalTo(HookPosBeforeTurn))
		Expect(hook.ctxs[1].Pos).To(BeIdenticalTo(HookPosAfterTurn))

		entry := hook.ctxs[0].Item.(*TimelineEntry)
		Expect(entry.EntityID).To(Equal("A"))
	})

	It("should force selection into agreement with the timeline head", func() {
		scheduler.AttachCombatant(unitA, nil)
		scheduler.AttachCombatant(unitB, waitSource())

		scheduler.SetCursor(99, 99)
		scheduler.ProcessNextTurn()

		view := scheduler.View()
		Expect(view.ActingEntity).To(Equal("A"))
		Expect(view.SelectedEntity).To(Equal("A"))
		Expect(view.CursorX).To(Equal(unitA.x))
		Expect(view.CursorY).To(Equal(unitA.y))
	})
})
