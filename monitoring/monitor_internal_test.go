package monitoring

import (
	"encoding/json"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skirmishlab/vanguard/sim"
)

type monitorTestWorld struct{}

func (monitorTestWorld) Combatant(id string) (sim.Combatant, bool) { return nil, false }
func (monitorTestWorld) LivingCombatants() []sim.Combatant         { return nil }
func (monitorTestWorld) TeamsRemaining() int                       { return 0 }

var _ = Describe("Monitor", func() {
	var (
		m         *Monitor
		bus       *sim.EventBus
		phases    *sim.PhaseStateMachine
		scheduler *sim.TurnScheduler
	)

	BeforeEach(func() {
		bus = sim.NewEventBus(nil)
		phases = sim.NewPhaseStateMachine(bus, nil)
		scheduler = sim.NewTurnScheduler(bus, phases, monitorTestWorld{}, nil)

		m = NewMonitor()
		m.RegisterScheduler(scheduler)
		m.RegisterEventBus(bus)
		m.RegisterPhaseMachine(phases)
	})

	It("should report the current tick", func() {
		scheduler.Timeline().AddAbsolute(7, "hero", sim.EntryUnit, "", nil)
		scheduler.Timeline().PopNext()

		w := httptest.NewRecorder()
		m.now(w, httptest.NewRequest("GET", "/api/now", nil))

		Expect(w.Body.String()).To(Equal(`{"now":7}`))
	})

	It("should report the current phases", func() {
		w := httptest.NewRecorder()
		m.phase(w, httptest.NewRequest("GET", "/api/phase", nil))

		rsp := phaseRsp{}
		Expect(json.Unmarshal(w.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.GamePhase).To(Equal("MAIN_MENU"))
		Expect(rsp.BattlePhase).To(Equal("TIMELINE_PROCESSING"))
	})

	It("should preview upcoming timeline entries", func() {
		scheduler.Timeline().AddAbsolute(10, "hero", sim.EntryUnit, "turn", nil)
		scheduler.Timeline().AddAbsolute(5, "fire", sim.EntryHazard, "burn", nil)

		w := httptest.NewRecorder()
		m.timeline(w, httptest.NewRequest("GET", "/api/timeline", nil))

		rsp := []timelineEntryRsp{}
		Expect(json.Unmarshal(w.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp).To(HaveLen(2))
		Expect(rsp[0].EntityID).To(Equal("fire"))
		Expect(rsp[1].EntityID).To(Equal("hero"))
	})

	It("should reject a malformed timeline count", func() {
		w := httptest.NewRecorder()
		m.timeline(w, httptest.NewRequest("GET", "/api/timeline?count=x", nil))

		Expect(w.Code).To(Equal(400))
	})

	It("should report recent events", func() {
		bus.PublishImmediate(sim.LogMessageEvent{
			EventBase: sim.MakeEventBase(3, "hero", "vanguard"),
			Message:   "hello",
		}, "test")

		w := httptest.NewRecorder()
		m.recentEvents(w, httptest.NewRequest("GET", "/api/events", nil))

		rsp := []eventRsp{}
		Expect(json.Unmarshal(w.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp).To(HaveLen(1))
		Expect(rsp[0].Entity).To(Equal("hero"))
		Expect(rsp[0].Source).To(Equal("test"))
	})

	It("should track progress bars", func() {
		bar := m.CreateProgressBar("rounds", 10)
		bar.IncrementFinished(3)

		w := httptest.NewRecorder()
		m.listProgressBars(w, httptest.NewRequest("GET", "/api/progress", nil))

		rsp := []*ProgressBar{}
		Expect(json.Unmarshal(w.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp).To(HaveLen(1))
		Expect(rsp[0].Finished).To(Equal(uint64(3)))

		m.CompleteProgressBar(bar)
		Expect(m.progressBars).To(BeEmpty())
	})
})
