package battlelog

import (
	"github.com/skirmishlab/vanguard/sim"
)

// EventRow is one dispatched event as stored in the "events" table.
type EventRow struct {
	Seq    int64
	Tick   int64
	Type   string
	Entity string
	Team   string
	Detail string
}

// TurnRow is one completed unit turn as stored in the "turns" table.
type TurnRow struct {
	Seq    int64
	Tick   int64
	Entity string
	Team   string
	Action string
	Status string
	Weight int64
}

// BusRecorder mirrors every dispatched event into a Recorder. Completed
// actions additionally get a row in the turns table.
type BusRecorder struct {
	recorder Recorder
	seq      int64
	turnSeq  int64
}

// NewBusRecorder creates the event and turn tables on the given recorder.
func NewBusRecorder(recorder Recorder) *BusRecorder {
	r := &BusRecorder{recorder: recorder}

	recorder.CreateTable("events", EventRow{})
	recorder.CreateTable("turns", TurnRow{})

	return r
}

// Attach subscribes the recorder to every event on the bus.
func (r *BusRecorder) Attach(bus *sim.EventBus) {
	bus.SubscribeAll(r.record, "battlelog.BusRecorder")
}

func (r *BusRecorder) record(ev sim.Event) {
	r.seq++

	r.recorder.InsertData("events", EventRow{
		Seq:    r.seq,
		Tick:   int64(ev.Tick()),
		Type:   string(ev.Type()),
		Entity: ev.Entity(),
		Team:   ev.Team(),
		Detail: detailOf(ev),
	})

	if e, ok := ev.(sim.ActionExecutedEvent); ok {
		r.turnSeq++
		r.recorder.InsertData("turns", TurnRow{
			Seq:    r.turnSeq,
			Tick:   int64(e.Tick()),
			Entity: e.Entity(),
			Team:   e.Team(),
			Action: e.ActionName,
			Status: e.Status.String(),
			Weight: int64(e.Weight),
		})
	}
}

func detailOf(ev sim.Event) string {
	switch e := ev.(type) {
	case sim.ActionSelectedEvent:
		return e.ActionName
	case sim.ActionExecutedEvent:
		return e.ActionName
	case sim.DamageDealtEvent:
		return e.SourceID
	case sim.UnitDefeatedEvent:
		return e.DefeatedBy
	case sim.LogMessageEvent:
		return e.Message
	case sim.DebugMessageEvent:
		return e.Message
	case sim.GamePhaseChangedEvent:
		return e.Old.String() + ">" + e.New.String()
	case sim.BattlePhaseChangedEvent:
		return e.Old.String() + ">" + e.New.String()
	default:
		return ""
	}
}
