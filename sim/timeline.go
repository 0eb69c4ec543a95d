package sim

import (
	"container/heap"
)

// EntryKind tells what a timeline entry activates when it surfaces.
type EntryKind int

// Possible entry kinds.
const (
	EntryUnit EntryKind = iota
	EntryHazard
	EntryEvent
)

var entryKindNames = map[EntryKind]string{
	EntryUnit:   "unit",
	EntryHazard: "hazard",
	EntryEvent:  "event",
}

func (k EntryKind) String() string {
	if name, ok := entryKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// A TimelineEntry is a scheduled activation record. The entry references the
// owning entity by ID only; the timeline never owns entities.
type TimelineEntry struct {
	ExecutionTime Tick
	EntityID      string
	Kind          EntryKind
	SequenceID    uint64
	Description   string

	// ScheduledAction carries a pre-committed action for prepared or
	// interrupt entries. When set, the scheduler executes it without asking
	// a decision source.
	ScheduledAction Action
}

// A Timeline is a time-ordered priority queue of scheduled entries. Entries
// with equal execution time are totally ordered by ascending sequence ID, so
// turn order is reproducible from insertion order alone.
//
// Removal uses tombstones: a binary heap has no efficient arbitrary removal,
// so removed entries stay in the heap until Compact rebuilds it.
type Timeline struct {
	entries   entryHeap
	tombstone map[uint64]struct{}
	now       Tick
	nextSeq   uint64
	live      int
}

// NewTimeline creates an empty Timeline at tick zero.
func NewTimeline() *Timeline {
	t := new(Timeline)
	t.entries = make(entryHeap, 0)
	t.tombstone = make(map[uint64]struct{})
	heap.Init(&t.entries)
	return t
}

// CurrentTime returns the timeline clock. It advances only when an entry is
// popped.
func (t *Timeline) CurrentTime() Tick {
	return t.now
}

// Schedule inserts a unit entry at current time + base speed + action weight
// and returns it. Schedule always succeeds.
func (t *Timeline) Schedule(
	entityID string,
	baseSpeed, actionWeight Tick,
	description string,
	scheduledAction Action,
) *TimelineEntry {
	entry := &TimelineEntry{
		ExecutionTime:   t.now + baseSpeed + actionWeight,
		EntityID:        entityID,
		Kind:            EntryUnit,
		SequenceID:      t.nextSequenceID(),
		Description:     description,
		ScheduledAction: scheduledAction,
	}

	heap.Push(&t.entries, entry)
	t.live++

	return entry
}

// AddAbsolute inserts an entry at an absolute tick, for hazards and timed
// events that do not derive their activation from a speed stat. Entries in
// the past surface on the next pop.
func (t *Timeline) AddAbsolute(
	time Tick,
	entityID string,
	kind EntryKind,
	description string,
	scheduledAction Action,
) *TimelineEntry {
	entry := &TimelineEntry{
		ExecutionTime:   time,
		EntityID:        entityID,
		Kind:            kind,
		SequenceID:      t.nextSequenceID(),
		Description:     description,
		ScheduledAction: scheduledAction,
	}

	heap.Push(&t.entries, entry)
	t.live++

	return entry
}

// PeekNext returns, without removing, the entry with the smallest
// (execution time, sequence ID). Tombstoned entries found at the front are
// discarded. Returns nil if the timeline is empty.
func (t *Timeline) PeekNext() *TimelineEntry {
	t.discardDeadHead()

	if t.entries.Len() == 0 {
		return nil
	}

	return t.entries[0]
}

// PopNext removes and returns the next entry and advances the clock to its
// execution time. PopNext is the only operation that advances time. Returns
// nil if the timeline is empty.
func (t *Timeline) PopNext() *TimelineEntry {
	t.discardDeadHead()

	if t.entries.Len() == 0 {
		return nil
	}

	entry := heap.Pop(&t.entries).(*TimelineEntry)
	t.live--

	if entry.ExecutionTime > t.now {
		t.now = entry.ExecutionTime
	}

	return entry
}

// RemoveEntries tombstones every entry that belongs to the given entity and
// returns how many were marked. The scan is O(n), which is acceptable since
// removal only happens when an entity leaves the simulation early.
func (t *Timeline) RemoveEntries(entityID string) int {
	count := 0
	for _, entry := range t.entries {
		if entry.EntityID != entityID {
			continue
		}
		if _, dead := t.tombstone[entry.SequenceID]; dead {
			continue
		}

		t.tombstone[entry.SequenceID] = struct{}{}
		t.live--
		count++
	}

	return count
}

// Preview returns up to n upcoming entries in activation order without
// mutating the timeline. Tombstoned entries are skipped. Intended for the
// turn-order UI.
func (t *Timeline) Preview(n int) []*TimelineEntry {
	if n <= 0 {
		return nil
	}

	snapshot := make(entryHeap, len(t.entries))
	copy(snapshot, t.entries)

	preview := make([]*TimelineEntry, 0, n)
	for snapshot.Len() > 0 && len(preview) < n {
		entry := heap.Pop(&snapshot).(*TimelineEntry)
		if _, dead := t.tombstone[entry.SequenceID]; dead {
			continue
		}
		preview = append(preview, entry)
	}

	return preview
}

// AdvanceTime moves the clock forward by the given number of ticks. Negative
// amounts are ignored; the clock never goes backwards.
func (t *Timeline) AdvanceTime(ticks Tick) {
	if ticks <= 0 {
		return
	}
	t.now += ticks
}

// Compact rebuilds the heap without tombstoned entries. Call it periodically
// to amortize the cost of lazy deletion, not on every pop.
func (t *Timeline) Compact() {
	if len(t.tombstone) == 0 {
		return
	}

	kept := make(entryHeap, 0, t.live)
	for _, entry := range t.entries {
		if _, dead := t.tombstone[entry.SequenceID]; dead {
			continue
		}
		kept = append(kept, entry)
	}

	heap.Init(&kept)
	t.entries = kept
	t.tombstone = make(map[uint64]struct{})
}

// IsEmpty reports whether no live entry remains.
func (t *Timeline) IsEmpty() bool {
	return t.PeekNext() == nil
}

// Len returns the number of live entries.
func (t *Timeline) Len() int {
	return t.live
}

// TombstoneCount returns the number of entries marked removed but not yet
// compacted away.
func (t *Timeline) TombstoneCount() int {
	return len(t.tombstone)
}

func (t *Timeline) nextSequenceID() uint64 {
	id := t.nextSeq
	t.nextSeq++
	return id
}

func (t *Timeline) discardDeadHead() {
	for t.entries.Len() > 0 {
		head := t.entries[0]
		if _, dead := t.tombstone[head.SequenceID]; !dead {
			return
		}

		heap.Pop(&t.entries)
		delete(t.tombstone, head.SequenceID)
	}
}

type entryHeap []*TimelineEntry

// Len returns the number of entries in the heap, tombstoned included.
func (h entryHeap) Len() int {
	return len(h)
}

// Less determines the order between two entries. Execution time orders first,
// sequence ID breaks ties.
func (h entryHeap) Less(i, j int) bool {
	if h[i].ExecutionTime != h[j].ExecutionTime {
		return h[i].ExecutionTime < h[j].ExecutionTime
	}
	return h[i].SequenceID < h[j].SequenceID
}

// Swap changes the position of two entries in the heap.
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

// Push adds an entry to the heap.
func (h *entryHeap) Push(x interface{}) {
	entry := x.(*TimelineEntry)
	*h = append(*h, entry)
}

// Pop removes and returns the entry that activates next.
func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	entry := old[n-1]
	*h = old[0 : n-1]
	return entry
}
