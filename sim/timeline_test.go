package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Timeline", func() {
	var tl *Timeline

	BeforeEach(func() {
		tl = NewTimeline()
	})

	It("should pop entries in (execution time, sequence) order", func() {
		tl.Schedule("c", 9, 0, "", nil)
		tl.Schedule("a", 3, 0, "", nil)
		tl.Schedule("b", 6, 0, "", nil)

		Expect(tl.PopNext().EntityID).To(Equal("a"))
		Expect(tl.PopNext().EntityID).To(Equal("b"))
		Expect(tl.PopNext().EntityID).To(Equal("c"))
		Expect(tl.PopNext()).To(BeNil())
	})

	It("should break ties by insertion order", func() {
		tl.Schedule("first", 5, 0, "", nil)
		tl.Schedule("second", 5, 0, "", nil)
		tl.Schedule("third", 5, 0, "", nil)

		Expect(tl.PopNext().EntityID).To(Equal("first"))
		Expect(tl.PopNext().EntityID).To(Equal("second"))
		Expect(tl.PopNext().EntityID).To(Equal("third"))
	})

	It("should advance the clock to each popped entry's time", func() {
		tl.Schedule("a", 3, 0, "", nil)
		tl.Schedule("b", 6, 0, "", nil)

		entry := tl.PopNext()
		Expect(entry.ExecutionTime).To(Equal(Tick(3)))
		Expect(tl.CurrentTime()).To(Equal(Tick(3)))

		entry = tl.PopNext()
		Expect(entry.ExecutionTime).To(Equal(Tick(6)))
		Expect(tl.CurrentTime()).To(Equal(Tick(6)))
	})

	It("should never move the clock backwards", func() {
		tl.AdvanceTime(10)
		tl.AddAbsolute(2, "late", EntryEvent, "", nil)

		entry := tl.PopNext()
		Expect(entry.EntityID).To(Equal("late"))
		Expect(tl.CurrentTime()).To(Equal(Tick(10)))

		tl.AdvanceTime(-5)
		Expect(tl.CurrentTime()).To(Equal(Tick(10)))
	})

	It("should schedule relative to the current time", func() {
		tl.Schedule("a", 3, 0, "", nil)
		tl.PopNext()

		entry := tl.Schedule("a", 0, 100, "", nil)
		Expect(entry.ExecutionTime).To(Equal(Tick(103)))
	})

	It("should let a slow unit act again before a heavily delayed fast one", func() {
		tl.Schedule("a", 3, 0, "", nil)
		tl.Schedule("b", 6, 0, "", nil)

		Expect(tl.PopNext().EntityID).To(Equal("a"))
		tl.Schedule("a", 0, 100, "a recovers", nil)

		Expect(tl.PopNext().EntityID).To(Equal("b"))
		tl.Schedule("b", 6, 0, "b recovers", nil)

		Expect(tl.PopNext().EntityID).To(Equal("b"))
		Expect(tl.PopNext().EntityID).To(Equal("a"))
	})

	It("should never surface removed entries", func() {
		tl.AddAbsolute(5, "A", EntryUnit, "", nil)
		tl.AddAbsolute(8, "B", EntryUnit, "", nil)

		Expect(tl.RemoveEntries("B")).To(Equal(1))

		entry := tl.PopNext()
		Expect(entry.EntityID).To(Equal("A"))
		Expect(entry.ExecutionTime).To(Equal(Tick(5)))

		Expect(tl.PopNext()).To(BeNil())
		Expect(tl.IsEmpty()).To(BeTrue())
	})

	It("should hide removed entries from peek before compaction", func() {
		tl.AddAbsolute(1, "doomed", EntryUnit, "", nil)
		tl.AddAbsolute(2, "doomed", EntryUnit, "", nil)
		tl.AddAbsolute(3, "survivor", EntryUnit, "", nil)

		Expect(tl.RemoveEntries("doomed")).To(Equal(2))
		Expect(tl.PeekNext().EntityID).To(Equal("survivor"))
	})

	It("should purge exactly the removed entries on compact", func() {
		tl.AddAbsolute(1, "x", EntryUnit, "", nil)
		tl.AddAbsolute(2, "y", EntryUnit, "", nil)
		tl.AddAbsolute(3, "x", EntryUnit, "", nil)
		tl.AddAbsolute(4, "z", EntryUnit, "", nil)

		Expect(tl.RemoveEntries("x")).To(Equal(2))
		Expect(tl.TombstoneCount()).To(Equal(2))

		tl.Compact()
		Expect(tl.TombstoneCount()).To(Equal(0))
		Expect(tl.Len()).To(Equal(2))

		Expect(tl.PopNext().EntityID).To(Equal("y"))
		Expect(tl.PopNext().EntityID).To(Equal("z"))
	})

	It("should preview without mutating", func() {
		tl.Schedule("a", 3, 0, "", nil)
		tl.Schedule("b", 6, 0, "", nil)
		tl.Schedule("c", 9, 0, "", nil)
		tl.RemoveEntries("b")

		preview := tl.Preview(5)
		Expect(preview).To(HaveLen(2))
		Expect(preview[0].EntityID).To(Equal("a"))
		Expect(preview[1].EntityID).To(Equal("c"))

		Expect(tl.CurrentTime()).To(Equal(Tick(0)))
		Expect(tl.Len()).To(Equal(2))
		Expect(tl.PopNext().EntityID).To(Equal("a"))
	})

	It("should report empty only after skipping tombstones", func() {
		tl.Schedule("only", 4, 0, "", nil)
		Expect(tl.IsEmpty()).To(BeFalse())

		tl.RemoveEntries("only")
		Expect(tl.IsEmpty()).To(BeTrue())
	})
})
