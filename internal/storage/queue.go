package storage

import (
	"ytqdgo/internal/models"
)

// Queue is the ordered list of pending downloads. It is not safe for
// concurrent use; the controller loop is its only caller.
type Queue struct {
	entries []models.QueueEntry
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) Len() int {
	return len(q.entries)
}

func (q *Queue) Append(entry models.QueueEntry) {
	q.entries = append(q.entries, entry)
}

func (q *Queue) PopFront() (models.QueueEntry, bool) {
	if len(q.entries) == 0 {
		return models.QueueEntry{}, false
	}
	entry := q.entries[0]
	q.entries = q.entries[1:]
	return entry, true
}

func (q *Queue) PeekAll() []models.QueueEntry {
	out := make([]models.QueueEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

func (q *Queue) MoveUp(index int) bool {
	if index <= 0 || index >= len(q.entries) {
		return false
	}
	q.entries[index-1], q.entries[index] = q.entries[index], q.entries[index-1]
	return true
}

func (q *Queue) MoveDown(index int) bool {
	if index < 0 || index >= len(q.entries)-1 {
		return false
	}
	q.entries[index], q.entries[index+1] = q.entries[index+1], q.entries[index]
	return true
}

func (q *Queue) RemoveAt(index int) (models.QueueEntry, bool) {
	if index < 0 || index >= len(q.entries) {
		return models.QueueEntry{}, false
	}
	entry := q.entries[index]
	q.entries = append(q.entries[:index], q.entries[index+1:]...)
	return entry, true
}

// Clear empties the queue and returns how many entries were dropped.
func (q *Queue) Clear() int {
	n := len(q.entries)
	q.entries = nil
	return n
}

func (q *Queue) ContainsLocator(locator string) bool {
	for _, entry := range q.entries {
		if entry.Locator == locator {
			return true
		}
	}
	return false
}

// SetTitle updates the title of the entry holding locator. It returns false
// when the entry has since been removed.
func (q *Queue) SetTitle(locator, title string) bool {
	for i := range q.entries {
		if q.entries[i].Locator == locator {
			q.entries[i].Title = title
			return true
		}
	}
	return false
}
