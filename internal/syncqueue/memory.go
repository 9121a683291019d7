package syncqueue

import (
	"context"
	"errors"
	"strings"
	"sync"
)

type MemoryJournal struct {
	mu    sync.Mutex
	items map[string]Action
	order []string
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{
		items: make(map[string]Action),
	}
}

func (j *MemoryJournal) Append(_ context.Context, action Action) error {
	if strings.TrimSpace(action.ID) == "" {
		return errors.New("action id is required")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, ok := j.items[action.ID]; ok {
		return errors.New("action id already journaled")
	}
	j.items[action.ID] = cloneAction(action)
	j.order = append(j.order, action.ID)
	return nil
}

func (j *MemoryJournal) Pending(_ context.Context, tag string) ([]Action, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	pending := make([]Action, 0, len(j.items))
	for _, id := range j.order {
		action, ok := j.items[id]
		if !ok || action.Tag != tag {
			continue
		}
		pending = append(pending, cloneAction(action))
	}
	return pending, nil
}

func (j *MemoryJournal) MarkAttempt(_ context.Context, id string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	action, ok := j.items[id]
	if !ok {
		return ErrActionNotFound
	}
	action.Attempts++
	j.items[id] = action
	return nil
}

func (j *MemoryJournal) Complete(_ context.Context, id string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, ok := j.items[id]; !ok {
		return ErrActionNotFound
	}
	delete(j.items, id)
	return nil
}

func cloneAction(action Action) Action {
	cloned := action
	cloned.Body = append([]byte(nil), action.Body...)
	cloned.Header = cloneHeader(action.Header)
	return cloned
}
