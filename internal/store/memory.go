package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgallion1/epubvoice/internal/book"
)

// Memory is an in-process Store. Records are copied on the way in and out,
// so callers never share state with the store.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record)}
}

func (m *Memory) Save(ctx context.Context, doc *book.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	doc.ID = NewID()
	doc.CreatedAt = time.Now().UTC()

	rec := NewRecord(doc)
	m.mu.Lock()
	m.records[rec.ID] = rec
	m.mu.Unlock()
	return rec.ID, nil
}

func (m *Memory) Get(ctx context.Context, id string) (*book.Document, error) {
	rec, err := m.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.Document()
}

func (m *Memory) Chapter(ctx context.Context, id string, index int) (book.Chapter, error) {
	rec, err := m.get(ctx, id)
	if err != nil {
		return book.Chapter{}, err
	}
	if index < 0 || index >= len(rec.Chapters) {
		return book.Chapter{}, fmt.Errorf("document %s chapter %d of %d: %w", id, index, len(rec.Chapters), book.ErrChapterNotFound)
	}
	return rec.Chapters[index].Chapter(), nil
}

// List returns summaries oldest first.
func (m *Memory) List(ctx context.Context) ([]Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := make([]Summary, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec.Summary())
	}
	m.mu.RUnlock()

	// xid IDs sort by creation time.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	delete(m.records, id)
	return nil
}

func (m *Memory) get(ctx context.Context, id string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	m.mu.RLock()
	rec, ok := m.records[id]
	m.mu.RUnlock()
	if !ok {
		return Record{}, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return rec, nil
}
