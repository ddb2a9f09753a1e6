package pathstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/epubvoice/internal/book"
	"github.com/dgallion1/epubvoice/internal/store"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentRequests bounds per-document fan-out to the server.
const maxConcurrentRequests = 8

// DocumentStore is a store.Store backed by pathstore. Each document lives
// under <prefix>/documents/<id>: a meta node holding the record without
// chapters, and one chapters/<index> node per chapter. The meta node is
// written last, so a document without one is incomplete and invisible.
type DocumentStore struct {
	client *Client
	prefix string
}

var _ store.Store = (*DocumentStore)(nil)

func NewDocumentStore(client *Client, prefix string) *DocumentStore {
	return &DocumentStore{client: client, prefix: strings.Trim(prefix, "/")}
}

func (s *DocumentStore) documentsKey() string {
	return s.prefix + "/documents"
}

func (s *DocumentStore) docKey(id string) string {
	return s.documentsKey() + "/" + id
}

func (s *DocumentStore) chapterKey(id string, index int) string {
	return s.docKey(id) + "/chapters/" + strconv.Itoa(index)
}

func (s *DocumentStore) Save(ctx context.Context, doc *book.Document) (string, error) {
	doc.ID = store.NewID()
	doc.CreatedAt = time.Now().UTC()
	rec := store.NewRecord(doc)
	source := "epubvoice:" + rec.ID

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentRequests)
	for _, ch := range rec.Chapters {
		g.Go(func() error {
			return s.client.PutNode(gctx, s.chapterKey(rec.ID, ch.Index), NodeRequest{
				Value:  ch,
				Source: source,
			})
		})
	}
	if err := g.Wait(); err != nil {
		// Best effort: drop whatever chapters made it.
		s.client.DeleteNode(context.WithoutCancel(ctx), s.docKey(rec.ID), true)
		return "", fmt.Errorf("save chapters: %w", err)
	}

	meta := rec
	meta.Chapters = nil
	if err := s.client.PutNode(ctx, s.docKey(rec.ID)+"/meta", NodeRequest{
		Value:  meta,
		Source: source,
	}); err != nil {
		return "", fmt.Errorf("save meta: %w", err)
	}
	return rec.ID, nil
}

func (s *DocumentStore) Get(ctx context.Context, id string) (*book.Document, error) {
	meta, err := s.meta(ctx, id)
	if err != nil {
		return nil, err
	}

	meta.Chapters = make([]store.ChapterRecord, meta.ChapterCount)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentRequests)
	for i := range meta.Chapters {
		g.Go(func() error {
			ch, err := s.chapter(gctx, id, i)
			if err != nil {
				return err
			}
			meta.Chapters[i] = ch
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return meta.Document()
}

func (s *DocumentStore) Chapter(ctx context.Context, id string, index int) (book.Chapter, error) {
	meta, err := s.meta(ctx, id)
	if err != nil {
		return book.Chapter{}, err
	}
	if index < 0 || index >= meta.ChapterCount {
		return book.Chapter{}, fmt.Errorf("document %s chapter %d of %d: %w", id, index, meta.ChapterCount, book.ErrChapterNotFound)
	}
	ch, err := s.chapter(ctx, id, index)
	if err != nil {
		return book.Chapter{}, err
	}
	return ch.Chapter(), nil
}

func (s *DocumentStore) List(ctx context.Context) ([]store.Summary, error) {
	nodes, err := s.client.ListChildren(ctx, s.documentsKey(), 0)
	if err != nil {
		return nil, err
	}

	var out []store.Summary
	for _, n := range nodes {
		if !strings.HasSuffix(n.Key, "/meta") && !strings.HasSuffix(n.Key, ".meta") {
			continue
		}
		var rec store.Record
		if err := decodeValue(n.Value, &rec); err != nil {
			return nil, fmt.Errorf("decode %s: %w", n.Key, err)
		}
		if rec.SchemaVersion != store.SchemaVersion {
			continue
		}
		out = append(out, rec.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	if _, err := s.meta(ctx, id); err != nil {
		return err
	}
	return s.client.DeleteNode(ctx, s.docKey(id), true)
}

func (s *DocumentStore) meta(ctx context.Context, id string) (store.Record, error) {
	var rec store.Record
	node, err := s.client.GetNode(ctx, s.docKey(id)+"/meta")
	if err != nil {
		return rec, err
	}
	if node == nil {
		return rec, fmt.Errorf("document %s: %w", id, store.ErrNotFound)
	}
	if err := decodeValue(node.Value, &rec); err != nil {
		return rec, fmt.Errorf("decode meta %s: %w", id, err)
	}
	if rec.SchemaVersion != store.SchemaVersion {
		return rec, fmt.Errorf("document %s has schema %d: %w", id, rec.SchemaVersion, store.ErrUnsupportedSchema)
	}
	return rec, nil
}

func (s *DocumentStore) chapter(ctx context.Context, id string, index int) (store.ChapterRecord, error) {
	var ch store.ChapterRecord
	node, err := s.client.GetNode(ctx, s.chapterKey(id, index))
	if err != nil {
		return ch, err
	}
	if node == nil {
		return ch, fmt.Errorf("document %s chapter %d missing from store", id, index)
	}
	if err := decodeValue(node.Value, &ch); err != nil {
		return ch, fmt.Errorf("decode chapter %d of %s: %w", index, id, err)
	}
	return ch, nil
}

// decodeValue re-decodes a generic JSON value into out.
func decodeValue(v any, out any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
