package pathstore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/dgallion1/epubvoice/internal/book"
	"github.com/dgallion1/epubvoice/internal/store"
)

// fakeServer is an in-memory stand-in for the pathstore KV API.
type fakeServer struct {
	mu       sync.Mutex
	nodes    map[string]json.RawMessage
	failPuts bool
	auth     string
}

func newFakeServer(t *testing.T) (*fakeServer, *httptest.Server) {
	t.Helper()
	fs := &fakeServer{nodes: make(map[string]json.RawMessage)}
	srv := httptest.NewServer(fs)
	t.Cleanup(srv.Close)
	return fs, srv
}

func (fs *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.auth = r.Header.Get("Authorization")

	key := strings.TrimPrefix(r.URL.Path, "/kv/")
	switch {
	case r.Method == http.MethodPut:
		if fs.failPuts {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		var req struct {
			Value json.RawMessage `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		fs.nodes[key] = req.Value
		w.WriteHeader(http.StatusCreated)
	case r.Method == http.MethodGet && strings.HasSuffix(key, "/*"):
		prefix := strings.TrimSuffix(key, "*")
		var nodes []map[string]any
		for k, v := range fs.nodes {
			if strings.HasPrefix(k, prefix) {
				nodes = append(nodes, map[string]any{"key_path": k, "value": v})
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"nodes": nodes})
	case r.Method == http.MethodGet:
		v, ok := fs.nodes[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"key_path": key, "value": v})
	case r.Method == http.MethodDelete:
		for k := range fs.nodes {
			if k == key || (r.URL.Query().Get("children") == "true" && strings.HasPrefix(k, key+"/")) {
				delete(fs.nodes, k)
			}
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "unsupported", http.StatusMethodNotAllowed)
	}
}

func (fs *fakeServer) count() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.nodes)
}

func sampleDocument() *book.Document {
	return &book.Document{
		Title:       "Moby Dick",
		Author:      "Herman Melville",
		Description: book.Optional("A whale of a tale"),
		Chapters: []book.Chapter{
			{Index: 0, Title: "Chapter 1", Source: "c1.xhtml", Path: "OEBPS/c1.xhtml", Resolved: true, Text: "Call me Ishmael."},
			{Index: 1, Title: "Chapter 2", Source: "c2.xhtml"},
			{Index: 2, Title: "Chapter 3", Source: "c3.xhtml", Path: "c3.xhtml", Resolved: true, Text: "Loomings."},
		},
	}
}

func TestDocumentStore_SaveGet(t *testing.T) {
	fs, srv := newFakeServer(t)
	ds := NewDocumentStore(NewClient(srv.URL, "secret"), "epubvoice")
	ctx := context.Background()

	id, err := ds.Save(ctx, sampleDocument())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fs.count() != 4 {
		t.Errorf("expected meta plus 3 chapter nodes, got %d", fs.count())
	}
	if fs.auth != "Bearer secret" {
		t.Errorf("expected bearer auth, got %q", fs.auth)
	}

	doc, err := ds.Get(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ID != id || doc.Title != "Moby Dick" || len(doc.Chapters) != 3 {
		t.Errorf("unexpected document %+v", doc)
	}
	if doc.Chapters[2].Text != "Loomings." || doc.Chapters[1].Resolved {
		t.Errorf("unexpected chapters %+v", doc.Chapters)
	}
	if book.Deref(doc.Description) != "A whale of a tale" || doc.Language != nil {
		t.Errorf("unexpected optional fields %v %v", doc.Description, doc.Language)
	}
}

func TestDocumentStore_Chapter(t *testing.T) {
	_, srv := newFakeServer(t)
	ds := NewDocumentStore(NewClient(srv.URL, ""), "/epubvoice/")
	ctx := context.Background()
	id, _ := ds.Save(ctx, sampleDocument())

	ch, err := ds.Chapter(ctx, id, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ch.Text != "Call me Ishmael." || ch.Path != "OEBPS/c1.xhtml" {
		t.Errorf("unexpected chapter %+v", ch)
	}

	if _, err := ds.Chapter(ctx, id, 3); !errors.Is(err, book.ErrChapterNotFound) {
		t.Errorf("expected ErrChapterNotFound, got %v", err)
	}
	if _, err := ds.Chapter(ctx, "nope", 0); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDocumentStore_ListDelete(t *testing.T) {
	fs, srv := newFakeServer(t)
	ds := NewDocumentStore(NewClient(srv.URL, ""), "epubvoice")
	ctx := context.Background()

	a, _ := ds.Save(ctx, sampleDocument())
	b, _ := ds.Save(ctx, sampleDocument())
	if a == b {
		t.Fatal("expected distinct IDs")
	}

	list, err := ds.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 2 || list[0].ID != a || list[1].ID != b {
		t.Errorf("unexpected listing %+v", list)
	}
	if list[0].Chapters != 3 {
		t.Errorf("expected chapter count 3, got %d", list[0].Chapters)
	}

	if err := ds.Delete(ctx, a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fs.count() != 4 {
		t.Errorf("expected only the second document's nodes left, got %d", fs.count())
	}
	if err := ds.Delete(ctx, a); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDocumentStore_SaveFailure(t *testing.T) {
	fs, srv := newFakeServer(t)
	fs.failPuts = true
	ds := NewDocumentStore(NewClient(srv.URL, ""), "epubvoice")

	_, err := ds.Save(context.Background(), sampleDocument())
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected StatusError 500, got %v", err)
	}
}

func TestClient_GetMissingNode(t *testing.T) {
	_, srv := newFakeServer(t)
	c := NewClient(srv.URL+"/", "")
	defer c.Close()

	node, err := c.GetNode(context.Background(), "does/not/exist")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if node != nil {
		t.Errorf("expected nil node, got %+v", node)
	}
}
