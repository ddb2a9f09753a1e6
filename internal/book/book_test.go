package book

import (
	"errors"
	"testing"
)

func TestChapterTitle(t *testing.T) {
	if got := ChapterTitle(0); got != "Chapter 1" {
		t.Errorf("expected %q, got %q", "Chapter 1", got)
	}
	if got := ChapterTitle(41); got != "Chapter 42" {
		t.Errorf("expected %q, got %q", "Chapter 42", got)
	}
}

func TestDocument_ChapterBounds(t *testing.T) {
	doc := &Document{Chapters: []Chapter{
		{Index: 0, Title: "Chapter 1", Text: "one"},
		{Index: 1, Title: "Chapter 2", Text: "two"},
	}}

	ch, err := doc.Chapter(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ch.Text != "two" {
		t.Errorf("expected %q, got %q", "two", ch.Text)
	}

	for _, idx := range []int{-1, 2, 100} {
		_, err := doc.Chapter(idx)
		if !errors.Is(err, ErrChapterNotFound) {
			t.Errorf("index %d: expected ErrChapterNotFound, got %v", idx, err)
		}
	}
}

func TestDocument_ChapterEmptyDocument(t *testing.T) {
	doc := &Document{}
	if _, err := doc.Chapter(0); !errors.Is(err, ErrChapterNotFound) {
		t.Errorf("expected ErrChapterNotFound, got %v", err)
	}
}

func TestDocument_Gaps(t *testing.T) {
	doc := &Document{Chapters: []Chapter{
		{Index: 0, Resolved: true},
		{Index: 1, Resolved: false},
		{Index: 2, Resolved: true},
		{Index: 3, Resolved: false},
	}}
	gaps := doc.Gaps()
	if len(gaps) != 2 || gaps[0] != 1 || gaps[1] != 3 {
		t.Errorf("expected gaps [1 3], got %v", gaps)
	}
}

func TestOptional(t *testing.T) {
	if Optional("") != nil {
		t.Error("expected nil for empty string")
	}
	p := Optional("en")
	if p == nil || *p != "en" {
		t.Errorf("expected pointer to %q, got %v", "en", p)
	}
	if Deref(nil) != "" {
		t.Error("expected empty string for nil pointer")
	}
	if Deref(p) != "en" {
		t.Errorf("expected %q, got %q", "en", Deref(p))
	}
}
