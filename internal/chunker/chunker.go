// Package chunker splits chapter text into segments small enough for a
// synthesis request.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxChars is the segment limit used when none is given.
const DefaultMaxChars = 250

// Segment packs whole sentences into segments of at most maxChars runes.
// A sentence longer than maxChars is split at word boundaries, and a word
// longer than maxChars is cut. Unless a word was cut, joining the segments
// with single spaces reproduces the whitespace-normalized input.
func Segment(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	var result []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			result = append(result, current.String())
			current.Reset()
			currentLen = 0
		}
	}
	add := func(piece string, n int) {
		if currentLen > 0 && currentLen+1+n > maxChars {
			flush()
		}
		if currentLen > 0 {
			current.WriteByte(' ')
			currentLen++
		}
		current.WriteString(piece)
		currentLen += n
	}

	for _, sent := range splitSentences(text) {
		n := utf8.RuneCountInString(sent)
		if n <= maxChars {
			add(sent, n)
			continue
		}
		// Oversized sentence: start it on a fresh segment and fill by words.
		flush()
		for _, word := range strings.Fields(sent) {
			for _, part := range splitWord(word, maxChars) {
				add(part, utf8.RuneCountInString(part))
			}
		}
		flush()
	}
	flush()

	return result
}

// splitSentences breaks text after '.', '!' or '?' followed by a space.
func splitSentences(text string) []string {
	text = strings.Join(strings.Fields(text), " ")

	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(text) && text[i+1] == ' ' {
			sentences = append(sentences, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

func splitWord(word string, maxChars int) []string {
	if utf8.RuneCountInString(word) <= maxChars {
		return []string{word}
	}
	var parts []string
	runes := []rune(word)
	for len(runes) > maxChars {
		parts = append(parts, string(runes[:maxChars]))
		runes = runes[maxChars:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}
