package parser

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ExtractText converts a markup fragment into normalized plain text.
//
// Text is taken from <body>, or from the whole document when there is no
// body. Text that originated inside <script> or <style> is excluded by
// origin, so the same literal string appearing in ordinary content is kept.
// Whitespace runs collapse to a single space. Malformed markup never fails;
// whatever the parser recovered is used.
func ExtractText(markup string) string {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return ""
	}

	root := findBody(doc)
	if root == nil {
		root = doc
	}
	return strings.Join(strings.Fields(textContent(root)), " ")
}

// textContent joins the text nodes under n with a single space, leaving out
// anything inside script or style elements.
func textContent(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			parts = append(parts, n.Data)
			return
		case html.ElementNode:
			if skipElement(n) {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, " ")
}

func skipElement(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Script, atom.Style:
		return true
	}
	return false
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
