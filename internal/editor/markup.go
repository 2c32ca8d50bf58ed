package editor

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	// EmptyDocument is the markup of a fresh session.
	EmptyDocument = "<div><br></div>"
	// EmptyTitle labels a session without any text.
	EmptyTitle = "Empty Document"

	snippetLen = 100
)

var blockElements = map[atom.Atom]bool{
	atom.Div: true, atom.P: true, atom.Li: true, atom.Ul: true, atom.Ol: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Blockquote: true, atom.Pre: true, atom.Tr: true,
}

func parseFragment(markup string) []*html.Node {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), body)
	if err != nil {
		return nil
	}
	return nodes
}

// PlainText renders markup the way innerText reads it back: block elements
// start and end a line, <br> is a line break, tags are dropped.
func PlainText(markup string) string {
	var sb strings.Builder
	newline := func() {
		if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
			sb.WriteByte('\n')
		}
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style:
				return
			case atom.Br:
				sb.WriteByte('\n')
				return
			}
		}
		block := n.Type == html.ElementNode && blockElements[n.DataAtom]
		if block {
			newline()
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			newline()
		}
	}
	for _, n := range parseFragment(markup) {
		walk(n)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FromPlainText is the markup that assigning text to innerText produces.
func FromPlainText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(html.EscapeString(text), "\n", "<br>")
}

// Snippet is the sidebar label of a session: the text content with tags
// stripped, cut at 100 runes.
func Snippet(markup string) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style) {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range parseFragment(markup) {
		walk(n)
	}

	res := strings.TrimSpace(strings.ReplaceAll(sb.String(), "\n", " "))
	if res == "" {
		return EmptyTitle
	}
	if r := []rune(res); len(r) > snippetLen {
		return string(r[:snippetLen]) + "..."
	}
	return res
}

// ImageTag embeds an uploaded image given as a data URL.
func ImageTag(dataURL string) string {
	return `<img src="` + html.EscapeString(dataURL) + `">`
}
