// Package render flattens the HTML fragments carried in item payloads
// into plain text for the terminal.
package render

import (
	"encoding/json"
	"strings"

	nethtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Preview is the presentation slice of an item payload. The engine
// never looks at these fields; only the TUI does.
type Preview struct {
	Title   string `json:"title"`
	Source  string `json:"source"`
	Topic   string `json:"topic"`
	Summary string `json:"summary"`
}

// DecodePreview pulls the renderable fields out of a raw item payload.
// Missing fields come back empty; malformed payloads yield a zero
// Preview rather than an error, so one bad record never blanks a list.
func DecodePreview(payload []byte) Preview {
	var p Preview
	if len(payload) == 0 {
		return p
	}
	_ = json.Unmarshal(payload, &p)
	return p
}

// SummaryText strips markup from an HTML summary fragment and collapses
// whitespace. Block-ish elements become single spaces so adjacent
// paragraphs don't run together.
func SummaryText(fragment string) string {
	if fragment == "" {
		return ""
	}
	nodes, err := nethtml.ParseFragment(strings.NewReader(fragment), &nethtml.Node{
		Type:     nethtml.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}

	var b strings.Builder
	for _, n := range nodes {
		collectText(n, &b)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func collectText(n *nethtml.Node, b *strings.Builder) {
	switch n.Type {
	case nethtml.TextNode:
		b.WriteString(n.Data)
	case nethtml.ElementNode:
		switch n.Data {
		case "script", "style":
			return
		case "p", "div", "br", "li", "h1", "h2", "h3", "h4", "blockquote":
			b.WriteByte(' ')
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, b)
	}
	if n.Type == nethtml.ElementNode {
		switch n.Data {
		case "p", "div", "li", "blockquote":
			b.WriteByte(' ')
		}
	}
}
