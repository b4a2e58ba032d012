// ABOUTME: Renders assistant markdown replies into Telegram's HTML subset
// ABOUTME: goldmark produces full HTML, then a walk keeps only allowed tags

package telegram

import (
	"bytes"
	stdhtml "html"
	"strings"

	"github.com/yuin/goldmark"
	"golang.org/x/net/html"
)

// Telegram accepts only a small set of inline tags; everything else in a
// message must be plain text or the API rejects it.
var inlineTags = map[string]string{
	"strong": "b",
	"b":      "b",
	"em":     "i",
	"i":      "i",
	"del":    "s",
	"s":      "s",
	"u":      "u",
	"code":   "code",
}

// RenderHTML converts assistant markdown into HTML constrained to the tags
// Telegram allows (b, i, u, s, code, pre, a). Unsupported block structure is
// flattened into plain text with newlines; on any parse failure the raw
// text is returned escaped, never dropped.
func RenderHTML(markdown string) string {
	var htmlBuf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &htmlBuf); err != nil {
		return stdhtml.EscapeString(markdown)
	}

	doc, err := html.Parse(&htmlBuf)
	if err != nil {
		return stdhtml.EscapeString(markdown)
	}

	var out strings.Builder
	renderNode(doc, &out, false)

	// Collapse the blank-line runs left behind by flattened blocks
	text := strings.TrimSpace(out.String())
	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}
	return text
}

func renderNode(n *html.Node, out *strings.Builder, inPre bool) {
	switch n.Type {
	case html.TextNode:
		// Formatting whitespace between block elements, not content
		if strings.Contains(n.Data, "\n") && strings.TrimSpace(n.Data) == "" {
			return
		}
		out.WriteString(stdhtml.EscapeString(n.Data))
		return

	case html.ElementNode:
		switch n.Data {
		case "p":
			renderChildren(n, out, inPre)
			out.WriteString("\n\n")
			return

		case "br":
			out.WriteString("\n")
			return

		case "h1", "h2", "h3", "h4", "h5", "h6":
			out.WriteString("<b>")
			renderChildren(n, out, inPre)
			out.WriteString("</b>\n\n")
			return

		case "ul", "ol":
			renderChildren(n, out, inPre)
			out.WriteString("\n")
			return

		case "li":
			out.WriteString("• ")
			renderChildren(n, out, inPre)
			out.WriteString("\n")
			return

		case "pre":
			out.WriteString("<pre>")
			writeText(n, out)
			out.WriteString("</pre>\n\n")
			return

		case "code":
			if inPre {
				renderChildren(n, out, true)
				return
			}
			out.WriteString("<code>")
			renderChildren(n, out, inPre)
			out.WriteString("</code>")
			return

		case "a":
			href := ""
			for _, attr := range n.Attr {
				if attr.Key == "href" {
					href = attr.Val
					break
				}
			}
			if href == "" {
				renderChildren(n, out, inPre)
				return
			}
			out.WriteString(`<a href="` + stdhtml.EscapeString(href) + `">`)
			renderChildren(n, out, inPre)
			out.WriteString("</a>")
			return

		default:
			if tag, ok := inlineTags[n.Data]; ok {
				out.WriteString("<" + tag + ">")
				renderChildren(n, out, inPre)
				out.WriteString("</" + tag + ">")
				return
			}
			// Unknown element: keep the content, drop the markup
			renderChildren(n, out, inPre)
			return
		}
	}

	renderChildren(n, out, inPre)
}

func renderChildren(n *html.Node, out *strings.Builder, inPre bool) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderNode(c, out, inPre)
	}
}

// writeText emits the escaped text content of a subtree, ignoring markup.
// Used inside <pre> where Telegram allows no nested tags except code.
func writeText(n *html.Node, out *strings.Builder) {
	if n.Type == html.TextNode {
		out.WriteString(stdhtml.EscapeString(strings.TrimRight(n.Data, "\n")))
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(c, out)
	}
}
