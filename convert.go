package main

import (
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// The edit round trip works on an explicit structural representation rather
// than raw HTML: the editor receives blocks, mutates blocks, and sends blocks
// back. parseBlocks and renderBlocks form the conversion pair; renderBlocks
// output is canonical, so one parse/render pass is a fixed point apart from
// non-semantic whitespace.

type blockKind string

const (
	blockHeading   blockKind = "heading"
	blockParagraph blockKind = "paragraph"
	blockList      blockKind = "list"
	blockCode      blockKind = "code"
	blockQuote     blockKind = "quote"
	blockRule      blockKind = "rule"
)

type block struct {
	Kind     blockKind `json:"kind"`
	Level    int       `json:"level,omitempty"`
	Text     string    `json:"text,omitempty"`
	Ordered  bool      `json:"ordered,omitempty"`
	Items    []string  `json:"items,omitempty"`
	Language string    `json:"language,omitempty"`
	Code     string    `json:"code,omitempty"`
}

// parseBlocks converts markdown source into the structural representation.
// Inline runs (emphasis, code spans, links) are re-serialized as markdown
// inside the Text/Items fields, so block structure is explicit while inline
// formatting stays opaque to the editor.
func parseBlocks(src []byte) []block {
	parser := goldmark.New().Parser()
	doc := parser.Parse(text.NewReader(src))

	blocks := []block{}
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		if list, ok := node.(*ast.List); ok {
			blocks = append(blocks, convertList(list, src)...)
			continue
		}
		if b, ok := convertNode(node, src); ok {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

func convertNode(node ast.Node, src []byte) (block, bool) {
	switch n := node.(type) {
	case *ast.Heading:
		return block{Kind: blockHeading, Level: n.Level, Text: inlineMarkdown(n, src)}, true
	case *ast.Paragraph:
		return block{Kind: blockParagraph, Text: inlineMarkdown(n, src)}, true
	case *ast.FencedCodeBlock:
		lang := string(n.Language(src))
		return block{Kind: blockCode, Language: lang, Code: rawLines(n, src)}, true
	case *ast.CodeBlock:
		return block{Kind: blockCode, Code: rawLines(n, src)}, true
	case *ast.Blockquote:
		return block{Kind: blockQuote, Text: quoteText(n, src)}, true
	case *ast.ThematicBreak:
		return block{Kind: blockRule}, true
	case *ast.HTMLBlock:
		return block{Kind: blockParagraph, Text: strings.TrimRight(rawLines(n, src), "\n")}, true
	}
	return block{}, false
}

// convertList may yield more than one block: text content becomes list items,
// but a code block nested inside an item cannot be expressed as an item
// string, so it is hoisted out as a sibling code block after the items seen
// so far. Nested lists flatten into sibling items; the editor presents a
// single level.
func convertList(list *ast.List, src []byte) []block {
	out := []block{}
	current := block{Kind: blockList, Ordered: list.IsOrdered(), Items: []string{}}
	flush := func() {
		if len(current.Items) > 0 {
			out = append(out, current)
			current = block{Kind: blockList, Ordered: list.IsOrdered(), Items: []string{}}
		}
	}

	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		var parts []string
		var hoisted []block
		for child := item.FirstChild(); child != nil; child = child.NextSibling() {
			switch c := child.(type) {
			case *ast.TextBlock, *ast.Paragraph:
				parts = append(parts, inlineMarkdown(child, src))
			case *ast.List:
				for _, nb := range convertList(c, src) {
					if nb.Kind == blockList {
						parts = append(parts, nb.Items...)
					} else {
						hoisted = append(hoisted, nb)
					}
				}
			case *ast.FencedCodeBlock:
				lang := string(c.Language(src))
				hoisted = append(hoisted, block{Kind: blockCode, Language: lang, Code: rawLines(c, src)})
			case *ast.CodeBlock:
				hoisted = append(hoisted, block{Kind: blockCode, Code: rawLines(c, src)})
			case *ast.Blockquote:
				hoisted = append(hoisted, block{Kind: blockQuote, Text: quoteText(c, src)})
			}
		}
		if len(parts) > 0 {
			current.Items = append(current.Items, strings.Join(parts, " "))
		}
		if len(hoisted) > 0 {
			flush()
			out = append(out, hoisted...)
		}
	}
	flush()
	return out
}

func quoteText(quote *ast.Blockquote, src []byte) string {
	var parts []string
	for child := quote.FirstChild(); child != nil; child = child.NextSibling() {
		if list, ok := child.(*ast.List); ok {
			for _, nb := range convertList(list, src) {
				if rendered, ok := renderBlock(nb); ok {
					parts = append(parts, rendered)
				}
			}
			continue
		}
		parts = append(parts, inlineMarkdown(child, src))
	}
	return strings.Join(parts, "\n")
}

// inlineMarkdown re-serializes a block node's inline children as markdown.
func inlineMarkdown(node ast.Node, src []byte) string {
	var sb strings.Builder
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		writeInline(&sb, child, src)
	}
	return sb.String()
}

func writeInline(sb *strings.Builder, node ast.Node, src []byte) {
	switch n := node.(type) {
	case *ast.Text:
		sb.Write(n.Segment.Value(src))
		if n.HardLineBreak() {
			sb.WriteString("  \n")
		} else if n.SoftLineBreak() {
			sb.WriteByte('\n')
		}
	case *ast.String:
		sb.Write(n.Value)
	case *ast.Emphasis:
		marker := strings.Repeat("*", n.Level)
		sb.WriteString(marker)
		writeInlineChildren(sb, n, src)
		sb.WriteString(marker)
	case *ast.CodeSpan:
		sb.WriteByte('`')
		writeInlineChildren(sb, n, src)
		sb.WriteByte('`')
	case *ast.Link:
		sb.WriteByte('[')
		writeInlineChildren(sb, n, src)
		sb.WriteString("](")
		sb.Write(n.Destination)
		sb.WriteByte(')')
	case *ast.Image:
		sb.WriteString("![")
		writeInlineChildren(sb, n, src)
		sb.WriteString("](")
		sb.Write(n.Destination)
		sb.WriteByte(')')
	case *ast.AutoLink:
		sb.WriteByte('<')
		sb.Write(n.URL(src))
		sb.WriteByte('>')
	case *ast.RawHTML:
		for i := 0; i < n.Segments.Len(); i++ {
			seg := n.Segments.At(i)
			sb.Write(seg.Value(src))
		}
	default:
		writeInlineChildren(sb, node, src)
	}
}

func writeInlineChildren(sb *strings.Builder, node ast.Node, src []byte) {
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		writeInline(sb, child, src)
	}
}

// rawLines joins the literal source lines of a block node.
func rawLines(node ast.Node, src []byte) string {
	var sb strings.Builder
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		sb.Write(line.Value(src))
	}
	return sb.String()
}

// renderBlocks serializes the structural representation back to markdown.
// The output is canonical: ATX headings, "-" bullets, "N." ordered markers,
// fenced code with its language tag, "> " quotes, "---" rules, blank lines
// between blocks, one trailing newline.
func renderBlocks(blocks []block) string {
	var parts []string
	for _, b := range blocks {
		if rendered, ok := renderBlock(b); ok {
			parts = append(parts, rendered)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "\n\n") + "\n"
}

func renderBlock(b block) (string, bool) {
	switch b.Kind {
	case blockHeading:
		level := b.Level
		if level < 1 {
			level = 1
		} else if level > 6 {
			level = 6
		}
		return strings.Repeat("#", level) + " " + b.Text, true
	case blockParagraph:
		return b.Text, true
	case blockList:
		var sb strings.Builder
		for i, item := range b.Items {
			if i > 0 {
				sb.WriteByte('\n')
			}
			if b.Ordered {
				sb.WriteString(strconv.Itoa(i+1) + ". " + item)
			} else {
				sb.WriteString("- " + item)
			}
		}
		return sb.String(), len(b.Items) > 0
	case blockCode:
		body := b.Code
		if body != "" && !strings.HasSuffix(body, "\n") {
			body += "\n"
		}
		return "```" + b.Language + "\n" + body + "```", true
	case blockQuote:
		lines := strings.Split(b.Text, "\n")
		for i, line := range lines {
			lines[i] = "> " + line
		}
		return strings.Join(lines, "\n"), true
	case blockRule:
		return "---", true
	}
	return "", false
}
