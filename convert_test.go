package main

import (
	"strings"
	"testing"
)

func TestParseBlocksStructure(t *testing.T) {
	src := []byte(`# Title

Some *emphasized* text with ` + "`code`" + ` inline.

- alpha
- beta

1. first
2. second

` + "```go\nfmt.Println(\"hi\")\n```" + `

> a quoted line

---
`)

	blocks := parseBlocks(src)
	wantKinds := []blockKind{
		blockHeading, blockParagraph, blockList, blockList,
		blockCode, blockQuote, blockRule,
	}
	if len(blocks) != len(wantKinds) {
		t.Fatalf("expected %d blocks, got %d: %+v", len(wantKinds), len(blocks), blocks)
	}
	for i, kind := range wantKinds {
		if blocks[i].Kind != kind {
			t.Errorf("block[%d].Kind = %q, want %q", i, blocks[i].Kind, kind)
		}
	}

	if blocks[0].Level != 1 || blocks[0].Text != "Title" {
		t.Errorf("heading = %+v", blocks[0])
	}
	if blocks[1].Text != "Some *emphasized* text with `code` inline." {
		t.Errorf("paragraph preserved inline markdown wrong: %q", blocks[1].Text)
	}
	if blocks[2].Ordered || len(blocks[2].Items) != 2 || blocks[2].Items[0] != "alpha" {
		t.Errorf("bullet list = %+v", blocks[2])
	}
	if !blocks[3].Ordered || blocks[3].Items[1] != "second" {
		t.Errorf("ordered list = %+v", blocks[3])
	}
	if blocks[4].Language != "go" || blocks[4].Code != "fmt.Println(\"hi\")\n" {
		t.Errorf("code block = %+v", blocks[4])
	}
	if blocks[5].Text != "a quoted line" {
		t.Errorf("quote = %+v", blocks[5])
	}
}

func TestParseBlocksEmpty(t *testing.T) {
	blocks := parseBlocks(nil)
	if blocks == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(blocks) != 0 {
		t.Errorf("expected 0 blocks, got %d", len(blocks))
	}
}

func TestParseBlocksLinksAndImages(t *testing.T) {
	src := []byte("See [the docs](https://example.com/docs) and ![logo](img/logo.png).\n")
	blocks := parseBlocks(src)
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	want := "See [the docs](https://example.com/docs) and ![logo](img/logo.png)."
	if blocks[0].Text != want {
		t.Errorf("text = %q, want %q", blocks[0].Text, want)
	}
}

func TestParseBlocksInlineRawHTML(t *testing.T) {
	src := []byte("Text with <kbd>Ctrl</kbd> markup.\n")
	blocks := parseBlocks(src)
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	if blocks[0].Text != "Text with <kbd>Ctrl</kbd> markup." {
		t.Errorf("text = %q", blocks[0].Text)
	}
}

// A code block nested under a list item cannot live inside an item string;
// it must survive as a hoisted sibling code block, not vanish.
func TestParseBlocksCodeInsideListItem(t *testing.T) {
	src := []byte("- step one\n- step two:\n\n  ```sh\n  make test\n  ```\n\n- step three\n")
	blocks := parseBlocks(src)

	var code *block
	var items []string
	for i := range blocks {
		switch blocks[i].Kind {
		case blockCode:
			code = &blocks[i]
		case blockList:
			items = append(items, blocks[i].Items...)
		}
	}
	if code == nil {
		t.Fatalf("nested code block was dropped: %+v", blocks)
	}
	if code.Language != "sh" || !strings.Contains(code.Code, "make test") {
		t.Errorf("hoisted code block = %+v", *code)
	}
	for _, want := range []string{"step one", "step two:", "step three"} {
		found := false
		for _, item := range items {
			if item == want {
				found = true
			}
		}
		if !found {
			t.Errorf("list item %q missing from %v", want, items)
		}
	}

	// The hoisted form must still round-trip losslessly.
	canonical := renderBlocks(blocks)
	assertContains(t, canonical, "make test")
	if again := renderBlocks(parseBlocks([]byte(canonical))); again != canonical {
		t.Errorf("not a fixed point:\nfirst:\n%s\nsecond:\n%s", canonical, again)
	}
}

func TestParseBlocksListInsideBlockquote(t *testing.T) {
	src := []byte("> - alpha\n> - beta\n")
	blocks := parseBlocks(src)
	if len(blocks) != 1 || blocks[0].Kind != blockQuote {
		t.Fatalf("expected a single quote block, got %+v", blocks)
	}
	if blocks[0].Text != "- alpha\n- beta" {
		t.Errorf("quote text = %q, want item markers preserved", blocks[0].Text)
	}

	canonical := renderBlocks(blocks)
	if canonical != "> - alpha\n> - beta\n" {
		t.Errorf("rendered quote = %q", canonical)
	}
	if again := renderBlocks(parseBlocks([]byte(canonical))); again != canonical {
		t.Errorf("not a fixed point: %q vs %q", canonical, again)
	}
}

func TestRenderBlocks(t *testing.T) {
	blocks := []block{
		{Kind: blockHeading, Level: 2, Text: "Section"},
		{Kind: blockParagraph, Text: "Body text."},
		{Kind: blockList, Items: []string{"one", "two"}},
		{Kind: blockList, Ordered: true, Items: []string{"a", "b", "c"}},
		{Kind: blockCode, Language: "sh", Code: "ls -la\n"},
		{Kind: blockQuote, Text: "wise words"},
		{Kind: blockRule},
	}

	want := `## Section

Body text.

- one
- two

1. a
2. b
3. c

` + "```sh\nls -la\n```" + `

> wise words

---
`
	if got := renderBlocks(blocks); got != want {
		t.Errorf("renderBlocks mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestRenderBlocksClampsHeadingLevel(t *testing.T) {
	got := renderBlocks([]block{
		{Kind: blockHeading, Level: 0, Text: "low"},
		{Kind: blockHeading, Level: 9, Text: "high"},
	})
	want := "# low\n\n###### high\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRenderBlocksEmpty(t *testing.T) {
	if got := renderBlocks(nil); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
	// A list with no items renders to nothing rather than a stray marker.
	if got := renderBlocks([]block{{Kind: blockList}}); got != "" {
		t.Errorf("expected empty string for empty list, got %q", got)
	}
}

// TestRoundTripFixedPoint verifies the canonicalization law: once rendered,
// parsing and rendering again reproduces the document byte for byte.
func TestRoundTripFixedPoint(t *testing.T) {
	sources := map[string]string{
		"plain doc": "# Title\n\nA paragraph with *emphasis* and **strong** text.\n",
		"lists": "- item one\n- item two\n\n1. first\n2. second\n",
		"code": "```python\nprint('x')\n```\n",
		"quote and rule": "> quoted\n\n---\n\nafter the rule\n",
		"inline code": "Run `make test` before pushing.\n",
		"sample artifact": sampleMarkdown,
	}

	for name, src := range sources {
		t.Run(name, func(t *testing.T) {
			canonical := renderBlocks(parseBlocks([]byte(src)))
			again := renderBlocks(parseBlocks([]byte(canonical)))
			if canonical != again {
				t.Errorf("not a fixed point:\nfirst:\n%s\nsecond:\n%s", canonical, again)
			}
		})
	}
}
