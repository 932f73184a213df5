package parser

import (
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// extractMarkdown walks the goldmark AST and re-emits a normalized plain
// text rendition: ATX headings, fenced code blocks and pipe tables survive
// in a form the structure parser recognizes, everything else flattens to
// paragraphs.
func extractMarkdown(filePath string) ([]string, error) {
	src, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(src))

	var b strings.Builder
	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			b.WriteString(strings.Repeat("#", node.Level))
			b.WriteString(" ")
			b.Write(nodeText(node, src))
			b.WriteString("\n\n")
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock:
			b.WriteString("```\n")
			for i := 0; i < node.Lines().Len(); i++ {
				seg := node.Lines().At(i)
				b.Write(seg.Value(src))
			}
			b.WriteString("```\n\n")
			return ast.WalkSkipChildren, nil
		case *extast.Table:
			writeTable(&b, node, src)
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph:
			b.Write(nodeText(node, src))
			b.WriteString("\n\n")
			return ast.WalkSkipChildren, nil
		case *ast.ListItem:
			b.WriteString("- ")
			b.Write(nodeText(node, src))
			b.WriteString("\n")
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}
	return []string{b.String()}, nil
}

func writeTable(b *strings.Builder, table *extast.Table, src []byte) {
	for row := table.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, string(nodeText(cell, src)))
		}
		b.WriteString("| ")
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString(" |\n")
	}
	b.WriteString("\n")
}

// nodeText concatenates the raw text of a node's inline descendants.
func nodeText(n ast.Node, src []byte) []byte {
	var out []byte
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := child.(*ast.Text); ok {
			out = append(out, t.Segment.Value(src)...)
		}
		return ast.WalkContinue, nil
	})
	return out
}
