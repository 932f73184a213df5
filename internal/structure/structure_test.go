package structure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"standards-rag/internal/models"
)

func collectKinds(root *models.StructuralUnit) []models.UnitKind {
	var kinds []models.UnitKind
	var walk func(u *models.StructuralUnit)
	walk = func(u *models.StructuralUnit) {
		kinds = append(kinds, u.Kind)
		for _, c := range u.Children {
			walk(c)
		}
	}
	for _, c := range root.Children {
		walk(c)
	}
	return kinds
}

// checkTiling asserts that every node's children cover its range exactly,
// the invariant the chunker relies on for lossless reconstruction.
func checkTiling(t *testing.T, u *models.StructuralUnit) {
	t.Helper()
	if len(u.Children) == 0 {
		return
	}
	assert.Equal(t, u.Start, u.Children[0].Start)
	assert.Equal(t, u.End, u.Children[len(u.Children)-1].End)
	for i := 1; i < len(u.Children); i++ {
		assert.Equal(t, u.Children[i-1].End, u.Children[i].Start, "children must be contiguous")
	}
	for _, c := range u.Children {
		checkTiling(t, c)
	}
}

func TestParseNumberedHeadings(t *testing.T) {
	text := "2. Requirements\nBody text of section two.\n\n2.1 Derived requirements\nNested body text.\n\n3. Verification\nFinal body.\n"
	root, degraded := NewParser().Parse(text)
	require.False(t, degraded)
	checkTiling(t, root)

	require.Len(t, root.Children, 2) // sections 2 and 3
	sec2 := root.Children[0]
	assert.Equal(t, models.UnitSection, sec2.Kind)
	assert.Equal(t, 1, sec2.Level)

	// Section 2 holds its heading, a paragraph and the nested 2.1 section.
	var nested *models.StructuralUnit
	for _, c := range sec2.Children {
		if c.Kind == models.UnitSection {
			nested = c
		}
	}
	require.NotNil(t, nested, "2.1 must nest under 2")
	assert.Equal(t, 2, nested.Level)
}

func TestParseMarkdownHeadings(t *testing.T) {
	text := "# Overview\nIntro paragraph.\n\n## Details\nMore text here.\n"
	root, degraded := NewParser().Parse(text)
	require.False(t, degraded)
	checkTiling(t, root)

	require.Len(t, root.Children, 1)
	top := root.Children[0]
	assert.Equal(t, models.UnitSection, top.Kind)
	assert.Equal(t, 1, top.Level)
}

func TestParseAllCapsHeading(t *testing.T) {
	text := "SAFETY GOALS\nEach hazardous event is assigned a safety goal.\n"
	root, degraded := NewParser().Parse(text)
	require.False(t, degraded)
	assert.Contains(t, collectKinds(root), models.UnitHeading)
}

func TestParseTable(t *testing.T) {
	text := "Rating overview follows.\n\n| Level | Name |\n| 0 | Incomplete |\n| 1 | Performed |\n\nTrailing text.\n"
	root, degraded := NewParser().Parse(text)
	require.False(t, degraded)
	checkTiling(t, root)
	assert.Contains(t, collectKinds(root), models.UnitTable)
}

func TestParseCodeFence(t *testing.T) {
	text := "Example call:\n\n```\nStd_ReturnType Can_Write(Can_HwHandleType Hth);\n```\nEnd of example.\n"
	root, degraded := NewParser().Parse(text)
	require.False(t, degraded)
	checkTiling(t, root)
	assert.Contains(t, collectKinds(root), models.UnitCodeBlock)
}

func TestParseDegradesToFlatUnit(t *testing.T) {
	text := "just some plain prose without any recognizable layout cues at all, " +
		"spread over a single paragraph of ordinary sentences.\n"
	root, degraded := NewParser().Parse(text)
	assert.True(t, degraded)
	require.Len(t, root.Children, 1)
	assert.Equal(t, models.UnitParagraph, root.Children[0].Kind)
	assert.Equal(t, 0, root.Children[0].Start)
	assert.Equal(t, len(text), root.Children[0].End)
}

func TestParseEmptyText(t *testing.T) {
	root, degraded := NewParser().Parse("")
	assert.True(t, degraded)
	assert.Empty(t, root.Children)
	assert.Equal(t, 0, root.End)
}

func TestRootSpansWholeText(t *testing.T) {
	text := "1. One\nAlpha.\n\n2. Two\nBeta.\n"
	root, _ := NewParser().Parse(text)
	assert.Equal(t, 0, root.Start)
	assert.Equal(t, len(text), root.End)
	checkTiling(t, root)
}
