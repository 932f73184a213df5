package chunker

import (
	"standards-rag/internal/models"
)

// StructureStrategy walks the structure tree depth-first. A section or leaf
// that fits ChunkSize becomes one chunk. An oversized section is split at
// its largest structural sub-boundary by recursing into its children; an
// oversized leaf falls back to sentence and whitespace boundaries, with
// ChunkOverlap bytes carried across each split to preserve context.
type StructureStrategy struct{}

func (s *StructureStrategy) Name() string { return StrategyStructure }

func (s *StructureStrategy) segments(text string, root *models.StructuralUnit, p Params) []segment {
	if root == nil {
		// No tree available; treat the whole text as one flat leaf.
		root = &models.StructuralUnit{Kind: models.UnitParagraph, Start: 0, End: len(text)}
	}
	var segs []segment
	s.walk(text, root, p, &segs)
	return segs
}

func (s *StructureStrategy) walk(text string, u *models.StructuralUnit, p Params, segs *[]segment) {
	if u.Size() == 0 {
		return
	}
	if u.Size() <= p.ChunkSize {
		*segs = append(*segs, segment{start: u.Start, end: u.End, parent: u.Kind})
		return
	}
	if len(u.Children) > 0 {
		for _, child := range u.Children {
			s.walk(text, child, p, segs)
		}
		return
	}
	*segs = append(*segs, splitLeaf(text, u, p)...)
}

// splitLeaf splits an oversized leaf at sentence boundaries, falling back to
// whitespace. The first piece is at most ChunkSize bytes; continuation
// pieces are at most ChunkSize−ChunkOverlap so they stay within ChunkSize
// once the overlap tail is prepended. A leaf with no boundary at all is
// emitted whole, the one documented case where a chunk may exceed
// ChunkSize.
func splitLeaf(text string, u *models.StructuralUnit, p Params) []segment {
	var segs []segment
	cur := u.Start
	limit := p.ChunkSize
	for cur < u.End {
		if u.End-cur <= limit {
			segs = append(segs, segment{start: cur, end: u.End, carry: cur > u.Start, parent: u.Kind})
			break
		}
		cut := breakPoint(text, cur, cur+limit)
		if cut <= cur {
			// No boundary inside the window; advance to the next boundary
			// anywhere in the leaf rather than cutting mid-token.
			cut = nextBoundary(text, cur+limit, u.End)
		}
		segs = append(segs, segment{start: cur, end: cut, carry: cur > u.Start, parent: u.Kind})
		cur = cut
		limit = p.ChunkSize - p.ChunkOverlap
	}
	return segs
}

// breakPoint finds the best split position in (from, to]: the last sentence
// end if there is one, otherwise the last whitespace. Returns from when the
// window holds no boundary.
func breakPoint(text string, from, to int) int {
	lastSentence, lastSpace := from, from
	for i := from; i < to && i < len(text); i++ {
		c := text[i]
		if c == ' ' || c == '\n' || c == '\t' {
			lastSpace = i + 1
			if i > from {
				prev := text[i-1]
				if prev == '.' || prev == '?' || prev == '!' {
					lastSentence = i + 1
				}
			}
		}
	}
	if lastSentence > from {
		return lastSentence
	}
	return lastSpace
}

// nextBoundary returns the first whitespace boundary at or after from, or
// end when the remainder is a single unbroken token.
func nextBoundary(text string, from, end int) int {
	for i := from; i < end && i < len(text); i++ {
		c := text[i]
		if c == ' ' || c == '\n' || c == '\t' {
			return i + 1
		}
	}
	return end
}
