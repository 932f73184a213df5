package chunker

import (
	"standards-rag/internal/models"
)

// FastStrategy ignores document structure entirely: it slides a fixed
// window of ChunkSize bytes over the raw text, advancing by
// ChunkSize−ChunkOverlap each step. Used when throughput matters more than
// structure fidelity, and as the fallback when structure detection
// degrades.
type FastStrategy struct{}

func (f *FastStrategy) Name() string { return StrategyFast }

func (f *FastStrategy) segments(text string, _ *models.StructuralUnit, p Params) []segment {
	if len(text) <= p.ChunkSize {
		return []segment{{start: 0, end: len(text), parent: models.UnitParagraph}}
	}
	step := p.ChunkSize - p.ChunkOverlap
	segs := []segment{{start: 0, end: p.ChunkSize, parent: models.UnitParagraph}}
	for pos := p.ChunkSize; pos < len(text); {
		end := pos + step
		if end > len(text) {
			end = len(text)
		}
		segs = append(segs, segment{start: pos, end: end, carry: true, parent: models.UnitParagraph})
		pos = end
	}
	return segs
}
