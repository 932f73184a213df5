package structure

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"standards-rag/internal/models"
)

// Parser detects the structural layout of a parsed document: headings by
// numbering patterns, markdown markers or short all-caps lines, tables by
// column alignment, code blocks by fencing. Detection is heuristic and fails
// soft: a document with no recognizable structure comes back as a single
// flat unit and the caller falls back to fixed-size chunking.
type Parser struct {
	numbered *regexp.Regexp
	markdown *regexp.Regexp
	allCaps  *regexp.Regexp
}

func NewParser() *Parser {
	return &Parser{
		numbered: regexp.MustCompile(models.NumberedHeadingRegex),
		markdown: regexp.MustCompile(models.MarkdownHeadingRegex),
		allCaps:  regexp.MustCompile(models.AllCapsHeadingRegex),
	}
}

// line is one physical line with its byte range in the source text.
type line struct {
	start, end int // end excludes the trailing newline
	next       int // start of the following line
	text       string
}

// Parse builds the structure tree for a document. The returned root always
// spans the full text and its descendants tile it exactly. The second return
// is true when no structure was detected and the tree degraded to a flat
// unit.
func (p *Parser) Parse(text string) (*models.StructuralUnit, bool) {
	root := &models.StructuralUnit{Kind: models.UnitSection, Level: 0, Start: 0, End: len(text)}
	if strings.TrimSpace(text) == "" {
		return root, true
	}

	lines := splitLines(text)
	units := p.scanUnits(text, lines)

	structured := false
	for _, u := range units {
		if u.Kind == models.UnitHeading || u.Kind == models.UnitTable || u.Kind == models.UnitCodeBlock {
			structured = true
			break
		}
	}
	if !structured {
		log.Debug().Int("bytes", len(text)).Msg("no structure detected, degrading to flat unit")
		root.Children = []*models.StructuralUnit{
			{Kind: models.UnitParagraph, Level: 1, Start: 0, End: len(text)},
		}
		return root, true
	}

	root.Children = nest(units)
	return root, false
}

// scanUnits performs the flat first pass: every byte of the text lands in
// exactly one unit (heading line, table block, code block or paragraph).
func (p *Parser) scanUnits(text string, lines []line) []*models.StructuralUnit {
	var units []*models.StructuralUnit
	i := 0
	for i < len(lines) {
		ln := lines[i]

		if strings.HasPrefix(strings.TrimSpace(ln.text), models.CodeFenceMarker) {
			j := i + 1
			for j < len(lines) && !strings.HasPrefix(strings.TrimSpace(lines[j].text), models.CodeFenceMarker) {
				j++
			}
			end := lines[len(lines)-1].next
			if j < len(lines) {
				end = lines[j].next
			}
			units = append(units, &models.StructuralUnit{
				Kind: models.UnitCodeBlock, Start: ln.start, End: end,
			})
			i = j + 1
			continue
		}

		if isTableLine(ln.text) && i+1 < len(lines) && isTableLine(lines[i+1].text) {
			j := i
			for j < len(lines) && isTableLine(lines[j].text) {
				j++
			}
			end := lines[len(lines)-1].next
			if j < len(lines) {
				end = lines[j].start
			}
			units = append(units, &models.StructuralUnit{
				Kind: models.UnitTable, Start: ln.start, End: end,
			})
			i = j
			continue
		}

		if level, ok := p.headingLevel(ln.text); ok {
			units = append(units, &models.StructuralUnit{
				Kind: models.UnitHeading, Level: level, Start: ln.start, End: ln.next,
			})
			i++
			continue
		}

		// Paragraph: runs until the next blank line, heading, table or fence.
		j := i
		for j < len(lines) {
			t := lines[j].text
			if strings.TrimSpace(t) == "" && j > i {
				j++ // trailing blank line belongs to the paragraph
				break
			}
			if j > i {
				if _, ok := p.headingLevel(t); ok {
					break
				}
				if isTableLine(t) && j+1 < len(lines) && isTableLine(lines[j+1].text) {
					break
				}
				if strings.HasPrefix(strings.TrimSpace(t), models.CodeFenceMarker) {
					break
				}
			}
			j++
		}
		end := lines[len(lines)-1].next
		if j < len(lines) {
			end = lines[j].start
		}
		units = append(units, &models.StructuralUnit{
			Kind: models.UnitParagraph, Start: ln.start, End: end,
		})
		i = j
	}
	return units
}

// nest folds the flat unit list into a section tree: each heading opens a
// section that adopts everything up to the next heading of equal or higher
// rank. Section ranges are widened to cover their children, keeping the
// tiling invariant.
func nest(units []*models.StructuralUnit) []*models.StructuralUnit {
	var out []*models.StructuralUnit
	i := 0
	for i < len(units) {
		u := units[i]
		if u.Kind != models.UnitHeading {
			out = append(out, u)
			i++
			continue
		}
		j := i + 1
		for j < len(units) {
			h := units[j]
			if h.Kind == models.UnitHeading && h.Level <= u.Level {
				break
			}
			j++
		}
		section := &models.StructuralUnit{
			Kind:  models.UnitSection,
			Level: u.Level,
			Start: u.Start,
			End:   u.End,
		}
		section.Children = append([]*models.StructuralUnit{u}, nest(units[i+1:j])...)
		if n := len(section.Children); n > 0 {
			section.End = section.Children[n-1].End
		}
		out = append(out, section)
		i = j
	}
	return out
}

// headingLevel reports whether a line looks like a heading and at what
// nesting depth.
func (p *Parser) headingLevel(s string) (int, bool) {
	t := strings.TrimRight(s, " \t")
	if t == "" || len(t) > 120 {
		return 0, false
	}
	if p.markdown.MatchString(t) {
		level := 0
		for level < len(t) && t[level] == '#' {
			level++
		}
		return level, true
	}
	if p.numbered.MatchString(t) {
		// "2.4.1 Title" nests at the dot count.
		num := strings.Fields(t)[0]
		return strings.Count(strings.TrimSuffix(num, "."), ".") + 1, true
	}
	if p.allCaps.MatchString(t) && !isTableLine(t) {
		return 1, true
	}
	return 0, false
}

// isTableLine uses delimiter and column-alignment cues: pipe-delimited rows
// or rows of 3+ cells separated by runs of whitespace.
func isTableLine(s string) bool {
	t := strings.TrimSpace(s)
	if t == "" {
		return false
	}
	if strings.Count(t, "|") >= 2 {
		return true
	}
	cells := 1
	run := 0
	for _, r := range t {
		if r == '\t' {
			cells++
			run = 0
			continue
		}
		if r == ' ' {
			run++
		} else {
			if run >= 2 {
				cells++
			}
			run = 0
		}
	}
	return cells >= 3
}

func splitLines(text string) []line {
	var lines []line
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, line{start: start, end: i, next: i + 1, text: text[start:i]})
			start = i + 1
		}
	}
	if start < len(text) {
		lines = append(lines, line{start: start, end: len(text), next: len(text), text: text[start:]})
	}
	return lines
}
