package embedding

import (
	"regexp"
	"strings"

	"standards-rag/internal/models"
)

var (
	requirementIDRe = regexp.MustCompile(models.RequirementIDRegex)
	asilRe          = regexp.MustCompile(models.ASILRegex)
	isoClauseRe     = regexp.MustCompile(models.ISOClauseRegex)
	codeTokenRe     = regexp.MustCompile(models.CodeTokenRegex)
)

// Classify tags a chunk with the content type that decides its embedding
// model and vector partition. The classifier is deliberately lightweight:
// structural-unit kind first, then pattern cues, no model involved.
func Classify(c models.Chunk) models.ContentType {
	switch c.ParentKind {
	case models.UnitTable:
		return models.ContentTabularNumeric
	case models.UnitCodeBlock:
		return models.ContentCodeAPI
	}

	text := c.Content
	if strings.Contains(text, models.CodeFenceMarker) || len(codeTokenRe.FindAllString(text, 3)) >= 3 {
		return models.ContentCodeAPI
	}
	if len(requirementIDRe.FindAllString(text, 2)) >= 2 ||
		(requirementIDRe.MatchString(text) && (asilRe.MatchString(text) || isoClauseRe.MatchString(text))) {
		return models.ContentRequirementEntity
	}
	if looksTabular(text) {
		return models.ContentTabularNumeric
	}
	return models.ContentTechnicalText
}

// looksTabular catches table-ish text that lost its structural tag: several
// delimiter-heavy lines with a high digit share.
func looksTabular(text string) bool {
	lines := strings.Split(text, "\n")
	if len(lines) < 3 {
		return false
	}
	delimited := 0
	digits, total := 0, 0
	for _, ln := range lines {
		if strings.Count(ln, "|") >= 2 || strings.Count(ln, "\t") >= 2 {
			delimited++
		}
		for _, r := range ln {
			if r >= '0' && r <= '9' {
				digits++
			}
			if r != ' ' && r != '\t' {
				total++
			}
		}
	}
	return delimited*2 >= len(lines) && total > 0 && digits*5 >= total
}
