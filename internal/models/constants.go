package models

const (
	// Heading cues for automotive standards documents: clause numbering
	// ("2.4.1 Software unit design"), markdown headings and short all-caps
	// titles.
	NumberedHeadingRegex = `^\d+(\.\d+)*\.?\s+\S`
	MarkdownHeadingRegex = `^#{1,6}\s+\S`
	AllCapsHeadingRegex  = `^[A-Z][A-Z0-9 \-_:]{2,59}$`

	// Requirement identifiers as used by AUTOSAR, ASPICE work products and
	// ISO 26262 clauses, e.g. [SWS_Can_00091], REQ-SYS-042, SWE.1.BP3.
	RequirementIDRegex = `\[?(?:SWS|SRS|RS|REQ|SYS|SWE|SUP|MAN)[._-][A-Za-z0-9._-]+\]?`
	ASILRegex          = `\bASIL[- ][ABCD]\b`
	ISOClauseRegex     = `\bISO\s?26262(?:-\d+)?(?::\d{4})?\b`

	// API-ish tokens used by the content classifier.
	CodeFenceMarker = "```"
	CodeTokenRegex  = `\w+\(\)|::|->|#include|typedef|uint\d+_t|Std_ReturnType`
)
