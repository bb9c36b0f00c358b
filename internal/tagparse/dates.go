package tagparse

import (
	"strings"
	"time"
)

// dueLayouts are the explicit calendar formats tried before falling back
// to natural-language parsing. First match wins.
var dueLayouts = []string{
	"Jan 2, 2006",
	"January 2, 2006",
	"2006-01-02",
	"01/02/2006",
	"2 Jan 2006",
}

// parseDueText extracts a due date from a textual "Due <date>" phrase.
// Explicit layouts are tried first, then natural-language expressions
// ("due next friday") anchored at the Parser's reference time. A phrase
// that parses as nothing yields a warning and a nil due date.
func (p *Parser) parseDueText(raw string, a *Annotations) {
	m := p.dueText.FindStringSubmatch(raw)
	if m == nil {
		return
	}

	candidate := strings.Trim(strings.TrimSpace(m[1]), ".,;")
	if candidate == "" {
		return
	}

	for _, layout := range dueLayouts {
		if d, err := time.ParseInLocation(layout, candidate, time.UTC); err == nil {
			a.DueDate = &d
			return
		}
	}

	if r, err := p.nl.Parse(candidate, p.ref); err == nil && r != nil {
		d := time.Date(
			r.Time.Year(), r.Time.Month(), r.Time.Day(),
			0, 0, 0, 0, time.UTC,
		)
		a.DueDate = &d
		return
	}

	a.Warnings = append(a.Warnings, Warning{
		Field:  "due_date",
		Token:  candidate,
		Reason: "unparseable date",
	})
}
