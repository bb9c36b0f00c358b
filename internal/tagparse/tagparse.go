// Package tagparse parses the directive grammar embedded in outline node
// text: kind tags (#Action, #WeekGoal), recurrence tags (#Daily), story
// point tags (#4STP), context labels (@office), and due date annotations.
//
// Parsing is tolerant: unrecognized tokens are ignored, the
// first occurrence wins when a category appears twice, and a malformed
// date degrades to a warning rather than an error. The same input always
// produces the same annotations for a given Parser.
package tagparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/nhle/outline-metrics/internal/model"
)

// Warning records a token that could not be interpreted. The item is
// still loaded; the affected field stays empty.
type Warning struct {
	Field  string
	Token  string
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %q: %s", w.Field, w.Token, w.Reason)
}

// Annotations is the structured result of parsing one node's raw text.
type Annotations struct {
	Kind          model.ItemKind
	GoalTimeframe string
	Recurrence    model.Recurrence
	StoryPoints   *int
	Contexts      []string
	DueDate       *time.Time
	Milestone     bool
	OnDeck        bool

	// Title is the raw text with tags, due-date annotations, and HTML
	// markup removed.
	Title string

	Warnings []Warning
}

// Parser holds the compiled grammar. Construct with New; a zero Parser
// is not usable.
type Parser struct {
	kinds       map[string]model.ItemKind
	timeframes  map[string]string
	recurrences map[string]model.Recurrence
	flags       map[string]string

	tagRe      *regexp.Regexp
	ctxRe      *regexp.Regexp
	storyIdent *regexp.Regexp
	dueText    *regexp.Regexp

	nl *when.Parser

	// ref anchors natural-language dates so parsing stays deterministic
	// for the lifetime of the Parser.
	ref time.Time
}

var (
	timeMarkupRe = regexp.MustCompile(
		`<time startYear="(\d+)" startMonth="(\d+)" startDay="(\d+)"[^>]*>`)
	dueMarkupRe = regexp.MustCompile(`,?\s*Due <time .*?</time>`)
	htmlRe      = regexp.MustCompile(`<.*?>`)
	spaceRe     = regexp.MustCompile(`\s+`)
)

// New compiles a Parser from the configured tag grammar.
func New(cfg model.TagConfig) (*Parser, error) {
	if len(cfg.Marker) != 1 || len(cfg.ContextMarker) != 1 {
		return nil, fmt.Errorf("tag markers must be single characters")
	}

	p := &Parser{
		kinds:       make(map[string]model.ItemKind, len(cfg.Kinds)),
		timeframes:  cfg.Timeframes,
		recurrences: make(map[string]model.Recurrence, len(cfg.Recurrences)),
		flags:       cfg.Flags,
		ref:         time.Now(),
	}

	for tag, kind := range cfg.Kinds {
		p.kinds[tag] = model.ItemKind(kind)
	}
	for tag, rec := range cfg.Recurrences {
		p.recurrences[tag] = model.Recurrence(rec)
	}

	marker := regexp.QuoteMeta(cfg.Marker)
	ctxMarker := regexp.QuoteMeta(cfg.ContextMarker)
	suffix := regexp.QuoteMeta(cfg.StoryPointSuffix)

	var err error
	if p.tagRe, err = regexp.Compile(marker + `(\w+)`); err != nil {
		return nil, fmt.Errorf("compiling tag pattern: %w", err)
	}
	if p.ctxRe, err = regexp.Compile(ctxMarker + `(\w+)`); err != nil {
		return nil, fmt.Errorf("compiling context pattern: %w", err)
	}
	if p.storyIdent, err = regexp.Compile(`^(\d+)` + suffix + `$`); err != nil {
		return nil, fmt.Errorf("compiling story point pattern: %w", err)
	}
	// The textual due phrase runs from "Due" to the next tag, context
	// label, or markup, e.g. "Ship report #Action Due Jan 1, 2024".
	p.dueText, err = regexp.Compile(
		`(?i)(?:^|[\s,])due\s+([^<` + marker + ctxMarker + `]+)`)
	if err != nil {
		return nil, fmt.Errorf("compiling due date pattern: %w", err)
	}

	p.nl = when.New(nil)
	p.nl.Add(en.All...)
	p.nl.Add(common.All...)

	return p, nil
}

// WithReference returns a copy of the Parser anchored to the given
// reference time for natural-language dates. Used by tests and by sync
// passes that want one anchor per pass.
func (p *Parser) WithReference(ref time.Time) *Parser {
	cp := *p
	cp.ref = ref
	return &cp
}

// Parse extracts annotations from raw node text. It never fails; problems
// surface as Warnings on the result.
func (p *Parser) Parse(raw string) Annotations {
	a := Annotations{
		Kind:       model.KindTask,
		Recurrence: model.RecurrenceNone,
	}

	p.parseDueMarkup(raw, &a)
	p.parseTags(raw, &a)
	p.parseContexts(raw, &a)
	if a.DueDate == nil {
		p.parseDueText(raw, &a)
	}
	a.Title = p.cleanTitle(raw)

	return a
}

// parseDueMarkup extracts the export's structured due-date markup,
// <time startYear="2024" startMonth="1" startDay="1">.
func (p *Parser) parseDueMarkup(raw string, a *Annotations) {
	m := timeMarkupRe.FindStringSubmatch(raw)
	if m == nil {
		return
	}

	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])

	d, ok := calendarDate(year, month, day)
	if !ok {
		a.Warnings = append(a.Warnings, Warning{
			Field:  "due_date",
			Token:  m[0],
			Reason: "invalid calendar date",
		})
		return
	}
	a.DueDate = &d
}

// parseTags scans directive tags left to right. The first tag of each
// category wins; later conflicting tags and unrecognized identifiers are
// ignored.
func (p *Parser) parseTags(raw string, a *Annotations) {
	kindSet, recSet := false, false

	for _, m := range p.tagRe.FindAllStringSubmatch(raw, -1) {
		ident := m[1]

		if sp := p.storyIdent.FindStringSubmatch(ident); sp != nil {
			if a.StoryPoints != nil {
				continue
			}
			n, err := strconv.Atoi(sp[1])
			if err != nil {
				a.Warnings = append(a.Warnings, Warning{
					Field:  "story_points",
					Token:  m[0],
					Reason: "value out of range",
				})
				continue
			}
			a.StoryPoints = &n
			continue
		}

		if kind, ok := p.kinds[ident]; ok {
			if !kindSet {
				a.Kind = kind
				a.GoalTimeframe = p.timeframes[ident]
				kindSet = true
			}
			continue
		}

		if rec, ok := p.recurrences[ident]; ok {
			if !recSet {
				a.Recurrence = rec
				recSet = true
			}
			continue
		}

		switch p.flags[ident] {
		case "milestone":
			a.Milestone = true
		case "ondeck":
			a.OnDeck = true
		}
		// Anything else is a free-form hashtag; ignore it.
	}
}

// parseContexts collects context labels, deduplicated in order of first
// appearance.
func (p *Parser) parseContexts(raw string, a *Annotations) {
	seen := make(map[string]bool)
	for _, m := range p.ctxRe.FindAllStringSubmatch(raw, -1) {
		name := m[1]
		if seen[name] {
			continue
		}
		seen[name] = true
		a.Contexts = append(a.Contexts, name)
	}
}

// cleanTitle strips due-date markup, the textual due phrase, directive
// tags, context labels, and residual HTML, then normalizes whitespace.
func (p *Parser) cleanTitle(raw string) string {
	s := dueMarkupRe.ReplaceAllString(raw, "")
	s = p.dueText.ReplaceAllString(s, " ")
	s = p.tagRe.ReplaceAllString(s, "")
	s = p.ctxRe.ReplaceAllString(s, "")
	s = htmlRe.ReplaceAllString(s, "")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.Trim(s, " ,")
}

// calendarDate builds a UTC date and verifies the components describe a
// real day (time.Date silently normalizes Feb 30 into March).
func calendarDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Year() != year || d.Month() != time.Month(month) || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}
