package model

import "time"

// ItemKind classifies a work item. Exactly one kind applies per item;
// untagged items are plain tasks.
type ItemKind string

const (
	KindGoal   ItemKind = "goal"
	KindAction ItemKind = "action"
	KindTask   ItemKind = "task"
)

// GoalTimeframe is the planning horizon of a goal-kind item.
// Empty for non-goal items.
const (
	TimeframeWeek    = "week"
	TimeframeMonth   = "month"
	TimeframeQuarter = "quarter"
	TimeframeAnnual  = "annual"
)

// Recurrence describes how often a completed item is expected to
// regenerate. Regeneration itself happens in the source outline, not here.
type Recurrence string

const (
	RecurrenceNone      Recurrence = "none"
	RecurrenceDaily     Recurrence = "daily"
	RecurrenceWeekly    Recurrence = "weekly"
	RecurrenceMonthly   Recurrence = "monthly"
	RecurrenceQuarterly Recurrence = "quarterly"
	RecurrenceAnnually  Recurrence = "annually"
)

// WorkItem is the normalized representation of a single outline node.
// The tag-derived fields (Kind, Recurrence, StoryPoints, Contexts, DueDate)
// are re-derived from RawText on every sync pass and never edited in place.
type WorkItem struct {
	// ID is the stable external identifier assigned by the outline service.
	ID string `json:"id" db:"id"`

	// ParentID references the parent node; nil for roots.
	ParentID *string `json:"parent_id,omitempty" db:"parent_id"`

	// Title is the node text with tags, due-date markup, and HTML stripped.
	Title string `json:"title" db:"title"`

	// RawText is the node text exactly as exported.
	RawText string `json:"raw_text" db:"raw_text"`

	// Ancestors is the rendered parent chain, immediate parent first
	// (e.g. "August < Q3 < 2025").
	Ancestors string `json:"ancestors" db:"ancestors"`

	// Depth is the nesting level; roots are 0.
	Depth int `json:"depth" db:"depth"`

	// Position is the ordinal among siblings, preserving outline order.
	Position int `json:"position" db:"position"`

	Kind          ItemKind   `json:"kind" db:"kind"`
	GoalTimeframe string     `json:"goal_timeframe,omitempty" db:"goal_timeframe"`
	Recurrence    Recurrence `json:"recurrence" db:"recurrence"`

	// StoryPoints counts 15-minute units; nil when untagged.
	StoryPoints *int `json:"story_points,omitempty" db:"story_points"`

	// Contexts holds free-text labels like "home" or "office".
	Contexts []string `json:"contexts,omitempty" db:"-"`

	DueDate     *time.Time `json:"due_date,omitempty" db:"due_date"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`

	Milestone bool `json:"milestone" db:"milestone"`
	OnDeck    bool `json:"on_deck" db:"on_deck"`

	// CreatedAt is set when the row is first loaded and never changes.
	// UpdatedAt moves only when a pass actually changes derived state,
	// so an unchanged pass leaves rows byte-identical.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsGoal reports whether the item carries any goal tag.
func (w WorkItem) IsGoal() bool { return w.Kind == KindGoal }

// Planned reports whether the item was scheduled ahead of time: it has a
// due date or a recurrence tag. Completed-but-unplanned items feed the
// unplanned ratio in reports.
func (w WorkItem) Planned() bool {
	return w.DueDate != nil || w.Recurrence != RecurrenceNone
}

// CompletionEvent is the derived fact behind all period aggregates: one
// item transitioning to completed on one date.
type CompletionEvent struct {
	ItemID      string     `db:"item_id"`
	Kind        ItemKind   `db:"kind"`
	Recurrence  Recurrence `db:"recurrence"`
	StoryPoints *int       `db:"story_points"`
	DueDate     *time.Time `db:"due_date"`
	CompletedAt time.Time  `db:"completed_at"`
}

// Planned mirrors WorkItem.Planned for the event projection.
func (e CompletionEvent) Planned() bool {
	return e.DueDate != nil || e.Recurrence != RecurrenceNone
}

// SyncRun is the audit record of a single sync pass.
type SyncRun struct {
	ID           string    `db:"id"`
	StartedAt    time.Time `db:"started_at"`
	FinishedAt   time.Time `db:"finished_at"`
	ItemsSeen    int       `db:"items_seen"`
	ItemsLoaded  int       `db:"items_loaded"`
	ItemsSkipped int       `db:"items_skipped"`
	Warnings     int       `db:"warnings"`
}
