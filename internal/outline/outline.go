// Package outline models the hierarchical note export as a tree of text
// nodes and flattens it into parent-linked records for the loader.
package outline

import (
	"encoding/json"
	"fmt"
)

// Item is one entry of the export's flat item list. The wire names match
// the outline service's export format.
type Item struct {
	ID string `json:"id"`

	// Text is the raw node text, tags and markup included.
	Text string `json:"nm"`

	// ParentID references the parent item; empty or "None" marks a root.
	ParentID string `json:"prnt"`

	// Completed is the completion time as seconds relative to the
	// account join timestamp; nil while the item is open.
	Completed *int64 `json:"cp"`
}

// export is the envelope of a tree export payload.
type export struct {
	Items []Item `json:"items"`
}

// Problem records a structural defect found while building or walking
// the tree. The rest of the export is always still processed; Dropped
// tells whether the affected node was excluded entirely or merely
// degraded (e.g. re-rooted under a missing parent).
type Problem struct {
	NodeID  string
	Reason  string
	Dropped bool
}

func (p Problem) String() string {
	return fmt.Sprintf("node %s: %s", p.NodeID, p.Reason)
}

// Node is a single outline entry with its children in outline order.
type Node struct {
	ID        string
	Text      string
	Completed *int64
	Children  []*Node

	attached bool
}

// Tree is the assembled outline.
type Tree struct {
	Roots []*Node

	nodes map[string]*Node
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int { return len(t.nodes) }

// ParseExport decodes a raw tree export payload and assembles the tree.
func ParseExport(data []byte) (*Tree, []Problem, error) {
	var e export
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, nil, fmt.Errorf("decoding tree export: %w", err)
	}
	tree, problems := Build(e.Items)
	return tree, problems, nil
}

// Build assembles a Tree from the export's flat item list. Children keep
// the order they appear in the list, so sibling order is stable across
// runs. Items without an id are dropped; an item whose parent is unknown
// is attached as a root. Both cases produce a Problem.
func Build(items []Item) (*Tree, []Problem) {
	t := &Tree{nodes: make(map[string]*Node, len(items))}
	var problems []Problem

	for _, it := range items {
		if it.ID == "" {
			problems = append(problems, Problem{
				Reason:  "missing id",
				Dropped: true,
			})
			continue
		}
		if _, ok := t.nodes[it.ID]; ok {
			problems = append(problems, Problem{
				NodeID:  it.ID,
				Reason:  "duplicate id",
				Dropped: true,
			})
			continue
		}
		t.nodes[it.ID] = &Node{ID: it.ID, Text: it.Text, Completed: it.Completed}
	}

	for _, it := range items {
		node, ok := t.nodes[it.ID]
		if !ok || node.attached {
			// Unknown ids were dropped above; attached nodes are the
			// surviving copy of a duplicate id.
			continue
		}
		node.attached = true

		if isRoot(it.ParentID) {
			t.Roots = append(t.Roots, node)
			continue
		}
		parent, ok := t.nodes[it.ParentID]
		if !ok {
			problems = append(problems, Problem{
				NodeID: it.ID,
				Reason: fmt.Sprintf("unknown parent %s, attached as root", it.ParentID),
			})
			t.Roots = append(t.Roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	return t, problems
}

func isRoot(parentID string) bool {
	return parentID == "" || parentID == "None"
}
