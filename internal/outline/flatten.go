package outline

// FlatNode is one record of the flattened outline: the node's own text
// plus its resolved position in the hierarchy.
type FlatNode struct {
	ID       string
	ParentID *string

	// Depth is the nesting level; roots are 0.
	Depth int

	// Position is the ordinal among siblings, preserving outline order.
	Position int

	Text      string
	Completed *int64
}

// frame is one unit of flattening work.
type frame struct {
	node     *Node
	parentID *string
	depth    int
	position int
}

// Flatten walks the tree in deterministic pre-order and produces a flat
// record per node. The traversal uses an explicit work stack, so nesting
// depth is bounded by memory rather than the call stack, and a node seen
// twice (an aliased or cyclic structure) is skipped with a Problem rather
// than looping. Nodes unreachable from any root (the members of a parent
// cycle) are reported too.
func Flatten(t *Tree) ([]FlatNode, []Problem) {
	flat := make([]FlatNode, 0, t.Len())
	var problems []Problem
	visited := make(map[string]bool, t.Len())

	// Seed with roots in reverse so the stack pops them in outline order.
	stack := make([]frame, 0, len(t.Roots))
	for i := len(t.Roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{node: t.Roots[i], depth: 0, position: i})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[f.node.ID] {
			problems = append(problems, Problem{
				NodeID:  f.node.ID,
				Reason:  "visited twice, skipping repeated subtree",
				Dropped: true,
			})
			continue
		}
		visited[f.node.ID] = true

		flat = append(flat, FlatNode{
			ID:        f.node.ID,
			ParentID:  f.parentID,
			Depth:     f.depth,
			Position:  f.position,
			Text:      f.node.Text,
			Completed: f.node.Completed,
		})

		parentID := f.node.ID
		for i := len(f.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{
				node:     f.node.Children[i],
				parentID: &parentID,
				depth:    f.depth + 1,
				position: i,
			})
		}
	}

	for id := range t.nodes {
		if !visited[id] {
			problems = append(problems, Problem{
				NodeID:  id,
				Reason:  "unreachable from any root (parent cycle)",
				Dropped: true,
			})
		}
	}

	return flat, problems
}
