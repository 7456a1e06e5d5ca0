package model

import (
	"fmt"
	"sort"
)

// SnapshotID indexes a Snapshot within the arena that owns it (spec §9
// design note: "model snapshots as nodes in an arena keyed by integer id"
// rather than via cyclic object back-pointers).
type SnapshotID int

// Snapshot is a node in a rule's ordered DAG of one state cell's history.
// laterThan and modifiedLaterThan are strict-precedence edges to earlier
// snapshots of the same arena: "state unchanged since" vs "state changed to
// X once since."
type Snapshot struct {
	ID                SnapshotID
	Condition         State
	Label             string
	LaterThan         []SnapshotID
	ModifiedLaterThan []SnapshotID
	TransfersTo       *State // non-nil iff this snapshot's rule transfers the cell
}

// SnapshotTable is the arena owning every Snapshot of one rule. Rules own
// their SnapshotTable; nessions reference frames that own their own
// snapshots (spec §9).
type SnapshotTable struct {
	nodes   []*Snapshot
	byLabel map[string]SnapshotID
}

// NewSnapshotTable returns an empty arena.
func NewSnapshotTable() *SnapshotTable {
	return &SnapshotTable{byLabel: map[string]SnapshotID{}}
}

// Add registers a new snapshot under label, resolving laterThan and
// modifiedLaterThan label references against snapshots already added.
// Labels must be unique within the table (spec §4.2 "Labels ... must be
// unique within the rule").
func (t *SnapshotTable) Add(label string, condition State, laterThan, modifiedLaterThan []string, transfersTo *State) (SnapshotID, error) {
	if _, exists := t.byLabel[label]; exists {
		return 0, fmt.Errorf("model: duplicate snapshot label %q", label)
	}
	laterIDs, err := t.resolveLabels(laterThan)
	if err != nil {
		return 0, err
	}
	modIDs, err := t.resolveLabels(modifiedLaterThan)
	if err != nil {
		return 0, err
	}
	id := SnapshotID(len(t.nodes))
	t.nodes = append(t.nodes, &Snapshot{
		ID:                id,
		Condition:         condition,
		Label:             label,
		LaterThan:         laterIDs,
		ModifiedLaterThan: modIDs,
		TransfersTo:       transfersTo,
	})
	t.byLabel[label] = id
	return id, nil
}

func (t *SnapshotTable) resolveLabels(labels []string) ([]SnapshotID, error) {
	ids := make([]SnapshotID, 0, len(labels))
	for _, l := range labels {
		id, ok := t.byLabel[l]
		if !ok {
			return nil, fmt.Errorf("model: ordering references unknown snapshot label %q", l)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Get returns the snapshot with the given id.
func (t *SnapshotTable) Get(id SnapshotID) *Snapshot { return t.nodes[id] }

// Resolve looks up a snapshot's id by label.
func (t *SnapshotTable) Resolve(label string) (SnapshotID, bool) {
	id, ok := t.byLabel[label]
	return id, ok
}

// Len returns the number of snapshots in the arena.
func (t *SnapshotTable) Len() int { return len(t.nodes) }

// All returns every snapshot in insertion order.
func (t *SnapshotTable) All() []*Snapshot { return t.nodes }

// edges returns every ordering edge (both laterThan and modifiedLaterThan)
// out of every node, used by both cycle detection and topological sort.
func (t *SnapshotTable) edges() map[SnapshotID][]SnapshotID {
	out := make(map[SnapshotID][]SnapshotID, len(t.nodes))
	for _, n := range t.nodes {
		out[n.ID] = append(append([]SnapshotID(nil), n.LaterThan...), n.ModifiedLaterThan...)
	}
	return out
}

// HasCycle reports whether the ordering edges form a cycle, which would
// violate the DAG invariant required of every rule's snapshot graph
// (spec §3 "The snapshot graph is a DAG").
func (t *SnapshotTable) HasCycle() bool {
	edges := t.edges()
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[SnapshotID]int, len(t.nodes))
	var visit func(id SnapshotID) bool
	visit = func(id SnapshotID) bool {
		color[id] = gray
		for _, next := range edges[id] {
			switch color[next] {
			case gray:
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}
	for _, n := range t.nodes {
		if color[n.ID] == white {
			if visit(n.ID) {
				return true
			}
		}
	}
	return false
}

// TotalOrderForCell returns the snapshots touching the given cell in
// strictly increasing order, or an error if the ordering edges do not
// impose a total order over that cell's snapshots (spec §3: "Ordering
// between any two snapshots of the same cell is total").
func (t *SnapshotTable) TotalOrderForCell(cell string) ([]*Snapshot, error) {
	var nodes []*Snapshot
	for _, n := range t.nodes {
		if n.Condition.Cell() == cell {
			nodes = append(nodes, n)
		}
	}
	// laterThanReaches(x, y) holds when x's ordering edges chain down to y,
	// i.e. x happens strictly later than y. "earlier" is its inverse.
	earlier := func(a, b SnapshotID) bool {
		return laterThanReaches(t, b, a)
	}
	sort.Slice(nodes, func(i, j int) bool {
		return earlier(nodes[i].ID, nodes[j].ID)
	})
	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			if !earlier(nodes[i].ID, nodes[j].ID) && !earlier(nodes[j].ID, nodes[i].ID) {
				return nil, fmt.Errorf("model: snapshots %q and %q of cell %q are not totally ordered",
					nodes[i].Label, nodes[j].Label, cell)
			}
		}
	}
	return nodes, nil
}

func laterThanReaches(t *SnapshotTable, from, to SnapshotID) bool {
	if from == to {
		return false
	}
	edges := t.edges()
	visited := map[SnapshotID]bool{}
	var dfs func(id SnapshotID) bool
	dfs = func(id SnapshotID) bool {
		if visited[id] {
			return false
		}
		visited[id] = true
		for _, next := range edges[id] {
			if next == to || dfs(next) {
				return true
			}
		}
		return false
	}
	return dfs(from)
}
