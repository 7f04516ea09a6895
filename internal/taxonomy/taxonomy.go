// Package taxonomy holds the fixed five-level category hierarchy that
// vendors are classified into, and the gateway the classifier resolves
// valid child categories through.
package taxonomy

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"
)

// MaxLevel is the depth of the hierarchy; level 1 is coarsest.
const MaxLevel = 5

// Category is a single selectable taxonomy node.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Record is a flattened taxonomy row as stored or imported.
type Record struct {
	Level    int    `json:"level"`
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parent_id,omitempty"`
}

// Gateway resolves the valid child categories for a (level, parent) pair.
// Implementations are deterministic for a given taxonomy snapshot.
type Gateway interface {
	Categories(ctx context.Context, level int, parentID string) ([]Category, error)
}

type node struct {
	Category
	level    int
	children map[string]*node
	order    []string
}

// Tree is an in-memory taxonomy snapshot implementing Gateway. It is
// built once before a job and read-only afterwards, so lookups need no
// locking.
type Tree struct {
	roots map[string]*node
	order []string
	nodes map[string]*node
}

// NewTree returns an empty taxonomy tree.
func NewTree() *Tree {
	return &Tree{
		roots: make(map[string]*node),
		nodes: make(map[string]*node),
	}
}

// Add inserts one category. Level-1 categories have an empty parent id;
// deeper categories must name an already-inserted parent one level up.
func (t *Tree) Add(level int, parentID string, c Category) error {
	if level < 1 || level > MaxLevel {
		return eris.Errorf("taxonomy: level %d out of range", level)
	}
	c.ID = strings.TrimSpace(c.ID)
	c.Name = norm.NFC.String(strings.TrimSpace(c.Name))
	if c.ID == "" {
		return eris.Errorf("taxonomy: empty category id at level %d", level)
	}
	if _, dup := t.nodes[c.ID]; dup {
		return eris.Errorf("taxonomy: duplicate category id %q", c.ID)
	}

	n := &node{Category: c, level: level, children: make(map[string]*node)}

	if level == 1 {
		if parentID != "" {
			return eris.Errorf("taxonomy: level-1 category %q cannot have parent %q", c.ID, parentID)
		}
		t.roots[c.ID] = n
		t.order = append(t.order, c.ID)
		t.nodes[c.ID] = n
		return nil
	}

	parent, ok := t.nodes[parentID]
	if !ok {
		return eris.Errorf("taxonomy: parent %q not found for category %q", parentID, c.ID)
	}
	if parent.level != level-1 {
		return eris.Errorf("taxonomy: parent %q is level %d, category %q is level %d", parentID, parent.level, c.ID, level)
	}
	parent.children[c.ID] = n
	parent.order = append(parent.order, c.ID)
	t.nodes[c.ID] = n
	return nil
}

// AddRecords inserts records in level order so parents always precede
// children regardless of input ordering.
func (t *Tree) AddRecords(recs []Record) error {
	sorted := make([]Record, len(recs))
	copy(sorted, recs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Level < sorted[j].Level })
	for _, r := range sorted {
		if err := t.Add(r.Level, r.ParentID, Category{ID: r.ID, Name: r.Name}); err != nil {
			return err
		}
	}
	return nil
}

// Categories implements Gateway. Level 1 ignores parentID; deeper levels
// require a parent that exists at level-1 of the request.
func (t *Tree) Categories(_ context.Context, level int, parentID string) ([]Category, error) {
	if level < 1 || level > MaxLevel {
		return nil, eris.Errorf("taxonomy: level %d out of range", level)
	}

	if level == 1 {
		out := make([]Category, 0, len(t.order))
		for _, id := range t.order {
			out = append(out, t.roots[id].Category)
		}
		return out, nil
	}

	if parentID == "" {
		return nil, eris.Errorf("taxonomy: parent id required for level %d", level)
	}
	parent, ok := t.nodes[parentID]
	if !ok {
		return nil, eris.Errorf("taxonomy: parent category %q not found", parentID)
	}
	if parent.level != level-1 {
		return nil, eris.Errorf("taxonomy: parent %q is level %d, cannot list level %d", parentID, parent.level, level)
	}

	out := make([]Category, 0, len(parent.order))
	for _, id := range parent.order {
		out = append(out, parent.children[id].Category)
	}
	return out, nil
}

// Lookup returns the category and its level for an id.
func (t *Tree) Lookup(id string) (Category, int, bool) {
	n, ok := t.nodes[id]
	if !ok {
		return Category{}, 0, false
	}
	return n.Category, n.level, true
}

// Len returns the total number of categories in the tree.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Records flattens the tree back to level-ordered records, suitable for
// persisting the snapshot.
func (t *Tree) Records() []Record {
	var out []Record
	var walk func(n *node, parentID string)
	walk = func(n *node, parentID string) {
		out = append(out, Record{Level: n.level, ID: n.ID, Name: n.Name, ParentID: parentID})
		for _, id := range n.order {
			walk(n.children[id], n.ID)
		}
	}
	for _, id := range t.order {
		walk(t.roots[id], "")
	}
	return out
}
