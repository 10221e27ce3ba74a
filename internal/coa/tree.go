package coa

import "sort"

// childIndex arranges groups by parent id. Roots are keyed under 0.
// Siblings are ordered by sequence, then name, matching list rendering.
func childIndex(groups []AccountGroup) map[int64][]AccountGroup {
	index := make(map[int64][]AccountGroup)
	for _, g := range groups {
		parent := int64(0)
		if g.ParentID != nil {
			parent = *g.ParentID
		}
		index[parent] = append(index[parent], g)
	}
	for parent := range index {
		siblings := index[parent]
		sort.Slice(siblings, func(i, j int) bool {
			if siblings[i].Sequence != siblings[j].Sequence {
				return siblings[i].Sequence < siblings[j].Sequence
			}
			return siblings[i].Name < siblings[j].Name
		})
		index[parent] = siblings
	}
	return index
}

// Flatten produces the pre-order traversal of the group arena with depth,
// used for indentation-aware selection lists.
func Flatten(groups []AccountGroup) []FlatGroup {
	index := childIndex(groups)
	var out []FlatGroup
	var walk func(parent int64, depth int)
	walk = func(parent int64, depth int) {
		for _, g := range index[parent] {
			out = append(out, FlatGroup{ID: g.ID, Name: g.Name, Nature: g.Nature, Depth: depth})
			walk(g.ID, depth+1)
		}
	}
	walk(0, 0)
	return out
}

// DescendantIDs collects every id underneath root (root excluded) via an
// iterative walk, so a corrupted parent link cannot recurse forever.
func DescendantIDs(groups []AccountGroup, rootID int64) map[int64]struct{} {
	index := childIndex(groups)
	seen := make(map[int64]struct{})
	stack := []int64{rootID}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, child := range index[current] {
			if _, ok := seen[child.ID]; ok {
				continue
			}
			seen[child.ID] = struct{}{}
			stack = append(stack, child.ID)
		}
	}
	return seen
}
