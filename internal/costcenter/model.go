package costcenter

import (
	"sort"
	"time"
)

// CostCenter is a node in the optional dimensional-tagging hierarchy.
// Unlike account groups it carries no nature: it is a pure tagging dimension.
type CostCenter struct {
	ID         int64
	BusinessID int64
	ParentID   *int64
	Name       string
	Code       string
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// FlatCostCenter is one row of the flattened hierarchy.
type FlatCostCenter struct {
	ID    int64
	Name  string
	Code  string
	Depth int
}

func childIndex(centers []CostCenter) map[int64][]CostCenter {
	index := make(map[int64][]CostCenter)
	for _, c := range centers {
		parent := int64(0)
		if c.ParentID != nil {
			parent = *c.ParentID
		}
		index[parent] = append(index[parent], c)
	}
	for parent := range index {
		siblings := index[parent]
		sort.Slice(siblings, func(i, j int) bool {
			if siblings[i].Code != siblings[j].Code {
				return siblings[i].Code < siblings[j].Code
			}
			return siblings[i].Name < siblings[j].Name
		})
		index[parent] = siblings
	}
	return index
}

// Flatten produces the pre-order traversal of the cost-center arena.
func Flatten(centers []CostCenter) []FlatCostCenter {
	index := childIndex(centers)
	var out []FlatCostCenter
	var walk func(parent int64, depth int)
	walk = func(parent int64, depth int) {
		for _, c := range index[parent] {
			out = append(out, FlatCostCenter{ID: c.ID, Name: c.Name, Code: c.Code, Depth: depth})
			walk(c.ID, depth+1)
		}
	}
	walk(0, 0)
	return out
}

// DescendantIDs collects every id underneath root, root excluded.
func DescendantIDs(centers []CostCenter, rootID int64) map[int64]struct{} {
	index := childIndex(centers)
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
