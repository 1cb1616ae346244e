// Package conditions assembles a bundle's flat condition rows into a logic
// tree and evaluates that tree against a request context.
package conditions

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gyeh/tarifcheck/internal/tarif"
)

// Node is one condition group: leaves combined with Op, plus nested child
// groups that contribute their own aggregated boolean.
type Node struct {
	Group    int
	Op       tarif.GroupOp
	Leaves   []tarif.ConditionRow
	Children []*Node
}

// Tree is the assembled condition forest of one bundle. Root groups are
// alternative condition sets: the bundle applies when any root group is
// satisfied.
type Tree struct {
	Bundle string
	Roots  []*Node
}

// BuildError collects the structural problems found in one bundle's rows.
// A bundle with a BuildError is excluded from the index at load time.
type BuildError struct {
	Bundle   string
	Problems []string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("bundle %s: %s", e.Bundle, strings.Join(e.Problems, "; "))
}

// validOps lists the compare operators allowed per condition kind.
var validOps = map[tarif.ConditionKind][]tarif.CompareOp{
	tarif.KindServiceInTable:   {tarif.OpIn, tarif.OpEq},
	tarif.KindServiceInList:    {tarif.OpIn, tarif.OpEq},
	tarif.KindDiagnosisInTable: {tarif.OpIn, tarif.OpEq},
	tarif.KindMedicationInList: {tarif.OpIn, tarif.OpEq},
	tarif.KindQuantity:         {tarif.OpEq, tarif.OpNe, tarif.OpGte, tarif.OpGt, tarif.OpLte, tarif.OpLt},
	tarif.KindLaterality:       {tarif.OpEq},
	tarif.KindAgeSex:           {tarif.OpEq},
}

func opAllowed(kind tarif.ConditionKind, op tarif.CompareOp) bool {
	ops, ok := validOps[kind]
	if !ok {
		return false
	}
	for _, o := range ops {
		if o == op {
			return true
		}
	}
	return false
}

// Build assembles the condition tree for one bundle. It is deterministic:
// rows are sorted by (group, position) first, so row order in the source
// never changes the result. Structural defects are collected and returned
// as a single *BuildError; Build never panics on malformed input.
func Build(bundle string, rows []tarif.ConditionRow) (*Tree, error) {
	var problems []string

	if len(rows) == 0 {
		return nil, &BuildError{Bundle: bundle, Problems: []string{"no condition rows"}}
	}

	sorted := make([]tarif.ConditionRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Group != sorted[j].Group {
			return sorted[i].Group < sorted[j].Group
		}
		return sorted[i].Position < sorted[j].Position
	})

	nodes := make(map[int]*Node)
	parent := make(map[int]int) // group -> connector target (0 = root)
	level := make(map[int]int)

	for _, row := range sorted {
		n, ok := nodes[row.Group]
		if !ok {
			n = &Node{Group: row.Group, Op: row.GroupOp}
			nodes[row.Group] = n
			parent[row.Group] = row.ConnectorTarget
			level[row.Group] = row.Level
		} else {
			if n.Op != row.GroupOp {
				problems = append(problems, fmt.Sprintf("group %d declares both %s and %s", row.Group, n.Op, row.GroupOp))
			}
			if parent[row.Group] != row.ConnectorTarget {
				problems = append(problems, fmt.Sprintf("group %d has conflicting connector targets %d and %d", row.Group, parent[row.Group], row.ConnectorTarget))
			}
			if level[row.Group] != row.Level {
				problems = append(problems, fmt.Sprintf("group %d appears at levels %d and %d", row.Group, level[row.Group], row.Level))
			}
		}
		if n.Op != tarif.GroupAnd && n.Op != tarif.GroupOr {
			problems = append(problems, fmt.Sprintf("group %d: unknown group operator %q", row.Group, row.GroupOp))
		}
		if !opAllowed(row.Kind, row.Op) {
			problems = append(problems, fmt.Sprintf("group %d: operator %s not valid for kind %s", row.Group, row.Op, row.Kind))
		}
		n.Leaves = append(n.Leaves, row)
	}

	// Resolve nesting after all groups exist; rows are not guaranteed to
	// arrive parent-first.
	var roots []*Node
	for _, g := range sortedGroupIDs(nodes) {
		target := parent[g]
		if target == 0 {
			roots = append(roots, nodes[g])
			continue
		}
		p, ok := nodes[target]
		if !ok {
			problems = append(problems, fmt.Sprintf("group %d references nonexistent group %d", g, target))
			continue
		}
		if target == g {
			problems = append(problems, fmt.Sprintf("group %d references itself", g))
			continue
		}
		p.Children = append(p.Children, nodes[g])
	}

	if cyc := findCycle(parent, nodes); cyc != 0 {
		problems = append(problems, fmt.Sprintf("group %d is part of a nesting cycle", cyc))
	}
	if len(roots) == 0 && len(problems) == 0 {
		problems = append(problems, "no root group (every group nests under another)")
	}

	if len(problems) > 0 {
		return nil, &BuildError{Bundle: bundle, Problems: problems}
	}
	return &Tree{Bundle: bundle, Roots: roots}, nil
}

func sortedGroupIDs(nodes map[int]*Node) []int {
	ids := make([]int, 0, len(nodes))
	for g := range nodes {
		ids = append(ids, g)
	}
	sort.Ints(ids)
	return ids
}

// findCycle walks each group's parent chain; a chain longer than the group
// count means the connector targets loop. Returns a group on the cycle,
// or 0 if none.
func findCycle(parent map[int]int, nodes map[int]*Node) int {
	for g := range nodes {
		steps := 0
		cur := g
		for parent[cur] != 0 {
			if _, ok := nodes[parent[cur]]; !ok {
				break
			}
			cur = parent[cur]
			steps++
			if steps > len(nodes) {
				return g
			}
		}
	}
	return 0
}
