package conditions

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gyeh/tarifcheck/internal/normalize"
	"github.com/gyeh/tarifcheck/internal/tarif"
)

// Evaluate walks the tree against the context and returns the full verdict
// trail. It is pure: neither the catalog, the tree nor the context is
// mutated, and repeated calls yield identical verdicts. A leaf whose
// operand cannot be resolved is unsatisfied with an explanation, never an
// error.
func Evaluate(tree *Tree, cat *tarif.Catalog, ctx *tarif.Context) tarif.BundleVerdict {
	v := tarif.BundleVerdict{Bundle: tree.Bundle}
	if b := cat.Bundles[tree.Bundle]; b != nil {
		v.Points = b.Points
	}

	groupResults := make(map[int]tarif.GroupVerdict)
	overall := false
	for _, root := range tree.Roots {
		if evalNode(root, cat, ctx, &v, groupResults) {
			overall = true
		}
	}
	v.Satisfied = overall

	for _, g := range sortedResultIDs(groupResults) {
		v.Groups = append(v.Groups, groupResults[g])
	}
	return v
}

func sortedResultIDs(m map[int]tarif.GroupVerdict) []int {
	ids := make([]int, 0, len(m))
	for g := range m {
		ids = append(ids, g)
	}
	sort.Ints(ids)
	return ids
}

func evalNode(n *Node, cat *tarif.Catalog, ctx *tarif.Context, v *tarif.BundleVerdict, groups map[int]tarif.GroupVerdict) bool {
	results := make([]bool, 0, len(n.Leaves)+len(n.Children))

	for _, leaf := range n.Leaves {
		lv := evalLeaf(leaf, cat, ctx)
		v.Leaves = append(v.Leaves, lv)
		results = append(results, lv.Satisfied)
	}
	for _, child := range n.Children {
		results = append(results, evalNode(child, cat, ctx, v, groups))
	}

	sat := aggregate(n.Op, results)
	groups[n.Group] = tarif.GroupVerdict{Group: n.Group, Op: n.Op, Satisfied: sat}
	return sat
}

func aggregate(op tarif.GroupOp, results []bool) bool {
	if op == tarif.GroupOr {
		for _, r := range results {
			if r {
				return true
			}
		}
		return false
	}
	for _, r := range results {
		if !r {
			return false
		}
	}
	return len(results) > 0
}

func evalLeaf(row tarif.ConditionRow, cat *tarif.Catalog, ctx *tarif.Context) tarif.LeafVerdict {
	lv := tarif.LeafVerdict{
		Group:   row.Group,
		Kind:    row.Kind,
		Op:      row.Op,
		Operand: operandString(row),
	}

	switch row.Kind {
	case tarif.KindServiceInTable:
		lv.Satisfied, lv.Explanation = evalServiceInTable(row, cat, ctx)
	case tarif.KindServiceInList:
		lv.Satisfied, lv.Explanation = evalServiceInList(row, ctx)
	case tarif.KindDiagnosisInTable:
		lv.Satisfied, lv.Explanation = evalDiagnosisInTable(row, cat, ctx)
	case tarif.KindMedicationInList:
		lv.Satisfied, lv.Explanation = evalMedicationInList(row, cat, ctx)
	case tarif.KindQuantity:
		lv.Satisfied, lv.Explanation = evalQuantity(row, ctx)
	case tarif.KindLaterality:
		lv.Satisfied, lv.Explanation = evalLaterality(row, ctx)
	case tarif.KindAgeSex:
		lv.Satisfied, lv.Explanation = evalAgeSex(row, ctx)
	default:
		lv.Satisfied = false
		lv.Explanation = fmt.Sprintf("condition could not be evaluated: unknown condition kind %q", row.Kind)
	}
	return lv
}

func operandString(row tarif.ConditionRow) string {
	if row.Kind == tarif.KindQuantity && row.Threshold != nil {
		return fmt.Sprintf("%s %d", strings.Join(row.Values, ","), *row.Threshold)
	}
	if row.Kind == tarif.KindAgeSex {
		parts := []string{}
		if row.MinAge != nil {
			parts = append(parts, fmt.Sprintf("min_age=%d", *row.MinAge))
		}
		if row.MaxAge != nil {
			parts = append(parts, fmt.Sprintf("max_age=%d", *row.MaxAge))
		}
		if row.Sex != "" {
			parts = append(parts, "sex="+row.Sex)
		}
		return strings.Join(parts, " ")
	}
	return strings.Join(row.Values, ",")
}

// membership of any context service code in any of the named tables
func evalServiceInTable(row tarif.ConditionRow, cat *tarif.Catalog, ctx *tarif.Context) (bool, string) {
	if len(row.Values) == 0 {
		return false, "condition could not be evaluated: no table name given"
	}

	var missing []string
	resolved := 0
	for _, name := range row.Values {
		tbl := cat.Table(name)
		if tbl == nil {
			missing = append(missing, name)
			continue
		}
		resolved++
		for _, code := range ctx.Codes() {
			if tbl.Contains(normalize.Service(code)) {
				return true, fmt.Sprintf("service code %s is in table %s", code, tbl.Name)
			}
		}
	}
	if resolved == 0 {
		return false, fmt.Sprintf("condition could not be evaluated: table(s) %s not found", strings.Join(missing, ", "))
	}
	expl := fmt.Sprintf("no requested service code is in table(s) %s", strings.Join(row.Values, ", "))
	if len(missing) > 0 {
		expl += fmt.Sprintf(" (table(s) %s not found)", strings.Join(missing, ", "))
	}
	return false, expl
}

func evalServiceInList(row tarif.ConditionRow, ctx *tarif.Context) (bool, string) {
	if len(row.Values) == 0 {
		return false, "condition could not be evaluated: empty code list"
	}
	want := make(map[string]bool, len(row.Values))
	for _, v := range row.Values {
		want[normalize.Service(v)] = true
	}
	for _, code := range ctx.Codes() {
		if want[normalize.Service(code)] {
			return true, fmt.Sprintf("service code %s is in the code list", code)
		}
	}
	return false, fmt.Sprintf("no requested service code is in the list [%s]", strings.Join(row.Values, ", "))
}

func evalDiagnosisInTable(row tarif.ConditionRow, cat *tarif.Catalog, ctx *tarif.Context) (bool, string) {
	if len(row.Values) == 0 {
		return false, "condition could not be evaluated: no table name given"
	}
	if len(ctx.Diagnoses) == 0 {
		return false, "no diagnosis supplied"
	}

	var missing []string
	resolved := 0
	for _, name := range row.Values {
		tbl := cat.Table(name)
		if tbl == nil {
			missing = append(missing, name)
			continue
		}
		resolved++
		for _, icd := range ctx.Diagnoses {
			if tbl.Contains(normalize.Diagnosis(icd)) {
				return true, fmt.Sprintf("diagnosis %s is in table %s", icd, tbl.Name)
			}
		}
	}
	if resolved == 0 {
		return false, fmt.Sprintf("condition could not be evaluated: table(s) %s not found", strings.Join(missing, ", "))
	}
	return false, fmt.Sprintf("no supplied diagnosis is in table(s) %s", strings.Join(row.Values, ", "))
}

// Medication matching prefers the pharmacological class (ATC); GTIN and a
// case-folded name comparison are fallbacks for unresolved products. A list
// entry that names a medication reference table is expanded to that table's
// entries, so shared lists stay in one place.
func evalMedicationInList(row tarif.ConditionRow, cat *tarif.Catalog, ctx *tarif.Context) (bool, string) {
	if len(row.Values) == 0 {
		return false, "condition could not be evaluated: empty medication list"
	}
	if len(ctx.Medications) == 0 {
		return false, "no medication supplied"
	}

	atc := make(map[string]bool)
	gtin := make(map[string]bool)
	names := make(map[string]bool)
	add := func(code, text string) {
		atc[normalize.ATC(code)] = true
		if g := normalize.GTIN(code); g != "" {
			gtin[g] = true
		}
		names[normalize.Fold(code)] = true
		if text != "" {
			names[normalize.Fold(text)] = true
		}
	}
	for _, v := range row.Values {
		if tbl := cat.Table(v); tbl != nil && tbl.Type == tarif.TableMedication {
			for code, text := range tbl.Entries {
				add(code, text)
			}
			continue
		}
		add(v, "")
	}

	for _, med := range ctx.Medications {
		if med.ATC != "" && atc[normalize.ATC(med.ATC)] {
			return true, fmt.Sprintf("medication matched by ATC class %s", med.ATC)
		}
	}
	for _, med := range ctx.Medications {
		if g := normalize.GTIN(med.GTIN); g != "" && gtin[g] {
			return true, fmt.Sprintf("medication matched by GTIN %s", med.GTIN)
		}
	}
	for _, med := range ctx.Medications {
		if med.Name != "" && names[normalize.Fold(med.Name)] {
			return true, fmt.Sprintf("medication matched by name %q", med.Name)
		}
	}
	return false, "no supplied medication is in the list"
}

// Quantity fails closed: if none of the referenced codes is present the
// leaf is unsatisfied regardless of the operator.
func evalQuantity(row tarif.ConditionRow, ctx *tarif.Context) (bool, string) {
	if row.Threshold == nil {
		return false, "condition could not be evaluated: missing numeric threshold"
	}
	if len(row.Values) == 0 {
		return false, "condition could not be evaluated: no service code to count"
	}

	total := 0
	for _, code := range row.Values {
		total += ctx.QuantityOf(normalize.Service(code))
	}
	if total == 0 {
		return false, fmt.Sprintf("none of the counted codes [%s] is present", strings.Join(row.Values, ", "))
	}

	want := *row.Threshold
	ok := false
	switch row.Op {
	case tarif.OpEq:
		ok = total == want
	case tarif.OpNe:
		ok = total != want
	case tarif.OpGte:
		ok = total >= want
	case tarif.OpGt:
		ok = total > want
	case tarif.OpLte:
		ok = total <= want
	case tarif.OpLt:
		ok = total < want
	default:
		return false, fmt.Sprintf("condition could not be evaluated: operator %s not valid for quantity", row.Op)
	}
	if ok {
		return true, fmt.Sprintf("quantity %d satisfies %s %d", total, row.Op, want)
	}
	return false, fmt.Sprintf("quantity %d does not satisfy %s %d", total, row.Op, want)
}

func evalLaterality(row tarif.ConditionRow, ctx *tarif.Context) (bool, string) {
	if len(row.Values) == 0 {
		return false, "condition could not be evaluated: missing laterality operand"
	}
	want := normalize.Fold(row.Values[0])
	have := normalize.Fold(ctx.Laterality)

	if want == "either" {
		if have != "" {
			return true, fmt.Sprintf("laterality %q present", ctx.Laterality)
		}
		return false, "no laterality supplied"
	}
	if have == "" {
		return false, fmt.Sprintf("laterality %q required but none supplied", row.Values[0])
	}
	if have == want {
		return true, fmt.Sprintf("laterality is %q", ctx.Laterality)
	}
	return false, fmt.Sprintf("laterality is %q, condition requires %q", ctx.Laterality, row.Values[0])
}

// Age bounds are inclusive; a dimension without a declared bound is always
// satisfied on that dimension.
func evalAgeSex(row tarif.ConditionRow, ctx *tarif.Context) (bool, string) {
	if row.MinAge == nil && row.MaxAge == nil && row.Sex == "" {
		return true, "no age or sex bound declared"
	}

	if row.MinAge != nil || row.MaxAge != nil {
		if ctx.Age == nil {
			return false, "age bound declared but no age supplied"
		}
		if row.MinAge != nil && *ctx.Age < *row.MinAge {
			return false, fmt.Sprintf("age %d is below minimum %d", *ctx.Age, *row.MinAge)
		}
		if row.MaxAge != nil && *ctx.Age > *row.MaxAge {
			return false, fmt.Sprintf("age %d is above maximum %d", *ctx.Age, *row.MaxAge)
		}
	}
	if row.Sex != "" {
		if ctx.Sex == "" {
			return false, "sex bound declared but no sex supplied"
		}
		if !strings.EqualFold(ctx.Sex, row.Sex) {
			return false, fmt.Sprintf("sex is %q, condition requires %q", ctx.Sex, row.Sex)
		}
	}
	return true, "age and sex bounds satisfied"
}
