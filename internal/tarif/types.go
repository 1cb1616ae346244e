// Package tarif holds the core domain model: the static tariff reference
// data (service catalog, reference tables, Pauschale bundles with their
// condition rows) and the per-request evaluation context.
package tarif

import "strings"

// ConditionKind identifies what a condition leaf tests.
type ConditionKind string

const (
	KindServiceInTable   ConditionKind = "SERVICE_IN_TABLE"
	KindServiceInList    ConditionKind = "SERVICE_IN_LIST"
	KindDiagnosisInTable ConditionKind = "DIAGNOSIS_IN_TABLE"
	KindMedicationInList ConditionKind = "MEDICATION_IN_LIST"
	KindQuantity         ConditionKind = "QUANTITY"
	KindLaterality       ConditionKind = "LATERALITY"
	KindAgeSex           ConditionKind = "AGE_SEX"
)

// CompareOp is the comparison operator attached to a condition leaf.
type CompareOp string

const (
	OpIn  CompareOp = "IN"
	OpEq  CompareOp = "EQ"
	OpNe  CompareOp = "NE"
	OpGte CompareOp = "GTE"
	OpGt  CompareOp = "GT"
	OpLte CompareOp = "LTE"
	OpLt  CompareOp = "LT"
)

// GroupOp combines the truth values of a condition group's children.
type GroupOp string

const (
	GroupAnd GroupOp = "AND"
	GroupOr  GroupOp = "OR"
)

// TableType classifies a reference table. Category tables (operating room,
// anesthesia, non-elective classes) form the "broad" index partition; all
// other types are "precise".
type TableType string

const (
	TableService    TableType = "service"
	TableDiagnosis  TableType = "diagnosis"
	TableMedication TableType = "medication"
	TableCategory   TableType = "category"
)

// ReferenceTable is a named, read-only set of (code, text) pairs.
// Membership is an exact-match test on the code.
type ReferenceTable struct {
	Name    string
	Type    TableType
	Entries map[string]string
}

// Broad reports whether the table belongs to the broad (categorical)
// index partition.
func (t *ReferenceTable) Broad() bool {
	return t.Type == TableCategory
}

// Contains reports membership of a code in the table.
func (t *ReferenceTable) Contains(code string) bool {
	_, ok := t.Entries[code]
	return ok
}

// ServiceCode is one TARDOC position from the service catalog, together
// with the constraints that apply when it is billed itemized.
type ServiceCode struct {
	Code        string
	Text        string
	MinAge      *int
	MaxAge      *int
	Sex         string // "" (any), "F" or "M"
	MaxQuantity *int
	Excludes    []string // codes that may not be billed in the same encounter
}

// Bundle is one Pauschale: a flat-rate code whose applicability is encoded
// as a forest of condition groups. Conditions stay in their flat row form
// here; the conditions package assembles the tree.
type Bundle struct {
	Code       string
	Text       string
	Points     float64
	Conditions []ConditionRow
}

// ConditionRow is the flat serialized form of one condition leaf as exported
// from the tariff source. Group/Level/GroupOp/ConnectorTarget describe the
// tree position, the remaining fields the leaf itself. Threshold, MinAge,
// MaxAge and Sex are only meaningful for the kinds that use them.
type ConditionRow struct {
	Bundle          string
	Group           int
	Level           int
	GroupOp         GroupOp
	Kind            ConditionKind
	Op              CompareOp
	Values          []string
	Threshold       *int
	MinAge          *int
	MaxAge          *int
	Sex             string
	ConnectorTarget int // parent group id, 0 for a root group
	Position        int
}

// Catalog is the full static data set the engine works against. Built once
// at load time and read-only afterwards; concurrent requests share it
// without locking.
type Catalog struct {
	Services map[string]*ServiceCode
	Tables   map[string]*ReferenceTable
	Bundles  map[string]*Bundle
}

// Table returns the named reference table, or nil.
func (c *Catalog) Table(name string) *ReferenceTable {
	return c.Tables[strings.ToUpper(strings.TrimSpace(name))]
}

// ServiceInput is one proposed billing line: a service code plus the
// requested quantity.
type ServiceInput struct {
	Code     string `json:"code"`
	Quantity int    `json:"quantity"`
}

// Medication identifies one supplied medication. ATC (pharmacological
// class) is the preferred identifier; GTIN and Name are fallbacks used in
// that order when ATC is absent.
type Medication struct {
	ATC  string `json:"atc,omitempty"`
	GTIN string `json:"gtin,omitempty"`
	Name string `json:"name,omitempty"`
}

// Context carries the per-request facts a bundle's conditions are checked
// against. It is request-scoped and never retained by the engine.
type Context struct {
	Services    []ServiceInput `json:"services"`
	Diagnoses   []string       `json:"diagnoses,omitempty"`
	Medications []Medication   `json:"medications,omitempty"`
	Age         *int           `json:"age,omitempty"`
	Sex         string         `json:"sex,omitempty"`
	Laterality  string         `json:"laterality,omitempty"` // "left", "right", "both" or ""
}

// Codes returns the distinct service codes in the context, in input order.
func (c *Context) Codes() []string {
	seen := make(map[string]bool, len(c.Services))
	out := make([]string, 0, len(c.Services))
	for _, s := range c.Services {
		if s.Code == "" || seen[s.Code] {
			continue
		}
		seen[s.Code] = true
		out = append(out, s.Code)
	}
	return out
}

// QuantityOf sums the requested quantities for one code. A line with
// quantity 0 counts as 1, matching how single-entry requests are sent.
func (c *Context) QuantityOf(code string) int {
	total := 0
	for _, s := range c.Services {
		if s.Code != code {
			continue
		}
		if s.Quantity <= 0 {
			total++
			continue
		}
		total += s.Quantity
	}
	return total
}
