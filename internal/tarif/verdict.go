package tarif

// The verdict types below are the engine's output contract. The rendering
// layer consumes them as JSON; field names are stable even when the engine's
// internals change.

// LeafVerdict records the outcome of one condition leaf.
type LeafVerdict struct {
	Group       int           `json:"group"`
	Kind        ConditionKind `json:"kind"`
	Op          CompareOp     `json:"op"`
	Operand     string        `json:"operand"`
	Satisfied   bool          `json:"satisfied"`
	Explanation string        `json:"explanation"`
}

// GroupVerdict records the aggregated boolean of one condition group.
type GroupVerdict struct {
	Group     int     `json:"group"`
	Op        GroupOp `json:"op"`
	Satisfied bool    `json:"satisfied"`
}

// BundleVerdict is the full evaluation trail for one bundle against one
// context: the overall boolean plus every leaf and group outcome.
type BundleVerdict struct {
	Bundle    string         `json:"bundle"`
	Points    float64        `json:"points"`
	Satisfied bool           `json:"satisfied"`
	Groups    []GroupVerdict `json:"groups"`
	Leaves    []LeafVerdict  `json:"leaves"`
}

// SatisfiedFraction returns the share of satisfied leaves, used to rank
// near-miss bundles. A verdict with no leaves counts as 0.
func (v *BundleVerdict) SatisfiedFraction() float64 {
	if len(v.Leaves) == 0 {
		return 0
	}
	n := 0
	for _, l := range v.Leaves {
		if l.Satisfied {
			n++
		}
	}
	return float64(n) / float64(len(v.Leaves))
}

// NoteLevel distinguishes advisory notes from blocking constraint
// violations on an itemized line.
type NoteLevel string

const (
	NoteAdvisory NoteLevel = "advisory"
	NoteBlocking NoteLevel = "blocking"
)

// ItemNote is one advisory or blocking remark on an itemized line.
type ItemNote struct {
	Level NoteLevel `json:"level"`
	Text  string    `json:"text"`
}

// ItemResult is the itemized-billing outcome for one service code.
type ItemResult struct {
	Code              string     `json:"code"`
	Text              string     `json:"text,omitempty"`
	RequestedQuantity int        `json:"requested_quantity"`
	BillableQuantity  int        `json:"billable_quantity"`
	Billable          bool       `json:"billable"`
	Notes             []ItemNote `json:"notes,omitempty"`
}

// ResultType is the top-level billing outcome.
type ResultType string

const (
	ResultPauschale ResultType = "pauschale"
	ResultTardoc    ResultType = "tardoc"
	ResultNone      ResultType = "none"
)

// SelectedBundle describes the chosen flat-rate bundle.
type SelectedBundle struct {
	Code    string        `json:"code"`
	Text    string        `json:"text"`
	Points  float64       `json:"points"`
	Verdict BundleVerdict `json:"verdict"`
}

// BillingResult is the engine's top-level answer for one request.
// Exactly one of the three shapes is populated depending on Type:
// pauschale (Bundle set, remaining codes in Items), tardoc (Items only),
// or none (Reason only).
type BillingResult struct {
	RequestID  string          `json:"request_id,omitempty"`
	Type       ResultType      `json:"type"`
	Bundle     *SelectedBundle `json:"bundle,omitempty"`
	NearMisses []BundleVerdict `json:"near_misses,omitempty"`
	Items      []ItemResult    `json:"items,omitempty"`
	Reason     string          `json:"reason,omitempty"`
}
