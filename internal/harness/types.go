package harness

// TraceEvent is one completed call. Args and Result hold plain JSON values
// (maps, slices, float64, string, bool, nil).
type TraceEvent struct {
	Seq    int64  `json:"seq"`
	Call   string `json:"call"`
	Args   any    `json:"args,omitempty"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"` // error kind, empty on success
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace holds setup and flow calls in execution order.
	Trace []TraceEvent `json:"trace"`

	Errors []string `json:"errors,omitempty"`

	// Journaled counts mutating calls written to the journal.
	Journaled int `json:"journaled"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a completed call.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
