package harness

// TraceEvent is one completed cycle.
type TraceEvent struct {
	Seq       int64  `json:"seq"`
	ParentSeq int64  `json:"parent_seq"`
	FlowToken string `json:"flow_token"`
	Origin    string `json:"origin"`
	Depth     int    `json:"depth"`
	Msg       string `json:"msg"`
	View      string `json:"view"` // text content of the view
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Trace lists cycles in completion order. Under the immediate policy a
	// nested cycle completes before the cycle that caused it.
	Trace []TraceEvent `json:"trace"`

	Errors []string `json:"errors,omitempty"`

	// Final state.
	Count      int    `json:"count"`
	Cycles     int64  `json:"cycles"`
	Reconciles int    `json:"reconciles"`
	Styles     int    `json:"styles"`
	Inits      int    `json:"inits"`
	Document   string `json:"-"`

	// RuntimeError is the code of the error that stopped the run, if any.
	RuntimeError string `json:"runtime_error,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
