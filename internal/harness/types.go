package harness

import "github.com/roach88/shapeq/internal/ir"

// RewriteTrace is one applied rewrite, rendered.
type RewriteTrace struct {
	Kind   string `json:"kind"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// Outcome is the result of evaluating a tree: a value, or an error kind.
type Outcome struct {
	Value ir.IRValue `json:"value,omitempty"`
	Error string     `json:"error,omitempty"`
}

// Same reports whether two outcomes agree.
func (o Outcome) Same(other Outcome) bool {
	if o.Error != "" || other.Error != "" {
		return o.Error == other.Error
	}
	return ir.Equal(o.Value, other.Value)
}

// String renders the outcome for messages.
func (o Outcome) String() string {
	if o.Error != "" {
		return "error(" + o.Error + ")"
	}
	data, err := ir.MarshalCanonical(o.Value)
	if err != nil {
		return "<unprintable>"
	}
	return string(data)
}

// EvalTrace records one evaluation of the optimized tree.
type EvalTrace struct {
	Bindings ir.IRObject `json:"bindings"`
	Outcome  Outcome     `json:"outcome"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass indicates overall success.
	Pass bool `json:"pass"`

	// Original and Optimized are the rendered input and output trees.
	Original  string `json:"original"`
	Optimized string `json:"optimized"`

	// Rewrites lists the applied rewrites in order.
	Rewrites []RewriteTrace `json:"rewrites"`

	// Evaluations lists the optimized tree's outcome per evaluation.
	Evaluations []EvalTrace `json:"evaluations"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:        true,
		Rewrites:    []RewriteTrace{},
		Evaluations: []EvalTrace{},
		Errors:      []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
