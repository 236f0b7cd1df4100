package harness

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step behaved as scripted and every assertion held.
	Pass bool `json:"pass"`

	// Transcript holds every envelope the session queued, in queue order.
	Transcript []string `json:"transcript"`

	// Registry is the final table registry, sorted.
	Registry []string `json:"registry"`

	// Errors contains step and assertion failures.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:       true,
		Transcript: []string{},
		Registry:   []string{},
		Errors:     []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
