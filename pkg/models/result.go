package models

import "fmt"

// Change records one attribute convergence.
type Change struct {
	Field  string `json:"field"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// Result is what a reconciler reports for one resource. Changed is
// false when the live resource already matched the spec.
type Result struct {
	Changed bool                   `json:"changed"`
	Changes []Change               `json:"changes,omitempty"`
	Output  map[string]interface{} `json:"output,omitempty"`
}

// Record appends a change and marks the result changed.
func (r *Result) Record(field string, before, after interface{}) {
	r.Changed = true
	r.Changes = append(r.Changes, Change{
		Field:  field,
		Before: fmt.Sprintf("%v", before),
		After:  fmt.Sprintf("%v", after),
	})
}

// SetOutput stores a fact about the converged resource (IDs, ARNs,
// endpoints) for the run summary.
func (r *Result) SetOutput(key string, value interface{}) {
	if r.Output == nil {
		r.Output = make(map[string]interface{})
	}
	r.Output[key] = value
}

// ResourceResult pairs a resource with its reconciliation outcome.
type ResourceResult struct {
	Type   ResourceType `json:"type"`
	Name   string       `json:"name"`
	Region string       `json:"region,omitempty"`
	Result *Result      `json:"result,omitempty"`
	Err    error        `json:"-"`
}

// Summary aggregates a whole run.
type Summary struct {
	DocumentName string           `json:"document_name"`
	CheckMode    bool             `json:"check_mode"`
	Results      []ResourceResult `json:"results"`
}

// Changed reports whether any resource changed.
func (s *Summary) Changed() bool {
	for _, r := range s.Results {
		if r.Result != nil && r.Result.Changed {
			return true
		}
	}
	return false
}

// Failed reports whether any resource failed.
func (s *Summary) Failed() bool {
	for _, r := range s.Results {
		if r.Err != nil {
			return true
		}
	}
	return false
}
