// Package validation runs data-quality checks against the loaded star schema.
package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/sparkify/dwh/internal/queries"
	"github.com/sparkify/dwh/internal/warehouse"
)

const (
	StatusPassed = "passed"
	StatusFailed = "failed"
)

// Result holds the outcome of a validation pass.
type Result struct {
	Status      string        `json:"status"` // passed, failed
	Checks      []CheckResult `json:"checks"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
}

// CheckResult holds the outcome of a single check.
type CheckResult struct {
	Name     string        `json:"name"`
	Table    string        `json:"table"`
	Count    int64         `json:"count"`
	Enforced bool          `json:"enforced"` // false for row counts and warning checks
	Passed   bool          `json:"passed"`
	Warning  bool          `json:"warning,omitempty"` // violated, but the check only warns
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"` // set when the check query itself failed
}

// Validator performs post-load validation.
type Validator struct {
	Session  warehouse.Session
	Checks   []queries.Check // defaults to queries.Checks()
	Callback func(check CheckResult)
}

// Validate runs every check in order. A query error is reported to Callback
// and aborts the pass; a violated check only marks the result failed, and a
// violated warning check leaves it passed.
func (v *Validator) Validate(ctx context.Context) (*Result, error) {
	checks := v.Checks
	if checks == nil {
		checks = queries.Checks()
	}

	result := &Result{StartedAt: time.Now()}
	for _, c := range checks {
		start := time.Now()
		n, err := v.Session.QueryInt(ctx, c.SQL)
		if err != nil {
			if v.Callback != nil {
				v.Callback(CheckResult{
					Name:     c.Name,
					Table:    c.Table,
					Enforced: c.MustBeZero && !c.Warn,
					Message:  err.Error(),
					Duration: time.Since(start),
					Err:      err,
				})
			}
			return nil, fmt.Errorf("check %s: %w", c.Name, err)
		}

		violated := c.MustBeZero && n != 0
		cr := CheckResult{
			Name:     c.Name,
			Table:    c.Table,
			Count:    n,
			Enforced: c.MustBeZero && !c.Warn,
			Passed:   !violated || c.Warn,
			Warning:  violated && c.Warn,
			Duration: time.Since(start),
		}
		if violated {
			cr.Message = fmt.Sprintf("%d violating row(s) in %s", n, c.Table)
		}
		result.Checks = append(result.Checks, cr)

		if v.Callback != nil {
			v.Callback(cr)
		}
	}

	result.CompletedAt = time.Now()
	result.Status = computeOverallStatus(result.Checks)
	return result, nil
}

// Failed returns the checks that did not pass.
func (r *Result) Failed() []CheckResult {
	var out []CheckResult
	for _, c := range r.Checks {
		if !c.Passed {
			out = append(out, c)
		}
	}
	return out
}

// Warnings returns the warning checks that found violations.
func (r *Result) Warnings() []CheckResult {
	var out []CheckResult
	for _, c := range r.Checks {
		if c.Warning {
			out = append(out, c)
		}
	}
	return out
}

func computeOverallStatus(checks []CheckResult) string {
	for _, c := range checks {
		if !c.Passed {
			return StatusFailed
		}
	}
	return StatusPassed
}
