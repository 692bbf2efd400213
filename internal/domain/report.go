package domain

import "fmt"

// Per-entity-type counters for one tenant's run.
type EntityCounts struct {
	Found    int
	Upserted int
	Inserted int
	Deleted  int
	Restored int
}

// TenantReport is the result value of one tenant's sync. No error
// escapes a tenant run; everything aggregates here.
type TenantReport struct {
	TenantID int64

	// The tenant's checkpoint is fresher than its sync cadence;
	// nothing below ran.
	Skipped bool

	Orders    EntityCounts
	Shipments EntityCounts
	Items     EntityCounts
	Cartons   EntityCounts
	Returns   EntityCounts
	Receiving EntityCounts

	TimelinePolled  int
	TimelineSkipped int

	TransactionsFound int
	// Transactions resolved to this tenant during the run's
	// attribution pass, regardless of which tenant's fetch stage
	// brought them in.
	TransactionsAttributed int

	Errors []string
}

// Failed reports whether this tenant's run recorded any errors.
func (r *TenantReport) Failed() bool {
	return len(r.Errors) > 0
}

// Errorf appends a formatted error string to the report.
func (r *TenantReport) Errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// RunReport aggregates all tenant reports for one invocation, plus
// the run-level attribution pass that no single tenant owns.
type RunReport struct {
	RunID   string
	Tenants []TenantReport

	// Totals across the whole backlog. Attributed rows also land on
	// their owning tenant's report; unattributed rows belong to no
	// tenant and only count here.
	TransactionsAttributed   int
	TransactionsUnattributed int

	// Failures of run-level stages (tenant loading, index builds,
	// attribution writes).
	Errors []string
}

// Errorf appends a formatted run-level error string.
func (r *RunReport) Errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Failed reports whether any run-level stage or any tenant's run
// failed. One tenant's failure never fails the others.
func (r *RunReport) Failed() bool {
	if len(r.Errors) > 0 {
		return true
	}
	for i := range r.Tenants {
		if r.Tenants[i].Failed() {
			return true
		}
	}
	return false
}
