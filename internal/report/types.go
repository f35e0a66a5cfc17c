// Package report defines the run's typed output contract and writes the
// consolidated report, the per-case communications artifacts and the status
// artifact consumed by external monitoring.
package report

import "time"

// Address is the postal address block recovered from communications text.
type Address struct {
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// OnsiteService is the enrichment block for cases with an Onsite Service
// section. It is all-or-nothing: when the section is detected every field is
// present (possibly empty), and when it is not the whole block is absent.
type OnsiteService struct {
	TaskRef            string `json:"onsite_task_ref"`
	TaskID             string `json:"onsite_task_id"`
	SchedulingStatus   string `json:"onsite_scheduling_status"`
	LatestServiceStart string `json:"onsite_latest_service_start"`
	Engineer           string `json:"onsite_engineer"`
}

// CaseRecord is the canonical per-case output unit.
type CaseRecord struct {
	CaseNo      string  `json:"case_no"`
	Serial      string  `json:"serial"`
	HostName    string  `json:"host_name"`
	ContactName string  `json:"contact_name"`
	Address     Address `json:"address"`

	Status     string `json:"status"`
	Severity   string `json:"severity"`
	Product    string `json:"product"`
	ProductNo  string `json:"product_no"`
	Group      string `json:"group"`
	ActionPlan string `json:"action_plan"`

	LastUpdate  string `json:"hpe_last_update"`
	LastSubject string `json:"hpe_last_subject"`

	RequestCategory  string   `json:"hpe_request_category"`
	RequestSummary   string   `json:"hpe_request_summary"`
	RequestedActions []string `json:"hpe_requested_actions"`

	KeyLinks            []string `json:"hpe_key_links,omitempty"`
	EventIDs            []string `json:"event_ids,omitempty"`
	ProblemDescriptions []string `json:"problem_descriptions,omitempty"`
	AHSLinks            []string `json:"ahs_links,omitempty"`
	DropboxHosts        []string `json:"dropbox_hosts,omitempty"`
	DropboxLogins       []string `json:"dropbox_logins,omitempty"`

	Onsite *OnsiteService `json:"onsite,omitempty"`

	CommsFile   string    `json:"comms_file"`
	GeneratedAt time.Time `json:"generated_at"`
}

// RunError records a per-case failure. It never aborts the run; it is
// collected into the report's error list for external monitoring.
type RunError struct {
	CaseNo         string   `json:"case_no,omitempty"`
	Message        string   `json:"message"`
	DebugArtifacts []string `json:"debug_artifacts,omitempty"`
}

// Report is the consolidated machine-readable run output, written atomically
// once per run.
type Report struct {
	GeneratedAt time.Time    `json:"generated_at"`
	Cases       []CaseRecord `json:"cases"`
	Errors      []RunError   `json:"errors"`
}

// Status states for the StatusArtifact.
const (
	StateOK       = "OK"
	StateCritical = "CRITICAL"
)

// StatusArtifact is the sole health signal for external monitoring,
// overwritten on every run regardless of outcome.
type StatusArtifact struct {
	GeneratedAt time.Time `json:"generated_at"`
	State       string    `json:"state"`
	Message     string    `json:"message"`
}
