package normalize

import (
	"strings"
	"testing"
	"time"

	"casewatch/internal/extract"
	"casewatch/internal/selectors"
)

const rawDetails = `Case 5381234567
Status: Open - In Progress
Severity
Sev 2
Serial Number: CZ20480ABC
Product: ProLiant DL380 Gen11
Product Number: P12345-B21
Group: Datacenter West
`

const rawComms = `Jun 3, 2026, 9:15 AM
Customer
uploaded requested files
Login: svc_upl
Password: hunter2

Jun 5, 2026, 2:40 PM
Hewlett Packard Enterprise
Subject

Case 5381234567 Update
Dear Jane Smith,
Host Name: srv-db-01
Problem Description: fan failure on node 3
Please see https://support.example.com/case/5381234567
Best regards,
Support Engineer
`

func newTestNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	return NewNormalizer(selectors.Default())
}

func TestNormalize(t *testing.T) {
	n := newTestNormalizer(t)
	raw := &extract.RawCase{CaseNo: "5381234567", DetailsText: rawDetails, CommsText: rawComms}
	now := time.Date(2026, 6, 5, 15, 0, 0, 0, time.UTC)

	rec, redacted := n.Normalize(raw, now)

	if rec.CaseNo != "5381234567" {
		t.Errorf("CaseNo = %q", rec.CaseNo)
	}
	if rec.Status != "Open - In Progress" {
		t.Errorf("Status = %q", rec.Status)
	}
	if rec.Severity != "Sev 2" {
		t.Errorf("Severity = %q", rec.Severity)
	}
	if rec.Serial != "CZ20480ABC" {
		t.Errorf("Serial = %q", rec.Serial)
	}
	if rec.ProductNo != "P12345-B21" {
		t.Errorf("ProductNo = %q", rec.ProductNo)
	}
	if rec.HostName != "srv-db-01" {
		t.Errorf("HostName = %q", rec.HostName)
	}
	if rec.ContactName != "Jane Smith" {
		t.Errorf("ContactName = %q", rec.ContactName)
	}
	if rec.LastUpdate != "Jun 5, 2026, 2:40 PM" {
		t.Errorf("LastUpdate = %q", rec.LastUpdate)
	}
	if rec.LastSubject != "Case 5381234567 Update" {
		t.Errorf("LastSubject = %q", rec.LastSubject)
	}
	if rec.RequestCategory != CategoryInProgress {
		t.Errorf("RequestCategory = %q", rec.RequestCategory)
	}
	if len(rec.KeyLinks) == 0 || rec.KeyLinks[0] != "https://support.example.com/case/5381234567" {
		t.Errorf("KeyLinks = %v", rec.KeyLinks)
	}
	if len(rec.ProblemDescriptions) != 1 || rec.ProblemDescriptions[0] != "fan failure on node 3" {
		t.Errorf("ProblemDescriptions = %v", rec.ProblemDescriptions)
	}
	if rec.Onsite != nil {
		t.Errorf("Onsite = %+v, want absent", rec.Onsite)
	}
	if !rec.GeneratedAt.Equal(now) {
		t.Errorf("GeneratedAt = %v", rec.GeneratedAt)
	}
	if strings.Contains(redacted, "hunter2") {
		t.Error("secret survived in redacted communications")
	}
	if !strings.Contains(redacted, "Login: svc_upl") {
		t.Error("login should survive redaction")
	}
}

func TestNormalize_OnsiteUpgradesGenericCategory(t *testing.T) {
	n := newTestNormalizer(t)
	comms := rawComms + "\nJun 6, 2026, 8:00 AM\nAn Onsite task (5381234567-1) has been created.\nMario Rossi is on the way to your location.\n"
	raw := &extract.RawCase{
		CaseNo:      "5381234567",
		DetailsText: rawDetails,
		CommsText:   comms,
		OnsiteText:  "Task ID 78901\nScheduling Status Scheduled\n",
	}

	rec, _ := n.Normalize(raw, time.Now().UTC())

	if rec.RequestCategory != CategoryOnsiteService {
		t.Errorf("RequestCategory = %q, want %q", rec.RequestCategory, CategoryOnsiteService)
	}
	if rec.Onsite == nil {
		t.Fatal("Onsite block missing")
	}
	if rec.Onsite.TaskRef != "5381234567-1" {
		t.Errorf("TaskRef = %q", rec.Onsite.TaskRef)
	}
	if rec.Onsite.TaskID != "78901" {
		t.Errorf("TaskID = %q", rec.Onsite.TaskID)
	}
	if rec.Onsite.SchedulingStatus != "Scheduled" {
		t.Errorf("SchedulingStatus = %q", rec.Onsite.SchedulingStatus)
	}
	if rec.Onsite.Engineer != "Mario Rossi" {
		t.Errorf("Engineer = %q", rec.Onsite.Engineer)
	}
}

func TestNormalize_OnsiteKeepsSpecificCategory(t *testing.T) {
	n := newTestNormalizer(t)
	details := strings.Replace(rawDetails, "Open - In Progress", "Open - Approve Case Closure", 1)
	raw := &extract.RawCase{
		CaseNo:        "5381234567",
		DetailsText:   details,
		CommsText:     rawComms + "\nonsite service was completed yesterday\n",
		OnsitePresent: true,
	}

	rec, _ := n.Normalize(raw, time.Now().UTC())

	if rec.RequestCategory != CategoryCloseApproval {
		t.Errorf("RequestCategory = %q, want %q", rec.RequestCategory, CategoryCloseApproval)
	}
	if rec.Onsite == nil {
		t.Error("Onsite block missing despite detected section")
	}
	if rec.ActionPlan != "Approve case closure" {
		t.Errorf("ActionPlan = %q", rec.ActionPlan)
	}
}

func TestDeriveActionPlan(t *testing.T) {
	tests := []struct {
		status string
		want   string
	}{
		{"Open - Complete Action Plan", "Complete action plan"},
		{"Open - Approve Case Closure", "Approve case closure"},
		{"Open - In Progress", ""},
	}
	for _, tt := range tests {
		if got := deriveActionPlan(tt.status); got != tt.want {
			t.Errorf("deriveActionPlan(%q) = %q, want %q", tt.status, got, tt.want)
		}
	}
}
