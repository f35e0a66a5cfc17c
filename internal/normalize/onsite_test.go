package normalize

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"casewatch/internal/report"
)

func TestOnsiteFromComms(t *testing.T) {
	comms := `An Onsite task (5381234567-1) has been created.
Task ID: 78901
Mario Rossi is on the way to your location.
`
	svc, detected := OnsiteFromComms(comms)
	if !detected {
		t.Fatal("expected onsite detection")
	}
	want := report.OnsiteService{TaskRef: "5381234567-1", TaskID: "78901", Engineer: "Mario Rossi"}
	if diff := cmp.Diff(want, svc); diff != "" {
		t.Errorf("OnsiteFromComms mismatch:\n%s", diff)
	}
}

func TestOnsiteFromComms_NotDetected(t *testing.T) {
	if _, detected := OnsiteFromComms("please upload the logs"); detected {
		t.Error("unexpected onsite detection")
	}
	if _, detected := OnsiteFromComms(""); detected {
		t.Error("unexpected onsite detection on empty text")
	}
}

func TestParseOnsiteKV(t *testing.T) {
	panel := "Onsite Service\nTask ID 78901\nScheduling Status Scheduled\nLatest Service Start Jun 9, 2026, 8:00 AM\n"
	got := ParseOnsiteKV(panel)
	want := report.OnsiteService{
		TaskID:             "78901",
		SchedulingStatus:   "Scheduled",
		LatestServiceStart: "Jun 9, 2026, 8:00 AM",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseOnsiteKV mismatch:\n%s", diff)
	}
}

func TestMergeOnsite_PanelWins(t *testing.T) {
	fromComms := report.OnsiteService{TaskID: "111", Engineer: "Mario Rossi"}
	fromPanel := report.OnsiteService{TaskID: "222", SchedulingStatus: "Scheduled"}
	got := MergeOnsite(fromComms, fromPanel)
	want := report.OnsiteService{TaskID: "222", SchedulingStatus: "Scheduled", Engineer: "Mario Rossi"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MergeOnsite mismatch:\n%s", diff)
	}
}
