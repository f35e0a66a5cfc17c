package normalize

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"casewatch/internal/selectors"
)

var testRules = []selectors.CategoryRule{
	{
		Category:  CategoryCloseApproval,
		StatusAll: []string{"approve", "closure"},
		Summary:   "Closure approval requested",
		Actions:   []string{"Approve or reject the case closure"},
	},
	{
		Category: CategoryLogRequest,
		CommsAny: []string{"please upload", "attach the logs"},
		Summary:  "Log upload requested",
		Actions:  []string{"Collect and upload the requested logs"},
		Extras: []selectors.ExtraAction{
			{CommsAny: []string{"reply all"}, Action: "Reply to all recipients"},
		},
	},
	{
		Category:  CategoryInProgress,
		StatusAny: []string{"in progress"},
		Summary:   "Case is being worked",
		Actions:   []string{"No action needed"},
	},
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		status string
		comms  string
		want   Classification
	}{
		{
			name:   "status rule first match",
			status: "Open - Approve Case Closure",
			comms:  "please upload the logs",
			want: Classification{
				Category: CategoryCloseApproval,
				Summary:  "Closure approval requested",
				Actions:  []string{"Approve or reject the case closure"},
			},
		},
		{
			name:   "comms rule with extra action",
			status: "Open",
			comms:  "Please upload the AHS bundle and reply all.",
			want: Classification{
				Category: CategoryLogRequest,
				Summary:  "Log upload requested",
				Actions:  []string{"Collect and upload the requested logs", "Reply to all recipients"},
			},
		},
		{
			name:   "generic status rule",
			status: "Open - In Progress",
			comms:  "",
			want: Classification{
				Category: CategoryInProgress,
				Summary:  "Case is being worked",
				Actions:  []string{"No action needed"},
			},
		},
		{
			name:   "no match falls back to unknown",
			status: "Open",
			comms:  "nothing actionable",
			want: Classification{
				Category: CategoryUnknown,
				Summary:  "Could not infer the requested action from the case",
				Actions:  []string{"Review the case manually"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.status, tt.comms, testRules)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Classify mismatch:\n%s", diff)
			}
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	first := Classify("Open - In Progress", "some text", testRules)
	for i := 0; i < 5; i++ {
		if diff := cmp.Diff(first, Classify("Open - In Progress", "some text", testRules)); diff != "" {
			t.Fatalf("classification varied across identical inputs:\n%s", diff)
		}
	}
}
