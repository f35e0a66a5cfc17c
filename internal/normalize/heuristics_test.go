package normalize

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"casewatch/internal/report"
)

func TestFindHostName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain label", "System Name/Host Name: srv-db-01\nSerial: X", "srv-db-01"},
		{"host name label", "Host Name: node12.example.local", "node12.example.local"},
		{"glued sentence trimmed", "System Name: esxi-prod-07You will receive an update shortly", "esxi-prod-07"},
		{"cut phrase removed", "Host Name: gw-3 You can ignore the rest", "gw-3"},
		{"stop value rejected", "Host Name: none", ""},
		{"label missing", "Serial Number: CZ123", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindHostName(tt.in); got != tt.want {
				t.Errorf("FindHostName = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFindSalutationName(t *testing.T) {
	in := "Jun 5, 2026, 2:40 PM\nDear Jane Smith,\nplease find attached"
	if got := FindSalutationName(in); got != "Jane Smith" {
		t.Errorf("FindSalutationName = %q, want %q", got, "Jane Smith")
	}
	if got := FindSalutationName("no salutation"); got != "" {
		t.Errorf("FindSalutationName = %q, want empty", got)
	}
}

func TestExtractAddress(t *testing.T) {
	in := `Equipment Address:
Street: 1 Main St
City: Springfield
Province: IL
Zip: 62704
Country: US
Thank you
`
	want := report.Address{
		Street: "1 Main St", City: "Springfield",
		State: "IL", PostalCode: "62704", Country: "US",
	}
	if diff := cmp.Diff(want, ExtractAddress(in)); diff != "" {
		t.Errorf("ExtractAddress mismatch:\n%s", diff)
	}
}

func TestExtractAddress_NoMarker(t *testing.T) {
	got := ExtractAddress("Street: 1 Main St\nCity: Springfield\n")
	if diff := cmp.Diff(report.Address{}, got); diff != "" {
		t.Errorf("expected empty address without a marker:\n%s", diff)
	}
}

func TestExtractKeyLinks_Ranking(t *testing.T) {
	in := `see https://support.example.com/case/1
catalog https://ahscatalogsearch.example.com/?log=abc
upload to https://hprc.example.com/dropbox.
mirror https://other.example.org/x`
	got := ExtractKeyLinks(in, 3)
	want := []string{
		"https://hprc.example.com/dropbox",
		"https://ahscatalogsearch.example.com/?log=abc",
		"https://support.example.com/case/1",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ExtractKeyLinks mismatch:\n%s", diff)
	}
}

func TestExtractEventIDs(t *testing.T) {
	id := "123e4567-e89b-12d3-a456-426614174000"
	in := "Event Id: " + id + "\nEvent Id: " + id + "\n"
	got := ExtractEventIDs(in)
	if len(got) != 1 || got[0] != id {
		t.Errorf("ExtractEventIDs = %v, want [%s]", got, id)
	}
}

func TestExtractProblemDescriptions(t *testing.T) {
	in := "Problem Description: fan failure on node 3\nProblem Description: fan failure on node 3\nProblem Description: psu degraded\n"
	got := ExtractProblemDescriptions(in, 5)
	want := []string{"fan failure on node 3", "psu degraded"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ExtractProblemDescriptions mismatch:\n%s", diff)
	}
}

func TestExtractDropboxInfo(t *testing.T) {
	in := `Please upload to https://hprc3.example.com/upload
Login: svc_case123
Password: secret
Also see https://support.example.com/other
`
	hosts, logins := ExtractDropboxInfo(in)
	if diff := cmp.Diff([]string{"hprc3.example.com"}, hosts); diff != "" {
		t.Errorf("hosts mismatch:\n%s", diff)
	}
	if diff := cmp.Diff([]string{"svc_case123"}, logins); diff != "" {
		t.Errorf("logins mismatch:\n%s", diff)
	}
}
