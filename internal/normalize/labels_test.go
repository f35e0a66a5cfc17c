package normalize

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

var testLabels = map[string][]string{
	"status":   {"Status", "Case Status"},
	"serial":   {"Serial Number", "Serial"},
	"severity": {"Severity"},
}

func TestParseLinePairs(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want map[string]string
	}{
		{
			name: "same line layout",
			in:   "Status: Open\nSerial Number: CZ12345678\n",
			want: map[string]string{"status": "Open", "serial": "CZ12345678"},
		},
		{
			name: "label then next line layout",
			in:   "Severity\n\nSev 2\nStatus\nOpen - Action\n",
			want: map[string]string{"severity": "Sev 2", "status": "Open - Action"},
		},
		{
			name: "first value wins",
			in:   "Status: Open\nCase Status: Closed\n",
			want: map[string]string{"status": "Open"},
		},
		{
			name: "placeholder dash skipped",
			in:   "Serial\n-\nStatus: Open\n",
			want: map[string]string{"status": "Open"},
		},
		{
			name: "adjacent label stops value search",
			in:   "Serial\nStatus\nOpen\n",
			want: map[string]string{"status": "Open"},
		},
		{
			name: "unknown labels ignored",
			in:   "Contract: 123\nStatus: Open\n",
			want: map[string]string{"status": "Open"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLinePairs(tt.in, testLabels)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseLinePairs mismatch:\n%s", diff)
			}
		})
	}
}
