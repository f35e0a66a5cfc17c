package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"casewatch/internal/logging"
)

// Format selects the report projections to write.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatBoth = "both"
)

// Writer manages the run's output directory layout:
//
//	<out>/cases_overview.json
//	<out>/cases_overview.csv
//	<out>/status.json
//	<out>/cases/<case>_communications_redacted.txt
//	<out>/debug/...
type Writer struct {
	OutDir string
	log    *slog.Logger
}

// NewWriter creates the output directory tree.
func NewWriter(outDir string) (*Writer, error) {
	for _, d := range []string{outDir, filepath.Join(outDir, "cases"), filepath.Join(outDir, "debug")} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	return &Writer{OutDir: outDir, log: logging.New("report")}, nil
}

// DebugDir is where login and extraction failure artifacts go.
func (w *Writer) DebugDir() string { return filepath.Join(w.OutDir, "debug") }

// WriteComms writes the redacted communications artifact for one case and
// returns its path for the record's comms_file field.
func (w *Writer) WriteComms(caseNo, redacted string) (string, error) {
	path := filepath.Join(w.OutDir, "cases", caseNo+"_communications_redacted.txt")
	if err := os.WriteFile(path, []byte(redacted), 0o644); err != nil {
		return "", fmt.Errorf("write communications artifact: %w", err)
	}
	return path, nil
}

// WriteReport writes the consolidated report in the selected projections.
// Both projections are written atomically; a crash never leaves a partial
// report visible.
func (w *Writer) WriteReport(r *Report, format string) error {
	if format == FormatJSON || format == FormatBoth {
		if err := writeJSONAtomic(filepath.Join(w.OutDir, "cases_overview.json"), r); err != nil {
			return err
		}
	}
	if format == FormatCSV || format == FormatBoth {
		if err := w.writeCSV(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteStatus overwrites the status artifact. It is written on every run,
// success or failure, as the sole liveness signal for monitoring.
func (w *Writer) WriteStatus(s *StatusArtifact) error {
	return writeJSONAtomic(filepath.Join(w.OutDir, "status.json"), s)
}

// csvColumns is the stable flattened projection of cases. Onsite enrichment
// is JSON-only.
var csvColumns = []string{
	"case_no", "serial", "host_name", "contact_name",
	"addr_street", "addr_city", "addr_state", "addr_postal_code", "addr_country",
	"status", "severity", "product", "product_no", "group", "action_plan",
	"hpe_last_update", "hpe_last_subject", "hpe_request_category", "hpe_request_summary",
	"hpe_requested_actions", "hpe_key_links",
	"event_ids", "problem_descriptions", "ahs_links", "dropbox_hosts", "dropbox_logins",
	"comms_file", "generated_at",
}

func (w *Writer) writeCSV(r *Report) error {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(csvColumns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, c := range r.Cases {
		row := []string{
			c.CaseNo, c.Serial, c.HostName, c.ContactName,
			c.Address.Street, c.Address.City, c.Address.State, c.Address.PostalCode, c.Address.Country,
			c.Status, c.Severity, c.Product, c.ProductNo, c.Group, c.ActionPlan,
			c.LastUpdate, c.LastSubject, c.RequestCategory, c.RequestSummary,
			joinList(c.RequestedActions), joinList(c.KeyLinks),
			joinList(c.EventIDs), joinList(c.ProblemDescriptions), joinList(c.AHSLinks),
			joinList(c.DropboxHosts), joinList(c.DropboxLogins),
			c.CommsFile, c.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return writeFileAtomic(filepath.Join(w.OutDir, "cases_overview.csv"), buf.Bytes())
}

func joinList(items []string) string {
	return strings.Join(items, " | ")
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	return writeFileAtomic(path, data)
}

// writeFileAtomic stages the content in a temp file next to the target and
// renames it into place, so readers never observe a partial artifact.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", filepath.Base(path), err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp for %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp for %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
