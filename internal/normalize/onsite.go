package normalize

import (
	"regexp"
	"strings"

	"casewatch/internal/report"
)

var (
	onsiteEngineerRx = regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+)+)\s+is\s+on\s+the\s+way\s+to\s+your\s+location\b`)
	onsiteTaskRefRx  = regexp.MustCompile(`(?i)\bonsite\s+task\s*\(\s*([0-9]{7,12}-[0-9]{1,4})\s*\)`)
	onsiteTaskIDRx   = regexp.MustCompile(`(?i)\bTask\s*ID\s*[:\s]+([0-9]{4,})\b`)

	onsiteKVTaskIDRx     = regexp.MustCompile(`(?i)Task\s*ID\s+([0-9]{4,})`)
	onsiteKVSchedulingRx = regexp.MustCompile(`(?i)Scheduling\s+Status\s+([A-Za-z][A-Za-z \-]{0,40})`)
	onsiteKVStartRx      = regexp.MustCompile(`(?i)Latest\s+Service\s+Start(?:\s+Date)?\s+((?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+\d{1,2},?\s+\d{4}(?:,?\s+\d{1,2}:\d{2}\s*(?:AM|PM))?)`)
)

// OnsiteFromComms mines communications text for evidence of a field service
// visit. The returned struct is partial; absence of a field means the text
// never mentioned it.
func OnsiteFromComms(comms string) (report.OnsiteService, bool) {
	var svc report.OnsiteService
	if comms == "" {
		return svc, false
	}
	low := strings.ToLower(comms)
	detected := strings.Contains(low, "onsite") || strings.Contains(low, "on the way to your location")
	if !detected {
		return svc, false
	}
	if m := onsiteEngineerRx.FindStringSubmatch(comms); m != nil {
		svc.Engineer = m[1]
	}
	if m := onsiteTaskRefRx.FindStringSubmatch(comms); m != nil {
		svc.TaskRef = m[1]
	}
	if m := onsiteTaskIDRx.FindStringSubmatch(comms); m != nil {
		svc.TaskID = m[1]
	}
	return svc, true
}

// ParseOnsiteKV pulls the structured fields from the dedicated onsite panel
// text, where labels and values render space-separated rather than on colon
// lines.
func ParseOnsiteKV(text string) report.OnsiteService {
	var svc report.OnsiteService
	if text == "" {
		return svc
	}
	if m := onsiteKVTaskIDRx.FindStringSubmatch(text); m != nil {
		svc.TaskID = m[1]
	}
	if m := onsiteKVSchedulingRx.FindStringSubmatch(text); m != nil {
		svc.SchedulingStatus = strings.TrimSpace(m[1])
	}
	if m := onsiteKVStartRx.FindStringSubmatch(text); m != nil {
		svc.LatestServiceStart = strings.TrimSpace(m[1])
	}
	return svc
}

// MergeOnsite overlays panel-derived fields onto communications-derived ones.
// Panel values win because the panel is the authoritative widget.
func MergeOnsite(fromComms, fromPanel report.OnsiteService) report.OnsiteService {
	out := fromComms
	if fromPanel.TaskRef != "" {
		out.TaskRef = fromPanel.TaskRef
	}
	if fromPanel.TaskID != "" {
		out.TaskID = fromPanel.TaskID
	}
	if fromPanel.SchedulingStatus != "" {
		out.SchedulingStatus = fromPanel.SchedulingStatus
	}
	if fromPanel.LatestServiceStart != "" {
		out.LatestServiceStart = fromPanel.LatestServiceStart
	}
	if fromPanel.Engineer != "" {
		out.Engineer = fromPanel.Engineer
	}
	return out
}
