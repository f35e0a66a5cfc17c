package normalize

import (
	"strings"
	"time"

	"casewatch/internal/extract"
	"casewatch/internal/report"
	"casewatch/internal/selectors"
)

// Normalizer converts a RawCase into the typed CaseRecord plus the redacted
// communications text destined for the per-case artifact.
type Normalizer struct {
	cfg *selectors.Config
}

// NewNormalizer returns a Normalizer driven by the given selector document.
func NewNormalizer(cfg *selectors.Config) *Normalizer {
	return &Normalizer{cfg: cfg}
}

// Normalize is pure: it never touches the browser and never fails. Missing
// fields stay empty and an unmatched rule table degrades to UNKNOWN.
func (n *Normalizer) Normalize(raw *extract.RawCase, generatedAt time.Time) (report.CaseRecord, string) {
	details := Redact(raw.DetailsText)
	comms := Redact(raw.CommsText)

	fields := ParseLinePairs(details, n.cfg.Labels)
	// Fields missing from the details panel occasionally surface in the
	// communications text instead.
	for key, val := range ParseLinePairs(comms, n.cfg.Labels) {
		setDefault(fields, key, val)
	}

	rec := report.CaseRecord{
		CaseNo:      raw.CaseNo,
		Serial:      fields["serial"],
		Status:      fields["status"],
		Severity:    fields["severity"],
		Product:     fields["product"],
		ProductNo:   fields["product_no"],
		Group:       fields["group"],
		GeneratedAt: generatedAt,
	}

	msgs := SplitMessages(comms)
	lastBody := ""
	if last, ok := PickLastVendorMessage(msgs); ok {
		rec.LastUpdate = last.Timestamp
		rec.LastSubject = ExtractSubject(last.Body)
		lastBody = last.Body
	}

	rec.HostName = FindHostName(comms)
	rec.ContactName = FindSalutationName(comms)
	rec.Address = ExtractAddress(comms)
	rec.EventIDs = ExtractEventIDs(comms)
	rec.ProblemDescriptions = ExtractProblemDescriptions(comms, 5)
	rec.AHSLinks = ExtractAHSLinks(comms, 5)
	rec.DropboxHosts, rec.DropboxLogins = ExtractDropboxInfo(comms)

	// Key links come from the last vendor message when it has any; the full
	// thread is the fallback so a stale link beats no link.
	rec.KeyLinks = ExtractKeyLinks(lastBody, 5)
	if len(rec.KeyLinks) == 0 {
		rec.KeyLinks = ExtractKeyLinks(comms, 5)
	}

	cls := Classify(rec.Status, comms, n.cfg.Rules)
	rec.RequestCategory = cls.Category
	rec.RequestSummary = cls.Summary
	rec.RequestedActions = cls.Actions

	fromComms, detected := OnsiteFromComms(comms)
	onsiteHinted := detected ||
		raw.OnsitePresent ||
		cls.Category == CategoryOnsiteService ||
		strings.Contains(strings.ToLower(rec.LastSubject), "onsite")
	if onsiteHinted {
		svc := MergeOnsite(fromComms, ParseOnsiteKV(Redact(raw.OnsiteText)))
		rec.Onsite = &svc

		// A field visit supersedes the generic progress categories, but a
		// specific request (closure approval, log upload, action plan) keeps
		// its category so the operator still sees what is asked of them.
		switch cls.Category {
		case CategoryInProgress, CategoryAwaiting, CategoryUnknown:
			if rule := n.onsiteRule(); rule != nil {
				rec.RequestCategory = CategoryOnsiteService
				rec.RequestSummary = rule.Summary
				rec.RequestedActions = append([]string(nil), rule.Actions...)
			}
		}
	}

	rec.ActionPlan = deriveActionPlan(rec.Status)
	return rec, comms
}

func (n *Normalizer) onsiteRule() *selectors.CategoryRule {
	for i := range n.cfg.Rules {
		if n.cfg.Rules[i].Category == CategoryOnsiteService {
			return &n.cfg.Rules[i]
		}
	}
	return nil
}

// deriveActionPlan condenses the status line into the short imperative the
// overview column shows.
func deriveActionPlan(status string) string {
	low := strings.ToLower(status)
	switch {
	case strings.Contains(low, "complete action plan"):
		return "Complete action plan"
	case strings.Contains(low, "approve case closure"), strings.Contains(low, "approve closure"):
		return "Approve case closure"
	default:
		return ""
	}
}
