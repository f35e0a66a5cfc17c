package normalize

import (
	"strings"

	"casewatch/internal/selectors"
)

// Request categories, ordered roughly by operator urgency. The rule table in
// the selector document decides which one applies; UNKNOWN is the fallback
// when no rule matches.
const (
	CategoryUnknown       = "UNKNOWN"
	CategoryActionPlan    = "ACTION_PLAN"
	CategoryCloseApproval = "CLOSE_APPROVAL"
	CategoryLogRequest    = "LOG_REQUEST"
	CategoryOnsiteService = "ONSITE_SERVICE"
	CategoryInProgress    = "IN_PROGRESS"
	CategoryAwaiting      = "AWAITING"
)

// Classification is the category verdict for one case.
type Classification struct {
	Category string
	Summary  string
	Actions  []string
}

// Classify runs the ordered rule table against the status line and the
// communications text. First match wins; a matched rule's extras can append
// further actions. Identical inputs always yield identical output.
func Classify(status, comms string, rules []selectors.CategoryRule) Classification {
	lowStatus := strings.ToLower(status)
	lowComms := strings.ToLower(comms)
	for i := range rules {
		r := &rules[i]
		if !r.Matches(lowStatus, lowComms) {
			continue
		}
		cls := Classification{
			Category: r.Category,
			Summary:  r.Summary,
			Actions:  append([]string(nil), r.Actions...),
		}
		for j := range r.Extras {
			if r.Extras[j].Matches(lowComms) {
				cls.Actions = append(cls.Actions, r.Extras[j].Action)
			}
		}
		return cls
	}
	return Classification{
		Category: CategoryUnknown,
		Summary:  "Could not infer the requested action from the case",
		Actions:  []string{"Review the case manually"},
	}
}
