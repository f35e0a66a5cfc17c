// Package selectors holds the externally editable text-pattern document that
// drives portal interaction: indicator text sets, CSS selector lists, the
// label-mapping table and the category rule table. Portal UI or language
// changes are absorbed here, never in code.
package selectors

import (
	"fmt"
	"regexp"
	"strings"
)

// Config is the full selector/pattern document. Every list is matched in
// order; the first visible hit wins.
type Config struct {
	HomeURL   string `yaml:"home_url"`
	CasesURL  string `yaml:"cases_url"`
	SigninURL string `yaml:"signin_url"`

	// Session state indicators. Ready and expired sets must be disjoint.
	ReadyTextAny          []string `yaml:"ready_text_any"`
	SessionExpiredTextAny []string `yaml:"session_expired_text_any"`
	AuthenticatingTextAny []string `yaml:"authenticating_text_any"`
	SignoutTextAny        []string `yaml:"signout_text_any"`
	LoggedOutTextAny      []string `yaml:"logged_out_text_any"`
	AuthPageTextAny       []string `yaml:"auth_page_text_any"`

	// Login form selectors. Username/password may live on separate steps or
	// inside an identity-provider frame.
	SigninTriggerAny []string `yaml:"signin_trigger_any"`
	LoginUsernameAny []string `yaml:"login_username_any"`
	LoginPasswordAny []string `yaml:"login_password_any"`
	LoginNextAny     []string `yaml:"login_next_any"`
	LoginSubmitAny   []string `yaml:"login_submit_any"`
	CookieAcceptAny  []string `yaml:"cookie_accept_any"`

	// Case list and per-case navigation.
	CasePattern          string   `yaml:"case_pattern"`
	CaseListContainerAny []string `yaml:"case_list_container_any"`
	CaseSearchInputAny   []string `yaml:"case_search_input_any"`

	// Case detail tabs and communications affordances. The label fields are
	// the visible-text fallbacks used when no selector in the matching list
	// resolves, so a localized portal only needs the document edited.
	TabDetailsAny          []string `yaml:"tab_details_any"`
	TabDetailsLabel        string   `yaml:"tab_details_label"`
	TabCommunicationsAny   []string `yaml:"tab_communications_any"`
	TabCommunicationsLabel string   `yaml:"tab_communications_label"`
	TabOnsiteAny           []string `yaml:"tab_onsite_any"`
	TabOnsiteLabel         string   `yaml:"tab_onsite_label"`
	ExpandAllAny           []string `yaml:"expand_all_any"`
	ReadMoreAny            []string `yaml:"read_more_any"`
	CommsPanelHintAny      []string `yaml:"comms_panel_hint_any"`
	DetailsPanelHintAny    []string `yaml:"details_panel_hint_any"`
	OnsiteMarkerAny        []string `yaml:"onsite_marker_any"`

	// Labels maps a canonical field name to the raw label spellings observed
	// in the portal, localized variants included.
	Labels map[string][]string `yaml:"labels"`

	// Rules is the ordered category rule table. First match wins, so more
	// specific keyword rules come before generic status-only rules.
	Rules []CategoryRule `yaml:"rules"`

	casePattern *regexp.Regexp
}

// CategoryRule assigns a request category when its predicates hold. A rule
// matches when every status_all substring appears in the status text, at
// least one status_any substring appears (if the list is non-empty), every
// comms_all substring appears in the communications text and at least one
// comms_any substring appears (if the list is non-empty). All matching is
// case-insensitive.
type CategoryRule struct {
	Category  string        `yaml:"category"`
	StatusAll []string      `yaml:"status_all,omitempty"`
	StatusAny []string      `yaml:"status_any,omitempty"`
	CommsAll  []string      `yaml:"comms_all,omitempty"`
	CommsAny  []string      `yaml:"comms_any,omitempty"`
	Summary   string        `yaml:"summary"`
	Actions   []string      `yaml:"actions"`
	Extras    []ExtraAction `yaml:"extras,omitempty"`
}

// ExtraAction appends an additional requested action when its communications
// predicate holds on top of a matched rule.
type ExtraAction struct {
	CommsAny []string `yaml:"comms_any"`
	Action   string   `yaml:"action"`
}

// Matches reports whether the extra action applies to the given lowercased
// communications text.
func (x *ExtraAction) Matches(comms string) bool {
	if len(x.CommsAny) == 0 {
		return false
	}
	return anySubstring(comms, x.CommsAny)
}

// Matches reports whether the rule applies to the given status and
// communications text. Inputs are expected to be lowercased by the caller.
func (r *CategoryRule) Matches(status, comms string) bool {
	if len(r.StatusAll) == 0 && len(r.StatusAny) == 0 &&
		len(r.CommsAll) == 0 && len(r.CommsAny) == 0 {
		return false
	}
	for _, s := range r.StatusAll {
		if !strings.Contains(status, strings.ToLower(s)) {
			return false
		}
	}
	if !anySubstring(status, r.StatusAny) {
		return false
	}
	for _, s := range r.CommsAll {
		if !strings.Contains(comms, strings.ToLower(s)) {
			return false
		}
	}
	return anySubstring(comms, r.CommsAny)
}

func anySubstring(text string, needles []string) bool {
	if len(needles) == 0 {
		return true
	}
	for _, n := range needles {
		if strings.Contains(text, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

// CaseRegexp returns the compiled case identifier pattern. Validate must have
// succeeded first.
func (c *Config) CaseRegexp() *regexp.Regexp {
	return c.casePattern
}

// Validate checks the document for the mistakes that would otherwise surface
// mid-run: empty indicator sets, overlapping ready/expired indicators, a case
// pattern without a capture group, rules without predicates. Omitted tab
// labels fall back to the portal's English defaults.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.HomeURL) == "" {
		return fmt.Errorf("selectors: home_url is required")
	}
	if strings.TrimSpace(c.CasesURL) == "" {
		return fmt.Errorf("selectors: cases_url is required")
	}
	if strings.TrimSpace(c.SigninURL) == "" {
		return fmt.Errorf("selectors: signin_url is required")
	}
	if len(c.ReadyTextAny) == 0 {
		return fmt.Errorf("selectors: ready_text_any must not be empty")
	}
	if len(c.SessionExpiredTextAny) == 0 {
		return fmt.Errorf("selectors: session_expired_text_any must not be empty")
	}
	for _, ready := range c.ReadyTextAny {
		for _, expired := range c.SessionExpiredTextAny {
			if strings.EqualFold(ready, expired) {
				return fmt.Errorf("selectors: %q appears in both ready and expired indicator sets", ready)
			}
		}
	}

	if c.TabDetailsLabel == "" {
		c.TabDetailsLabel = "Details"
	}
	if c.TabCommunicationsLabel == "" {
		c.TabCommunicationsLabel = "Communications"
	}
	if c.TabOnsiteLabel == "" {
		c.TabOnsiteLabel = "Onsite Service"
	}

	if strings.TrimSpace(c.CasePattern) == "" {
		return fmt.Errorf("selectors: case_pattern is required")
	}
	rx, err := regexp.Compile(c.CasePattern)
	if err != nil {
		return fmt.Errorf("selectors: compile case_pattern: %w", err)
	}
	if rx.NumSubexp() < 1 {
		return fmt.Errorf("selectors: case_pattern needs a capture group for the case number")
	}
	c.casePattern = rx

	if len(c.Labels) == 0 {
		return fmt.Errorf("selectors: labels table must not be empty")
	}
	for key, variants := range c.Labels {
		if len(variants) == 0 {
			return fmt.Errorf("selectors: label %q has no variants", key)
		}
	}

	for i, r := range c.Rules {
		if strings.TrimSpace(r.Category) == "" {
			return fmt.Errorf("selectors: rule %d has no category", i)
		}
		if len(r.StatusAll) == 0 && len(r.StatusAny) == 0 &&
			len(r.CommsAll) == 0 && len(r.CommsAny) == 0 {
			return fmt.Errorf("selectors: rule %d (%s) has no predicates", i, r.Category)
		}
	}
	return nil
}
