package normalize

import (
	"regexp"
	"sort"
	"strings"

	"casewatch/internal/report"
)

var (
	urlRx       = regexp.MustCompile(`(?i)https?://[^\s)\]}>"']+`)
	hostLineRx  = regexp.MustCompile(`(?i)^\s*(System Name/Host Name|System Name|Host Name)\s*:\s*(.*?)\s*$`)
	hostFullRx  = regexp.MustCompile(`(?is)(System\s*Name/Host\s*Name|Host\s*Name|System\s*Name)\s*:\s*([^\r\n]{0,200})`)
	hostTokenRx = regexp.MustCompile(`[A-Za-z0-9][A-Za-z0-9._-]{2,}`)
	// The portal sometimes glues the next sentence onto the hostname without
	// a newline; trailing letters after the last digit are trimmed back.
	hostGluedRx = regexp.MustCompile(`^([A-Za-z0-9._-]*\d)[A-Za-z]{2,}$`)

	salutationRx  = regexp.MustCompile(`(?im)^\s*Dear\s+(.+?),\s*$`)
	addressKVRx   = regexp.MustCompile(`(?i)^\s*(Street|City|State|Province|Postal Code|Postcode|Zip|Country)\s*:\s*(.+?)\s*$`)
	eventIDRx     = regexp.MustCompile(`\bEvent Id:\s*([0-9a-fA-F-]{36})\b`)
	problemRx     = regexp.MustCompile(`(?i)\bProblem Description:\s*([^\r\n]{3,300})`)
	ahsLinkRx     = regexp.MustCompile(`(?i)https?://ahscatalogsearch\.[^\s)\]}>"']*log=[^\s)\]}>"']+`)
	dropboxHostRx = regexp.MustCompile(`(?i)^https?://([^/]+)/?`)
	loginRx       = regexp.MustCompile(`(?i)\bLogin:\s*([A-Za-z0-9._-]{3,32})\b`)
)

var hostStopValues = map[string]bool{
	"problem": true, "additional": true, "serial": true, "case": true,
	"event": true, "none": true, "null": true, "n/a": true,
}

// Sentence openers that the portal renders glued onto a hostname value.
var hostCutPhrases = []string{"You will", "You can", "You may", "You should"}

var addressMarkers = []string{"Equipment Address", "Site Address", "Customer Address", "Address"}

// FindHostName recovers a system/host name from communications text. Full
// text search first (the label line is not always cleanly newline-separated),
// then a line-based fallback.
func FindHostName(text string) string {
	if text == "" {
		return ""
	}
	if m := hostFullRx.FindStringSubmatch(text); m != nil {
		if host := cleanHostValue(m[2]); host != "" {
			return host
		}
	}
	for _, ln := range splitLines(text) {
		m := hostLineRx.FindStringSubmatch(ln)
		if m == nil {
			continue
		}
		if host := cleanHostValue(m[2]); host != "" {
			return host
		}
	}
	return ""
}

func cleanHostValue(val string) string {
	val = strings.TrimSpace(val)
	for _, cut := range hostCutPhrases {
		if idx := strings.Index(val, cut); idx >= 0 {
			val = strings.TrimSpace(val[:idx])
		}
	}
	host := hostTokenRx.FindString(val)
	if host == "" {
		return ""
	}
	if m := hostGluedRx.FindStringSubmatch(host); m != nil {
		host = m[1]
	}
	if hostStopValues[strings.ToLower(host)] {
		return ""
	}
	return host
}

// FindSalutationName extracts the contact name from a "Dear <name>," line.
func FindSalutationName(text string) string {
	if m := salutationRx.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// ExtractAddress pulls the postal address block following one of the address
// markers. Key variants (Province, Zip, Postcode) collapse onto the canonical
// fields.
func ExtractAddress(text string) report.Address {
	var addr report.Address
	if text == "" {
		return addr
	}
	lines := splitLines(text)
	for i, ln := range lines {
		if !isAddressMarker(ln) {
			continue
		}
		got := false
		for j := i + 1; j < len(lines) && j < i+30; j++ {
			if lines[j] == "" {
				if got {
					break
				}
				continue
			}
			low := strings.ToLower(lines[j])
			if strings.HasPrefix(low, "thank you") || strings.HasPrefix(low, "sincerely") || strings.HasPrefix(low, "ref:") {
				break
			}
			m := addressKVRx.FindStringSubmatch(lines[j])
			if m == nil {
				continue
			}
			val := strings.TrimSpace(m[2])
			switch strings.ToLower(m[1]) {
			case "street":
				addr.Street = val
			case "city":
				addr.City = val
			case "state", "province":
				addr.State = val
			case "postal code", "postcode", "zip":
				addr.PostalCode = val
			case "country":
				addr.Country = val
			}
			got = true
		}
		if got {
			return addr
		}
	}
	return addr
}

func isAddressMarker(line string) bool {
	low := strings.ToLower(strings.TrimSuffix(line, ":"))
	for _, m := range addressMarkers {
		ml := strings.ToLower(m)
		if low == ml || strings.HasPrefix(low, ml) {
			return true
		}
	}
	return false
}

// ExtractKeyLinks collects unique URLs and ranks known link families first:
// dropbox upload portals, internal transfer hosts, diagnostic catalog links,
// then the support portal itself.
func ExtractKeyLinks(text string, limit int) []string {
	if text == "" {
		return nil
	}
	var seen []string
	have := make(map[string]bool)
	for _, m := range urlRx.FindAllString(text, -1) {
		u := strings.TrimRight(strings.TrimSpace(m), `.,;"'`)
		if !have[u] {
			have[u] = true
			seen = append(seen, u)
		}
	}

	rank := func(u string) int {
		lu := strings.ToLower(u)
		switch {
		case strings.Contains(lu, "hprc"):
			return 0
		case strings.Contains(lu, "scts."):
			return 1
		case strings.Contains(lu, "ahscatalogsearch"):
			return 2
		case strings.Contains(lu, "support."):
			return 3
		default:
			return 4
		}
	}
	sort.SliceStable(seen, func(i, j int) bool { return rank(seen[i]) < rank(seen[j]) })

	if limit > 0 && len(seen) > limit {
		seen = seen[:limit]
	}
	return seen
}

// ExtractEventIDs returns unique diagnostic event identifiers.
func ExtractEventIDs(text string) []string {
	var out []string
	have := make(map[string]bool)
	for _, m := range eventIDRx.FindAllStringSubmatch(text, -1) {
		if !have[m[1]] {
			have[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

// ExtractProblemDescriptions returns up to limit unique problem description
// snippets.
func ExtractProblemDescriptions(text string, limit int) []string {
	var out []string
	have := make(map[string]bool)
	for _, m := range problemRx.FindAllStringSubmatch(text, -1) {
		v := strings.TrimSpace(m[1])
		if v == "" || have[v] {
			continue
		}
		have[v] = true
		out = append(out, v)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// ExtractAHSLinks returns up to limit diagnostic-bundle catalog links.
func ExtractAHSLinks(text string, limit int) []string {
	var out []string
	have := make(map[string]bool)
	for _, m := range ahsLinkRx.FindAllString(text, -1) {
		u := strings.TrimRight(strings.TrimSpace(m), `.,;"'`)
		if have[u] {
			continue
		}
		have[u] = true
		out = append(out, u)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// ExtractDropboxInfo returns the upload dropbox hosts and login names from
// vendor upload instructions.
func ExtractDropboxInfo(text string) (hosts, logins []string) {
	haveHost := make(map[string]bool)
	for _, u := range ExtractKeyLinks(text, 50) {
		if !strings.Contains(strings.ToLower(u), "hprc") {
			continue
		}
		if m := dropboxHostRx.FindStringSubmatch(u); m != nil && !haveHost[m[1]] {
			haveHost[m[1]] = true
			hosts = append(hosts, m[1])
		}
	}
	haveLogin := make(map[string]bool)
	for _, m := range loginRx.FindAllStringSubmatch(text, -1) {
		v := strings.TrimSpace(m[1])
		if !haveLogin[v] {
			haveLogin[v] = true
			logins = append(logins, v)
		}
	}
	return hosts, logins
}
