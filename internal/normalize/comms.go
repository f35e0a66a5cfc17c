package normalize

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// Message is one block of the communications thread, split on the rendered
// timestamp headers.
type Message struct {
	Timestamp string
	Body      string
}

var messageTimestampRx = regexp.MustCompile(
	`\b(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s+\d{1,2},\s+\d{4},\s+\d{1,2}:\d{2}\s+(AM|PM)\b`)

// vendorSignatures identify messages authored by the vendor's side of the
// thread rather than the customer's.
var vendorSignatures = []string{
	"support engineer",
	"hewlett packard enterprise",
	"hpe services",
}

// SplitMessages cuts the communications text into per-message blocks at each
// timestamp header. Text before the first timestamp is dropped.
func SplitMessages(text string) []Message {
	if text == "" {
		return nil
	}
	norm := strings.ReplaceAll(strings.ReplaceAll(text, "\r\n", "\n"), "\r", "\n")
	locs := messageTimestampRx.FindAllStringIndex(norm, -1)
	if len(locs) == 0 {
		return nil
	}
	out := make([]Message, 0, len(locs))
	for i, loc := range locs {
		end := len(norm)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		out = append(out, Message{
			Timestamp: norm[loc[0]:loc[1]],
			Body:      strings.TrimSpace(norm[loc[0]:end]),
		})
	}
	return out
}

// ParseMessageTime parses a rendered message timestamp. The portal renders
// two close variants, with and without the comma before the time.
func ParseMessageTime(ts string) (time.Time, bool) {
	for _, layout := range []string{"Jan 2, 2006, 3:04 PM", "Jan 2, 2006 3:04 PM"} {
		if t, err := time.Parse(layout, strings.TrimSpace(ts)); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// PickLastVendorMessage returns the newest message that looks authored by the
// vendor and carries a subject. When none qualifies it falls back to the
// newest message overall.
func PickLastVendorMessage(msgs []Message) (Message, bool) {
	var best Message
	var bestTime time.Time
	found := false
	for _, m := range msgs {
		low := strings.ToLower(m.Body)
		isVendor := false
		for _, sig := range vendorSignatures {
			if strings.Contains(low, sig) {
				isVendor = true
				break
			}
		}
		if !isVendor || !strings.Contains(low, "subject") {
			continue
		}
		t, ok := ParseMessageTime(m.Timestamp)
		if !ok {
			continue
		}
		if !found || t.After(bestTime) {
			best, bestTime, found = m, t, true
		}
	}
	if found {
		return best, true
	}
	if len(msgs) == 0 {
		return Message{}, false
	}

	sorted := make([]Message, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, _ := ParseMessageTime(sorted[i].Timestamp)
		tj, _ := ParseMessageTime(sorted[j].Timestamp)
		return ti.After(tj)
	})
	return sorted[0], true
}

// ExtractSubject returns the value following a standalone "Subject" line
// within the message block.
func ExtractSubject(body string) string {
	if body == "" {
		return ""
	}
	lines := splitLines(body)
	for i, ln := range lines {
		if !strings.EqualFold(ln, "subject") {
			continue
		}
		for j := i + 1; j < len(lines) && j < i+12; j++ {
			if lines[j] != "" {
				return lines[j]
			}
		}
	}
	return ""
}
