package domain

import "strings"

// Call log statuses written by this process outside the dial-status table.
const (
	CallStatusInitiated = "initiated"
	CallStatusFailed    = "failed"
	CallStatusCompleted = "completed"
	CallStatusAnswered  = "answered"
)

// dialStatusNames maps Asterisk DIALSTATUS codes to the campaign-facing
// vocabulary. The dialplan hook applies the same table on its side of the
// call log row.
var dialStatusNames = map[string]string{
	"ANSWER":      "answered",
	"NOANSWER":    "no-answer",
	"BUSY":        "busy",
	"CONGESTION":  "congestion",
	"CHANUNAVAIL": "unavailable",
	"CANCEL":      "cancelled",
	"DONTCALL":    "blocked",
	"TORTURE":     "rejected",
	"INVALIDARGS": "invalid",
}

// NormalizeDialStatus translates a raw dial status code. Unrecognized codes
// pass through lower-cased.
func NormalizeDialStatus(raw string) string {
	if mapped, ok := dialStatusNames[raw]; ok {
		return mapped
	}
	return strings.ToLower(raw)
}
