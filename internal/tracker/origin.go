package tracker

import (
	"encoding/json"
	"time"

	"worklog/api/internal/document"
)

// startTime is shifted forward on every resume so other clients can keep computing elapsed
// time as now - startTime. The real start of the session and the total shift are kept under
// these document keys, outside the assistant patch whitelist.
const (
	keySessionStartedAt = "sessionStartedAt"
	keyPausedMs         = "pausedMs"
)

func setOrigin(doc *document.Document, origin time.Time, paused time.Duration) {
	if doc.Extra == nil {
		doc.Extra = make(map[string]json.RawMessage, 2)
	}
	started, _ := json.Marshal(document.FormatTime(origin))
	shift, _ := json.Marshal(paused.Milliseconds())
	doc.Extra[keySessionStartedAt] = started
	doc.Extra[keyPausedMs] = shift
}

func clearOrigin(doc *document.Document) {
	delete(doc.Extra, keySessionStartedAt)
	delete(doc.Extra, keyPausedMs)
	if len(doc.Extra) == 0 {
		doc.Extra = nil
	}
}

// origin returns the real session start. It is only trusted while it still agrees with
// startTime, so a session replaced by another client falls back to startTime.
func origin(doc document.Document, start time.Time) (time.Time, bool) {
	var started string
	var pausedMs int64
	if err := json.Unmarshal(doc.Extra[keySessionStartedAt], &started); err != nil {
		return time.Time{}, false
	}
	if err := json.Unmarshal(doc.Extra[keyPausedMs], &pausedMs); err != nil {
		return time.Time{}, false
	}
	at, err := document.ParseTime(started)
	if err != nil || pausedMs < 0 {
		return time.Time{}, false
	}
	if !at.Add(time.Duration(pausedMs) * time.Millisecond).Equal(start) {
		return time.Time{}, false
	}
	return at, true
}
