package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// PatchKeys is the complete set of top-level keys a patch may touch.
var PatchKeys = []string{
	KeyRecords,
	KeyTodos,
	KeyQuestions,
	KeyDailyPlans,
	KeyCurrentTask,
	KeyCurrentTaskDescription,
	KeyCurrentPlanID,
	KeyCurrentTodoID,
	KeyStartTime,
	KeyPausedTime,
	KeyIsPaused,
}

var patchKeySet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(PatchKeys))
	for _, key := range PatchKeys {
		set[key] = struct{}{}
	}
	return set
}()

// IsPatchKey reports whether key is on the whitelist.
func IsPatchKey(key string) bool {
	_, ok := patchKeySet[key]
	return ok
}

// PatchResult is the outcome of validating an untrusted patch: either Accepted with the
// whitelisted fields, or Rejected with a reason.
type PatchResult struct {
	accepted bool
	Fields   map[string]json.RawMessage
	Reason   string
}

func Accepted(fields map[string]json.RawMessage) PatchResult {
	return PatchResult{accepted: true, Fields: fields}
}

func Rejected(reason string) PatchResult {
	return PatchResult{Reason: reason}
}

func (r PatchResult) OK() bool { return r.accepted }

// Keys returns the accepted keys in sorted order.
func (r PatchResult) Keys() []string {
	keys := make([]string, 0, len(r.Fields))
	for key := range r.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// ValidatePatch narrows raw to the whitelisted keys. Unknown keys are dropped silently and
// retained values are the exact input bytes. Only a missing or non-object patch is rejected.
func ValidatePatch(raw json.RawMessage) PatchResult {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Rejected("patch is missing")
	}
	if trimmed[0] != '{' {
		return Rejected("patch is not a JSON object")
	}
	var candidate map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &candidate); err != nil {
		return Rejected("patch is not a JSON object")
	}
	return Accepted(FilterFields(candidate))
}

// FilterFields keeps only whitelisted keys.
func FilterFields(candidate map[string]json.RawMessage) map[string]json.RawMessage {
	fields := make(map[string]json.RawMessage, len(candidate))
	for key, value := range candidate {
		if IsPatchKey(key) {
			fields[key] = value
		}
	}
	return fields
}

// ApplyPatch shallow-merges fields into doc: each present key replaces the field wholesale and
// absent keys are untouched. The whitelist is enforced again here. Replacement values are kept
// as given: unknown entry keys survive, and a value that does not fit its field is held verbatim.
func ApplyPatch(doc Document, fields map[string]json.RawMessage) (Document, error) {
	current, err := doc.Fields()
	if err != nil {
		return doc, err
	}
	for key, value := range fields {
		if !IsPatchKey(key) {
			continue
		}
		current[key] = value
	}
	merged, err := FromFields(current)
	if err != nil {
		return doc, fmt.Errorf("apply patch: %w", err)
	}
	merged.ClearDanglingReferences()
	return merged, nil
}
