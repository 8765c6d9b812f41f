package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"maps"
	"math"
	"strconv"
)

// fieldReader decodes a JSON object key by key. A value that does not fit its typed field is
// left in place and ends up in the entry's Extra, so nothing written by another client is lost.
type fieldReader struct {
	fields map[string]json.RawMessage
}

// readFields returns nil for a JSON null.
func readFields(data []byte) (*fieldReader, error) {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.New("expected a JSON object")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = make(map[string]json.RawMessage)
	}
	return &fieldReader{fields: fields}, nil
}

// take removes key. A missing key and a null both report false.
func (r *fieldReader) take(key string) (json.RawMessage, bool) {
	value, ok := r.fields[key]
	delete(r.fields, key)
	if !ok || isNull(value) {
		return nil, false
	}
	return value, true
}

func (r *fieldReader) hold(key string, value json.RawMessage) {
	r.fields[key] = value
}

func (r *fieldReader) str(key string, dst *string) {
	value, ok := r.take(key)
	if !ok {
		return
	}
	if s, ok := scalarString(value); ok {
		*dst = s
		return
	}
	r.hold(key, value)
}

func (r *fieldReader) strPtr(key string, dst **string) {
	value, ok := r.take(key)
	if !ok {
		*dst = nil
		return
	}
	if s, ok := scalarString(value); ok {
		*dst = &s
		return
	}
	r.hold(key, value)
}

func (r *fieldReader) boolean(key string, dst *bool) {
	value, ok := r.take(key)
	if !ok {
		return
	}
	s, ok := scalarString(value)
	if ok {
		if b, err := strconv.ParseBool(s); err == nil {
			*dst = b
			return
		}
	}
	r.hold(key, value)
}

func (r *fieldReader) integer(key string, dst *int64) {
	value, ok := r.take(key)
	if !ok {
		return
	}
	if s, ok := scalarString(value); ok {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			*dst = n
			return
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			*dst = int64(f)
			return
		}
	}
	r.hold(key, value)
}

func (r *fieldReader) strings(key string, dst *[]string) {
	value, ok := r.take(key)
	if !ok {
		return
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(value, &raw); err != nil {
		r.hold(key, value)
		return
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := scalarString(item)
		if !ok {
			r.hold(key, value)
			return
		}
		out = append(out, s)
	}
	*dst = out
}

// list decodes an array of entries. If the value is not an array of objects it is held
// verbatim and dst keeps its current value.
func list[T any](r *fieldReader, key string, dst *[]T) {
	value, ok := r.take(key)
	if !ok {
		return
	}
	var items []T
	if err := json.Unmarshal(value, &items); err != nil {
		r.hold(key, value)
		return
	}
	*dst = items
}

// rest returns the keys nothing consumed, or nil when there are none.
func (r *fieldReader) rest() map[string]json.RawMessage {
	if len(r.fields) == 0 {
		return nil
	}
	return r.fields
}

// fieldWriter is the inverse of fieldReader: Extra first, typed fields on top. An empty typed
// value never overwrites a value held verbatim under the same key.
type fieldWriter struct {
	out   map[string]any
	extra map[string]json.RawMessage
}

func newFieldWriter(extra map[string]json.RawMessage) *fieldWriter {
	out := make(map[string]any, len(extra)+12)
	for key, value := range extra {
		out[key] = value
	}
	return &fieldWriter{out: out, extra: extra}
}

func (w *fieldWriter) set(key string, value any, empty bool) {
	if _, held := w.extra[key]; held && empty {
		return
	}
	w.out[key] = value
}

// optional omits key when value is nil.
func (w *fieldWriter) optional(key string, value *string) {
	if value == nil {
		return
	}
	w.out[key] = *value
}

func (w *fieldWriter) marshal() ([]byte, error) {
	return json.Marshal(w.out)
}

func isNull(value json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(value), []byte("null"))
}

// scalarString reads a JSON string, number or boolean as text. Numbers keep their literal
// form so epoch timestamps survive until normalization.
func scalarString(value json.RawMessage) (string, bool) {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 {
		return "", false
	}
	switch c := trimmed[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", false
		}
		return s, true
	case c == '-' || (c >= '0' && c <= '9'):
		if !json.Valid(trimmed) {
			return "", false
		}
		return string(trimmed), true
	case bytes.Equal(trimmed, []byte("true")), bytes.Equal(trimmed, []byte("false")):
		return string(trimmed), true
	}
	return "", false
}

func cloneExtra(extra map[string]json.RawMessage) map[string]json.RawMessage {
	if extra == nil {
		return nil
	}
	return maps.Clone(extra)
}
