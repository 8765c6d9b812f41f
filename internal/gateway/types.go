package gateway

import (
	"bytes"
	"encoding/json"
	"strings"
)

type Mode string

const (
	ModeReadonly     Mode = "readonly"
	ModePreviewPatch Mode = "preview_patch"
)

// Turn is one prior conversation message.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Instruction        string          `json:"instruction"`
	Context            json.RawMessage `json:"context,omitempty"`
	History            []Turn          `json:"history,omitempty"`
	RequirePatchFormat bool            `json:"requirePatchFormat,omitempty"`
}

// Response is always a readonly message or a message plus a whitelisted patch.
type Response struct {
	Mode    Mode                       `json:"mode"`
	Message string                     `json:"message"`
	Patch   map[string]json.RawMessage `json:"patch,omitempty"`
}

type wireRequest struct {
	Instruction        json.RawMessage `json:"instruction"`
	Context            json.RawMessage `json:"context"`
	History            []wireTurn      `json:"history"`
	RequirePatchFormat json.RawMessage `json:"requirePatchFormat"`
}

type wireTurn struct {
	Role    json.RawMessage `json:"role"`
	Content json.RawMessage `json:"content"`
}

// DecodeRequest parses a request body leniently: non-string fields read as empty, so a
// malformed instruction surfaces as the empty-instruction validation error.
func DecodeRequest(body []byte) (Request, error) {
	var wire wireRequest
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &wire); err != nil {
			return Request{}, &ValidationError{Message: "请求体必须是 JSON 对象。"}
		}
	}
	req := Request{
		Instruction:        stringValue(wire.Instruction),
		RequirePatchFormat: strings.TrimSpace(string(wire.RequirePatchFormat)) == "true",
	}
	if ctx := bytes.TrimSpace(wire.Context); len(ctx) > 0 && !bytes.Equal(ctx, []byte("null")) {
		req.Context = ctx
	}
	for _, turn := range wire.History {
		req.History = append(req.History, Turn{
			Role:    stringValue(turn.Role),
			Content: stringValue(turn.Content),
		})
	}
	return req, nil
}

func stringValue(raw json.RawMessage) string {
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return ""
	}
	return value
}
