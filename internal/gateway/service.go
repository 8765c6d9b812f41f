// Package gateway turns a user instruction and a document snapshot into a sanitized assistant
// response. Model output never reaches the caller without passing the patch whitelist.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"worklog/api/internal/config"
	"worklog/api/internal/document"
	"worklog/api/internal/logging"
)

// Service is stateless and safe for concurrent use.
type Service struct {
	cfg       config.LLMConfig
	completer Completer
}

// NewService uses completer when non-nil, otherwise a ChatClient built from cfg.
func NewService(cfg config.LLMConfig, completer Completer) *Service {
	if completer == nil {
		completer = NewChatClient(cfg)
	}
	return &Service{cfg: cfg, completer: completer}
}

func (s *Service) Configured() bool {
	return strings.TrimSpace(s.cfg.APIKey) != "" && strings.TrimSpace(s.cfg.BaseURL) != ""
}

// Ask validates, calls the model once and sanitizes its output. Errors are typed.
func (s *Service) Ask(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(req.Instruction) == "" {
		return Response{}, &ValidationError{Message: msgEmptyInstruction}
	}
	if !s.Configured() {
		return Response{}, &ConfigurationError{Message: msgMissingConfig}
	}

	content, err := s.completer.Complete(ctx, buildMessages(req))
	if err != nil {
		return Response{}, err
	}
	return Sanitize(content)
}

// Respond is Ask with every failure converted into a readonly response and its HTTP status.
func (s *Service) Respond(ctx context.Context, req Request) (int, Response) {
	resp, err := s.Ask(ctx, req)
	if err != nil {
		return ErrorResponse(ctx, err)
	}
	return http.StatusOK, resp
}

// ErrorResponse converts a gateway error into the readonly response sent to the client.
func ErrorResponse(ctx context.Context, err error) (int, Response) {
	status, message := describe(err)
	logger := logging.FromContext(ctx)
	if status >= http.StatusInternalServerError {
		logger.Error("assistant request failed", "status", status, "error", err)
	} else {
		logger.Info("assistant request rejected", "status", status, "error", err)
	}
	return status, Response{Mode: ModeReadonly, Message: message}
}

// Sanitize parses model content and narrows it to the response contract.
func Sanitize(content string) (Response, error) {
	var output map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &output); err != nil {
		return Response{}, &UpstreamError{Message: msgInvalidJSON, Err: err}
	}
	if output == nil {
		return Response{}, &UpstreamError{Message: msgInvalidJSON, Err: errors.New("model output is null")}
	}

	resp := Response{Mode: ModeReadonly, Message: FallbackMessage}
	if stringValue(output["mode"]) == string(ModePreviewPatch) {
		resp.Mode = ModePreviewPatch
	}
	if message := stringValue(output["message"]); strings.TrimSpace(message) != "" {
		resp.Message = message
	}
	if resp.Mode == ModePreviewPatch {
		if raw, ok := output["patch"]; ok {
			if result := document.ValidatePatch(raw); result.OK() {
				resp.Patch = result.Fields
			}
		}
	}
	return resp, nil
}

// stripCodeFence removes a surrounding markdown fence, with or without a language tag.
func stripCodeFence(text string) string {
	cleaned := strings.TrimSpace(text)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}
	if idx := strings.Index(cleaned, "\n"); idx >= 0 {
		cleaned = cleaned[idx+1:]
	} else {
		cleaned = strings.TrimPrefix(cleaned, "```")
	}
	if idx := strings.LastIndex(cleaned, "```"); idx >= 0 {
		cleaned = cleaned[:idx]
	}
	return strings.TrimSpace(cleaned)
}
