package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	msgEmptyInstruction = "指令不能为空。"
	msgMissingConfig    = "助手未配置：服务端缺少 LLM_API_KEY 或 LLM_BASE_URL。"
	msgInvalidJSON      = "模型返回的内容不是合法的 JSON。"
	msgNoContent        = "模型未返回文本内容。"
	msgInternal         = "助手服务内部错误。"
	msgUnauthorized     = "未授权的请求。"
	msgBodyTooLarge     = "请求体过大。"
	msgBadRequest       = "无法读取请求体。"
	// FallbackMessage replaces a blank or non-string model message.
	FallbackMessage = "已生成结果。"
)

// ValidationError rejects a request before any upstream call.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return "validation: " + e.Message }

// ConfigurationError means the upstream credential or endpoint is not configured.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string { return "configuration: " + e.Message }

// UpstreamError covers transport failures, non-2xx statuses and unusable model output.
type UpstreamError struct {
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Err == nil {
		return "upstream: " + e.Message
	}
	return fmt.Sprintf("upstream: %s: %v", e.Message, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// RejectedError is a request refused before it reaches the assistant, for example a missing
// access key or an oversized body.
type RejectedError struct {
	Status  int
	Message string
}

func (e *RejectedError) Error() string { return fmt.Sprintf("rejected: %d %s", e.Status, e.Message) }

// Reject builds the RejectedError for an HTTP status.
func Reject(status int) *RejectedError {
	message := msgBadRequest
	switch status {
	case http.StatusUnauthorized:
		message = msgUnauthorized
	case http.StatusRequestEntityTooLarge:
		message = msgBodyTooLarge
	}
	return &RejectedError{Status: status, Message: message}
}

// describe maps an error to the HTTP status and user-facing message of the readonly response.
func describe(err error) (int, string) {
	var validation *ValidationError
	var configuration *ConfigurationError
	var upstream *UpstreamError
	var rejected *RejectedError
	switch {
	case errors.As(err, &rejected):
		return rejected.Status, rejected.Message
	case errors.As(err, &validation):
		return http.StatusBadRequest, validation.Message
	case errors.As(err, &configuration):
		return http.StatusInternalServerError, configuration.Message
	case errors.As(err, &upstream):
		return http.StatusInternalServerError, upstream.Message
	default:
		return http.StatusInternalServerError, msgInternal
	}
}
