package errors

import "strings"

// ErrorResponse is the JSON structure returned over HTTP.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody contains the error details sent to clients.
type ErrorBody struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Bean    string         `json:"bean,omitempty"`
	Chain   []string       `json:"chain,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// ToResponse converts a BeanError to an ErrorResponse for JSON serialization.
func (e *BeanError) ToResponse() ErrorResponse {
	msg := e.Message
	if root := RootCause(e); root != e {
		msg = msg + ": " + strings.TrimSpace(root.Error())
	}
	return ErrorResponse{
		Error: ErrorBody{
			Code:    e.Code,
			Message: msg,
			Bean:    e.Bean,
			Chain:   Chain(e),
			Details: e.Details,
		},
	}
}
