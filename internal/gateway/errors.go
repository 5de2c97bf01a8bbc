package gateway

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/apperr"
)

// errorPayload covers the error bodies the backend is known to send:
// {"error": ...}, {"message": ...} and {"error", "code", "details"}.
type errorPayload struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details"`
}

func decodeError(status int, body []byte) *apperr.Error {
	var p errorPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return apperr.Remote(status, "", fallbackMessage(status))
	}

	msg := strings.TrimSpace(p.Message)
	if msg == "" {
		msg = strings.TrimSpace(p.Error)
	}
	if msg == "" {
		msg = fallbackMessage(status)
	}
	return apperr.Remote(status, p.Code, msg)
}

// unauthorized keeps the backend's message and code when the body carries them.
func unauthorized(status int, body []byte) *apperr.Error {
	var p errorPayload
	_ = json.Unmarshal(body, &p)

	msg := strings.TrimSpace(p.Message)
	if msg == "" {
		msg = strings.TrimSpace(p.Error)
	}
	e := apperr.Unauthorized(status, msg)
	if p.Code != "" {
		e.Code = p.Code
	}
	return e
}

func fallbackMessage(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "Invalid credentials"
	case http.StatusNotFound:
		return "Not found"
	default:
		return apperr.GenericMessage
	}
}
