package httpapi

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/madsb/nanopay-relay-sub000/internal/apierr"
)

func splitHostPort(addr string) (string, string, error) {
	return net.SplitHostPort(addr)
}

func marshalResult(status int, payload any, apiErr *apierr.Error) []byte {
	if apiErr != nil {
		body, _ := json.Marshal(errorEnvelope(apiErr))
		return body
	}
	if payload == nil {
		return []byte(`{}`)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		fallback, _ := json.Marshal(errorEnvelope(apierr.New(apierr.CodeInternal, "failed to encode response")))
		return fallback
	}
	_ = status
	return body
}

type errorBody struct {
	Code    apierr.Code `json:"code"`
	Message string      `json:"message"`
	Details any         `json:"details,omitempty"`
}

func errorEnvelope(err *apierr.Error) map[string]errorBody {
	return map[string]errorBody{
		"error": {Code: err.ErrCode, Message: err.ErrMessage, Details: err.Details},
	}
}

func writeResult(w http.ResponseWriter, status int, payload any, apiErr *apierr.Error) {
	if apiErr != nil {
		apierr.WriteJSON(w, apiErr)
		return
	}
	body := marshalResult(status, payload, nil)
	writeRaw(w, status, body)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
