package strapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/nazirov91/ra-strapi-rest/pkg/dataprovider"
)

var (
	// ErrMissingCount is matched by errors for list responses that carry no
	// total count.
	ErrMissingCount = errors.New("missing total count")

	// ErrMalformedPayload is matched by errors for payloads that do not have
	// the shape the dialect promises, such as a relation without an id.
	ErrMalformedPayload = errors.New("malformed payload")
)

// MissingCountError reports a list response without any total signal.
type MissingCountError struct {
	Operation dataprovider.OperationType
	Resource  string
	Dialect   string
	Sources   []TotalSource
}

func (e *MissingCountError) Error() string {
	msg := fmt.Sprintf("%s %s: the response carries no total count (looked in: %v)",
		e.Operation, e.Resource, e.Sources)
	if len(e.Sources) > 0 && e.Sources[0] == TotalFromHeader {
		msg += ". The Content-Range header is missing in the HTTP response; the " +
			"data provider expects list responses to carry it with the total " +
			"number of results. If you are using CORS, did you declare " +
			"Content-Range in the Access-Control-Expose-Headers header?"
	}
	return msg
}

func (e *MissingCountError) Is(target error) bool {
	return target == ErrMissingCount
}

// MalformedPayloadError reports a value that breaks the dialect's response
// shape.
type MalformedPayloadError struct {
	Field  string
	Reason string
}

func (e *MalformedPayloadError) Error() string {
	if e.Field == "" {
		return "malformed payload: " + e.Reason
	}
	return fmt.Sprintf("malformed payload in field %q: %s", e.Field, e.Reason)
}

func (e *MalformedPayloadError) Is(target error) bool {
	return target == ErrMalformedPayload
}

// HTTPError is returned by HTTPTransport for non-2xx responses.
type HTTPError struct {
	Status int
	Body   string
	JSON   any
}

func (e *HTTPError) Error() string {
	if msg := apiErrorMessage(e.JSON); msg != "" {
		return fmt.Sprintf("API error (status %d): %s", e.Status, msg)
	}
	if e.Body != "" {
		return fmt.Sprintf("API returned status %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("API returned status %d: %s", e.Status, http.StatusText(e.Status))
}

// apiErrorMessage extracts the message of both error shapes:
// {"error": {"message": ...}} (modern) and {"message": ..., "error": "..."}
// (legacy).
func apiErrorMessage(body any) string {
	m, ok := body.(map[string]any)
	if !ok {
		return ""
	}
	if inner, ok := m["error"].(map[string]any); ok {
		if msg, ok := inner["message"].(string); ok {
			return msg
		}
	}
	if msg, ok := m["message"].(string); ok && msg != "" {
		return msg
	}
	if msg, ok := m["error"].(string); ok {
		return msg
	}
	return ""
}
