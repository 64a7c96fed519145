package strapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hashicorp/go-hclog"
)

// RequestOptions describe one outgoing request. An empty Method means GET.
// ContentType is only set for non-JSON bodies (multipart uploads).
type RequestOptions struct {
	Method      string
	Body        []byte
	ContentType string
}

// Response is a decoded backend response. JSON is nil when the body is
// empty or not valid JSON.
type Response struct {
	Status  int
	Headers http.Header
	JSON    any
}

// Transport issues requests against the backend. Implementations return an
// error for transport failures and non-success statuses; the Provider
// propagates those errors unchanged.
type Transport interface {
	Request(ctx context.Context, url string, opts RequestOptions) (*Response, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, url string, opts RequestOptions) (*Response, error)

// Request implements Transport.
func (f TransportFunc) Request(ctx context.Context, url string, opts RequestOptions) (*Response, error) {
	return f(ctx, url, opts)
}

// HTTPTransport is the default Transport. It sends JSON bodies unless a
// content type is given, decodes JSON responses and turns non-2xx statuses
// into *HTTPError.
type HTTPTransport struct {
	client      *http.Client
	onAuthError func(status int)
	logger      hclog.Logger
}

var _ Transport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a transport around client. onAuthError, when not
// nil, is called for 401 and 403 responses before the error is returned.
func NewHTTPTransport(client *http.Client, onAuthError func(status int), logger hclog.Logger) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &HTTPTransport{
		client:      client,
		onAuthError: onAuthError,
		logger:      logger,
	}
}

// Request implements Transport.
func (t *HTTPTransport) Request(ctx context.Context, url string, opts RequestOptions) (*Response, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if opts.Body != nil {
		bodyReader = bytes.NewReader(opts.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if opts.Body != nil {
		contentType := opts.ContentType
		if contentType == "" {
			contentType = "application/json"
		}
		req.Header.Set("Content-Type", contentType)
	}

	t.logger.Debug("sending request", "method", method, "url", url)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var decoded any
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &decoded); err != nil {
			decoded = nil
		}
	}

	t.logger.Debug("received response", "method", method, "url", url, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) &&
			t.onAuthError != nil {
			t.onAuthError(resp.StatusCode)
		}
		return nil, &HTTPError{
			Status: resp.StatusCode,
			Body:   string(body),
			JSON:   decoded,
		}
	}

	return &Response{
		Status:  resp.StatusCode,
		Headers: resp.Header,
		JSON:    decoded,
	}, nil
}
