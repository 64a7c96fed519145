package strapi

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/oauth2"
)

// Config contains configuration for the Strapi data provider.
//
// Example configuration (HCL):
//
//	backend {
//	  base_url        = "http://localhost:1337/api"
//	  dialect         = "modern"
//	  timeout         = "30s"
//	  count_endpoint  = "count"
//	  native_get_many = true
//	  media_fields    = ["cover", "gallery"]
//	}
type Config struct {
	// BaseURL is the API root. For the modern dialect it usually ends with
	// "/api"; media URLs are resolved against it with that suffix removed.
	BaseURL string `hcl:"base_url" json:"baseUrl"`

	// Dialect is "legacy" (v3) or "modern" (v4).
	// Default: "modern"
	Dialect string `hcl:"dialect,optional" json:"dialect,omitempty"`

	// Timeout for API requests
	// Default: 30 seconds
	Timeout time.Duration `hcl:"timeout,optional" json:"timeout,omitempty"`

	// TLSVerify controls TLS certificate verification
	TLSVerify *bool `hcl:"tls_verify,optional" json:"tlsVerify,omitempty"`

	// CountPath, when set, adds a parallel /<resource>/<CountPath> request to
	// every list request as a total fallback (legacy backends expose "count").
	CountPath string `hcl:"count_endpoint,optional" json:"countEndpoint,omitempty"`

	// NativeGetMany fetches GetMany ids with a single "in" filter request
	// instead of one request per id.
	NativeGetMany bool `hcl:"native_get_many,optional" json:"nativeGetMany,omitempty"`

	// MediaFields names relation fields that always hold media, even when
	// their entries lack a mime attribute.
	MediaFields []string `hcl:"media_fields,optional" json:"mediaFields,omitempty"`

	// Transport overrides the default HTTP transport.
	Transport Transport `hcl:"-" json:"-"`

	// TokenSource adds a bearer token to every request of the default
	// transport.
	TokenSource oauth2.TokenSource `hcl:"-" json:"-"`

	// OnAuthError is called by the default transport on 401 and 403.
	OnAuthError func(status int) `hcl:"-" json:"-"`

	Logger hclog.Logger `hcl:"-" json:"-"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	tlsVerify := true
	return &Config{
		Dialect:   Modern.Name,
		Timeout:   30 * time.Second,
		TLSVerify: &tlsVerify,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, validation.By(httpURL)),
		validation.Field(&c.Dialect, validation.By(knownDialect)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

func httpURL(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must use http or https scheme, got: %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("must include a host")
	}
	return nil
}

func knownDialect(value any) error {
	s, _ := value.(string)
	_, err := DialectByName(s)
	return err
}

// NewHTTPClient creates a configured HTTP client for this provider
func (c *Config) NewHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	if c.TLSVerify != nil && !*c.TLSVerify {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	var rt http.RoundTripper = transport
	if c.TokenSource != nil {
		rt = &oauth2.Transport{
			Source: c.TokenSource,
			Base:   transport,
		}
	}

	return &http.Client{
		Timeout:   c.Timeout,
		Transport: rt,
	}
}
