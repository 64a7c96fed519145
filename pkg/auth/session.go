package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/oauth2"
)

// ErrNotAuthenticated is returned when the session holds no usable token.
var ErrNotAuthenticated = errors.New("not authenticated")

// loginPath is the local (identifier + password) login endpoint.
const loginPath = "/auth/local"

// Credentials for a local login. Identifier is a username or an email.
type Credentials struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// Validate checks that both fields are set.
func (c Credentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Identifier, validation.Required),
		validation.Field(&c.Password, validation.Required),
	)
}

// Config configures a Session.
type Config struct {
	// BaseURL is the API root the login endpoint lives under.
	BaseURL string `json:"baseUrl"`

	// HTTPClient is used for the login request.
	// Default: http.DefaultClient
	HTTPClient *http.Client `json:"-"`

	Logger hclog.Logger `json:"-"`
}

// Session holds the credentials of one authenticated user: the bearer token
// and the user's role. It is safe for concurrent use and is meant to be
// injected into a data provider as its oauth2.TokenSource.
type Session struct {
	baseURL string
	client  *http.Client
	logger  hclog.Logger

	mu     sync.RWMutex
	token  string
	role   string
	expiry time.Time
	now    func() time.Time
}

var _ oauth2.TokenSource = (*Session)(nil)

// NewSession creates an unauthenticated session.
func NewSession(cfg Config) (*Session, error) {
	if err := validation.ValidateStruct(&cfg,
		validation.Field(&cfg.BaseURL, validation.Required, is.URL),
	); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	return &Session{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
		logger:  logger.Named("auth"),
		now:     time.Now,
	}, nil
}

type loginResponse struct {
	JWT  string `json:"jwt"`
	User struct {
		Username string `json:"username"`
		Role     *struct {
			Name string `json:"name"`
		} `json:"role"`
	} `json:"user"`
}

// Login exchanges credentials for a token and stores it together with the
// user's role.
func (s *Session) Login(ctx context.Context, creds Credentials) error {
	if err := creds.Validate(); err != nil {
		return fmt.Errorf("invalid credentials: %w", err)
	}

	body, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to marshal login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+loginPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		s.logger.Debug("login rejected", "status", resp.StatusCode, "body", string(respBody))
		return fmt.Errorf("login failed: %s", http.StatusText(resp.StatusCode))
	}

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode login response: %w", err)
	}
	if lr.JWT == "" {
		return fmt.Errorf("login response carries no token")
	}

	role := ""
	if lr.User.Role != nil {
		role = lr.User.Role.Name
	}
	s.SetToken(lr.JWT, role)

	s.logger.Info("logged in", "user", lr.User.Username, "role", role)
	return nil
}

// SetToken stores a token obtained elsewhere (for example an API token from
// the configuration). When the token is a JWT its expiry is honored.
func (s *Session) SetToken(token, role string) {
	expiry := tokenExpiry(token)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.role = role
	s.expiry = expiry
}

// tokenExpiry reads the exp claim without verifying the signature; the
// server remains the authority on token validity.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// Logout forgets the token and role.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.role = ""
	s.expiry = time.Time{}
}

// HandleStatus reacts to the status of a failed API response. 401 and 403
// end the session and return ErrNotAuthenticated; other statuses are
// ignored.
func (s *Session) HandleStatus(status int) error {
	if status != http.StatusUnauthorized && status != http.StatusForbidden {
		return nil
	}
	s.logger.Warn("session rejected by server, logging out", "status", status)
	s.Logout()
	return ErrNotAuthenticated
}

// OnAuthError adapts HandleStatus to a transport hook.
func (s *Session) OnAuthError(status int) {
	_ = s.HandleStatus(status)
}

// Check returns nil when the session holds a token that has not expired.
func (s *Session) Check() error {
	_, err := s.Token()
	return err
}

// Permissions returns the role of the logged-in user.
func (s *Session) Permissions() (string, error) {
	if err := s.Check(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.role == "" {
		return "", ErrNotAuthenticated
	}
	return s.role, nil
}

// Token implements oauth2.TokenSource.
func (s *Session) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	token, expiry := s.token, s.expiry
	s.mu.RUnlock()

	if token == "" {
		return nil, ErrNotAuthenticated
	}
	if !expiry.IsZero() && !s.now().Before(expiry) {
		s.Logout()
		return nil, fmt.Errorf("%w: token expired at %s", ErrNotAuthenticated, expiry.Format(time.RFC3339))
	}

	return &oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
		Expiry:      expiry,
	}, nil
}
