package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// SessionState is the lifecycle phase of a Session.
type SessionState int

const (
	StateAnonymous SessionState = iota
	StateAuthenticating
	StateAuthenticated
	StateRefreshing
)

func (s SessionState) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// ErrLoggedOut is returned from calls made after the session was terminated.
var ErrLoggedOut = errors.New("client: session logged out")

// proactiveLead is how long before access-token expiry the renewal timer
// fires.
const proactiveLead = 2 * time.Minute

// defaultRefreshTimeout bounds one refresh round trip. A timeout counts as a
// refresh failure.
const defaultRefreshTimeout = 10 * time.Second

// Session tracks authentication state and refreshes the access token. A 401
// on a non-auth endpoint triggers exactly one refresh no matter how many
// requests hit it concurrently; the rest wait for that refresh and share its
// outcome.
type Session struct {
	client *Client

	mu             sync.Mutex
	state          SessionState
	accessToken    string
	accessExpiry   time.Time
	refreshToken   string
	refreshing     bool
	waiters        []chan error
	loggedOut      bool
	timer          *time.Timer
	refreshTimeout time.Duration

	// now is replaceable for tests.
	now func() time.Time
}

func newSession(c *Client) *Session {
	return &Session{
		client:         c,
		state:          StateAnonymous,
		refreshTimeout: defaultRefreshTimeout,
		now:            time.Now,
	}
}

// State returns the current lifecycle phase.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AccessToken returns the current bearer token, empty when anonymous.
func (s *Session) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken
}

type sessionResponse struct {
	User            User      `json:"user"`
	AccessToken     string    `json:"access_token"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
	RefreshToken    string    `json:"refresh_token"`
	CSRFToken       string    `json:"csrf_token"`
}

// Login authenticates with email and password, replacing any existing
// session.
func (s *Session) Login(ctx context.Context, email, password string) (*User, error) {
	s.mu.Lock()
	s.state = StateAuthenticating
	s.loggedOut = false
	s.mu.Unlock()

	var resp sessionResponse
	err := s.client.doOnce(ctx, http.MethodPost, "/v1/auth/login", nil,
		map[string]string{"email": email, "password": password}, &resp)
	if err != nil {
		s.mu.Lock()
		s.state = StateAnonymous
		s.mu.Unlock()
		return nil, err
	}
	s.install(resp)
	return &resp.User, nil
}

// Register creates an account and authenticates.
func (s *Session) Register(ctx context.Context, name, email, password string) (*User, error) {
	s.mu.Lock()
	s.state = StateAuthenticating
	s.loggedOut = false
	s.mu.Unlock()

	var resp sessionResponse
	err := s.client.doOnce(ctx, http.MethodPost, "/v1/auth/register", nil,
		map[string]string{"name": name, "email": email, "password": password}, &resp)
	if err != nil {
		s.mu.Lock()
		s.state = StateAnonymous
		s.mu.Unlock()
		return nil, err
	}
	s.install(resp)
	return &resp.User, nil
}

func (s *Session) install(resp sessionResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateAuthenticated
	s.accessToken = resp.AccessToken
	s.accessExpiry = resp.AccessExpiresAt
	s.refreshToken = resp.RefreshToken
	s.loggedOut = false
	s.scheduleRenewalLocked()
}

// scheduleRenewalLocked arms the proactive renewal timer. Caller holds mu.
func (s *Session) scheduleRenewalLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.accessExpiry.IsZero() {
		return
	}
	d := s.accessExpiry.Add(-proactiveLead).Sub(s.now())
	if d <= 0 {
		// Already past the renewal point; Wake or the 401 interceptor
		// handles it.
		return
	}
	s.timer = time.AfterFunc(d, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.refreshTimeout)
		defer cancel()
		_ = s.Refresh(ctx)
	})
}

// Wake forces an expiry check, for use when the process regains foreground
// after a suspend. It refreshes when the token is expired or about to.
func (s *Session) Wake(ctx context.Context) error {
	s.mu.Lock()
	needs := s.state == StateAuthenticated && s.now().After(s.accessExpiry.Add(-proactiveLead))
	s.mu.Unlock()
	if !needs {
		return nil
	}
	return s.Refresh(ctx)
}

// Refresh exchanges the refresh token for a new pair. Concurrent callers
// collapse into one request: the first runs it, the rest queue and receive
// the same outcome in FIFO order. A rejected or timed-out refresh terminates
// the session; other transport failures leave it intact so a later attempt
// can succeed.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.loggedOut {
		s.mu.Unlock()
		return ErrLoggedOut
	}
	if s.refreshToken == "" {
		s.mu.Unlock()
		return errors.New("client: no refresh token")
	}
	if s.refreshing {
		ch := make(chan error, 1)
		s.waiters = append(s.waiters, ch)
		s.mu.Unlock()
		select {
		case err := <-ch:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.refreshing = true
	s.state = StateRefreshing
	token := s.refreshToken
	s.mu.Unlock()

	err := s.runRefresh(token)

	s.mu.Lock()
	s.refreshing = false
	waiters := s.waiters
	s.waiters = nil
	s.mu.Unlock()
	for _, ch := range waiters {
		ch <- err
	}
	return err
}

func (s *Session) runRefresh(refreshToken string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.refreshTimeout)
	defer cancel()

	var resp sessionResponse
	err := s.client.doOnce(ctx, http.MethodPost, "/v1/auth/refresh", nil,
		map[string]string{"refresh_token": refreshToken}, &resp)
	if err == nil {
		s.install(resp)
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden) {
		// The server rejected the refresh token; the session is over.
		s.terminate()
		return ErrLoggedOut
	}
	if errors.Is(err, context.DeadlineExceeded) {
		// The bounded refresh window elapsed. A timeout counts as a refresh
		// failure, not a transient transport error.
		s.terminate()
		return err
	}

	// Other transport failures: report them but keep the session so a later
	// refresh can still succeed.
	s.mu.Lock()
	if s.state == StateRefreshing {
		s.state = StateAuthenticated
	}
	s.mu.Unlock()
	return err
}

func (s *Session) terminate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateAnonymous
	s.accessToken = ""
	s.accessExpiry = time.Time{}
	s.refreshToken = ""
	s.loggedOut = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Logout revokes the session server-side and clears local state.
func (s *Session) Logout(ctx context.Context) error {
	err := s.client.doOnce(ctx, http.MethodPost, "/v1/auth/logout", url.Values{}, nil, nil)
	s.terminate()
	return err
}
