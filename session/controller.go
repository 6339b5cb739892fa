// Copyright 2026 The LedgerView Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/ledgerview/ledgerview-core/authapi"
	"github.com/ledgerview/ledgerview-core/credential"
	"github.com/ledgerview/ledgerview-core/internal/audit"
	"github.com/ledgerview/ledgerview-core/internal/observability/logger"
	"github.com/ledgerview/ledgerview-core/internal/observability/metrics"
)

// API is the slice of the remote contract the controller needs.
// *authapi.Client satisfies it.
type API interface {
	Login(ctx context.Context, email, password string) (*authapi.Credentials, error)
	Register(ctx context.Context, req authapi.RegisterRequest) (*authapi.Credentials, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Me(ctx context.Context, accessToken string) (*authapi.User, error)
	Logout(ctx context.Context, accessToken string) error
}

// Listener is notified after every principal change: a Principal value
// on login, registration, bootstrap, or a refresh that changed the
// identity; nil on logout and forced teardown.
type Listener func(p *Principal)

// Controller owns the session state machine. It is the single writer of
// both the status and the credential store; all writes are whole-session,
// never field by field.
type Controller struct {
	api   API
	store credential.Store
	audit audit.Logger
	meter *metrics.Meter

	loginLimiter *rate.Limiter

	mu        sync.Mutex
	status    Status
	session   *Session
	listeners []Listener

	// refreshGroup holds the single in-flight refresh shared by every
	// waiter; concurrent callers of Refresh join it instead of issuing
	// a second remote call.
	refreshGroup singleflight.Group

	// logoutTimeout bounds the fire-and-forget remote logout call.
	logoutTimeout time.Duration
}

// Option configures a Controller.
type Option func(*Controller)

// WithAuditLogger sets the audit sink. Defaults to slog-backed auditing.
func WithAuditLogger(l audit.Logger) Option {
	return func(c *Controller) { c.audit = l }
}

// WithMeter attaches metric instruments.
func WithMeter(m *metrics.Meter) Option {
	return func(c *Controller) { c.meter = m }
}

// WithLoginLimit throttles local login attempts. Mirrors the server-side
// lockout policy so a misbehaving form cannot hammer the login endpoint.
// A non-positive rate disables the throttle, so a zero-value config never
// locks logins out.
func WithLoginLimit(attemptsPerMinute float64, burst int) Option {
	return func(c *Controller) {
		if attemptsPerMinute <= 0 {
			c.loginLimiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.loginLimiter = rate.NewLimiter(rate.Limit(attemptsPerMinute/60.0), burst)
	}
}

// NewController creates a controller in the Unauthenticated state.
func NewController(api API, store credential.Store, opts ...Option) *Controller {
	c := &Controller{
		api:           api,
		store:         store,
		audit:         audit.NewSlogLogger(),
		status:        StatusUnauthenticated,
		logoutTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnChange registers a listener for principal changes. Registration is
// expected at wiring time, before traffic starts.
func (c *Controller) OnChange(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Status returns the current session status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Principal returns the current principal, if a session exists.
func (c *Controller) Principal() (Principal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Principal{}, false
	}
	return c.session.Principal, true
}

// AccessToken is a non-blocking read of whatever the credential store
// currently holds. The value may be stale; the request gateway reacts
// to staleness, not this accessor.
func (c *Controller) AccessToken() string {
	record, err := c.store.Load()
	if err != nil || record == nil {
		return ""
	}
	return record.AccessToken
}

// Bootstrap restores a stored session, verifying it with the remote
// "who am I" call and refreshing once if the stored access token is
// stale. With nothing stored the controller simply stays
// Unauthenticated and Bootstrap returns nil.
func (c *Controller) Bootstrap(ctx context.Context) error {
	record, err := c.store.Load()
	if err != nil || record == nil {
		return err
	}

	c.setStatus(StatusAuthenticating)
	slog.DebugContext(ctx, "session_bootstrap_start",
		logger.UserID(record.Profile.ID),
		logger.TokenExpiry(TokenExpiry(record.AccessToken).Unix()),
	)

	user, err := c.api.Me(ctx, record.AccessToken)
	if err != nil {
		if !authapi.IsUnauthorized(err) {
			// Unreachable or faulting server: not an authorization
			// failure, so the stored credentials stay untouched for
			// a later bootstrap attempt.
			c.setStatus(StatusUnauthenticated)
			return fmt.Errorf("bootstrap verification failed: %w", err)
		}
		c.setStatus(StatusRefreshing)
		user, record, err = c.refreshStored(ctx, record)
		if err != nil {
			return err
		}
	}

	c.install(ctx, &Session{
		AccessToken:  record.AccessToken,
		RefreshToken: record.RefreshToken,
		Principal:    principalFromUser(*user),
	})
	c.audit.Log(ctx, audit.Event{
		Type:      audit.TypeBootstrapped,
		UserID:    user.ID,
		CompanyID: user.CompanyID,
	})
	return nil
}

// Login authenticates with email and password. On success the controller
// is Authenticated; on failure the remote error is propagated with its
// user-facing message intact and no credential changes.
func (c *Controller) Login(ctx context.Context, email, password string) (Principal, error) {
	if err := c.checkLoginAllowed(); err != nil {
		return Principal{}, err
	}

	creds, err := c.api.Login(ctx, email, password)
	if err != nil {
		return Principal{}, c.loginFailure(ctx, email, err)
	}
	return c.loginSuccess(ctx, creds, audit.TypeLoginSuccess), nil
}

// Register creates a new account. Shares Login's outcome contract.
func (c *Controller) Register(ctx context.Context, req authapi.RegisterRequest) (Principal, error) {
	if err := c.checkLoginAllowed(); err != nil {
		return Principal{}, err
	}

	creds, err := c.api.Register(ctx, req)
	if err != nil {
		return Principal{}, c.loginFailure(ctx, req.Email, err)
	}
	return c.loginSuccess(ctx, creds, audit.TypeRegistered), nil
}

// Logout tears the session down locally and fires a best-effort remote
// logout. Calling it while already Unauthenticated is a no-op: no remote
// call, no state change, no error.
func (c *Controller) Logout(ctx context.Context) {
	c.mu.Lock()
	if c.status == StatusUnauthenticated && c.session == nil {
		c.mu.Unlock()
		return
	}
	var token, userID string
	if c.session != nil {
		token = c.session.AccessToken
		userID = c.session.Principal.ID
	}
	c.teardownLocked(StatusUnauthenticated)
	listeners := c.snapshotListenersLocked()
	c.mu.Unlock()

	if token != "" {
		// Fire and forget: remote failure never blocks local teardown,
		// and the caller's context may already be ending.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), c.logoutTimeout)
			defer cancel()
			if err := c.api.Logout(ctx, token); err != nil {
				slog.Debug("remote_logout_failed", logger.Error(err))
			}
		}()
	}

	c.audit.Log(ctx, audit.Event{Type: audit.TypeLogout, UserID: userID})
	notify(listeners, nil)
}

// Refresh exchanges the stored refresh token for a new access token.
// Concurrent callers share a single in-flight refresh: exactly one
// remote call is issued and every waiter observes its outcome. A
// definitive rejection of the refresh token forces a logout with all
// credentials cleared.
func (c *Controller) Refresh(ctx context.Context) error {
	_, err, _ := c.refreshGroup.Do("refresh", func() (any, error) {
		return nil, c.doRefresh(ctx)
	})
	return err
}

func (c *Controller) doRefresh(ctx context.Context) error {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return ErrNotAuthenticated
	}
	refreshToken := c.session.RefreshToken
	prior := c.status
	c.status = StatusRefreshing
	c.mu.Unlock()

	if c.meter != nil {
		c.meter.RefreshTotal.Add(ctx, 1)
	}

	accessToken, err := c.api.Refresh(ctx, refreshToken)
	if err != nil {
		if authapi.IsTransient(err) || authapi.IsServerFault(err) {
			// The refresh token was not rejected; the session stays
			// usable and the caller owns its retry policy.
			c.setStatus(prior)
			return fmt.Errorf("refresh attempt failed: %w", err)
		}
		c.expire(ctx)
		return fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}

	// Re-verify the principal: a refresh may coincide with profile or
	// role changes on the server.
	user, err := c.api.Me(ctx, accessToken)

	c.mu.Lock()
	if c.session == nil {
		// Logged out while the refresh was in flight; discard the result.
		c.mu.Unlock()
		return ErrNotAuthenticated
	}
	next := &Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Principal:    c.session.Principal,
	}
	c.mu.Unlock()

	switch {
	case err == nil:
		next.Principal = principalFromUser(*user)
	case authapi.IsUnauthorized(err):
		c.expire(ctx)
		return fmt.Errorf("%w: %w", ErrSessionExpired, err)
	default:
		// Transient re-verification failure: adopt the new token and
		// keep the cached principal.
		slog.WarnContext(ctx, "refresh_reverify_failed", logger.Error(err))
	}

	c.install(ctx, next)
	c.audit.Log(ctx, audit.Event{
		Type:      audit.TypeTokenRefreshed,
		UserID:    next.Principal.ID,
		CompanyID: next.Principal.CompanyID,
	})
	return nil
}

// refreshStored is the bootstrap-path refresh: the session is not
// installed yet, so failure clears storage and surfaces ErrSessionExpired.
func (c *Controller) refreshStored(ctx context.Context, record *credential.Record) (*authapi.User, *credential.Record, error) {
	if c.meter != nil {
		c.meter.RefreshTotal.Add(ctx, 1)
	}
	accessToken, err := c.api.Refresh(ctx, record.RefreshToken)
	if err == nil {
		var user *authapi.User
		if user, err = c.api.Me(ctx, accessToken); err == nil {
			fresh := &credential.Record{
				AccessToken:  accessToken,
				RefreshToken: record.RefreshToken,
				Profile:      *user,
			}
			return user, fresh, nil
		}
	}

	if authapi.IsTransient(err) || authapi.IsServerFault(err) {
		c.setStatus(StatusUnauthenticated)
		return nil, nil, fmt.Errorf("bootstrap refresh failed: %w", err)
	}
	c.expire(ctx)
	return nil, nil, fmt.Errorf("%w: %w", ErrSessionExpired, err)
}

func (c *Controller) checkLoginAllowed() error {
	c.mu.Lock()
	active := c.session != nil
	c.mu.Unlock()
	if active {
		return ErrAlreadyAuthenticated
	}
	if c.loginLimiter != nil && !c.loginLimiter.Allow() {
		return ErrLoginThrottled
	}
	return nil
}

func (c *Controller) loginSuccess(ctx context.Context, creds *authapi.Credentials, eventType string) Principal {
	s := &Session{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		Principal:    principalFromUser(creds.User),
	}
	c.install(ctx, s)
	c.audit.Log(ctx, audit.Event{
		Type:      eventType,
		UserID:    s.Principal.ID,
		CompanyID: s.Principal.CompanyID,
	})
	return s.Principal
}

func (c *Controller) loginFailure(ctx context.Context, email string, err error) error {
	if c.meter != nil {
		c.meter.LoginFailures.Add(ctx, 1)
	}
	c.audit.Log(ctx, audit.Event{
		Type:     audit.TypeLoginFailed,
		Metadata: map[string]any{"email": email},
	})
	c.setStatus(StatusUnauthenticated)

	if authapi.IsTransient(err) || authapi.IsServerFault(err) {
		return err
	}
	// Remote rejection: the user-facing message travels unchanged.
	return fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
}

// install makes s the current session: persisted as one atomic record,
// status Authenticated, listeners notified when the identity changed.
func (c *Controller) install(ctx context.Context, s *Session) {
	c.mu.Lock()
	identityChanged := c.session == nil || c.session.Principal.ID != s.Principal.ID
	c.session = s
	c.status = StatusAuthenticated
	listeners := c.snapshotListenersLocked()
	c.mu.Unlock()

	if err := c.store.Save(&credential.Record{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		Profile:      s.Principal.toUser(),
	}); err != nil {
		slog.WarnContext(ctx, "credential_save_failed", logger.Error(err))
	}

	if identityChanged {
		p := s.Principal
		notify(listeners, &p)
	}
}

// expire is the forced logout after an unrecoverable refresh failure:
// all three credential keys are cleared before anything else can react,
// so a failed reload can never resurrect a half-valid session.
func (c *Controller) expire(ctx context.Context) {
	c.mu.Lock()
	userID := ""
	if c.session != nil {
		userID = c.session.Principal.ID
	}
	c.status = StatusExpired
	c.teardownLocked(StatusUnauthenticated)
	listeners := c.snapshotListenersLocked()
	c.mu.Unlock()

	if c.meter != nil {
		c.meter.UnauthorizedTotal.Add(ctx, 1)
	}
	c.audit.Log(ctx, audit.Event{Type: audit.TypeSessionExpired, UserID: userID})
	notify(listeners, nil)
}

// teardownLocked clears the session and storage. Callers hold c.mu.
func (c *Controller) teardownLocked(final Status) {
	c.session = nil
	c.status = final
	if err := c.store.Clear(); err != nil {
		slog.Warn("credential_clear_failed", logger.Error(err))
	}
}

func (c *Controller) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

func (c *Controller) snapshotListenersLocked() []Listener {
	out := make([]Listener, len(c.listeners))
	copy(out, c.listeners)
	return out
}

func notify(listeners []Listener, p *Principal) {
	for _, l := range listeners {
		l(p)
	}
}
