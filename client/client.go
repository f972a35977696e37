package client

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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Default endpoint paths, relative to the API base URL
const (
	DefaultRenewPath = "/auth/tokens/renew"
	DefaultLoginURL  = "/login"

	defaultRenewTimeout = 30 * time.Second
)

var (
	// ErrTokenRefreshFailed is returned to callers whose request could not be
	// sent because the access token could not be renewed
	ErrTokenRefreshFailed = errors.New("token refresh failed")

	// ErrNoCredentials is returned when no access token is stored
	ErrNoCredentials = errors.New("no stored credentials")

	errRefreshTokenUnusable = errors.New("refresh token missing or expired")
)

// Dispatcher sends HTTP requests on behalf of the signed-in user. It attaches
// the bearer token, renews it before it expires or after a 401, makes sure
// only one renewal is outstanding at a time and holds back requests that
// arrive while one is.
type Dispatcher struct {
	baseURL      string
	renewPath    string
	loginURL     string
	threshold    time.Duration
	renewTimeout time.Duration
	store        *CredentialStore
	base         http.RoundTripper
	httpClient   *http.Client
	logger       *zap.Logger
	metrics      *Metrics
	tracer       trace.Tracer

	mu         sync.Mutex
	refreshing bool
	inflight   *refreshCall
	queue      []*queuedRequest

	hmu        sync.Mutex
	nextHandle int
	onEnded    map[int]func(loginURL string)
}

// refreshCall is the single outstanding renewal shared by every waiter
type refreshCall struct {
	done chan struct{}
	ok   bool
}

type queuedRequest struct {
	req    *http.Request
	result chan queuedResult
}

type queuedResult struct {
	resp *http.Response
	err  error
}

// ClientOption configures a Dispatcher
type ClientOption func(*Dispatcher)

// WithRenewPath sets a custom token renewal path
func WithRenewPath(path string) ClientOption {
	return func(d *Dispatcher) {
		d.renewPath = path
	}
}

// WithLoginURL sets the login entry point reported when a session ends
func WithLoginURL(loginURL string) ClientOption {
	return func(d *Dispatcher) {
		d.loginURL = loginURL
	}
}

// WithRefreshThreshold sets how long before expiry the access token is renewed
func WithRefreshThreshold(threshold time.Duration) ClientOption {
	return func(d *Dispatcher) {
		if threshold > 0 {
			d.threshold = threshold
		}
	}
}

// WithRenewTimeout bounds a single renewal call
func WithRenewTimeout(timeout time.Duration) ClientOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.renewTimeout = timeout
		}
	}
}

// WithHTTPClient sets a custom base HTTP client (for timeouts, TLS config, etc.)
// The transport from this client will be wrapped with auth handling.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(d *Dispatcher) {
		if client == nil {
			return
		}
		if client.Transport != nil {
			d.base = client.Transport
		}
		d.httpClient.Timeout = client.Timeout
		d.httpClient.CheckRedirect = client.CheckRedirect
		d.httpClient.Jar = client.Jar
	}
}

// WithTransport sets a custom base transport (for connection pooling, proxies, etc.)
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(d *Dispatcher) {
		if transport != nil {
			d.base = transport
		}
	}
}

// WithLogger sets the dispatcher's logger
func WithLogger(logger *zap.Logger) ClientOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics records renewals, queued requests and forced logouts
func WithMetrics(m *Metrics) ClientOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithTracerProvider sets the provider used for renewal spans
func WithTracerProvider(tp trace.TracerProvider) ClientOption {
	return func(d *Dispatcher) {
		if tp != nil {
			d.tracer = tp.Tracer(tracerName)
		}
	}
}

const tracerName = "github.com/panyam/monexa/client"

// NewDispatcher creates a dispatcher for the API rooted at baseURL
// (e.g. "http://localhost:9000/api/v1").
func NewDispatcher(baseURL string, store *CredentialStore, opts ...ClientOption) *Dispatcher {
	d := &Dispatcher{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		renewPath:    DefaultRenewPath,
		loginURL:     DefaultLoginURL,
		threshold:    DefaultRefreshThreshold,
		renewTimeout: defaultRenewTimeout,
		store:        store,
		base:         http.DefaultTransport,
		httpClient:   &http.Client{},
		logger:       zap.NewNop(),
		tracer:       otel.Tracer(tracerName),
		onEnded:      make(map[int]func(string)),
	}

	for _, opt := range opts {
		opt(d)
	}

	d.httpClient.Transport = d
	return d
}

// Transport returns the dispatcher as an http.RoundTripper
func (d *Dispatcher) Transport() http.RoundTripper {
	return d
}

// HTTPClient returns an HTTP client whose requests go through the dispatcher
func (d *Dispatcher) HTTPClient() *http.Client {
	return d.httpClient
}

// Store returns the credential store the dispatcher reads and renews
func (d *Dispatcher) Store() *CredentialStore {
	return d.store
}

// BaseURL returns the API base URL
func (d *Dispatcher) BaseURL() string {
	return d.baseURL
}

// RoundTrip implements http.RoundTripper
func (d *Dispatcher) RoundTrip(req *http.Request) (*http.Response, error) {
	return d.Do(req)
}

// Do sends req, renewing the access token first when it is about to expire
// and once more if the server answers 401. Requests to the auth endpoints
// are passed straight to the base transport.
func (d *Dispatcher) Do(req *http.Request) (*http.Response, error) {
	if IsAuthEndpoint(req.URL) {
		return d.base.RoundTrip(req)
	}

	req, err := rewindable(req)
	if err != nil {
		return nil, err
	}
	ctx := req.Context()

	d.mu.Lock()
	switch {
	case d.refreshing:
		q := d.enqueueLocked(req)
		d.mu.Unlock()
		return d.await(ctx, q)
	case d.store.IsAccessTokenExpiringSoon(d.threshold):
		call := d.beginLocked()
		d.mu.Unlock()
		if !d.runRenewal(ctx, call) && d.store.IsAccessTokenExpired() {
			d.ForceLogout()
			return nil, ErrTokenRefreshFailed
		}
		// another renewal may have started while this one settled
		d.mu.Lock()
		if d.refreshing {
			q := d.enqueueLocked(req)
			d.mu.Unlock()
			return d.await(ctx, q)
		}
		d.mu.Unlock()
	default:
		d.mu.Unlock()
	}

	resp, err := d.send(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	d.mu.Lock()
	if d.refreshing {
		q := d.enqueueLocked(req)
		d.mu.Unlock()
		discard(resp)
		return d.await(ctx, q)
	}
	call := d.beginLocked()
	d.mu.Unlock()

	if d.runRenewal(ctx, call) {
		discard(resp)
		return d.send(req)
	}
	if d.store.IsAccessTokenExpired() {
		discard(resp)
		d.ForceLogout()
		return nil, ErrTokenRefreshFailed
	}
	return resp, nil
}

// Renew joins the in-flight renewal or starts one
func (d *Dispatcher) Renew(ctx context.Context) error {
	d.mu.Lock()
	if d.refreshing {
		call := d.inflight
		d.mu.Unlock()
		return waitRenewal(ctx, call)
	}
	call := d.beginLocked()
	d.mu.Unlock()

	if !d.runRenewal(ctx, call) {
		return ErrTokenRefreshFailed
	}
	return nil
}

// AccessToken returns a usable access token for transports that do not go
// through Do (gRPC, oauth2 clients). It waits for an in-flight renewal and
// renews when the token is about to expire.
func (d *Dispatcher) AccessToken(ctx context.Context) (string, error) {
	d.mu.Lock()
	switch {
	case d.refreshing:
		call := d.inflight
		d.mu.Unlock()
		if err := waitRenewal(ctx, call); err != nil && d.store.IsAccessTokenExpired() {
			return "", err
		}
	case d.store.IsAccessTokenExpiringSoon(d.threshold):
		call := d.beginLocked()
		d.mu.Unlock()
		if !d.runRenewal(ctx, call) && d.store.IsAccessTokenExpired() {
			d.ForceLogout()
			return "", ErrTokenRefreshFailed
		}
	default:
		d.mu.Unlock()
	}

	token := d.store.AccessToken()
	if token == "" {
		return "", ErrNoCredentials
	}
	return token, nil
}

// CreateAuthHeaders returns JSON content headers plus the bearer token, if any,
// for callers that build requests by hand
func (d *Dispatcher) CreateAuthHeaders() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	if token := d.store.AccessToken(); token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

// OnSessionEnded registers fn to run after a forced logout. fn receives the
// login URL the application should navigate to.
func (d *Dispatcher) OnSessionEnded(fn func(loginURL string)) (cancel func()) {
	d.hmu.Lock()
	id := d.nextHandle
	d.nextHandle++
	d.onEnded[id] = fn
	d.hmu.Unlock()

	return func() {
		d.hmu.Lock()
		delete(d.onEnded, id)
		d.hmu.Unlock()
	}
}

// ForceLogout clears all credentials and signals that the session ended.
// Safe to call when nothing is stored.
func (d *Dispatcher) ForceLogout() {
	if err := d.store.ClearTokens(); err != nil {
		d.logger.Error("failed to clear credentials", zap.Error(err))
	}
	d.metrics.forcedLogout()
	d.logger.Warn("session ended", zap.String("login_url", d.loginURL))

	d.hmu.Lock()
	handlers := make([]func(string), 0, len(d.onEnded))
	for _, fn := range d.onEnded {
		handlers = append(handlers, fn)
	}
	d.hmu.Unlock()

	for _, fn := range handlers {
		fn(d.loginURL)
	}
}

// IsRefreshing reports whether a renewal is outstanding
func (d *Dispatcher) IsRefreshing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.refreshing
}

// QueueLen returns how many requests are waiting for the current renewal
func (d *Dispatcher) QueueLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// beginLocked moves the dispatcher into the refreshing state.
// Caller must hold d.mu
func (d *Dispatcher) beginLocked() *refreshCall {
	d.refreshing = true
	d.inflight = &refreshCall{done: make(chan struct{})}
	return d.inflight
}

// enqueueLocked parks req until the current renewal settles.
// Caller must hold d.mu
func (d *Dispatcher) enqueueLocked(req *http.Request) *queuedRequest {
	q := &queuedRequest{req: req, result: make(chan queuedResult, 1)}
	d.queue = append(d.queue, q)
	d.metrics.queuedRequest()
	return q
}

// runRenewal performs the renewal for call, then settles it: the dispatcher
// goes back to idle and the queue is handed to a drain goroutine.
func (d *Dispatcher) runRenewal(ctx context.Context, call *refreshCall) bool {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.renewTimeout)
	defer cancel()

	ctx, span := d.tracer.Start(ctx, "monexa.client.renew")
	err := d.renew(ctx)
	ok := err == nil
	switch {
	case ok:
		d.metrics.renewal("success")
		d.logger.Debug("access token renewed")
	case errors.Is(err, errRefreshTokenUnusable):
		d.metrics.renewal("skipped")
		d.logger.Info("renewal skipped", zap.Error(err))
		span.SetStatus(codes.Error, err.Error())
	default:
		d.metrics.renewal("failure")
		d.logger.Warn("access token renewal failed", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	d.mu.Lock()
	queue := d.queue
	d.queue = nil
	d.refreshing = false
	d.inflight = nil
	call.ok = ok
	close(call.done)
	d.mu.Unlock()

	if len(queue) > 0 {
		go d.drain(queue, ok)
	}
	return ok
}

// drain settles every queued request in arrival order
func (d *Dispatcher) drain(queue []*queuedRequest, ok bool) {
	for _, q := range queue {
		if !ok {
			q.result <- queuedResult{err: ErrTokenRefreshFailed}
			continue
		}
		resp, err := d.send(q.req)
		q.result <- queuedResult{resp: resp, err: err}
	}
}

func (d *Dispatcher) await(ctx context.Context, q *queuedRequest) (*http.Response, error) {
	select {
	case r := <-q.result:
		return r.resp, r.err
	case <-ctx.Done():
		go func() {
			r := <-q.result
			if r.resp != nil {
				r.resp.Body.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

func waitRenewal(ctx context.Context, call *refreshCall) error {
	select {
	case <-call.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if !call.ok {
		return ErrTokenRefreshFailed
	}
	return nil
}

// send issues req once with the current access token
func (d *Dispatcher) send(req *http.Request) (*http.Response, error) {
	out, err := authorize(req, d.store.AccessToken())
	if err != nil {
		return nil, err
	}
	return d.base.RoundTrip(out)
}

type renewRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type renewResponse struct {
	Data struct {
		AccessToken          string    `json:"accessToken"`
		AccessTokenExpiresAt time.Time `json:"accessTokenExpiresAt"`
	} `json:"data"`
}

// renew exchanges the refresh token for a new access token. Exactly one
// attempt; no network call when the refresh token is already unusable.
func (d *Dispatcher) renew(ctx context.Context) error {
	refreshToken := d.store.RefreshToken()
	if refreshToken == "" || d.store.IsRefreshTokenExpired() {
		return errRefreshTokenUnusable
	}

	body, err := json.Marshal(renewRequest{RefreshToken: refreshToken})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	renewURL := d.baseURL + d.renewPath
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("http.url", renewURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, renewURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build renewal request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// Use base transport directly to avoid auth loop
	resp, err := d.base.RoundTrip(req)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("renewal rejected: HTTP %d", resp.StatusCode)
	}

	var result renewResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("invalid response from server: %w", err)
	}
	if result.Data.AccessToken == "" {
		return fmt.Errorf("invalid response from server: missing access token")
	}

	expiresAt := result.Data.AccessTokenExpiresAt
	if expiresAt.IsZero() {
		expiresAt, _ = ExpiryFromToken(result.Data.AccessToken)
	}
	if err := d.store.SetAccessToken(result.Data.AccessToken, expiresAt); err != nil {
		return fmt.Errorf("failed to store renewed token: %w", err)
	}
	return nil
}
