package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/credentials"
	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/logging"
)

const maxErrorBody = 2048

// APIOptions configures the REST variant.
type APIOptions struct {
	BaseURL      string
	Insecure     bool
	Timeout      time.Duration
	ApplyTimeout time.Duration
	Credential   credentials.Credential
	Logger       *logging.Logger
	// Client overrides the HTTP client (tests). A cookie jar is attached
	// when missing.
	Client *http.Client
}

// API talks to the control panel REST API. It logs in lazily, once per
// process, and keeps the session cookie for subsequent calls.
type API struct {
	baseURL      string
	client       *http.Client
	timeout      time.Duration
	applyTimeout time.Duration
	cred         credentials.Credential
	logger       *logging.Logger

	mu       sync.Mutex
	loggedIn bool
}

// NewAPI builds an API backend.
func NewAPI(opts APIOptions) (*API, error) {
	base := strings.TrimRight(opts.BaseURL, "/")
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid API url %q: %w", opts.BaseURL, err)
	}

	client := opts.Client
	if client == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if opts.Insecure {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // appliance uses a self-signed certificate
		}
		client = &http.Client{Transport: transport}
	}
	if client.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		client.Jar = jar
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	applyTimeout := opts.ApplyTimeout
	if applyTimeout <= 0 {
		applyTimeout = 30 * time.Second
	}

	return &API{
		baseURL:      base,
		client:       client,
		timeout:      timeout,
		applyTimeout: applyTimeout,
		cred:         opts.Credential,
		logger:       opts.Logger,
	}, nil
}

func (a *API) Name() string { return "rest api" }

// Login authenticates with cred. Success requires a 2xx response whose
// body carries the username field.
func (a *API) Login(ctx context.Context, cred credentials.Credential) (err error) {
	done := logging.DebugStart(a.logger, "api login", "user=%s", cred.Username)
	defer func() { done(err) }()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	form := url.Values{}
	form.Set("username", cred.Username)
	form.Set("password", cred.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/login", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("login as %s: %w", cred.Username, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode > 299 || !strings.Contains(string(body), "username") {
		return fmt.Errorf("login as %s (HTTP %d): %w", cred.Username, resp.StatusCode, ErrUnauthenticated)
	}

	a.mu.Lock()
	a.loggedIn = true
	a.mu.Unlock()
	return nil
}

func (a *API) ensureSession(ctx context.Context) error {
	a.mu.Lock()
	loggedIn := a.loggedIn
	a.mu.Unlock()
	if loggedIn {
		return nil
	}
	if !a.cred.Valid() {
		a.logger.Debug("No API credentials configured, continuing without login")
		return nil
	}
	return a.Login(ctx, a.cred)
}

func (a *API) valuesURL(path string) string {
	return a.baseURL + "/config/values/" + url.PathEscape(path)
}

func (a *API) Get(ctx context.Context, path string) (doc Document, err error) {
	done := logging.DebugStart(a.logger, "api get", "path=%s", path)
	defer func() { done(err) }()

	if err := a.ensureSession(ctx); err != nil {
		return nil, err
	}

	status, body, err := a.do(ctx, a.timeout, http.MethodGet, a.valuesURL(path), nil)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	switch {
	case status == http.StatusNotFound:
		return Document{}, nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, fmt.Errorf("GET %s (HTTP %d): %w", path, status, ErrUnauthenticated)
	case status < 200 || status > 299:
		return nil, &HTTPError{Method: http.MethodGet, Path: path, Status: status, Body: truncate(body)}
	}

	doc, ok := Decode(body)
	if !ok {
		a.logger.Warning("Unparseable API response for %s; treating as empty", path)
	}
	return doc, nil
}

func (a *API) Put(ctx context.Context, path string, doc Document) (err error) {
	done := logging.DebugStart(a.logger, "api put", "path=%s", path)
	defer func() { done(err) }()

	if err := a.ensureSession(ctx); err != nil {
		return err
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	status, body, err := a.do(ctx, a.timeout, http.MethodPut, a.valuesURL(path), payload)
	if err != nil {
		return fmt.Errorf("PUT %s: %w", path, err)
	}
	return checkStatus(http.MethodPut, path, status, body)
}

func (a *API) Apply(ctx context.Context) (err error) {
	done := logging.DebugStart(a.logger, "api apply", "")
	defer func() { done(err) }()

	if err := a.ensureSession(ctx); err != nil {
		return err
	}
	status, body, err := a.do(ctx, a.applyTimeout, http.MethodPost, a.baseURL+"/config/apply", nil)
	if err != nil {
		return fmt.Errorf("POST config/apply: %w", err)
	}
	return checkStatus(http.MethodPost, "config/apply", status, body)
}

func (a *API) do(ctx context.Context, timeout time.Duration, method, target string, payload []byte) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func checkStatus(method, path string, status int, body []byte) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%s %s (HTTP %d): %w", method, path, status, ErrUnauthenticated)
	case status < 200 || status > 299:
		return &HTTPError{Method: method, Path: path, Status: status, Body: truncate(body)}
	}
	return nil
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	return s
}

// IsAuthError reports whether err stems from rejected credentials.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}
