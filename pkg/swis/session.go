// Package swis is a minimal client for the SolarWinds Information Service
// JSON API: SWQL queries, verb invocation and entity updates.
//
// Transport faults never escape as errors from Query, Invoke or Update; they
// are logged and surface as an empty Rows or an absent Reply.
package swis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"swisctl/pkg/models"
)

const (
	// DefaultPort is the SWIS REST endpoint port.
	DefaultPort = "17778"
	// BasePath is the JSON API root on the server.
	BasePath = "/SolarWinds/InformationService/v3/Json"

	// ProbeQuery is the read-only query used to prove a session works.
	ProbeQuery = "SELECT TOP 1 NodeID FROM Orion.Nodes"
)

// ErrConnection marks a session that could not be opened or validated.
var ErrConnection = errors.New("session unavailable")

// Session is an authenticated handle to one inventory server.
type Session struct {
	baseURL    string
	credential models.Credential
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithHTTPClient overrides the HTTP client (see NewHTTPClient).
func WithHTTPClient(client *http.Client) Option {
	return func(s *Session) { s.httpClient = client }
}

// WithLogger sets the logger used to narrate requests.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// Open prepares a session for address. It does not touch the network, so a
// returned Session is not usable until Validate reports true.
func Open(address string, credential models.Credential, opts ...Option) (*Session, error) {
	baseURL, err := endpoint(address)
	if err != nil {
		return nil, err
	}
	if credential.Username == "" {
		return nil, fmt.Errorf("%w: no account identity", ErrConnection)
	}

	s := &Session{
		baseURL:    baseURL,
		credential: credential,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.httpClient == nil {
		s.httpClient, err = NewHTTPClient(TransportOptions{})
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// endpoint turns a host, host:port or full URL into the JSON API root.
func endpoint(address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", fmt.Errorf("%w: no server address", ErrConnection)
	}

	if !strings.Contains(address, "://") {
		host := address
		if _, _, err := net.SplitHostPort(address); err != nil {
			host = net.JoinHostPort(strings.Trim(address, "[]"), DefaultPort)
		}
		address = "https://" + host
	}

	u, err := url.Parse(address)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: invalid server address %q", ErrConnection, address)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrConnection, u.Scheme)
	}
	if strings.Trim(u.Path, "/") == "" {
		u.Path = BasePath
	}
	return strings.TrimSuffix(u.String(), "/"), nil
}

// BaseURL returns the JSON API root this session talks to.
func (s *Session) BaseURL() string { return s.baseURL }

// Validate runs ProbeQuery and reports whether it returned at least one row.
// A handshake that succeeds but yields nothing is still a failed session.
func (s *Session) Validate(ctx context.Context) bool {
	rows := s.Query(ctx, ProbeQuery, nil)
	if rows.Err != nil {
		s.logger.Warn("Session validation failed", "component", "RemoteSession", "server", s.baseURL, "error", rows.Err)
		return false
	}
	if rows.Empty() {
		s.logger.Warn("Session validation returned no rows", "component", "RemoteSession", "server", s.baseURL)
		return false
	}
	s.logger.Info("Session validated", "component", "RemoteSession", "server", s.baseURL, "user", s.credential.Username)
	return true
}

// Query runs a SWQL query with named parameters (@name in the query text).
func (s *Session) Query(ctx context.Context, query string, params map[string]any) Rows {
	if params == nil {
		params = map[string]any{}
	}
	body, err := s.do(ctx, "/Query", map[string]any{"query": query, "parameters": params})
	if err != nil {
		return Rows{Err: err}
	}

	var envelope struct {
		Results []json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		err = fmt.Errorf("decode query response: %w", err)
		s.logger.Warn("SWIS query failed", "component", "RemoteSession", "error", err)
		return Rows{Err: err}
	}
	s.logger.Debug("SWIS query", "component", "RemoteSession", "query", query, "rows", len(envelope.Results))
	return Rows{Results: envelope.Results}
}

// Invoke calls verb on entity with positional arguments.
func (s *Session) Invoke(ctx context.Context, entity, verb string, args ...any) Reply {
	if args == nil {
		args = []any{}
	}
	body, err := s.do(ctx, "/Invoke/"+entity+"/"+verb, args)
	if err != nil {
		return Reply{Err: err}
	}
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && !json.Valid(trimmed) {
		err := fmt.Errorf("decode %s.%s reply: invalid JSON", entity, verb)
		s.logger.Warn("SWIS invoke failed", "component", "RemoteSession", "error", err)
		return Reply{Err: err}
	}
	s.logger.Debug("SWIS invoke", "component", "RemoteSession", "entity", entity, "verb", verb, "reply_bytes", len(body))
	return Reply{Body: body}
}

// Update sets properties on the entity at uri.
func (s *Session) Update(ctx context.Context, uri string, properties map[string]any) Reply {
	body, err := s.do(ctx, "/"+strings.TrimPrefix(uri, "/"), properties)
	if err != nil {
		return Reply{Err: err}
	}
	s.logger.Debug("SWIS update", "component", "RemoteSession", "uri", uri)
	return Reply{Body: body}
}

// Close releases pooled connections held by the session.
func (s *Session) Close() {
	s.httpClient.CloseIdleConnections()
}

// apiError is the fault body SWIS returns with non-2xx responses.
type apiError struct {
	Message       string `json:"Message"`
	ExceptionType string `json:"ExceptionType"`
}

func (s *Session) do(ctx context.Context, path string, payload any) (json.RawMessage, error) {
	body, err := s.roundTrip(ctx, path, payload)
	if err != nil {
		s.logger.Warn("SWIS request failed", "component", "RemoteSession", "path", path, "error", err)
	}
	return body, err
}

func (s *Session) roundTrip(ctx context.Context, path string, payload any) (json.RawMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(s.credential.Username, s.credential.Password)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var fault apiError
		if json.Unmarshal(body, &fault) == nil && fault.Message != "" {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, fault.Message)
		}
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return body, nil
}
