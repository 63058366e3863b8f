package auth

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
)

var validate = validator.New()

// Manager authenticates named profiles and caches their sessions. It satisfies the
// workflow engine's auth checker.
type Manager struct {
	l        *slog.Logger
	client   *resty.Client
	profiles map[string]Profile
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]Session
}

// NewManager validates every profile and returns a manager with no sessions.
func NewManager(l *slog.Logger, client *resty.Client, profiles map[string]Profile) (*Manager, error) {
	if l == nil {
		l = slog.Default()
	}
	if client == nil {
		client = resty.New()
	}

	prepared := make(map[string]Profile, len(profiles))
	for name, p := range profiles {
		if err := defaults.Set(&p); err != nil {
			return nil, fmt.Errorf("auth profile %s: failed to apply defaults: %w", name, err)
		}
		if err := validate.Struct(p); err != nil {
			return nil, fmt.Errorf("auth profile %s: validation failed: %w", name, err)
		}
		prepared[name] = p
	}

	return &Manager{
		l:        l,
		client:   client,
		profiles: prepared,
		now:      time.Now,
		sessions: make(map[string]Session),
	}, nil
}

// Profiles lists the configured profile names in sorted order.
func (m *Manager) Profiles() []string {
	names := make([]string, 0, len(m.profiles))
	for name := range m.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Authenticate returns a valid session for the profile, logging in when the cached
// session is missing or expired.
func (m *Manager) Authenticate(ctx context.Context, name string) (Session, error) {
	if s, ok := m.session(name); ok {
		m.l.DebugContext(ctx, "Using cached auth session", "profile", name)
		return s, nil
	}

	p, ok := m.profiles[name]
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", ErrUnknownProfile, name)
	}

	s, err := m.login(ctx, p)
	if err != nil {
		m.l.WarnContext(ctx, "Authentication failed", "profile", name, "type", p.Type, "error", err)
		return Session{}, fmt.Errorf("authenticating %s: %w", name, err)
	}

	m.mu.Lock()
	m.sessions[name] = s
	m.mu.Unlock()

	m.l.InfoContext(ctx, "Authenticated", "profile", name, "type", p.Type)
	return s, nil
}

// IsAuthenticated reports whether the profile holds a valid session. It never logs in.
func (m *Manager) IsAuthenticated(name string) bool {
	_, ok := m.session(name)
	return ok
}

// Headers returns the request headers of the profile's valid session, or nil.
func (m *Manager) Headers(name string) map[string]string {
	s, ok := m.session(name)
	if !ok {
		return nil
	}
	return maps.Clone(s.Headers)
}

// Clear drops the cached session of one profile, or of all profiles when name is empty.
func (m *Manager) Clear(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if name == "" {
		clear(m.sessions)
		return
	}
	delete(m.sessions, name)
}

func (m *Manager) session(name string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[name]
	if !ok || !s.Valid(m.now()) {
		return Session{}, false
	}
	return s, true
}

func (m *Manager) login(ctx context.Context, p Profile) (Session, error) {
	switch p.Type {
	case TypeBasic:
		return basicSession(p)
	case TypeAPIKey:
		return apiKeySession(p)
	case TypeToken:
		return bearerSession(TypeToken, p.Token, "", tokenExpiry(p.Token, time.Time{})), nil
	case TypeBearer:
		return m.bearerLogin(ctx, p)
	case TypeOAuth2:
		return m.oauth2Login(ctx, p)
	default:
		return Session{}, fmt.Errorf("%w: %s", ErrUnsupportedType, p.Type)
	}
}

func (m *Manager) bearerLogin(ctx context.Context, p Profile) (Session, error) {
	result := map[string]any{}
	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"username": p.Username, "password": p.Password}).
		SetResult(&result).
		Post(p.LoginURL)
	if err != nil {
		return Session{}, fmt.Errorf("login request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return Session{}, fmt.Errorf("login failed: HTTP %d - %s", resp.StatusCode(), resp.String())
	}

	token := stringField(result, p.TokenField)
	if token == "" {
		token = stringField(result, "access_token")
	}
	if token == "" {
		return Session{}, ErrMissingToken
	}

	expiresAt := tokenExpiry(token, m.now().Add(p.TTL))
	return bearerSession(TypeBearer, token, stringField(result, "refresh_token"), expiresAt), nil
}

func (m *Manager) oauth2Login(ctx context.Context, p Profile) (Session, error) {
	form := map[string]string{
		"grant_type":    p.GrantType,
		"client_id":     p.ClientID,
		"client_secret": p.ClientSecret,
	}
	if p.GrantType == "password" {
		form["username"] = p.Username
		form["password"] = p.Password
	}
	if p.Scope != "" {
		form["scope"] = p.Scope
	}

	result := map[string]any{}
	resp, err := m.client.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&result).
		Post(p.TokenURL)
	if err != nil {
		return Session{}, fmt.Errorf("token request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return Session{}, fmt.Errorf("token request failed: HTTP %d - %s", resp.StatusCode(), resp.String())
	}

	token := stringField(result, "access_token")
	if token == "" {
		return Session{}, ErrMissingToken
	}

	ttl := time.Hour
	if secs, ok := result["expires_in"].(float64); ok && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}
	return bearerSession(TypeOAuth2, token, stringField(result, "refresh_token"), m.now().Add(ttl)), nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
