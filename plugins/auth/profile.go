package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Type selects how a profile obtains credentials.
type Type string

const (
	TypeBearer Type = "bearer"
	TypeBasic  Type = "basic"
	TypeAPIKey Type = "api_key"
	TypeOAuth2 Type = "oauth2"
	TypeToken  Type = "token"
)

var (
	ErrUnknownProfile  = errors.New("unknown auth profile")
	ErrUnsupportedType = errors.New("unsupported auth type")
	ErrMissingToken    = errors.New("token not found in login response")
)

// Profile configures one named set of credentials.
type Profile struct {
	Type Type `mapstructure:"type" yaml:"type" validate:"required,oneof=bearer basic api_key oauth2 token"`

	// bearer: POST {username, password} as JSON to LoginURL and read TokenField
	LoginURL   string `mapstructure:"login_url" yaml:"login_url" validate:"required_if=Type bearer"`
	Username   string `mapstructure:"username" yaml:"username"`
	Password   string `mapstructure:"password" yaml:"password"`
	TokenField string `mapstructure:"token_field" yaml:"token_field" default:"token"`

	// oauth2: form POST to TokenURL
	TokenURL     string `mapstructure:"token_url" yaml:"token_url" validate:"required_if=Type oauth2"`
	ClientID     string `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret string `mapstructure:"client_secret" yaml:"client_secret"`
	GrantType    string `mapstructure:"grant_type" yaml:"grant_type" default:"client_credentials"`
	Scope        string `mapstructure:"scope" yaml:"scope"`

	// token: a pre-issued bearer token
	Token string `mapstructure:"token" yaml:"token" validate:"required_if=Type token"`

	// api_key
	Header string `mapstructure:"header" yaml:"header" default:"X-API-Key"`
	Key    string `mapstructure:"key" yaml:"key" validate:"required_if=Type api_key"`

	// TTL bounds a session when the token carries no expiry of its own
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl" default:"24h"`
}

// Session is an established credential for a profile.
type Session struct {
	Type         Type
	Token        string
	RefreshToken string
	// ExpiresAt is zero for credentials that never expire
	ExpiresAt time.Time
	Headers   map[string]string
}

// Valid reports whether the session can still be used at now.
func (s Session) Valid(now time.Time) bool {
	switch s.Type {
	case TypeBasic, TypeAPIKey:
		return len(s.Headers) > 0
	default:
		if s.Token == "" {
			return false
		}
		return s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt)
	}
}

func bearerSession(t Type, token, refresh string, expiresAt time.Time) Session {
	return Session{
		Type:         t,
		Token:        token,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
		Headers:      map[string]string{"Authorization": "Bearer " + token},
	}
}

func basicSession(p Profile) (Session, error) {
	if p.Username == "" || p.Password == "" {
		return Session{}, fmt.Errorf("basic auth requires username and password")
	}
	credentials := base64.StdEncoding.EncodeToString([]byte(p.Username + ":" + p.Password))
	return Session{
		Type:    TypeBasic,
		Headers: map[string]string{"Authorization": "Basic " + credentials},
	}, nil
}

func apiKeySession(p Profile) (Session, error) {
	if p.Key == "" {
		return Session{}, fmt.Errorf("api_key auth requires key")
	}
	return Session{
		Type:    TypeAPIKey,
		Headers: map[string]string{p.Header: p.Key},
	}, nil
}

// tokenExpiry returns the exp claim when token is a JWT, otherwise fallback.
// The signature is not verified; the server under test owns the key.
func tokenExpiry(token string, fallback time.Time) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return fallback
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return fallback
	}
	return exp.Time
}
