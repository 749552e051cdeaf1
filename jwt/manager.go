package jwt

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType discriminates access tokens from refresh tokens.
type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
)

// MinSecretLength is the shortest accepted HS256 signing secret.
const MinSecretLength = 32

var (
	// ErrInvalidToken is returned for malformed, forged or expired tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenType is returned when a valid token is presented for the wrong use.
	ErrTokenType = fmt.Errorf("%w: unexpected token type", ErrInvalidToken)
)

// Config configures a [Manager].
type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// Secret is the shared HS256 key.
	Secret   []byte
	Issuer   string
	Audience string
	Leeway   time.Duration
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Manager signs and parses tokens. It is safe for concurrent use.
type Manager struct {
	config Config
}

// Claims is the claim set of both token kinds. Role is empty on refresh tokens.
type Claims struct {
	Role string    `json:"role,omitempty"`
	Type TokenType `json:"type"`
	jwt.RegisteredClaims
}

// AccountID parses the subject claim.
func (c *Claims) AccountID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return id, nil
}

// Issued is a signed token with its expiry.
type Issued struct {
	Token     string
	ExpiresAt time.Time
}

// NewManager validates cfg and returns a manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		return nil, errors.New("refresh TTL shorter than access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("hs256 secret must be at least %d bytes", MinSecretLength)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)
	cfg.Secret = secret

	return &Manager{config: cfg}, nil
}

// CreateAccess issues an access token for accountID carrying a snapshot of role.
func (m *Manager) CreateAccess(accountID int64, role string) (Issued, error) {
	return m.create(accountID, role, TypeAccess, m.config.AccessTTL)
}

// CreateRefresh issues a refresh token for accountID.
func (m *Manager) CreateRefresh(accountID int64) (Issued, error) {
	return m.create(accountID, "", TypeRefresh, m.config.RefreshTTL)
}

func (m *Manager) create(accountID int64, role string, typ TokenType, ttl time.Duration) (Issued, error) {
	if accountID <= 0 {
		return Issued{}, errors.New("invalid account id")
	}

	now := m.config.Now()
	expires := now.Add(ttl)
	claims := Claims{
		Role: role,
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(accountID, 10),
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
			// jti keeps two pairs issued within the same second distinct.
			ID: uuid.NewString(),
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
	if err != nil {
		return Issued{}, err
	}
	return Issued{Token: signed, ExpiresAt: expires}, nil
}

// Parse verifies signature, expiry, issuer and audience, then requires the
// type claim to equal expected. Every failure wraps [ErrInvalidToken].
func (m *Manager) Parse(tokenStr string, expected TokenType) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.config.Now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.config.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != expected {
		return nil, ErrTokenType
	}
	if _, err := claims.AccountID(); err != nil {
		return nil, err
	}
	return claims, nil
}

// AccessTTL returns the configured access token lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.config.AccessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (m *Manager) RefreshTTL() time.Duration { return m.config.RefreshTTL }
