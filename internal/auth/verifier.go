package auth

import (
	"crypto/rsa"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Signing algorithms.
const (
	AlgRS256 = "RS256"
	AlgHS256 = "HS256"
)

// VerifierConfig holds configuration for JWT verification.
type VerifierConfig struct {
	// RS256 configuration
	PublicKeyPEM string

	// HS256 configuration
	SecretKey string

	Algorithm string // "RS256" or "HS256"

	// Leeway tolerated on exp/nbf/iat.
	Leeway time.Duration
}

// Verifier handles JWT token verification with support for RS256 and HS256.
type Verifier struct {
	config    VerifierConfig
	publicKey *rsa.PublicKey
	parser    *jwt.Parser
}

// NewVerifier creates a new JWT verifier.
func NewVerifier(config VerifierConfig) (*Verifier, error) {
	v := &Verifier{config: config}

	switch config.Algorithm {
	case AlgRS256:
		if config.PublicKeyPEM == "" {
			return nil, fmt.Errorf("RS256 requires a public key")
		}
		if err := v.loadPublicKeyFromPEM(config.PublicKeyPEM); err != nil {
			return nil, fmt.Errorf("failed to load public key from PEM: %w", err)
		}
	case AlgHS256:
		if config.SecretKey == "" {
			return nil, fmt.Errorf("HS256 requires secret key")
		}
	default:
		return nil, fmt.Errorf("unsupported algorithm: %s", config.Algorithm)
	}

	v.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{config.Algorithm}),
		jwt.WithLeeway(config.Leeway),
	)
	return v, nil
}

// NewVerifierFromFile builds an RS256 verifier from a PEM file.
func NewVerifierFromFile(path string) (*Verifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	return NewVerifier(VerifierConfig{Algorithm: AlgRS256, PublicKeyPEM: string(data)})
}

// VerifyToken verifies a JWT token and returns the claims.
func (v *Verifier) VerifyToken(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, fmt.Errorf("token cannot be empty")
	}

	token, err := v.parser.ParseWithClaims(tokenString, &jwt.MapClaims{}, v.keyFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	return v.extractClaimsFromMap(claims)
}

func (v *Verifier) keyFunc(token *jwt.Token) (interface{}, error) {
	if token.Method.Alg() != v.config.Algorithm {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	if v.config.Algorithm == AlgHS256 {
		return []byte(v.config.SecretKey), nil
	}
	return v.publicKey, nil
}

// extractClaimsFromMap extracts claims from JWT MapClaims.
func (v *Verifier) extractClaimsFromMap(claims *jwt.MapClaims) (*Claims, error) {
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("missing or invalid 'sub' claim")
	}

	roles, err := extractStringSlice(claims, "roles")
	if err != nil {
		return nil, fmt.Errorf("missing or invalid 'roles' claim: %w", err)
	}

	scopes, err := extractStringSlice(claims, "scopes")
	if err != nil {
		return nil, fmt.Errorf("missing or invalid 'scopes' claim: %w", err)
	}

	if !validateAll(roles, validRoles) {
		return nil, fmt.Errorf("invalid roles: %v", roles)
	}
	if !validateAll(scopes, validScopes) {
		return nil, fmt.Errorf("invalid scopes: %v", scopes)
	}

	return &Claims{
		Subject: sub,
		Roles:   roles,
		Scopes:  scopes,
	}, nil
}

func extractStringSlice(claims *jwt.MapClaims, key string) ([]string, error) {
	value, ok := (*claims)[key]
	if !ok {
		return nil, fmt.Errorf("missing claim: %s", key)
	}

	switch val := value.(type) {
	case []string:
		return val, nil
	case []interface{}:
		result := make([]string, len(val))
		for i, item := range val {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("invalid %s claim: not a string", key)
			}
			result[i] = str
		}
		return result, nil
	default:
		return nil, fmt.Errorf("invalid %s claim: not a string array", key)
	}
}

var (
	validRoles  = map[string]bool{RoleViewer: true, RoleController: true}
	validScopes = map[string]bool{ScopeRead: true, ScopeControl: true, ScopeTelemetry: true}
)

// validateAll reports whether values is non-empty and every value is known.
func validateAll(values []string, known map[string]bool) bool {
	for _, v := range values {
		if !known[v] {
			return false
		}
	}
	return len(values) > 0
}

func (v *Verifier) loadPublicKeyFromPEM(pemData string) error {
	pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemData))
	if err != nil {
		return err
	}
	v.publicKey = pub
	return nil
}
