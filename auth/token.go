package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/stellarcarbon/sorocarbon/crypto"
)

// TokenConfig controls capability token verification.
type TokenConfig struct {
	HMACSecret string
	Issuer     string
	Audience   string
	ClockSkew  time.Duration
}

// Grant lets Subject authorize the listed functions of Contract. A Functions
// entry of "*" matches every function; an empty Contract matches any
// contract.
type Grant struct {
	Subject   crypto.Address
	Contract  crypto.Address
	Functions []string
}

func (g Grant) covers(inv Invocation) bool {
	if !g.Contract.IsZero() && !g.Contract.Equal(inv.Contract) {
		return false
	}
	for _, fn := range g.Functions {
		if fn == "*" || fn == inv.Function {
			return true
		}
	}
	return false
}

// Grants authorizes invocations covered by a verified capability token.
type Grants []Grant

func (gs Grants) Require(v Verifier, addr crypto.Address, inv Invocation) error {
	for _, g := range gs {
		if g.Subject.Equal(addr) && g.covers(inv) {
			return nil
		}
	}
	return None{}.Require(v, addr, inv)
}

// TokenVerifier parses HMAC-signed JWTs into grants.
type TokenVerifier struct {
	cfg    TokenConfig
	secret []byte
}

func NewTokenVerifier(cfg TokenConfig) *TokenVerifier {
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 2 * time.Minute
	}
	return &TokenVerifier{cfg: cfg, secret: []byte(strings.TrimSpace(cfg.HMACSecret))}
}

// Enabled reports whether a secret is configured.
func (tv *TokenVerifier) Enabled() bool {
	return tv != nil && len(tv.secret) > 0
}

// Verify validates tokenString and returns the grant it carries. The subject
// claim holds the address, "contract" optionally pins a contract and "fns"
// lists the authorized functions.
func (tv *TokenVerifier) Verify(tokenString string) (Grant, error) {
	if !tv.Enabled() {
		return Grant{}, errors.New("auth: token secret not configured")
	}
	opts := []jwt.ParserOption{jwt.WithLeeway(tv.cfg.ClockSkew), jwt.WithExpirationRequired()}
	if tv.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(tv.cfg.Issuer))
	}
	if tv.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(tv.cfg.Audience))
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return tv.secret, nil
	}, opts...)
	if err != nil {
		return Grant{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Grant{}, fmt.Errorf("%w: token invalid", ErrUnauthorized)
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Grant{}, fmt.Errorf("%w: missing subject", ErrUnauthorized)
	}
	subject, err := crypto.DecodeAddress(sub)
	if err != nil {
		return Grant{}, fmt.Errorf("%w: subject: %v", ErrUnauthorized, err)
	}
	grant := Grant{Subject: subject}
	if raw, ok := claims["contract"].(string); ok && raw != "" {
		contract, err := crypto.DecodeAddress(raw)
		if err != nil {
			return Grant{}, fmt.Errorf("%w: contract: %v", ErrUnauthorized, err)
		}
		grant.Contract = contract
	}
	switch fns := claims["fns"].(type) {
	case string:
		grant.Functions = strings.Fields(fns)
	case []interface{}:
		for _, fn := range fns {
			if s, ok := fn.(string); ok && s != "" {
				grant.Functions = append(grant.Functions, s)
			}
		}
	}
	if len(grant.Functions) == 0 {
		return Grant{}, fmt.Errorf("%w: token grants no functions", ErrUnauthorized)
	}
	return grant, nil
}

// Issue signs a capability token for grant valid for ttl. Used by operator
// tooling and tests.
func (tv *TokenVerifier) Issue(grant Grant, ttl time.Duration, now time.Time) (string, error) {
	if !tv.Enabled() {
		return "", errors.New("auth: token secret not configured")
	}
	claims := jwt.MapClaims{
		"sub": grant.Subject.String(),
		"fns": grant.Functions,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if !grant.Contract.IsZero() {
		claims["contract"] = grant.Contract.String()
	}
	if tv.cfg.Issuer != "" {
		claims["iss"] = tv.cfg.Issuer
	}
	if tv.cfg.Audience != "" {
		claims["aud"] = tv.cfg.Audience
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tv.secret)
}
