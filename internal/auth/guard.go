// Package auth resolves Basic credentials to customers and checks ownership.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"garagebook/internal/apperr"
	"garagebook/internal/domain"
	"garagebook/internal/store"
)

type CustomerLookup interface {
	GetCustomer(ctx context.Context, id int64) (domain.Customer, error)
	CustomerByEmail(ctx context.Context, email string) (domain.Customer, error)
}

// CachedCredential records which customer a credential resolved to and a fingerprint of the
// password hash it was verified against. An entry whose fingerprint no longer matches the stored
// hash is ignored, so a password change invalidates it at once.
type CachedCredential struct {
	CustomerID int64
	HashSum    string
}

type CredentialCache interface {
	Get(ctx context.Context, key string) (CachedCredential, bool, error)
	Set(ctx context.Context, key string, entry CachedCredential, ttl time.Duration) error
}

type Guard struct {
	customers CustomerLookup
	cache     CredentialCache
	cacheTTL  time.Duration
	logger    *slog.Logger
}

type Option func(*Guard)

// WithCache enables caching of successful resolutions. A ttl of zero or less disables it.
func WithCache(cache CredentialCache, ttl time.Duration) Option {
	return func(g *Guard) {
		if cache != nil && ttl > 0 {
			g.cache = cache
			g.cacheTTL = ttl
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func NewGuard(customers CustomerLookup, opts ...Option) *Guard {
	g := &Guard{customers: customers, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Resolve returns the customer the credential belongs to. Every failure to prove identity
// reports the same unauthorized error.
func (g *Guard) Resolve(ctx context.Context, credential string) (domain.Customer, error) {
	email, password, ok := ParseBasic(credential)
	if !ok {
		return domain.Customer{}, apperr.Unauthorized()
	}

	key := cacheKey(credential)
	if c, ok := g.cached(ctx, key); ok {
		return c, nil
	}

	c, err := g.customers.CustomerByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Customer{}, apperr.Unauthorized()
	}
	if err != nil {
		return domain.Customer{}, apperr.Dependency(err, "resolve credential")
	}
	if bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)) != nil {
		return domain.Customer{}, apperr.Unauthorized()
	}

	if g.cache != nil {
		entry := CachedCredential{CustomerID: c.ID, HashSum: hashSum(c.PasswordHash)}
		if err := g.cache.Set(ctx, key, entry, g.cacheTTL); err != nil {
			g.logger.WarnContext(ctx, "credential cache write failed", "err", err)
		}
	}
	return c, nil
}

func (g *Guard) cached(ctx context.Context, key string) (domain.Customer, bool) {
	if g.cache == nil {
		return domain.Customer{}, false
	}
	entry, ok, err := g.cache.Get(ctx, key)
	if err != nil {
		g.logger.WarnContext(ctx, "credential cache read failed", "err", err)
		return domain.Customer{}, false
	}
	if !ok {
		return domain.Customer{}, false
	}
	c, err := g.customers.GetCustomer(ctx, entry.CustomerID)
	if err != nil || hashSum(c.PasswordHash) != entry.HashSum {
		return domain.Customer{}, false
	}
	return c, true
}

// Authorize resolves the credential and accepts it only for customerID.
func (g *Guard) Authorize(ctx context.Context, credential string, customerID int64) (domain.Customer, error) {
	c, err := g.Resolve(ctx, credential)
	if err != nil {
		return domain.Customer{}, err
	}
	if c.ID != customerID {
		return domain.Customer{}, apperr.Unauthorized()
	}
	return c, nil
}

func (g *Guard) IsAuthorized(ctx context.Context, credential string, customerID int64) bool {
	_, err := g.Authorize(ctx, credential, customerID)
	return err == nil
}

// ParseBasic decodes "Basic base64(email:password)".
func ParseBasic(credential string) (email, password string, ok bool) {
	const prefix = "basic "
	credential = strings.TrimSpace(credential)
	if len(credential) <= len(prefix) || !strings.EqualFold(credential[:len(prefix)], prefix) {
		return "", "", false
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(credential[len(prefix):]))
	if err != nil {
		return "", "", false
	}
	email, password, found := strings.Cut(string(raw), ":")
	email = strings.TrimSpace(email)
	if !found || email == "" || password == "" {
		return "", "", false
	}
	return email, password, true
}

func EncodeBasic(email, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(email+":"+password))
}

func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func hashSum(passwordHash string) string {
	sum := sha256.Sum256([]byte(passwordHash))
	return hex.EncodeToString(sum[:8])
}

func cacheKey(credential string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(credential)))
	return "garagebook:auth:" + hex.EncodeToString(sum[:])
}
