package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"fleet_tracker/internal/apperr"
	"fleet_tracker/internal/metrics"
)

type CredentialResolver interface {
	ResolveCredential(ctx context.Context, deviceID string) (string, error)
}

type cacheEntry struct {
	digest    [sha256.Size]byte
	expiresAt time.Time
}

// Gate authenticates a claimed device identity. The stored verifier is
// read on every call; a successful bcrypt check is remembered for ttl,
// bound to both the presented secret and the verifier it matched, so a
// rotated secret stops working as soon as the new verifier is stored.
type Gate struct {
	registry   CredentialResolver
	verifier   Verifier
	ttl        time.Duration
	localCache sync.Map
	now        func() time.Time
}

// NewGate disables the cache when ttl is zero.
func NewGate(registry CredentialResolver, verifier Verifier, ttl time.Duration) *Gate {
	return &Gate{
		registry: registry,
		verifier: verifier,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Authenticate returns deviceID when secret matches its verifier. It
// fails with apperr.ErrUnknownDevice or apperr.ErrInvalidCredential.
func (g *Gate) Authenticate(ctx context.Context, deviceID, secret string) (string, error) {
	if deviceID == "" {
		metrics.AuthFailures.WithLabelValues("unknown_device").Inc()
		return "", apperr.ErrUnknownDevice
	}

	stored, err := g.registry.ResolveCredential(ctx, deviceID)
	if err != nil {
		if errors.Is(err, apperr.ErrUnknownDevice) {
			g.Invalidate(deviceID)
			metrics.AuthFailures.WithLabelValues("unknown_device").Inc()
			logrus.WithField("device_id", deviceID).Warn("Authentication attempt for unregistered device.")
		}
		return "", err
	}

	digest := credentialDigest(deviceID, secret, stored)
	if g.cached(deviceID, digest) {
		return deviceID, nil
	}

	if !g.verifier.Verify(secret, stored) {
		metrics.AuthFailures.WithLabelValues("invalid_credential").Inc()
		logrus.WithField("device_id", deviceID).Warn("Device presented an invalid credential.")
		return "", apperr.ErrInvalidCredential
	}

	if g.ttl > 0 {
		g.localCache.Store(deviceID, cacheEntry{digest: digest, expiresAt: g.now().Add(g.ttl)})
	}
	return deviceID, nil
}

// Invalidate drops any remembered verification for deviceID.
func (g *Gate) Invalidate(deviceID string) {
	g.localCache.Delete(deviceID)
}

func credentialDigest(deviceID, secret, stored string) [sha256.Size]byte {
	return sha256.Sum256([]byte(deviceID + "\x00" + secret + "\x00" + stored))
}

func (g *Gate) cached(deviceID string, digest [sha256.Size]byte) bool {
	if g.ttl <= 0 {
		return false
	}
	raw, ok := g.localCache.Load(deviceID)
	if !ok {
		return false
	}
	entry := raw.(cacheEntry)
	if !g.now().Before(entry.expiresAt) {
		g.localCache.Delete(deviceID)
		return false
	}
	return subtle.ConstantTimeCompare(entry.digest[:], digest[:]) == 1
}
