package sharing

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/inkwell-hq/inkwell/pkg/auth"
	"github.com/inkwell-hq/inkwell/pkg/observability"
	"github.com/inkwell-hq/inkwell/pkg/resources"
)

// Issuer creates and resolves share links. Each resource carries at most
// one live token; issuing again rotates it and the old token dies
// immediately with no grace period.
type Issuer struct {
	store   Store
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewIssuer creates a link issuer
func NewIssuer(store Store, logger *observability.Logger, metrics *observability.Metrics) *Issuer {
	return &Issuer{
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

// generateToken returns a high-entropy random token
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate link token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// CreateOrRotate issues the link token for a resource, replacing any
// existing one. expiresAt nil means the link never expires.
func (i *Issuer) CreateOrRotate(ctx context.Context, domain string, resourceType resources.ResourceType, resourceID string, role auth.Role, expiresAt *time.Time, createdBy string) (string, error) {
	if !role.Valid() || role == auth.RoleNone {
		return "", fmt.Errorf("invalid link role: %s", role)
	}

	token, err := generateToken()
	if err != nil {
		return "", err
	}

	share := &SharePermission{
		Domain:       domain,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Scope:        ScopeLink,
		LinkToken:    &token,
		Role:         role,
		ExpiresAt:    expiresAt,
		CreatedBy:    createdBy,
	}
	if err := i.store.UpsertLinkShare(ctx, share); err != nil {
		return "", err
	}

	if i.metrics != nil {
		i.metrics.LinkRotationsTotal.Inc()
	}
	i.logger.WithFields(map[string]interface{}{
		"domain":        domain,
		"resource_type": resourceType,
		"resource_id":   resourceID,
		"role":          role,
	}).Info("share link rotated")

	return token, nil
}

// Resolve validates a token and returns its grant. Expiry is checked here
// at resolve time; expired rows are purged separately by maintenance.
func (i *Issuer) Resolve(ctx context.Context, token string) (*LinkGrant, error) {
	if token == "" {
		i.count("invalid")
		return nil, ErrInvalidLink
	}

	share, err := i.store.GetLinkShareByToken(ctx, token)
	if err != nil {
		i.count("invalid")
		return nil, err
	}

	if share.ExpiresAt != nil && share.ExpiresAt.Before(time.Now()) {
		i.count("expired")
		return nil, ErrLinkExpired
	}

	i.count("ok")
	return &LinkGrant{
		Domain:       share.Domain,
		ResourceType: share.ResourceType,
		ResourceID:   share.ResourceID,
		Role:         share.Role,
	}, nil
}

func (i *Issuer) count(outcome string) {
	if i.metrics != nil {
		i.metrics.LinkResolvesTotal.WithLabelValues(outcome).Inc()
	}
}
