package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// OwnerID derives the current user's owner identifier from the access
// token claims. Group-owned images are addressed by the owner's id instead.
func (p *Provider) OwnerID(ctx context.Context) (string, error) {
	token, err := p.AccessToken(ctx)
	if err != nil {
		return "", err
	}
	return ownerIDFromToken(token)
}

// ownerIDFromToken extracts the "{tenant}-{object}" identity pair from a
// token without verifying the signature. The token was just issued to us by
// the authority; we only need its claims, not its integrity.
func ownerIDFromToken(raw string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return "", fmt.Errorf("parse access token: %w", err)
	}

	tid, ok := claims["tid"].(string)
	if !ok || tid == "" {
		return "", fmt.Errorf("access token missing tid claim")
	}
	oid, ok := claims["oid"].(string)
	if !ok || oid == "" {
		return "", fmt.Errorf("access token missing oid claim")
	}
	return fmt.Sprintf("%s-%s", tid, oid), nil
}
