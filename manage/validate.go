package manage

import (
	"context"
	"fmt"

	oerrors "github.com/legit-games/authcode-service/errors"
	"github.com/legit-games/authcode-service/generates"
	"github.com/legit-games/authcode-service/metrics"
	"github.com/legit-games/authcode-service/store"
)

// Validation is the outcome of a successful gate check.
type Validation struct {
	Claims *generates.JWTAccessClaims
	// AccessToken is the token to keep using; it differs from the presented
	// one when Rotated is set.
	AccessToken string
	Rotated     bool
}

// ValidateAccess runs the gate for one request in fixed stages:
//
//  1. verify the access token signature; a bad one fails with no refresh
//  2. if unexpired, require its persisted record (CheckAccessRecord) and accept
//  3. if expired or absent, use the refresh token to mint a replacement
//
// ErrRefreshInvalidOrExpired means the caller must re-authenticate.
func (m *Manager) ValidateAccess(ctx context.Context, accessToken, refreshToken string) (*Validation, error) {
	if accessToken == "" && refreshToken == "" {
		return nil, fmt.Errorf("%w: no credentials presented", oerrors.ErrValidation)
	}

	var expired *generates.JWTAccessClaims
	if accessToken != "" {
		claims, err := m.accessGen.Parse(accessToken, m.now())
		switch {
		case err == nil:
			if err := m.checkAccessRecord(ctx, accessToken, claims); err != nil {
				m.metrics.ObserveValidation(metrics.ValidationRevoked)
				return nil, err
			}
			m.metrics.ObserveValidation(metrics.ValidationValid)
			return &Validation{Claims: claims, AccessToken: accessToken}, nil
		case oerrors.Is(err, generates.ErrTokenExpired):
			expired = claims
		default:
			m.metrics.ObserveValidation(metrics.ValidationInvalid)
			return nil, err
		}
	}

	v, err := m.rotate(ctx, accessToken, refreshToken, expired)
	if err != nil {
		if oerrors.Is(err, oerrors.ErrRefreshInvalidOrExpired) {
			m.metrics.ObserveValidation(metrics.ValidationReauth)
		} else {
			m.metrics.ObserveValidation(metrics.ValidationInvalid)
		}
		return nil, err
	}
	m.metrics.ObserveValidation(metrics.ValidationRotated)
	return v, nil
}

func (m *Manager) checkAccessRecord(ctx context.Context, token string, claims *generates.JWTAccessClaims) error {
	if !m.cfg.CheckAccessRecord {
		return nil
	}
	rec, err := m.access.GetAccess(ctx, token)
	if err != nil {
		if oerrors.Is(err, store.ErrNotFound) {
			return oerrors.ErrAccessTokenRevoked
		}
		return fmt.Errorf("%w: get access token: %v", oerrors.ErrStorageFailure, err)
	}
	if rec.UserID != claims.UserID || rec.ClientID != claims.ClientID {
		return oerrors.ErrAccessTokenRevoked
	}
	return nil
}

// rotate is the only mutating path of the gate. expired carries the verified
// claims of the presented access token, or nil when none was presented.
func (m *Manager) rotate(ctx context.Context, oldAccess, refreshToken string, expired *generates.JWTAccessClaims) (*Validation, error) {
	if refreshToken == "" {
		return nil, oerrors.ErrTokenExpiredNoRefresh
	}
	rt, err := m.refresh.GetRefresh(ctx, refreshToken)
	if err != nil {
		// No record behind the cookie means there is no refresh path at all.
		if oerrors.Is(err, store.ErrNotFound) {
			return nil, oerrors.ErrTokenExpiredNoRefresh
		}
		return nil, fmt.Errorf("%w: get refresh token: %v", oerrors.ErrStorageFailure, err)
	}
	if !rt.Usable(m.now()) {
		return nil, oerrors.ErrRefreshInvalidOrExpired
	}
	if expired != nil && !rt.BelongsTo(expired.UserID, expired.ClientID) {
		m.log.Warnw("refresh token presented with access token of another subject",
			"refresh_user_id", rt.UserID, "access_user_id", expired.UserID)
		if err := m.refresh.RevokeRefresh(ctx, refreshToken); err != nil && !oerrors.Is(err, store.ErrNotFound) {
			m.log.Errorw("revoke mismatched refresh token failed", "error", err)
		}
		return nil, oerrors.ErrRefreshInvalidOrExpired
	}

	access, err := m.mintAccess(ctx, rt.UserID, rt.ClientID)
	if err != nil {
		return nil, err
	}
	if err := m.access.CreateAccess(ctx, access); err != nil {
		return nil, fmt.Errorf("%w: persist rotated access token: %v", oerrors.ErrStorageFailure, err)
	}
	if oldAccess != "" {
		if err := m.access.DeleteAccess(ctx, oldAccess); err != nil {
			m.log.Warnw("delete replaced access token failed", "error", err)
		}
	}
	claims, err := m.accessGen.Parse(access.Token, m.now())
	if err != nil {
		return nil, fmt.Errorf("%w: verify rotated access token: %v", oerrors.ErrStorageFailure, err)
	}

	m.metrics.TokensIssued("rotation", false)
	m.log.Infow("access token rotated", "user_id", rt.UserID, "client_id", rt.ClientID)
	return &Validation{Claims: claims, AccessToken: access.Token, Rotated: true}, nil
}
