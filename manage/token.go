package manage

import (
	"context"
	"crypto/subtle"
	"fmt"

	oerrors "github.com/legit-games/authcode-service/errors"
	"github.com/legit-games/authcode-service/generates"
	"github.com/legit-games/authcode-service/metrics"
	"github.com/legit-games/authcode-service/models"
	"github.com/legit-games/authcode-service/store"
)

// TokenPair is the result of a successful code exchange.
type TokenPair struct {
	Access  *models.AccessToken
	Refresh *models.RefreshToken
	// Redirect is the client's landing page, or its redirect URI when none is set.
	Redirect string
}

// ExchangeCode redeems code and issues an access/refresh token pair. The
// state presented with the code must equal the one the code was issued with.
// No token is returned unless both records were persisted.
func (m *Manager) ExchangeCode(ctx context.Context, code, state string) (*TokenPair, error) {
	if code == "" || state == "" {
		return nil, fmt.Errorf("%w: code and state are required", oerrors.ErrValidation)
	}
	ac, err := m.RedeemCode(ctx, code)
	if err != nil {
		return nil, err
	}
	// The claim above already consumed the code; a state mismatch burns it.
	if subtle.ConstantTimeCompare([]byte(ac.State), []byte(state)) != 1 {
		m.metrics.CodeRedeemed(metrics.OutcomeStateMismatch, 0)
		return nil, oerrors.ErrStateMismatch
	}

	cli, err := m.clients.GetByID(ctx, ac.ClientID)
	if err != nil {
		if oerrors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: client %s no longer exists", oerrors.ErrUnauthorizedClient, ac.ClientID)
		}
		return nil, fmt.Errorf("%w: get client: %v", oerrors.ErrStorageFailure, err)
	}

	now := m.now().UTC()
	access, err := m.mintAccess(ctx, ac.UserID, ac.ClientID)
	if err != nil {
		return nil, err
	}

	refreshValue, err := m.refreshGen.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: generate refresh token: %v", oerrors.ErrStorageFailure, err)
	}
	refresh := &models.RefreshToken{
		Token:     refreshValue,
		UserID:    ac.UserID,
		ClientID:  ac.ClientID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.cfg.RefreshTokenExp),
	}
	if err := m.refresh.CreateRefresh(ctx, refresh); err != nil {
		m.log.Errorw("persist refresh token failed", "user_id", ac.UserID, "client_id", ac.ClientID, "error", err)
		return nil, fmt.Errorf("%w: persist refresh token: %v", oerrors.ErrStorageFailure, err)
	}
	if err := m.access.CreateAccess(ctx, access); err != nil {
		m.log.Errorw("persist access token failed", "user_id", ac.UserID, "client_id", ac.ClientID, "error", err)
		if derr := m.refresh.DeleteRefresh(ctx, refresh.Token); derr != nil {
			m.log.Errorw("rollback refresh token failed", "error", derr)
		}
		return nil, fmt.Errorf("%w: persist access token: %v", oerrors.ErrStorageFailure, err)
	}

	m.metrics.TokensIssued("exchange", true)
	m.log.Infow("tokens issued", "user_id", ac.UserID, "client_id", ac.ClientID)
	return &TokenPair{Access: access, Refresh: refresh, Redirect: cli.FinalRedirect()}, nil
}

// mintAccess signs an access token for the pair; it is not persisted.
func (m *Manager) mintAccess(ctx context.Context, userID, clientID string) (*models.AccessToken, error) {
	now := m.now().UTC()
	value, exp, err := m.accessGen.Token(ctx, &generates.GenerateBasic{
		UserID:    userID,
		ClientID:  clientID,
		CreateAt:  now,
		ExpiresIn: m.cfg.AccessTokenExp,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: sign access token: %v", oerrors.ErrStorageFailure, err)
	}
	return &models.AccessToken{
		Token:     value,
		UserID:    userID,
		ClientID:  clientID,
		CreatedAt: now,
		ExpiresAt: exp,
	}, nil
}
