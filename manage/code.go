package manage

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v5"
	oerrors "github.com/legit-games/authcode-service/errors"
	"github.com/legit-games/authcode-service/metrics"
	"github.com/legit-games/authcode-service/models"
	"github.com/legit-games/authcode-service/store"
)

// IssueCode mints and persists a one-time authorization code bound to the
// user, the client, the redirect URI and the state of the login attempt.
func (m *Manager) IssueCode(ctx context.Context, userID, clientID, redirectURI, state string) (*models.AuthorizationCode, error) {
	if userID == "" || clientID == "" || redirectURI == "" || state == "" {
		return nil, oerrors.ErrValidation
	}
	code, err := m.codeGen.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: generate code: %v", oerrors.ErrStorageFailure, err)
	}
	now := m.now().UTC()
	ac := &models.AuthorizationCode{
		Code:        code,
		UserID:      userID,
		ClientID:    clientID,
		RedirectURI: redirectURI,
		State:       state,
		CreatedAt:   now,
		ExpiresAt:   now.Add(m.cfg.CodeExp),
	}
	if err := m.codes.Create(ctx, ac); err != nil {
		return nil, fmt.Errorf("%w: persist code: %v", oerrors.ErrStorageFailure, err)
	}
	m.metrics.CodeIssued()
	m.log.Debugw("authorization code issued", "user_id", userID, "client_id", clientID, "expires_at", ac.ExpiresAt)
	return ac, nil
}

// RedeemCode atomically claims the code. A code the store does not know yet
// is looked up again, up to CodeLookupAttempts times with a fixed delay, to
// ride out replica lag. An expired code fails at once with ErrCodeExpired and
// is consumed all the same.
func (m *Manager) RedeemCode(ctx context.Context, code string) (*models.AuthorizationCode, error) {
	if code == "" {
		return nil, oerrors.ErrValidation
	}
	attempts := 0
	op := func() (*models.AuthorizationCode, error) {
		attempts++
		ac, err := m.codes.Claim(ctx, code)
		if err != nil {
			if oerrors.Is(err, store.ErrNotFound) {
				return nil, oerrors.ErrCodeNotFound
			}
			return nil, backoff.Permanent(fmt.Errorf("%w: claim code: %v", oerrors.ErrStorageFailure, err))
		}
		if ac.IsExpired(m.now()) {
			return nil, backoff.Permanent(oerrors.ErrCodeExpired)
		}
		return ac, nil
	}

	ac, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(m.cfg.CodeLookupDelay)),
		backoff.WithMaxTries(uint(m.cfg.CodeLookupAttempts)),
	)
	if err != nil {
		var permanent *backoff.PermanentError
		if oerrors.As(err, &permanent) {
			err = permanent.Unwrap()
		}
		m.metrics.CodeRedeemed(redeemOutcome(err), attempts)
		m.log.Infow("authorization code redemption failed", "attempts", attempts, "error", err)
		return nil, err
	}
	m.metrics.CodeRedeemed(metrics.OutcomeOK, attempts)
	return ac, nil
}

func redeemOutcome(err error) string {
	switch {
	case oerrors.Is(err, oerrors.ErrCodeNotFound):
		return metrics.OutcomeNotFound
	case oerrors.Is(err, oerrors.ErrCodeExpired):
		return metrics.OutcomeExpired
	default:
		return metrics.OutcomeError
	}
}
