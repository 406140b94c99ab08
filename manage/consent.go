package manage

import (
	"context"
	"fmt"

	oerrors "github.com/legit-games/authcode-service/errors"
	"github.com/legit-games/authcode-service/models"
	"github.com/legit-games/authcode-service/store"
)

// UpsertConsent records the user's decision for the client. Repeated calls
// overwrite the single record for the pair.
func (m *Manager) UpsertConsent(ctx context.Context, userID, clientID string, granted bool) error {
	if userID == "" || clientID == "" {
		return oerrors.ErrValidation
	}
	err := m.consents.Upsert(ctx, &models.Consent{UserID: userID, ClientID: clientID, Granted: granted})
	if err != nil {
		return fmt.Errorf("%w: upsert consent: %v", oerrors.ErrStorageFailure, err)
	}
	return nil
}

// HasConsent reports whether the user has approved the client. Consent once
// granted stays granted; nothing in this service revokes it.
func (m *Manager) HasConsent(ctx context.Context, userID, clientID string) (bool, error) {
	c, err := m.consents.Get(ctx, userID, clientID)
	if err != nil {
		if oerrors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: get consent: %v", oerrors.ErrStorageFailure, err)
	}
	return c.Granted, nil
}
