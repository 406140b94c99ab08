package manage

import (
	"context"
	"fmt"

	oerrors "github.com/legit-games/authcode-service/errors"
	"github.com/legit-games/authcode-service/models"
	"github.com/legit-games/authcode-service/store"
)

// AuthorizeClient loads clientID and checks that userID owns it and that
// redirectURI is exactly the registered one. Any mismatch, including an
// unknown client, is ErrUnauthorizedClient.
func (m *Manager) AuthorizeClient(ctx context.Context, userID, clientID, redirectURI string) (*models.Client, error) {
	if clientID == "" || redirectURI == "" {
		return nil, fmt.Errorf("%w: client_id and redirect_uri are required", oerrors.ErrValidation)
	}
	cli, err := m.clients.GetByID(ctx, clientID)
	if err != nil {
		if oerrors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown client %s", oerrors.ErrUnauthorizedClient, clientID)
		}
		return nil, fmt.Errorf("%w: get client: %v", oerrors.ErrStorageFailure, err)
	}
	if !cli.IsOwnedBy(userID) {
		return nil, fmt.Errorf("%w: client %s not owned by user %s", oerrors.ErrUnauthorizedClient, clientID, userID)
	}
	if cli.RedirectURI != redirectURI {
		return nil, fmt.Errorf("%w: redirect_uri mismatch for client %s", oerrors.ErrUnauthorizedClient, clientID)
	}
	return cli, nil
}
