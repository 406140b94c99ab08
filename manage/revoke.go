package manage

import (
	"context"
	"errors"
	"fmt"

	oerrors "github.com/legit-games/authcode-service/errors"
)

// Revoke deletes the records behind the presented credentials. Missing
// records and empty values are ignored, so calling it twice is harmless.
// A still-signed access token keeps verifying until it expires unless
// CheckAccessRecord is enabled.
func (m *Manager) Revoke(ctx context.Context, accessToken, refreshToken string) error {
	var errs []error
	if accessToken != "" {
		if err := m.access.DeleteAccess(ctx, accessToken); err != nil {
			errs = append(errs, fmt.Errorf("delete access token: %w", err))
		}
	}
	if refreshToken != "" {
		if err := m.refresh.DeleteRefresh(ctx, refreshToken); err != nil {
			errs = append(errs, fmt.Errorf("delete refresh token: %w", err))
		}
	}
	m.metrics.Revoked()
	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", oerrors.ErrStorageFailure, errors.Join(errs...))
	}
	return nil
}
