package store

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/legit-games/authcode-service/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// The helpers below run the same behavioural checks against every backend.

func testCodeStore(t *testing.T, codes CodeStore) {
	ctx := context.Background()

	t.Run("claim returns the code once", func(t *testing.T) {
		ac := newTestCode(time.Now().Add(10 * time.Minute))
		require.NoError(t, codes.Create(ctx, ac))

		got, err := codes.Claim(ctx, ac.Code)
		require.NoError(t, err)
		assert.Equal(t, ac.UserID, got.UserID)
		assert.Equal(t, ac.ClientID, got.ClientID)
		assert.Equal(t, ac.RedirectURI, got.RedirectURI)
		assert.Equal(t, ac.State, got.State)

		_, err = codes.Claim(ctx, ac.Code)
		assert.True(t, errors.Is(err, ErrNotFound), "second claim: %v", err)
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := codes.Claim(ctx, "does-not-exist")
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("expired code is still claimable within retention", func(t *testing.T) {
		ac := newTestCode(time.Now().Add(-time.Minute))
		require.NoError(t, codes.Create(ctx, ac))
		got, err := codes.Claim(ctx, ac.Code)
		require.NoError(t, err)
		assert.True(t, got.IsExpired(time.Now()))
	})

	t.Run("concurrent claims succeed exactly once", func(t *testing.T) {
		ac := newTestCode(time.Now().Add(10 * time.Minute))
		require.NoError(t, codes.Create(ctx, ac))

		var wins, misses int32
		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < 16; i++ {
			g.Go(func() error {
				_, err := codes.Claim(gctx, ac.Code)
				switch {
				case err == nil:
					atomic.AddInt32(&wins, 1)
				case errors.Is(err, ErrNotFound):
					atomic.AddInt32(&misses, 1)
				default:
					return err
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())
		assert.Equal(t, int32(1), wins)
		assert.Equal(t, int32(15), misses)
	})
}

func testTokenStore(t *testing.T, access AccessTokenStore, refresh RefreshTokenStore) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("access token lifecycle", func(t *testing.T) {
		at := &models.AccessToken{
			Token:     "access-" + models.NewID(),
			UserID:    "u1",
			ClientID:  "c1",
			CreatedAt: now,
			ExpiresAt: now.Add(time.Hour),
		}
		require.NoError(t, access.CreateAccess(ctx, at))

		got, err := access.GetAccess(ctx, at.Token)
		require.NoError(t, err)
		assert.Equal(t, at.Token, got.Token)
		assert.Equal(t, "u1", got.UserID)
		assert.Equal(t, "c1", got.ClientID)

		require.NoError(t, access.DeleteAccess(ctx, at.Token))
		_, err = access.GetAccess(ctx, at.Token)
		assert.True(t, errors.Is(err, ErrNotFound))

		// deleting again is not an error
		assert.NoError(t, access.DeleteAccess(ctx, at.Token))
	})

	t.Run("refresh token lifecycle", func(t *testing.T) {
		rt := &models.RefreshToken{
			Token:     "refresh-" + models.NewID(),
			UserID:    "u1",
			ClientID:  "c1",
			CreatedAt: now,
			ExpiresAt: now.Add(30 * 24 * time.Hour),
		}
		require.NoError(t, refresh.CreateRefresh(ctx, rt))

		got, err := refresh.GetRefresh(ctx, rt.Token)
		require.NoError(t, err)
		assert.False(t, got.Revoked)
		assert.True(t, got.Usable(now))

		require.NoError(t, refresh.RevokeRefresh(ctx, rt.Token))
		got, err = refresh.GetRefresh(ctx, rt.Token)
		require.NoError(t, err)
		assert.True(t, got.Revoked)

		require.NoError(t, refresh.DeleteRefresh(ctx, rt.Token))
		_, err = refresh.GetRefresh(ctx, rt.Token)
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.NoError(t, refresh.DeleteRefresh(ctx, rt.Token))
	})

	t.Run("revoking an unknown refresh token", func(t *testing.T) {
		err := refresh.RevokeRefresh(ctx, "missing-"+models.NewID())
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func testConsentStore(t *testing.T, consents ConsentStore) {
	ctx := context.Background()
	userID, clientID := "u-"+models.NewID(), "c-"+models.NewID()

	_, err := consents.Get(ctx, userID, clientID)
	assert.True(t, errors.Is(err, ErrNotFound))

	for i := 0; i < 3; i++ {
		require.NoError(t, consents.Upsert(ctx, &models.Consent{UserID: userID, ClientID: clientID, Granted: true}))
	}
	got, err := consents.Get(ctx, userID, clientID)
	require.NoError(t, err)
	assert.True(t, got.Granted)

	require.NoError(t, consents.Upsert(ctx, &models.Consent{UserID: userID, ClientID: clientID, Granted: false}))
	got, err = consents.Get(ctx, userID, clientID)
	require.NoError(t, err)
	assert.False(t, got.Granted, "last write wins")
}

func testUserAndClientStores(t *testing.T, users UserStore, clients ClientStore) {
	ctx := context.Background()
	suffix := models.NewID()[:8]
	u := &models.User{
		ID:           models.NewID(),
		Username:     "alice" + suffix,
		Email:        "alice" + suffix + "@example.com",
		FirstName:    "Alice",
		LastName:     "Liddell",
		DateOfBirth:  "1990-01-01",
		PasswordHash: "hash",
		Role:         models.DefaultRole,
	}
	require.NoError(t, users.Create(ctx, u))

	byName, err := users.GetByUsername(ctx, "ALICE"+suffix)
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)

	byEmail, err := users.GetByEmail(ctx, u.Email)
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	dup := *u
	dup.ID = models.NewID()
	err = users.Create(ctx, &dup)
	assert.True(t, errors.Is(err, ErrDuplicate), "duplicate username: %v", err)

	_, err = users.GetByID(ctx, "nobody")
	assert.True(t, errors.Is(err, ErrNotFound))

	c := &models.Client{
		ID:          models.NewID(),
		Secret:      "s3cret",
		Name:        models.DefaultClientName(u.ID),
		RedirectURI: "/callback",
		LandingPage: "/dashboard",
		OwnerID:     u.ID,
	}
	require.NoError(t, clients.Create(ctx, c))

	got, err := clients.GetByOwnerAndName(ctx, u.ID, models.DefaultClientName(u.ID))
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, "/dashboard", got.LandingPage)

	got, err = clients.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.IsOwnedBy(u.ID))

	_, err = clients.GetByID(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func newTestCode(expiresAt time.Time) *models.AuthorizationCode {
	return &models.AuthorizationCode{
		Code:        models.NewID(),
		UserID:      "u1",
		ClientID:    "c1",
		RedirectURI: "/callback",
		State:       "s1",
		CreatedAt:   time.Now().UTC(),
		ExpiresAt:   expiresAt.UTC(),
	}
}
