package manage

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	oerrors "github.com/legit-games/authcode-service/errors"
	"github.com/legit-games/authcode-service/generates"
	"github.com/legit-games/authcode-service/models"
	"github.com/legit-games/authcode-service/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

const (
	testUserID   = "user-1"
	testClientID = "client-1"
	testRedirect = "/callback"
	testState    = "S1"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	m      *Manager
	stores *store.Stores
	clock  *clock
	key    *generates.SigningKey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := store.OpenBunt(":memory:")
	require.NoError(t, err)
	stores := store.NewBuntStores(db)
	t.Cleanup(func() { _ = stores.Close() })

	require.NoError(t, stores.Clients.Create(context.Background(), &models.Client{
		ID:          testClientID,
		Secret:      "secret",
		Name:        models.DefaultClientName(testUserID),
		RedirectURI: testRedirect,
		LandingPage: "/dashboard",
		OwnerID:     testUserID,
	}))

	key, err := generates.GenerateSigningKey()
	require.NoError(t, err)

	clk := &clock{t: time.Now().UTC()}
	cfg := NewConfig()
	cfg.CodeLookupDelay = time.Millisecond
	m, err := NewManager(cfg, key, WithClock(clk.Now))
	require.NoError(t, err)
	m.MapStores(stores)
	return &fixture{m: m, stores: stores, clock: clk, key: key}
}

func (f *fixture) issue(t *testing.T) *models.AuthorizationCode {
	t.Helper()
	ac, err := f.m.IssueCode(context.Background(), testUserID, testClientID, testRedirect, testState)
	require.NoError(t, err)
	return ac
}

func (f *fixture) exchange(t *testing.T) *TokenPair {
	t.Helper()
	pair, err := f.m.ExchangeCode(context.Background(), f.issue(t).Code, testState)
	require.NoError(t, err)
	return pair
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultCodeExp, cfg.CodeExp)
	assert.Equal(t, DefaultAccessTokenExp, cfg.AccessTokenExp)
	assert.Equal(t, DefaultRefreshTokenExp, cfg.RefreshTokenExp)

	bad := &Config{AccessTokenExp: 48 * time.Hour, RefreshTokenExp: time.Hour}
	assert.Error(t, bad.Validate())
}

func TestIssueCode(t *testing.T) {
	f := newFixture(t)
	ac := f.issue(t)

	assert.Len(t, ac.Code, generates.CodeBytes*2)
	assert.Equal(t, 10*time.Minute, ac.ExpiresAt.Sub(ac.CreatedAt))
	assert.Equal(t, testState, ac.State)

	_, err := f.m.IssueCode(context.Background(), testUserID, testClientID, testRedirect, "")
	assert.ErrorIs(t, err, oerrors.ErrValidation)
}

func TestRedeemCode_SingleUse(t *testing.T) {
	f := newFixture(t)
	ac := f.issue(t)

	got, err := f.m.RedeemCode(context.Background(), ac.Code)
	require.NoError(t, err)
	assert.Equal(t, testUserID, got.UserID)
	assert.Equal(t, testClientID, got.ClientID)
	assert.Equal(t, testRedirect, got.RedirectURI)

	_, err = f.m.RedeemCode(context.Background(), ac.Code)
	assert.ErrorIs(t, err, oerrors.ErrCodeNotFound)
}

func TestRedeemCode_Expired(t *testing.T) {
	f := newFixture(t)
	ac := f.issue(t)
	f.clock.Advance(11 * time.Minute)

	_, err := f.m.RedeemCode(context.Background(), ac.Code)
	assert.ErrorIs(t, err, oerrors.ErrCodeExpired)
}

func TestRedeemCode_Concurrent(t *testing.T) {
	f := newFixture(t)
	ac := f.issue(t)

	var ok, notFound int32
	var g errgroup.Group
	for i := 0; i < 2; i++ {
		g.Go(func() error {
			_, err := f.m.RedeemCode(context.Background(), ac.Code)
			switch {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case errors.Is(err, oerrors.ErrCodeNotFound):
				atomic.AddInt32(&notFound, 1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), ok)
	assert.Equal(t, int32(1), notFound)
}

// laggingCodes reports the first misses claims as not found.
type laggingCodes struct {
	store.CodeStore
	misses int32
	calls  int32
}

func (l *laggingCodes) Claim(ctx context.Context, code string) (*models.AuthorizationCode, error) {
	atomic.AddInt32(&l.calls, 1)
	if atomic.AddInt32(&l.misses, -1) >= 0 {
		return nil, store.ErrNotFound
	}
	return l.CodeStore.Claim(ctx, code)
}

func TestRedeemCode_RetriesNotFound(t *testing.T) {
	f := newFixture(t)
	ac := f.issue(t)

	lag := &laggingCodes{CodeStore: f.stores.Codes, misses: 2}
	f.m.MapCodeStorage(lag)

	got, err := f.m.RedeemCode(context.Background(), ac.Code)
	require.NoError(t, err)
	assert.Equal(t, ac.Code, got.Code)
	assert.Equal(t, int32(3), lag.calls)
}

func TestRedeemCode_GivesUpAfterAttempts(t *testing.T) {
	f := newFixture(t)
	ac := f.issue(t)

	lag := &laggingCodes{CodeStore: f.stores.Codes, misses: 10}
	f.m.MapCodeStorage(lag)

	_, err := f.m.RedeemCode(context.Background(), ac.Code)
	assert.ErrorIs(t, err, oerrors.ErrCodeNotFound)
	assert.Equal(t, int32(DefaultCodeLookupAttempts), lag.calls)
}

func TestRedeemCode_ExpiredIsNotRetried(t *testing.T) {
	f := newFixture(t)
	ac := f.issue(t)
	f.clock.Advance(time.Hour)

	lag := &laggingCodes{CodeStore: f.stores.Codes}
	f.m.MapCodeStorage(lag)

	_, err := f.m.RedeemCode(context.Background(), ac.Code)
	assert.ErrorIs(t, err, oerrors.ErrCodeExpired)
	assert.Equal(t, int32(1), lag.calls)
}

func TestExchangeCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issuedAt := f.clock.Now()
	pair := f.exchange(t)

	assert.Equal(t, "/dashboard", pair.Redirect)
	assert.WithinDuration(t, issuedAt.Add(time.Hour), pair.Access.ExpiresAt, 2*time.Second)
	assert.WithinDuration(t, issuedAt.Add(30*24*time.Hour), pair.Refresh.ExpiresAt, 2*time.Second)
	assert.True(t, pair.Access.ExpiresAt.Sub(pair.Access.CreatedAt) < pair.Refresh.ExpiresAt.Sub(pair.Refresh.CreatedAt))
	assert.Len(t, pair.Refresh.Token, generates.RefreshBytes*2)

	rec, err := f.stores.Access.GetAccess(ctx, pair.Access.Token)
	require.NoError(t, err)
	assert.Equal(t, testUserID, rec.UserID)

	rt, err := f.stores.Refresh.GetRefresh(ctx, pair.Refresh.Token)
	require.NoError(t, err)
	assert.False(t, rt.Revoked)
	assert.Equal(t, testClientID, rt.ClientID)

	claims, err := generates.NewJWTAccessGenerate(f.key).Parse(pair.Access.Token, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, testUserID, claims.UserID)
	assert.Equal(t, testClientID, claims.ClientID)
}

func TestExchangeCode_StateMismatch(t *testing.T) {
	f := newFixture(t)
	ac := f.issue(t)

	pair, err := f.m.ExchangeCode(context.Background(), ac.Code, "S2")
	assert.ErrorIs(t, err, oerrors.ErrStateMismatch)
	assert.Nil(t, pair)

	// The code is consumed; the right state cannot revive it.
	_, err = f.m.ExchangeCode(context.Background(), ac.Code, testState)
	assert.ErrorIs(t, err, oerrors.ErrCodeNotFound)
}

func TestExchangeCode_ReplayedCode(t *testing.T) {
	f := newFixture(t)
	ac := f.issue(t)

	_, err := f.m.ExchangeCode(context.Background(), ac.Code, testState)
	require.NoError(t, err)
	_, err = f.m.ExchangeCode(context.Background(), ac.Code, testState)
	assert.ErrorIs(t, err, oerrors.ErrCodeNotFound)
}

// failingRefresh refuses to persist refresh tokens.
type failingRefresh struct {
	store.RefreshTokenStore
}

func (failingRefresh) CreateRefresh(context.Context, *models.RefreshToken) error {
	return errors.New("disk full")
}

// recordingAccess remembers every access token it was asked to persist.
type recordingAccess struct {
	store.AccessTokenStore
	created []string
}

func (r *recordingAccess) CreateAccess(ctx context.Context, t *models.AccessToken) error {
	r.created = append(r.created, t.Token)
	return r.AccessTokenStore.CreateAccess(ctx, t)
}

func TestExchangeCode_RefreshPersistFailureReturnsNothing(t *testing.T) {
	f := newFixture(t)
	ac := f.issue(t)
	access := &recordingAccess{AccessTokenStore: f.stores.Access}
	f.m.MapAccessTokenStorage(access)
	f.m.MapRefreshTokenStorage(failingRefresh{f.stores.Refresh})

	pair, err := f.m.ExchangeCode(context.Background(), ac.Code, testState)
	assert.Nil(t, pair)
	assert.ErrorIs(t, err, oerrors.ErrStorageFailure)
	assert.Empty(t, access.created, "no access token may be persisted without its refresh token")
}

func TestValidateAccess_Valid(t *testing.T) {
	f := newFixture(t)
	pair := f.exchange(t)

	v, err := f.m.ValidateAccess(context.Background(), pair.Access.Token, pair.Refresh.Token)
	require.NoError(t, err)
	assert.False(t, v.Rotated)
	assert.Equal(t, pair.Access.Token, v.AccessToken)
	assert.Equal(t, testUserID, v.Claims.UserID)
}

func TestValidateAccess_RotatesExpiredToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pair := f.exchange(t)

	f.clock.Advance(2 * time.Hour)
	rotatedAt := f.clock.Now()
	v, err := f.m.ValidateAccess(ctx, pair.Access.Token, pair.Refresh.Token)
	require.NoError(t, err)
	require.True(t, v.Rotated)
	assert.NotEqual(t, pair.Access.Token, v.AccessToken)
	assert.Equal(t, testUserID, v.Claims.UserID)
	assert.Equal(t, testClientID, v.Claims.ClientID)
	assert.WithinDuration(t, rotatedAt.Add(time.Hour), v.Claims.ExpiresAt.Time, 2*time.Second)

	_, err = f.stores.Access.GetAccess(ctx, pair.Access.Token)
	assert.ErrorIs(t, err, store.ErrNotFound, "old access record must be removed")
	_, err = f.stores.Access.GetAccess(ctx, v.AccessToken)
	assert.NoError(t, err)

	again, err := f.m.ValidateAccess(ctx, v.AccessToken, pair.Refresh.Token)
	require.NoError(t, err)
	assert.False(t, again.Rotated)
}

func TestValidateAccess_MissingAccessUsesRefresh(t *testing.T) {
	f := newFixture(t)
	pair := f.exchange(t)

	v, err := f.m.ValidateAccess(context.Background(), "", pair.Refresh.Token)
	require.NoError(t, err)
	assert.True(t, v.Rotated)
}

func TestValidateAccess_ExpiredWithoutRefresh(t *testing.T) {
	f := newFixture(t)
	pair := f.exchange(t)
	f.clock.Advance(2 * time.Hour)

	_, err := f.m.ValidateAccess(context.Background(), pair.Access.Token, "")
	assert.ErrorIs(t, err, oerrors.ErrTokenExpiredNoRefresh)
}

func TestValidateAccess_RevokedRefreshForcesReauth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pair := f.exchange(t)
	require.NoError(t, f.stores.Refresh.RevokeRefresh(ctx, pair.Refresh.Token))
	f.clock.Advance(2 * time.Hour)

	_, err := f.m.ValidateAccess(ctx, pair.Access.Token, pair.Refresh.Token)
	assert.ErrorIs(t, err, oerrors.ErrRefreshInvalidOrExpired)
}

func TestValidateAccess_ExpiredRefreshForcesReauth(t *testing.T) {
	f := newFixture(t)
	pair := f.exchange(t)
	f.clock.Advance(31 * 24 * time.Hour)

	_, err := f.m.ValidateAccess(context.Background(), pair.Access.Token, pair.Refresh.Token)
	assert.ErrorIs(t, err, oerrors.ErrRefreshInvalidOrExpired)
}

func TestValidateAccess_UnknownRefreshIsRejected(t *testing.T) {
	f := newFixture(t)
	pair := f.exchange(t)
	f.clock.Advance(2 * time.Hour)

	_, err := f.m.ValidateAccess(context.Background(), pair.Access.Token, "not-a-refresh-token")
	assert.ErrorIs(t, err, oerrors.ErrTokenExpiredNoRefresh)
}

func TestValidateAccess_DeletedRefreshRecordIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pair := f.exchange(t)
	require.NoError(t, f.stores.Refresh.DeleteRefresh(ctx, pair.Refresh.Token))
	f.clock.Advance(2 * time.Hour)

	_, err := f.m.ValidateAccess(ctx, pair.Access.Token, pair.Refresh.Token)
	assert.ErrorIs(t, err, oerrors.ErrTokenExpiredNoRefresh)
	assert.Equal(t, http.StatusBadRequest, oerrors.Lookup(err).StatusCode)
}

func TestValidateAccess_InvalidSignatureNeverRefreshes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pair := f.exchange(t)

	other, err := generates.GenerateSigningKey()
	require.NoError(t, err)
	forged, _, err := generates.NewJWTAccessGenerate(other).Token(ctx, &generates.GenerateBasic{
		UserID:    testUserID,
		ClientID:  testClientID,
		CreateAt:  f.clock.Now(),
		ExpiresIn: time.Hour,
	})
	require.NoError(t, err)

	access := &recordingAccess{AccessTokenStore: f.stores.Access}
	f.m.MapAccessTokenStorage(access)

	_, err = f.m.ValidateAccess(ctx, forged, pair.Refresh.Token)
	assert.ErrorIs(t, err, oerrors.ErrTokenInvalidSignature)
	_, err = f.m.ValidateAccess(ctx, "garbage", pair.Refresh.Token)
	assert.ErrorIs(t, err, oerrors.ErrTokenInvalidSignature)
	assert.Empty(t, access.created)
}

func TestValidateAccess_RevokedAccessRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pair := f.exchange(t)
	require.NoError(t, f.stores.Access.DeleteAccess(ctx, pair.Access.Token))

	_, err := f.m.ValidateAccess(ctx, pair.Access.Token, "")
	assert.ErrorIs(t, err, oerrors.ErrAccessTokenRevoked)

	f.m.cfg.CheckAccessRecord = false
	_, err = f.m.ValidateAccess(ctx, pair.Access.Token, "")
	assert.NoError(t, err, "without record checks a signed token stays valid until expiry")
}

func TestValidateAccess_MismatchedRefreshIsRevoked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mine := f.exchange(t)

	theirs := &models.RefreshToken{
		Token:     "someone-elses-refresh",
		UserID:    "user-2",
		ClientID:  "client-2",
		CreatedAt: f.clock.Now(),
		ExpiresAt: f.clock.Now().Add(24 * time.Hour),
	}
	require.NoError(t, f.stores.Refresh.CreateRefresh(ctx, theirs))
	f.clock.Advance(2 * time.Hour)

	_, err := f.m.ValidateAccess(ctx, mine.Access.Token, theirs.Token)
	assert.ErrorIs(t, err, oerrors.ErrRefreshInvalidOrExpired)

	rt, err := f.stores.Refresh.GetRefresh(ctx, theirs.Token)
	require.NoError(t, err)
	assert.True(t, rt.Revoked)
}

func TestValidateAccess_NoCredentials(t *testing.T) {
	f := newFixture(t)
	_, err := f.m.ValidateAccess(context.Background(), "", "")
	assert.ErrorIs(t, err, oerrors.ErrValidation)
}

func TestRevoke_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pair := f.exchange(t)

	require.NoError(t, f.m.Revoke(ctx, pair.Access.Token, pair.Refresh.Token))
	require.NoError(t, f.m.Revoke(ctx, pair.Access.Token, pair.Refresh.Token))
	require.NoError(t, f.m.Revoke(ctx, "", ""))

	_, err := f.stores.Access.GetAccess(ctx, pair.Access.Token)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.stores.Refresh.GetRefresh(ctx, pair.Refresh.Token)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.m.ValidateAccess(ctx, pair.Access.Token, pair.Refresh.Token)
	assert.ErrorIs(t, err, oerrors.ErrAccessTokenRevoked)
}

func TestConsent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ok, err := f.m.HasConsent(ctx, testUserID, testClientID)
	require.NoError(t, err)
	assert.False(t, ok)

	for i := 0; i < 3; i++ {
		require.NoError(t, f.m.UpsertConsent(ctx, testUserID, testClientID, true))
	}
	ok, err = f.m.HasConsent(ctx, testUserID, testClientID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAuthorizeClient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cli, err := f.m.AuthorizeClient(ctx, testUserID, testClientID, testRedirect)
	require.NoError(t, err)
	assert.Equal(t, "/dashboard", cli.FinalRedirect())

	_, err = f.m.AuthorizeClient(ctx, "intruder", testClientID, testRedirect)
	assert.ErrorIs(t, err, oerrors.ErrUnauthorizedClient)
	_, err = f.m.AuthorizeClient(ctx, testUserID, testClientID, "https://evil.example/cb")
	assert.ErrorIs(t, err, oerrors.ErrUnauthorizedClient)
	_, err = f.m.AuthorizeClient(ctx, testUserID, "missing", testRedirect)
	assert.ErrorIs(t, err, oerrors.ErrUnauthorizedClient)
	_, err = f.m.AuthorizeClient(ctx, testUserID, "", testRedirect)
	assert.ErrorIs(t, err, oerrors.ErrValidation)
}
