package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/legit-games/authcode-service/models"
	"github.com/tidwall/buntdb"
)

// OpenBunt opens a buntdb database; use ":memory:" for an in-process store.
func OpenBunt(path string) (*buntdb.DB, error) {
	if path == "" {
		path = ":memory:"
	}
	return buntdb.Open(path)
}

// NewBuntStores returns every repository backed by the same buntdb database.
func NewBuntStores(db *buntdb.DB) *Stores {
	tokens := NewBuntTokenStore(db)
	return &Stores{
		Users:    NewBuntUserStore(db),
		Clients:  NewBuntClientStore(db),
		Consents: NewBuntConsentStore(db),
		Codes:    NewBuntCodeStore(db),
		Access:   tokens,
		Refresh:  tokens,
		closers:  []func() error{db.Close},
	}
}

func buntGet(tx *buntdb.Tx, key string, v interface{}) error {
	val, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, buntdb.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return json.Unmarshal([]byte(val), v)
}

func buntSet(tx *buntdb.Tx, key string, v interface{}, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var opts *buntdb.SetOptions
	if ttl > 0 {
		opts = &buntdb.SetOptions{Expires: true, TTL: ttl}
	}
	_, _, err = tx.Set(key, string(b), opts)
	return err
}

// buntIndex resolves a secondary index key to the primary key it points at.
func buntIndex(tx *buntdb.Tx, idxKey string) (string, error) {
	id, err := tx.Get(idxKey)
	if err != nil {
		if errors.Is(err, buntdb.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return id, nil
}

func buntDelete(tx *buntdb.Tx, key string) error {
	if _, err := tx.Delete(key); err != nil && !errors.Is(err, buntdb.ErrNotFound) {
		return err
	}
	return nil
}

// --- users ---

// BuntUserStore user store backed by buntdb
type BuntUserStore struct{ db *buntdb.DB }

// NewBuntUserStore create a buntdb user store
func NewBuntUserStore(db *buntdb.DB) *BuntUserStore { return &BuntUserStore{db: db} }

func userKey(id string) string { return "user:" + id }
func usernameIdx(username string) string { return "idx:user:username:" + strings.ToLower(username) }
func emailIdx(email string) string { return "idx:user:email:" + strings.ToLower(email) }

// Create stores u; username and email are unique, case-insensitively.
func (s *BuntUserStore) Create(ctx context.Context, u *models.User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return s.db.Update(func(tx *buntdb.Tx) error {
		for _, idx := range []string{usernameIdx(u.Username), emailIdx(u.Email)} {
			if _, err := buntIndex(tx, idx); err == nil {
				return ErrDuplicate
			} else if !errors.Is(err, ErrNotFound) {
				return err
			}
		}
		if err := buntSet(tx, userKey(u.ID), u, 0); err != nil {
			return err
		}
		if _, _, err := tx.Set(usernameIdx(u.Username), u.ID, nil); err != nil {
			return err
		}
		_, _, err := tx.Set(emailIdx(u.Email), u.ID, nil)
		return err
	})
}

func (s *BuntUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.db.View(func(tx *buntdb.Tx) error { return buntGet(tx, userKey(id), &u) })
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *BuntUserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getByIndex(usernameIdx(username))
}

func (s *BuntUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByIndex(emailIdx(email))
}

func (s *BuntUserStore) getByIndex(idx string) (*models.User, error) {
	var u models.User
	err := s.db.View(func(tx *buntdb.Tx) error {
		id, err := buntIndex(tx, idx)
		if err != nil {
			return err
		}
		return buntGet(tx, userKey(id), &u)
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// --- clients ---

// BuntClientStore client store backed by buntdb
type BuntClientStore struct{ db *buntdb.DB }

// NewBuntClientStore create a buntdb client store
func NewBuntClientStore(db *buntdb.DB) *BuntClientStore { return &BuntClientStore{db: db} }

func clientKey(id string) string { return "client:" + id }
func clientOwnerIdx(owner, name string) string { return "idx:client:owner:" + owner + ":" + name }

func (s *BuntClientStore) Create(ctx context.Context, c *models.Client) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return s.db.Update(func(tx *buntdb.Tx) error {
		if _, err := buntIndex(tx, clientOwnerIdx(c.OwnerID, c.Name)); err == nil {
			return ErrDuplicate
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := buntSet(tx, clientKey(c.ID), c, 0); err != nil {
			return err
		}
		_, _, err := tx.Set(clientOwnerIdx(c.OwnerID, c.Name), c.ID, nil)
		return err
	})
}

func (s *BuntClientStore) GetByID(ctx context.Context, id string) (*models.Client, error) {
	var c models.Client
	err := s.db.View(func(tx *buntdb.Tx) error { return buntGet(tx, clientKey(id), &c) })
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *BuntClientStore) GetByOwnerAndName(ctx context.Context, ownerID, name string) (*models.Client, error) {
	var c models.Client
	err := s.db.View(func(tx *buntdb.Tx) error {
		id, err := buntIndex(tx, clientOwnerIdx(ownerID, name))
		if err != nil {
			return err
		}
		return buntGet(tx, clientKey(id), &c)
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// --- consents ---

// BuntConsentStore consent store backed by buntdb
type BuntConsentStore struct{ db *buntdb.DB }

// NewBuntConsentStore create a buntdb consent store
func NewBuntConsentStore(db *buntdb.DB) *BuntConsentStore { return &BuntConsentStore{db: db} }

func consentKey(userID, clientID string) string { return "consent:" + userID + ":" + clientID }

func (s *BuntConsentStore) Upsert(ctx context.Context, c *models.Consent) error {
	c.UpdatedAt = time.Now().UTC()
	return s.db.Update(func(tx *buntdb.Tx) error {
		return buntSet(tx, consentKey(c.UserID, c.ClientID), c, 0)
	})
}

func (s *BuntConsentStore) Get(ctx context.Context, userID, clientID string) (*models.Consent, error) {
	var c models.Consent
	err := s.db.View(func(tx *buntdb.Tx) error { return buntGet(tx, consentKey(userID, clientID), &c) })
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// --- authorization codes ---

// BuntCodeStore authorization code store backed by buntdb
type BuntCodeStore struct{ db *buntdb.DB }

// NewBuntCodeStore create a buntdb authorization code store
func NewBuntCodeStore(db *buntdb.DB) *BuntCodeStore { return &BuntCodeStore{db: db} }

func codeKey(code string) string { return "code:" + code }

func (s *BuntCodeStore) Create(ctx context.Context, ac *models.AuthorizationCode) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		if _, err := tx.Get(codeKey(ac.Code)); err == nil {
			return ErrDuplicate
		}
		return buntSet(tx, codeKey(ac.Code), ac, codeTTL(ac))
	})
}

// Claim reads and deletes the code inside one write transaction; buntdb
// serializes write transactions so only one claimer can see the record.
func (s *BuntCodeStore) Claim(ctx context.Context, code string) (*models.AuthorizationCode, error) {
	var ac models.AuthorizationCode
	err := s.db.Update(func(tx *buntdb.Tx) error {
		if err := buntGet(tx, codeKey(code), &ac); err != nil {
			return err
		}
		_, err := tx.Delete(codeKey(code))
		return err
	})
	if err != nil {
		return nil, err
	}
	return &ac, nil
}

// --- tokens ---

// BuntTokenStore access and refresh token store backed by buntdb
type BuntTokenStore struct{ db *buntdb.DB }

// NewBuntTokenStore create a buntdb token store
func NewBuntTokenStore(db *buntdb.DB) *BuntTokenStore { return &BuntTokenStore{db: db} }

func accessKey(token string) string { return "access:" + HashToken(token) }
func refreshKey(token string) string { return "refresh:" + HashToken(token) }

func (s *BuntTokenStore) CreateAccess(ctx context.Context, t *models.AccessToken) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		return buntSet(tx, accessKey(t.Token), t, tokenTTL(t.ExpiresAt))
	})
}

func (s *BuntTokenStore) GetAccess(ctx context.Context, token string) (*models.AccessToken, error) {
	var t models.AccessToken
	err := s.db.View(func(tx *buntdb.Tx) error { return buntGet(tx, accessKey(token), &t) })
	if err != nil {
		return nil, err
	}
	t.Token = token
	return &t, nil
}

func (s *BuntTokenStore) DeleteAccess(ctx context.Context, token string) error {
	return s.db.Update(func(tx *buntdb.Tx) error { return buntDelete(tx, accessKey(token)) })
}

func (s *BuntTokenStore) CreateRefresh(ctx context.Context, t *models.RefreshToken) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		return buntSet(tx, refreshKey(t.Token), t, tokenTTL(t.ExpiresAt))
	})
}

func (s *BuntTokenStore) GetRefresh(ctx context.Context, token string) (*models.RefreshToken, error) {
	var t models.RefreshToken
	err := s.db.View(func(tx *buntdb.Tx) error { return buntGet(tx, refreshKey(token), &t) })
	if err != nil {
		return nil, err
	}
	t.Token = token
	return &t, nil
}

func (s *BuntTokenStore) RevokeRefresh(ctx context.Context, token string) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		var t models.RefreshToken
		if err := buntGet(tx, refreshKey(token), &t); err != nil {
			return err
		}
		t.Revoked = true
		return buntSet(tx, refreshKey(token), &t, tokenTTL(t.ExpiresAt))
	})
}

func (s *BuntTokenStore) DeleteRefresh(ctx context.Context, token string) error {
	return s.db.Update(func(tx *buntdb.Tx) error { return buntDelete(tx, refreshKey(token)) })
}
