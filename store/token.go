package store

import (
	"context"
	"time"

	"github.com/legit-games/authcode-service/models"
	"gorm.io/gorm"
)

// AccessTokenRecord is the access_tokens table row.
type AccessTokenRecord struct {
	TokenHash string    `gorm:"column:token_hash;primaryKey"`
	UserID    string    `gorm:"column:user_id;not null"`
	ClientID  string    `gorm:"column:client_id;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null"`
}

func (AccessTokenRecord) TableName() string {
	return "access_tokens"
}

// RefreshTokenRecord is the refresh_tokens table row.
type RefreshTokenRecord struct {
	TokenHash string    `gorm:"column:token_hash;primaryKey"`
	UserID    string    `gorm:"column:user_id;not null"`
	ClientID  string    `gorm:"column:client_id;not null"`
	Revoked   bool      `gorm:"column:revoked;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null"`
}

func (RefreshTokenRecord) TableName() string {
	return "refresh_tokens"
}

// DBTokenStore persists access and refresh tokens in SQL, keyed by HashToken.
type DBTokenStore struct{ DB *gorm.DB }

func NewDBTokenStore(db *gorm.DB) *DBTokenStore { return &DBTokenStore{DB: db} }

func (s *DBTokenStore) CreateAccess(ctx context.Context, t *models.AccessToken) error {
	rec := &AccessTokenRecord{
		TokenHash: HashToken(t.Token),
		UserID:    t.UserID,
		ClientID:  t.ClientID,
		CreatedAt: t.CreatedAt.UTC(),
		ExpiresAt: t.ExpiresAt.UTC(),
	}
	return translate(s.DB.WithContext(ctx).Create(rec).Error)
}

func (s *DBTokenStore) GetAccess(ctx context.Context, token string) (*models.AccessToken, error) {
	var rec AccessTokenRecord
	if err := s.DB.WithContext(ctx).Where("token_hash = ?", HashToken(token)).First(&rec).Error; err != nil {
		return nil, translate(err)
	}
	return &models.AccessToken{
		Token:     token,
		UserID:    rec.UserID,
		ClientID:  rec.ClientID,
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
	}, nil
}

func (s *DBTokenStore) DeleteAccess(ctx context.Context, token string) error {
	return s.DB.WithContext(ctx).Exec(`DELETE FROM access_tokens WHERE token_hash=?`, HashToken(token)).Error
}

func (s *DBTokenStore) CreateRefresh(ctx context.Context, t *models.RefreshToken) error {
	rec := &RefreshTokenRecord{
		TokenHash: HashToken(t.Token),
		UserID:    t.UserID,
		ClientID:  t.ClientID,
		Revoked:   t.Revoked,
		CreatedAt: t.CreatedAt.UTC(),
		ExpiresAt: t.ExpiresAt.UTC(),
	}
	return translate(s.DB.WithContext(ctx).Create(rec).Error)
}

func (s *DBTokenStore) GetRefresh(ctx context.Context, token string) (*models.RefreshToken, error) {
	var rec RefreshTokenRecord
	if err := s.DB.WithContext(ctx).Where("token_hash = ?", HashToken(token)).First(&rec).Error; err != nil {
		return nil, translate(err)
	}
	return &models.RefreshToken{
		Token:     token,
		UserID:    rec.UserID,
		ClientID:  rec.ClientID,
		Revoked:   rec.Revoked,
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
	}, nil
}

// RevokeRefresh is a single conditional UPDATE; zero affected rows means
// the token does not exist.
func (s *DBTokenStore) RevokeRefresh(ctx context.Context, token string) error {
	res := s.DB.WithContext(ctx).Exec(`UPDATE refresh_tokens SET revoked=TRUE WHERE token_hash=?`, HashToken(token))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DBTokenStore) DeleteRefresh(ctx context.Context, token string) error {
	return s.DB.WithContext(ctx).Exec(`DELETE FROM refresh_tokens WHERE token_hash=?`, HashToken(token)).Error
}

// DeleteExpired removes access and refresh tokens that expired before now.
// Columns hold UTC wall-clock time, so now is normalised before binding.
func (s *DBTokenStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	now = now.UTC()
	var total int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(`DELETE FROM access_tokens WHERE expires_at < ?`, now)
		if res.Error != nil {
			return res.Error
		}
		total += res.RowsAffected
		res = tx.Exec(`DELETE FROM refresh_tokens WHERE expires_at < ?`, now)
		if res.Error != nil {
			return res.Error
		}
		total += res.RowsAffected
		return nil
	})
	return total, err
}
