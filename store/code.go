package store

import (
	"context"
	"time"

	"github.com/legit-games/authcode-service/models"
	"gorm.io/gorm"
)

// AuthorizationCodeRecord is the authorization_codes table row.
type AuthorizationCodeRecord struct {
	Code        string    `gorm:"column:code;primaryKey"`
	UserID      string    `gorm:"column:user_id;not null"`
	ClientID    string    `gorm:"column:client_id;not null"`
	RedirectURI string    `gorm:"column:redirect_uri;not null"`
	State       string    `gorm:"column:state;not null"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	ExpiresAt   time.Time `gorm:"column:expires_at;not null"`
}

func (AuthorizationCodeRecord) TableName() string {
	return "authorization_codes"
}

// DBCodeStore persists authorization codes in SQL.
type DBCodeStore struct{ DB *gorm.DB }

func NewDBCodeStore(db *gorm.DB) *DBCodeStore { return &DBCodeStore{DB: db} }

func (s *DBCodeStore) Create(ctx context.Context, ac *models.AuthorizationCode) error {
	rec := &AuthorizationCodeRecord{
		Code:        ac.Code,
		UserID:      ac.UserID,
		ClientID:    ac.ClientID,
		RedirectURI: ac.RedirectURI,
		State:       ac.State,
		CreatedAt:   ac.CreatedAt.UTC(),
		ExpiresAt:   ac.ExpiresAt.UTC(),
	}
	return translate(s.DB.WithContext(ctx).Create(rec).Error)
}

// Claim deletes the row and returns it in a single statement. Concurrent
// claimers race on the row lock; the loser deletes nothing and gets ErrNotFound.
func (s *DBCodeStore) Claim(ctx context.Context, code string) (*models.AuthorizationCode, error) {
	var rec AuthorizationCodeRecord
	if err := s.DB.WithContext(ctx).Raw(
		`DELETE FROM authorization_codes WHERE code=?
		 RETURNING code, user_id, client_id, redirect_uri, state, created_at, expires_at`, code,
	).Scan(&rec).Error; err != nil {
		return nil, err
	}
	if rec.Code == "" {
		return nil, ErrNotFound
	}
	return &models.AuthorizationCode{
		Code:        rec.Code,
		UserID:      rec.UserID,
		ClientID:    rec.ClientID,
		RedirectURI: rec.RedirectURI,
		State:       rec.State,
		CreatedAt:   rec.CreatedAt,
		ExpiresAt:   rec.ExpiresAt,
	}, nil
}

// DeleteExpired removes codes that expired before the retention window.
func (s *DBCodeStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).Exec(`DELETE FROM authorization_codes WHERE expires_at < ?`, now.UTC().Add(-DefaultCodeRetention))
	return res.RowsAffected, res.Error
}
