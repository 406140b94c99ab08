package store

import (
	"context"
	"time"

	"github.com/legit-games/authcode-service/models"
	"gorm.io/gorm"
)

// ConsentRecord is the user_client_consents table row.
type ConsentRecord struct {
	UserID    string    `gorm:"column:user_id;primaryKey"`
	ClientID  string    `gorm:"column:client_id;primaryKey"`
	Granted   bool      `gorm:"column:granted;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (ConsentRecord) TableName() string {
	return "user_client_consents"
}

// DBConsentStore persists consent decisions in SQL.
type DBConsentStore struct{ DB *gorm.DB }

func NewDBConsentStore(db *gorm.DB) *DBConsentStore { return &DBConsentStore{DB: db} }

// Upsert relies on the (user_id, client_id) primary key so concurrent
// approvals still leave a single row.
func (s *DBConsentStore) Upsert(ctx context.Context, c *models.Consent) error {
	c.UpdatedAt = time.Now().UTC()
	return s.DB.WithContext(ctx).Exec(
		`INSERT INTO user_client_consents(user_id, client_id, granted, created_at, updated_at)
		 VALUES(?,?,?,?,?)
		 ON CONFLICT(user_id, client_id) DO UPDATE SET granted=excluded.granted, updated_at=excluded.updated_at`,
		c.UserID, c.ClientID, c.Granted, c.UpdatedAt, c.UpdatedAt,
	).Error
}

func (s *DBConsentStore) Get(ctx context.Context, userID, clientID string) (*models.Consent, error) {
	var rec ConsentRecord
	if err := s.DB.WithContext(ctx).Where("user_id = ? AND client_id = ?", userID, clientID).First(&rec).Error; err != nil {
		return nil, translate(err)
	}
	return &models.Consent{UserID: rec.UserID, ClientID: rec.ClientID, Granted: rec.Granted, UpdatedAt: rec.UpdatedAt}, nil
}
