package store

import (
	"context"
	"errors"
	"time"

	"github.com/legit-games/authcode-service/models"
	"gorm.io/gorm"
)

// UserRecord is the users table row.
type UserRecord struct {
	ID           string    `gorm:"column:id;primaryKey"`
	Username     string    `gorm:"column:username;not null"`
	Email        string    `gorm:"column:email;not null"`
	FirstName    string    `gorm:"column:first_name;not null"`
	LastName     string    `gorm:"column:last_name;not null"`
	DateOfBirth  string    `gorm:"column:date_of_birth;not null"`
	PasswordHash string    `gorm:"column:password_hash;not null"`
	Role         string    `gorm:"column:role;not null"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (UserRecord) TableName() string {
	return "users"
}

func (r *UserRecord) toModel() *models.User {
	return &models.User{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		DateOfBirth:  r.DateOfBirth,
		PasswordHash: r.PasswordHash,
		Role:         r.Role,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// DBUserStore persists users in SQL.
type DBUserStore struct{ DB *gorm.DB }

func NewDBUserStore(db *gorm.DB) *DBUserStore { return &DBUserStore{DB: db} }

// Create inserts u. The database must be opened with TranslateError so that
// unique violations surface as ErrDuplicate.
func (s *DBUserStore) Create(ctx context.Context, u *models.User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	rec := &UserRecord{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		DateOfBirth:  u.DateOfBirth,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
	return translate(s.DB.WithContext(ctx).Create(rec).Error)
}

func (s *DBUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *DBUserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.first(ctx, "LOWER(username) = LOWER(?)", username)
}

func (s *DBUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.first(ctx, "LOWER(email) = LOWER(?)", email)
}

func (s *DBUserStore) first(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var rec UserRecord
	if err := s.DB.WithContext(ctx).Where(query, arg).First(&rec).Error; err != nil {
		return nil, translate(err)
	}
	return rec.toModel(), nil
}

// translate maps gorm errors onto the store sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}
