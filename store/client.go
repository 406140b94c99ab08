package store

import (
	"context"
	"time"

	"github.com/legit-games/authcode-service/models"
	"gorm.io/gorm"
)

// --- Persistent client store ---

type DBClientStore struct{ DB *gorm.DB }

func NewDBClientStore(db *gorm.DB) *DBClientStore { return &DBClientStore{DB: db} }

type clientRow struct {
	ID          string
	Secret      string
	Name        string
	RedirectURI string
	LandingPage string
	OwnerID     string
	CreatedAt   time.Time
}

func (r *clientRow) toModel() *models.Client {
	return &models.Client{
		ID:          r.ID,
		Secret:      r.Secret,
		Name:        r.Name,
		RedirectURI: r.RedirectURI,
		LandingPage: r.LandingPage,
		OwnerID:     r.OwnerID,
		CreatedAt:   r.CreatedAt,
	}
}

// Create inserts a client. Clients are immutable once registered.
func (s *DBClientStore) Create(ctx context.Context, c *models.Client) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return translate(s.DB.WithContext(ctx).Exec(
		`INSERT INTO clients(id, secret, name, redirect_uri, landing_page, owner_id, created_at, updated_at)
		 VALUES(?,?,?,?,?,?,?,?)`,
		c.ID, c.Secret, c.Name, c.RedirectURI, c.LandingPage, c.OwnerID, c.CreatedAt, c.CreatedAt,
	).Error)
}

func (s *DBClientStore) GetByID(ctx context.Context, id string) (*models.Client, error) {
	var row clientRow
	if err := s.DB.WithContext(ctx).Raw(
		`SELECT id, secret, name, redirect_uri, COALESCE(landing_page, '') AS landing_page, owner_id, created_at FROM clients WHERE id=?`, id,
	).Scan(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == "" {
		return nil, ErrNotFound
	}
	return row.toModel(), nil
}

func (s *DBClientStore) GetByOwnerAndName(ctx context.Context, ownerID, name string) (*models.Client, error) {
	var row clientRow
	if err := s.DB.WithContext(ctx).Raw(
		`SELECT id, secret, name, redirect_uri, COALESCE(landing_page, '') AS landing_page, owner_id, created_at FROM clients WHERE owner_id=? AND name=?`, ownerID, name,
	).Scan(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == "" {
		return nil, ErrNotFound
	}
	return row.toModel(), nil
}
