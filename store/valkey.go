package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/legit-games/authcode-service/models"
	valkey "github.com/valkey-io/valkey-go"
)

// ValkeyCodeStore stores authorization codes in Valkey (Redis-compatible).
// Claim uses GETDEL, so redemption is a single atomic server-side command.
type ValkeyCodeStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyCodeStore creates a Valkey-backed code store.
// addr example: "127.0.0.1:6379"; prefix helps namespace keys.
func NewValkeyCodeStore(addr string, prefix string) (*ValkeyCodeStore, error) {
	cli, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, err
	}
	return NewValkeyCodeStoreWithClient(cli, prefix), nil
}

// NewValkeyCodeStoreWithClient creates a store with an existing Valkey client.
func NewValkeyCodeStoreWithClient(client valkey.Client, prefix string) *ValkeyCodeStore {
	if prefix == "" {
		prefix = "authcode:"
	}
	return &ValkeyCodeStore{client: client, prefix: prefix}
}

func (s *ValkeyCodeStore) key(code string) string {
	return fmt.Sprintf("%scode:%s", s.prefix, code)
}

// Create stores the code with NX so an existing code is never overwritten.
func (s *ValkeyCodeStore) Create(ctx context.Context, ac *models.AuthorizationCode) error {
	data, err := json.Marshal(ac)
	if err != nil {
		return fmt.Errorf("failed to marshal authorization code: %w", err)
	}
	cmd := s.client.B().Set().Key(s.key(ac.Code)).Value(string(data)).Nx().Ex(codeTTL(ac)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *ValkeyCodeStore) Claim(ctx context.Context, code string) (*models.AuthorizationCode, error) {
	res := s.client.Do(ctx, s.client.B().Getdel().Key(s.key(code)).Build())
	if err := res.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	val, err := res.ToString()
	if err != nil || val == "" {
		return nil, ErrNotFound
	}
	var ac models.AuthorizationCode
	if err := json.Unmarshal([]byte(val), &ac); err != nil {
		return nil, fmt.Errorf("failed to unmarshal authorization code: %w", err)
	}
	return &ac, nil
}

// Close closes the Valkey connection.
func (s *ValkeyCodeStore) Close() error {
	s.client.Close()
	return nil
}
