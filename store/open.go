package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Backends accepted by Options.Backend.
const (
	BackendBuntDB   = "buntdb"
	BackendPostgres = "postgres"
)

// Options selects the backend for each repository.
type Options struct {
	Backend     string
	BuntPath    string
	PostgresDSN string
	// ValkeyAddr, when set, moves authorization codes to Valkey.
	ValkeyAddr string
	// RedisAddr, when set, moves access and refresh tokens to Redis.
	RedisAddr string
	KeyPrefix string
	Logger    *zap.SugaredLogger
}

// Sweeper is implemented by backends without native key expiry.
type Sweeper interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Open builds the repository bundle described by opts.
func Open(ctx context.Context, opts Options) (*Stores, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	var stores *Stores
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendBuntDB:
		db, err := OpenBunt(opts.BuntPath)
		if err != nil {
			return nil, fmt.Errorf("open buntdb: %w", err)
		}
		stores = NewBuntStores(db)
		log.Infow("using buntdb store", "path", opts.BuntPath)
	case BackendPostgres:
		db, err := OpenGorm(opts.PostgresDSN)
		if err != nil {
			return nil, err
		}
		stores, err = NewDBStores(db)
		if err != nil {
			return nil, err
		}
		log.Infow("using postgres store")
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", opts.Backend)
	}

	if opts.ValkeyAddr != "" {
		codes, err := NewValkeyCodeStore(opts.ValkeyAddr, opts.KeyPrefix)
		if err != nil {
			_ = stores.Close()
			return nil, fmt.Errorf("connect valkey: %w", err)
		}
		stores.Codes = codes
		stores.closers = append(stores.closers, codes.Close)
		log.Infow("authorization codes stored in valkey", "addr", opts.ValkeyAddr)
	}

	if opts.RedisAddr != "" {
		tokens := NewRedisTokenStore(opts.RedisAddr, opts.KeyPrefix)
		if err := tokens.Ping(ctx); err != nil {
			_ = tokens.Close()
			_ = stores.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		stores.Access = tokens
		stores.Refresh = tokens
		stores.closers = append(stores.closers, tokens.Close)
		log.Infow("tokens stored in redis", "addr", opts.RedisAddr)
	}
	return stores, nil
}

// OpenGorm opens postgres with unique violations translated to gorm.ErrDuplicatedKey.
func OpenGorm(dsn string) (*gorm.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

// NewDBStores returns every repository backed by db.
func NewDBStores(db *gorm.DB) (*Stores, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	tokens := NewDBTokenStore(db)
	codes := NewDBCodeStore(db)
	return &Stores{
		Users:    NewDBUserStore(db),
		Clients:  NewDBClientStore(db),
		Consents: NewDBConsentStore(db),
		Codes:    codes,
		Access:   tokens,
		Refresh:  tokens,
		Sweepers: []Sweeper{codes, tokens},
		closers:  []func() error{sqlDB.Close},
	}, nil
}

// Sweep runs every sweeper and returns the number of records removed.
func (s *Stores) Sweep(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	for _, sw := range s.Sweepers {
		n, err := sw.DeleteExpired(ctx, now)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
