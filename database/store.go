package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pk55-api/models"
)

const (
	DriverMongo  = "mongo"
	DriverMySQL  = "mysql"
	DriverMemory = "memory"

	queryTimeout = 10 * time.Second
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

type DatabaseConfig struct {
	Driver string `env:"DB_DRIVER" env-default:"mongo"`

	MongoURI      string `env:"MONGODB_URI" env-default:"mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGODB_DATABASE" env-default:"pk55"`

	Host     string `env:"MYSQL_HOST" env-default:"localhost:3306"`
	User     string `env:"MYSQL_USER"`
	Password string `env:"MYSQL_PASSWORD"`
	DBName   string `env:"MYSQL_DATABASE" env-default:"pk55"`
}

// BannerStore is the persistence contract of the discount scheduler and the
// banner endpoints. CreateBanner and UpdateBanner together implement
// "save banner": both refresh UpdatedAt.
type BannerStore interface {
	// LatestBanner returns the most recently created banner or ErrNotFound.
	LatestBanner(ctx context.Context) (*models.Banner, error)
	CreateBanner(ctx context.Context, banner *models.Banner) error
	// UpdateBanner writes only the fields set in upd.
	UpdateBanner(ctx context.Context, id string, upd models.BannerUpdate) (*models.Banner, error)
}

type UserStore interface {
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
}

type ImageStore interface {
	// ListImages returns images ordered by date, newest first.
	ListImages(ctx context.Context) ([]models.Image, error)
	FindImage(ctx context.Context, id string) (*models.Image, error)
	CreateImage(ctx context.Context, image *models.Image) error
	// ReplaceImage swaps the record stored under oldID for image, keeping CreatedAt.
	ReplaceImage(ctx context.Context, oldID string, image *models.Image) error
	UpdateImageDate(ctx context.Context, id, date string) (*models.Image, error)
	DeleteImage(ctx context.Context, id string) error
}

type SettingsStore interface {
	ListSettings(ctx context.Context) (map[string]string, error)
	UpsertSetting(ctx context.Context, key, value string) error
}

type Store interface {
	BannerStore
	UserStore
	ImageStore
	SettingsStore

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// bannerInitMu serializes default banner creation within the process, so
// the startup tick and a first GET never both insert one.
var bannerInitMu sync.Mutex

// LatestOrCreateBanner returns the latest banner. When there is none it
// inserts newDefault() and reports created. Multiple API instances sharing
// one database can still race here; the newest banner wins either way.
func LatestOrCreateBanner(ctx context.Context, store BannerStore, newDefault func() *models.Banner) (*models.Banner, bool, error) {
	banner, err := store.LatestBanner(ctx)
	if err == nil {
		return banner, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	bannerInitMu.Lock()
	defer bannerInitMu.Unlock()

	// another caller may have created it while we waited
	banner, err = store.LatestBanner(ctx)
	if err == nil {
		return banner, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	banner = newDefault()
	if err := store.CreateBanner(ctx, banner); err != nil {
		return nil, false, err
	}
	return banner, true, nil
}

// Open connects to the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case DriverMongo, "":
		return NewMongoStore(ctx, cfg)
	case DriverMySQL:
		conn, err := NewConnection(cfg)
		if err != nil {
			return nil, err
		}
		if err := conn.Migrate(ctx); err != nil {
			conn.db.Close()
			return nil, err
		}
		return conn, nil
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}
}
