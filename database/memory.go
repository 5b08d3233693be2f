package database

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"pk55-api/models"
)

// MemoryStore keeps everything in process memory. Used for local
// development (DB_DRIVER=memory) and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   int
	banners  []models.Banner
	users    map[string]models.User
	images   []models.Image
	settings map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]models.User),
		settings: make(map[string]string),
	}
}

func (m *MemoryStore) newID() string {
	m.nextID++
	return strconv.Itoa(m.nextID)
}

func copyBanner(b models.Banner) *models.Banner {
	if b.Image != nil {
		img := *b.Image
		img.Data = append([]byte(nil), b.Image.Data...)
		b.Image = &img
	}
	return &b
}

func (m *MemoryStore) LatestBanner(ctx context.Context) (*models.Banner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	latest := -1
	for i, b := range m.banners {
		// later insertion wins ties
		if latest == -1 || !b.CreatedAt.Before(m.banners[latest].CreatedAt) {
			latest = i
		}
	}
	if latest == -1 {
		return nil, ErrNotFound
	}
	return copyBanner(m.banners[latest]), nil
}

func (m *MemoryStore) CreateBanner(ctx context.Context, banner *models.Banner) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	banner.ID = m.newID()
	banner.CreatedAt = now
	banner.UpdatedAt = now
	m.banners = append(m.banners, *copyBanner(*banner))
	return nil
}

func (m *MemoryStore) UpdateBanner(ctx context.Context, id string, upd models.BannerUpdate) (*models.Banner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.banners {
		if m.banners[i].ID != id {
			continue
		}
		upd.Apply(&m.banners[i])
		m.banners[i].UpdatedAt = time.Now()
		return copyBanner(m.banners[i]), nil
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[username]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.users[user.Username]; exists {
		return ErrDuplicate
	}
	now := time.Now()
	user.ID = m.newID()
	user.CreatedAt = now
	user.UpdatedAt = now
	m.users[user.Username] = *user
	return nil
}

func (m *MemoryStore) ListImages(ctx context.Context) ([]models.Image, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	images := make([]models.Image, len(m.images))
	copy(images, m.images)
	SortImages(images)
	return images, nil
}

func (m *MemoryStore) indexOfImage(id string) int {
	for i, img := range m.images {
		if img.ID == id {
			return i
		}
	}
	return -1
}

func (m *MemoryStore) FindImage(ctx context.Context, id string) (*models.Image, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := m.indexOfImage(id)
	if i == -1 {
		return nil, ErrNotFound
	}
	img := m.images[i]
	return &img, nil
}

func (m *MemoryStore) CreateImage(ctx context.Context, image *models.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.indexOfImage(image.ID) != -1 {
		return ErrDuplicate
	}
	if image.CreatedAt.IsZero() {
		image.CreatedAt = time.Now()
	}
	m.images = append(m.images, *image)
	return nil
}

func (m *MemoryStore) ReplaceImage(ctx context.Context, oldID string, image *models.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOfImage(oldID)
	if i == -1 {
		return ErrNotFound
	}
	if image.ID != oldID && m.indexOfImage(image.ID) != -1 {
		return ErrDuplicate
	}
	image.CreatedAt = m.images[i].CreatedAt
	m.images[i] = *image
	return nil
}

func (m *MemoryStore) UpdateImageDate(ctx context.Context, id, date string) (*models.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOfImage(id)
	if i == -1 {
		return nil, ErrNotFound
	}
	m.images[i].Date = date
	img := m.images[i]
	return &img, nil
}

func (m *MemoryStore) DeleteImage(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOfImage(id)
	if i == -1 {
		return ErrNotFound
	}
	m.images = append(m.images[:i], m.images[i+1:]...)
	return nil
}

func (m *MemoryStore) ListSettings(ctx context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string, len(m.settings))
	for k, v := range m.settings {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStore) UpsertSetting(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.settings[key] = value
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error  { return nil }
func (m *MemoryStore) Close(ctx context.Context) error { return nil }

// SortImages orders images by date descending, newest CreatedAt first on ties.
func SortImages(images []models.Image) {
	sort.SliceStable(images, func(i, j int) bool {
		if images[i].Date != images[j].Date {
			return images[i].Date > images[j].Date
		}
		return images[i].CreatedAt.After(images[j].CreatedAt)
	})
}
