package database

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pk55-api/models"
)

// slowBannerStore widens the gap between reading and inserting.
type slowBannerStore struct {
	*MemoryStore

	mu      sync.Mutex
	creates int
}

func (s *slowBannerStore) LatestBanner(ctx context.Context) (*models.Banner, error) {
	time.Sleep(5 * time.Millisecond)
	return s.MemoryStore.LatestBanner(ctx)
}

func (s *slowBannerStore) CreateBanner(ctx context.Context, b *models.Banner) error {
	s.mu.Lock()
	s.creates++
	s.mu.Unlock()
	return s.MemoryStore.CreateBanner(ctx, b)
}

func TestLatestOrCreateBanner_CreatesOnce(t *testing.T) {
	store := &slowBannerStore{MemoryStore: NewMemoryStore()}
	newDefault := func() *models.Banner { return models.NewDefaultBanner("2026-05-01", 70) }

	const callers = 20
	ids := make([]string, callers)
	created := make([]bool, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, c, err := LatestOrCreateBanner(context.Background(), store, newDefault)
			assert.NoError(t, err)
			if b != nil {
				ids[i] = b.ID
			}
			created[i] = c
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, store.creates)

	createdCount := 0
	for i := range ids {
		assert.Equal(t, ids[0], ids[i])
		if created[i] {
			createdCount++
		}
	}
	assert.Equal(t, 1, createdCount)
}

func TestLatestOrCreateBanner_ExistingBanner(t *testing.T) {
	store := &slowBannerStore{MemoryStore: NewMemoryStore()}
	existing := models.NewDefaultBanner("2026-05-01", 50)
	require.NoError(t, store.MemoryStore.CreateBanner(context.Background(), existing))

	b, created, err := LatestOrCreateBanner(context.Background(), store, func() *models.Banner {
		t.Fatal("default must not be built when a banner exists")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existing.ID, b.ID)
	assert.Equal(t, 0, store.creates)
}
