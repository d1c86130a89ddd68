package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navalha-app/navalha/services/booking-service/internal/booking"
)

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "navalha.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore(t *testing.T) {
	storeContract(t, openTestSQLite(t))
}

func TestSQLiteStore_ConcurrentInsertsOneWins(t *testing.T) {
	store := openTestSQLite(t)
	ctx := context.Background()

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		ok    int
		taken int
	)
	for _, start := range []string{"09:00", "09:30"} {
		wg.Add(1)
		go func(start string) {
			defer wg.Done()
			_, err := store.Insert(ctx, sampleAppointment("c"+start, start, 60))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case assert.ErrorIs(t, err, booking.ErrSlotTaken):
				taken++
			}
		}(start)
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, taken)
}
