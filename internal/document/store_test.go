package document_test

import (
	"sync"
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/bailiff/internal/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRoundTrip(t *testing.T) {
	t.Parallel()

	store := document.NewMemory()
	ctx := t.Context()
	guildID := snowflake.ID(42)

	data, err := store.Get(ctx, guildID, document.NameUserLog)
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, store.Set(ctx, guildID, document.NameUserLog, []byte(`{"a":1}`)))

	data, err = store.Get(ctx, guildID, document.NameUserLog)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(data))

	// Other guilds and names stay empty
	data, err = store.Get(ctx, snowflake.ID(43), document.NameUserLog)
	require.NoError(t, err)
	assert.Nil(t, data)

	guilds, err := store.Guilds(t.Context(), document.NameUserLog)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{guildID}, guilds)
}

func TestMemoryRejectsEmptyName(t *testing.T) {
	t.Parallel()

	store := document.NewMemory()

	_, err := store.Get(t.Context(), 1, "")
	require.ErrorIs(t, err, document.ErrInvalidName)

	err = store.Set(t.Context(), 1, "", nil)
	require.ErrorIs(t, err, document.ErrInvalidName)
}

func TestMemoryCopiesData(t *testing.T) {
	t.Parallel()

	store := document.NewMemory()
	buf := []byte(`{"x":true}`)
	require.NoError(t, store.Set(t.Context(), 1, "doc", buf))

	buf[2] = 'y'

	data, err := store.Get(t.Context(), 1, "doc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":true}`, string(data))
}

func TestLockerSerializesSameKey(t *testing.T) {
	t.Parallel()

	locker := document.NewLocker()

	var (
		wg      sync.WaitGroup
		counter int
	)

	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locker.Lock(7, document.NameUserLog)
			defer unlock()

			// Non-atomic increment is safe only under the lock
			current := counter
			counter = current + 1
		}()
	}

	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, locker.Len())
}

func TestLockerIndependentKeys(t *testing.T) {
	t.Parallel()

	locker := document.NewLocker()

	unlockA := locker.Lock(1, document.NameUserLog)
	unlockB := locker.Lock(2, document.NameUserLog)
	assert.Equal(t, 2, locker.Len())

	unlockA()
	unlockB()
	assert.Equal(t, 0, locker.Len())
}
