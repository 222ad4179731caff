package utils

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/legalpay/legalpay/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordIfAbsentFirstWriterWins(t *testing.T) {
	db := SetupTestDB(t)

	outcome, wasNew, err := RecordIfAbsent(db, "payment:order_1", "pay_A", time.Hour)
	require.NoError(t, err)
	assert.True(t, wasNew)
	assert.Equal(t, "pay_A", outcome)

	outcome, wasNew, err = RecordIfAbsent(db, "payment:order_1", "pay_B", time.Hour)
	require.NoError(t, err)
	assert.False(t, wasNew)
	assert.Equal(t, "pay_A", outcome)

	var count int64
	require.NoError(t, db.Model(&models.IdempotencyRecord{}).Where("key = ?", "payment:order_1").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRecordIfAbsentConcurrentWriters(t *testing.T) {
	db := SetupTestDB(t)

	const writers = 8
	var winners int32
	var wg sync.WaitGroup
	outcomes := make([]string, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcome, wasNew, err := RecordIfAbsent(db, "order:abc:0", fmt.Sprintf("order_gw_%d", i), time.Hour)
			require.NoError(t, err)
			if wasNew {
				atomic.AddInt32(&winners, 1)
			}
			outcomes[i] = outcome
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners)
	for i := 1; i < writers; i++ {
		assert.Equal(t, outcomes[0], outcomes[i])
	}
}

func TestReplaceRecordGuardedSwap(t *testing.T) {
	db := SetupTestDB(t)

	_, _, err := RecordIfAbsent(db, "order:abc:0", "order_old", time.Hour)
	require.NoError(t, err)

	swapped, err := ReplaceRecord(db, "order:abc:0", "order_old", "order_new", time.Hour)
	require.NoError(t, err)
	assert.True(t, swapped)

	// A second swap guarded by the stale outcome loses.
	swapped, err = ReplaceRecord(db, "order:abc:0", "order_old", "order_other", time.Hour)
	require.NoError(t, err)
	assert.False(t, swapped)

	outcome, wasNew, err := RecordIfAbsent(db, "order:abc:0", "ignored", time.Hour)
	require.NoError(t, err)
	assert.False(t, wasNew)
	assert.Equal(t, "order_new", outcome)
}

func TestPruneExpiredRecords(t *testing.T) {
	db := SetupTestDB(t)

	_, _, err := RecordIfAbsent(db, "payment:live", "pay_live", time.Hour)
	require.NoError(t, err)
	_, _, err = RecordIfAbsent(db, "payment:stale", "pay_stale", -time.Minute)
	require.NoError(t, err)

	pruned, err := PruneExpiredRecords(db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	var remaining []models.IdempotencyRecord
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, "payment:live", remaining[0].Key)
}
