package reminder

import (
	"testing"
	"time"

	"github.com/Amina2304/MedTrack/internal/models"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func doseKey() models.DoseKey {
	return models.DoseKey{
		MedicationID:  primitive.NewObjectID(),
		ScheduledTime: "09:00",
		Date:          "2026-08-31",
	}
}

func TestLockManagerMutualExclusion(t *testing.T) {
	locks := NewLockManager(time.Minute)
	key := doseKey()

	assert.True(t, locks.TryAcquire(key))
	assert.False(t, locks.TryAcquire(key), "second acquire must fail while held")

	// A different dose key is unaffected.
	assert.True(t, locks.TryAcquire(doseKey()))

	locks.Release(key)
	assert.True(t, locks.TryAcquire(key))
}

func TestLockManagerReleaseIsIdempotent(t *testing.T) {
	locks := NewLockManager(time.Minute)
	key := doseKey()

	locks.Release(key) // releasing an unheld key is a no-op

	assert.True(t, locks.TryAcquire(key))
	locks.Release(key)
	locks.Release(key)
	assert.True(t, locks.TryAcquire(key))
}

func TestLockManagerAutoExpiry(t *testing.T) {
	locks := NewLockManager(20 * time.Millisecond)
	key := doseKey()

	assert.True(t, locks.TryAcquire(key))
	assert.False(t, locks.TryAcquire(key))

	// A crashed caller never releases; the TTL must.
	assert.Eventually(t, func() bool {
		return locks.TryAcquire(key)
	}, time.Second, 5*time.Millisecond)
}

func TestLockManagerReleaseAfterCooldown(t *testing.T) {
	locks := NewLockManager(time.Minute)
	key := doseKey()

	assert.True(t, locks.TryAcquire(key))
	locks.ReleaseAfter(key, 20*time.Millisecond)

	// Still held during the cooldown window.
	assert.False(t, locks.TryAcquire(key))

	assert.Eventually(t, func() bool {
		return locks.TryAcquire(key)
	}, time.Second, 5*time.Millisecond)
}

func TestLockManagerZeroCooldownReleasesImmediately(t *testing.T) {
	locks := NewLockManager(time.Minute)
	key := doseKey()

	assert.True(t, locks.TryAcquire(key))
	locks.ReleaseAfter(key, 0)
	assert.True(t, locks.TryAcquire(key))
}
