package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/containerflow/pkg/db/dbtest"
	"github.com/angelmondragon/containerflow/pkg/db/models"
)

func newTestPurger(t *testing.T) (*Purger, Repository, func(...seedRecord)) {
	t.Helper()
	client := dbtest.Client(t)
	repo := NewRepository(client.DB())
	purger, err := NewPurger(PurgerParams{DB: client, History: repo, Now: func() time.Time { return testNow }})
	require.NoError(t, err)
	return purger, repo, func(rows ...seedRecord) { seedHistory(t, client.DB(), rows...) }
}

func TestPurgeOlderThan(t *testing.T) {
	purger, repo, seed := newTestPurger(t)
	seed(
		seedRecord{part: "P-1", fulfilled: testNow.Add(-31 * 24 * time.Hour), minutes: 10},
		seedRecord{part: "P-1", fulfilled: testNow.Add(-45 * 24 * time.Hour), minutes: 10},
		seedRecord{part: "P-1", fulfilled: testNow.Add(-29 * 24 * time.Hour), minutes: 10},
		seedRecord{part: "P-1", fulfilled: testNow.Add(-time.Hour), minutes: 10},
		seedRecord{serial: "S-EDGE", part: "P-1", fulfilled: testNow.Add(-30 * 24 * time.Hour), minutes: 10},
		seedRecord{serial: "S-PAST", part: "P-1", fulfilled: testNow.Add(-30*24*time.Hour - time.Second), minutes: 10},
	)

	deleted, err := purger.PurgeOlderThan(context.Background(), 30)
	require.NoError(t, err)
	assert.EqualValues(t, 3, deleted)

	remaining, err := purger.Remaining(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, remaining)

	var serials []string
	require.NoError(t, repo.(*repositoryImpl).DB(context.Background()).
		Model(&models.HistoryRecord{}).Order("serial_no").Pluck("serial_no", &serials).Error)
	assert.Contains(t, serials, "S-EDGE")
	assert.NotContains(t, serials, "S-PAST")

	deleted, err = purger.PurgeOlderThan(context.Background(), 30)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestPurgeDefaultsHorizon(t *testing.T) {
	purger, _, _ := newTestPurger(t)
	assert.True(t, purger.Cutoff(0).Equal(testNow.Add(-30*24*time.Hour)))
	assert.True(t, purger.Cutoff(7).Equal(testNow.Add(-7*24*time.Hour)))
}

func TestClearAll(t *testing.T) {
	purger, repo, seed := newTestPurger(t)

	deleted, err := purger.ClearAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, deleted)

	seed(
		seedRecord{part: "P-1", fulfilled: testNow.Add(-time.Hour), minutes: 10},
		seedRecord{part: "P-2", fulfilled: testNow.Add(-2 * time.Hour), minutes: 20},
	)
	deleted, err = purger.ClearAll(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	count, err := repo.CountAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}
