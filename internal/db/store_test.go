package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.MigrateUp("migrations"))
	return database
}

func TestMigrateUpAndDown(t *testing.T) {
	database := openTestDB(t)

	version, dirty, err := database.MigrateVersion("migrations")
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	// up again is a no-op
	require.NoError(t, database.MigrateUp("migrations"))

	require.NoError(t, database.MigrateDown("migrations"))
	version, _, err = database.MigrateVersion("migrations")
	require.NoError(t, err)
	assert.Zero(t, version)
}

func TestRunLifecycle(t *testing.T) {
	database := openTestDB(t)

	runID, err := database.NewRun("bearing wear onset")
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	runs, err := database.Runs(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].ID)
	assert.Equal(t, "bearing wear onset", runs[0].Scenario)
	assert.Nil(t, runs[0].FinishedAt)

	require.NoError(t, database.FinishRun(runID))
	runs, err = database.Runs(10)
	require.NoError(t, err)
	require.NotNil(t, runs[0].FinishedAt)
}

func TestRecordAndQueryClassifications(t *testing.T) {
	database := openTestDB(t)

	runID, err := database.NewRun("test")
	require.NoError(t, err)

	for i, classID := range []uint8{0, 0, 1, 1, 1} {
		require.NoError(t, database.RecordClassification(Classification{
			RunID:       runID,
			Tick:        uint64(1000 * (i + 1)),
			ClassID:     classID,
			Confidence:  200,
			AlarmActive: i == 4,
		}))
	}

	events, err := database.Classifications(runID, 3)
	require.NoError(t, err)
	require.Len(t, events, 3)

	// newest first, class name filled in from the id
	assert.Equal(t, uint64(5000), events[0].Tick)
	assert.Equal(t, "BEARING_WEAR", events[0].ClassName)
	assert.True(t, events[0].AlarmActive)
	assert.False(t, events[1].AlarmActive)

	counts, err := database.ClassCounts(runID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"HEALTHY": 2, "BEARING_WEAR": 3}, counts)
}

func TestRecordAndQueryAlarms(t *testing.T) {
	database := openTestDB(t)

	runID, err := database.NewRun("test")
	require.NoError(t, err)

	require.NoError(t, database.RecordAlarm(AlarmEvent{RunID: runID, Tick: 900, ClassID: 2, Confidence: 240}))
	require.NoError(t, database.RecordAlarm(AlarmEvent{RunID: runID, Tick: 400, ClassID: 2, Confidence: 230}))

	events, err := database.AlarmEvents(runID)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// tick order regardless of insert order
	assert.Equal(t, uint64(400), events[0].Tick)
	assert.Equal(t, uint64(900), events[1].Tick)
	assert.Equal(t, uint8(2), events[0].ClassID)
}

func TestClassificationsForUnknownRunIsEmpty(t *testing.T) {
	database := openTestDB(t)

	events, err := database.Classifications("no-such-run", 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}
