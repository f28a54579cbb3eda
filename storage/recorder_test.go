package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Recorder {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "combat.db"))
	require.NoError(t, err)
	return NewRecorder(db, 16, nil)
}

func TestRecorderPersistsShots(t *testing.T) {
	r := openTemp(t)
	r.Start()
	t.Cleanup(func() { _ = r.Close() })

	now := time.Now()
	for i := 0; i < 3; i++ {
		require.True(t, r.RecordShot(ShotRecord{
			Sector:   "alpha",
			ShipID:   "p1",
			TargetID: "k1",
			Mount:    i,
			Damage:   6,
			Tick:     uint64(10 + i),
			FiredAt:  now,
		}))
	}
	require.True(t, r.RecordShot(ShotRecord{Sector: "alpha", ShipID: "k1", TargetID: "p1", Damage: 2}))
	require.True(t, r.RecordLaunch(LaunchRecord{Sector: "alpha", ShipID: "p1", Munition: "homing", TargetAngle: 12}))

	require.Eventually(t, func() bool { return r.Written() == 5 }, 2*time.Second, 10*time.Millisecond)

	shots, err := r.Shots(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, shots, 3)
	for i, s := range shots {
		assert.Equal(t, i, s.Mount)
		assert.Equal(t, "k1", s.TargetID)
		assert.Equal(t, uint64(10+i), s.Tick)
	}

	launches, err := r.Launches(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, launches, 1)
	assert.Equal(t, "homing", launches[0].Munition)
	assert.Zero(t, r.Dropped())
}

func TestRecorderDropsWhenFull(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "combat.db"))
	require.NoError(t, err)
	r := NewRecorder(db, 1, nil)

	assert.True(t, r.RecordShot(ShotRecord{ShipID: "p1"}))
	assert.False(t, r.RecordShot(ShotRecord{ShipID: "p1"}))
	assert.False(t, r.RecordLaunch(LaunchRecord{ShipID: "p1"}))
	assert.Equal(t, uint64(2), r.Dropped())

	// Close 会把队列里剩下的记录写完
	require.NoError(t, r.Close())
	assert.Equal(t, uint64(1), r.Written())
}

func TestRecorderRejectsAfterClose(t *testing.T) {
	r := openTemp(t)
	r.Start()
	require.NoError(t, r.Close())
	require.NoError(t, r.Close(), "second close is a no-op")

	assert.False(t, r.RecordShot(ShotRecord{ShipID: "p1"}))
	assert.Equal(t, uint64(1), r.Dropped())
}
