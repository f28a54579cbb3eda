package server

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bridgesim/geom"
	"bridgesim/storage"
	"bridgesim/weapons"
)

type fakeConn struct {
	msgs   [][]byte
	closed bool
}

func (c *fakeConn) Enqueue(b []byte) { c.msgs = append(c.msgs, b) }
func (c *fakeConn) Close() { c.closed = true }

// ofType 按顺序返回某类消息
func (c *fakeConn) ofType(t *testing.T, typ string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, b := range c.msgs {
		var m map[string]any
		require.NoError(t, json.Unmarshal(b, &m))
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

type fakeRecorder struct {
	shots    []storage.ShotRecord
	launches []storage.LaunchRecord
}

func (r *fakeRecorder) RecordShot(rec storage.ShotRecord) bool {
	r.shots = append(r.shots, rec)
	return true
}

func (r *fakeRecorder) RecordLaunch(rec storage.LaunchRecord) bool {
	r.launches = append(r.launches, rec)
	return true
}

func newTestSector(t *testing.T) (*Sector, *fakeRecorder) {
	t.Helper()
	rec := &fakeRecorder{}
	s := NewSector("test", SectorOptions{TicksPerSecond: 20, FlushHz: 20, Recorder: rec, Seed: 1})
	return s, rec
}

func joinCrew(s *Sector, crew CrewID, shipID string, st Station) *fakeConn {
	conn := &fakeConn{}
	s.RequestJoin(JoinRequest{Crew: crew, ShipID: shipID, Station: st, Faction: "human", Conn: conn})
	return conn
}

func TestJoinSpawnsShipAndSendsSnapshot(t *testing.T) {
	s, _ := newTestSector(t)
	conn := joinCrew(s, "c1", "p1", StationHelm)

	s.Tick()

	sh, ok := s.Ship("p1")
	require.True(t, ok)
	assert.Equal(t, "Phobos T3", sh.TemplateName())
	assert.Equal(t, 1, s.ShipCount())

	snaps := conn.ofType(t, "snapshot")
	require.Len(t, snaps, 1)
	assert.Equal(t, "p1", snaps[0]["ship"])
	assert.Contains(t, snaps[0]["ships"], "p1")
	assert.NotEmpty(t, conn.ofType(t, "delta"))
}

func TestJoinWithUnknownTemplateIsRejected(t *testing.T) {
	s, _ := newTestSector(t)
	conn := &fakeConn{}
	s.RequestJoin(JoinRequest{Crew: "c1", ShipID: "p1", Station: StationHelm, Template: "Nebula", Conn: conn})

	s.Tick()

	_, ok := s.Ship("p1")
	assert.False(t, ok)
	assert.True(t, conn.closed)
	require.Len(t, conn.ofType(t, "error"), 1)
}

func TestHelmInputsSteerShip(t *testing.T) {
	s, _ := newTestSector(t)
	joinCrew(s, "c1", "p1", StationHelm)
	s.Tick()

	s.OnInput(Input{Crew: "c1", Msg: InputMessage{Type: "helm", Command: CmdHeading, Value: 90}})
	s.OnInput(Input{Crew: "c1", Msg: InputMessage{Type: "helm", Command: CmdImpulse, Value: 1}})
	s.Tick()

	sh, _ := s.Ship("p1")
	assert.InDelta(t, 0.5, sh.Rotation(), 1e-9)
	assert.InDelta(t, 90.0, sh.Velocity().Length(), 1e-9)
	assert.Equal(t, int64(2), s.Metrics().InputsAccepted)
}

func TestInputFromWrongStationIsRejected(t *testing.T) {
	s, _ := newTestSector(t)
	conn := joinCrew(s, "c1", "p1", StationHelm)
	s.Tick()

	s.OnInput(Input{Crew: "c1", Msg: InputMessage{Type: "weapons", Command: CmdTarget, Target: "x"}})
	s.OnInput(Input{Crew: "nobody", Msg: InputMessage{Type: "helm", Command: CmdImpulse}})
	s.Tick()

	assert.Equal(t, int64(2), s.Metrics().InputsRejected)
	errs := conn.ofType(t, "error")
	require.Len(t, errs, 1)
	assert.Equal(t, CmdTarget, errs[0]["command"])
}

func TestRateLimitAndSequenceDedup(t *testing.T) {
	s, _ := newTestSector(t)
	joinCrew(s, "c1", "p1", StationEngineering)
	s.Tick()
	s.UpdateSettings(func(st *SectorSettings) { st.MaxInputsPerTick = 2 })

	for seq := int64(1); seq <= 3; seq++ {
		s.OnInput(Input{Crew: "c1", Msg: InputMessage{Type: "engineering", Command: CmdShieldFrequency, Frequency: int(seq), Seq: seq}})
	}
	s.Tick()
	s.OnInput(Input{Crew: "c1", Msg: InputMessage{Type: "engineering", Command: CmdShieldFrequency, Frequency: 9, Seq: 2}})
	s.Tick()

	snap := s.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap["inputs_accepted"])
	assert.Equal(t, int64(1), snap["rate_limited"])
	assert.Equal(t, int64(1), snap["old_seq_ignored"])
}

func TestSimulatedDropDiscardsInputs(t *testing.T) {
	s, _ := newTestSector(t)
	joinCrew(s, "c1", "p1", StationHelm)
	s.Tick()
	s.UpdateSettings(func(st *SectorSettings) { st.SimulateDropProb = 1 })

	s.OnInput(Input{Crew: "c1", Msg: InputMessage{Type: "helm", Command: CmdImpulse, Value: 1}})
	s.Tick()

	sh, _ := s.Ship("p1")
	assert.Zero(t, sh.Velocity().Length())
	assert.Equal(t, int64(1), s.Metrics().DropsSimulated)
}

func TestBeamCombatIsBroadcastAndRecorded(t *testing.T) {
	s, rec := newTestSector(t)
	_, err := s.SpawnShip("", "p1", "Phobos", "human", geom.Vec2{})
	require.NoError(t, err)
	k1, err := s.SpawnShip("", "k1", "Raider", "kraylor", geom.Vec2{X: 1000})
	require.NoError(t, err)
	k1.SetRotation(180)
	conn := joinCrew(s, "c1", "p1", StationWeapons)

	s.OnInput(Input{Crew: "c1", Msg: InputMessage{Type: "weapons", Command: CmdTarget, Target: "k1"}})
	s.Tick()

	assert.Less(t, k1.FrontShield(), 100.0)
	require.Len(t, rec.shots, 2)
	for i, shot := range rec.shots {
		assert.Equal(t, "test", shot.Sector)
		assert.Equal(t, "p1", shot.ShipID)
		assert.Equal(t, "k1", shot.TargetID)
		assert.Equal(t, i, shot.Mount)
		assert.Equal(t, 6.0, shot.Damage)
		assert.Equal(t, "none", shot.SystemTarget)
	}
	assert.Equal(t, int64(2), s.Metrics().ShotsFired)

	events := conn.ofType(t, "events")
	require.Len(t, events, 1)
	assert.Len(t, events[0]["beams"], 2)
}

func TestTargetMustExist(t *testing.T) {
	s, _ := newTestSector(t)
	conn := joinCrew(s, "c1", "p1", StationWeapons)
	s.Tick()

	s.OnInput(Input{Crew: "c1", Msg: InputMessage{Type: "weapons", Command: CmdTarget, Target: "ghost"}})
	s.OnInput(Input{Crew: "c1", Msg: InputMessage{Type: "weapons", Command: CmdTarget, Target: "p1"}})
	s.Tick()

	assert.Len(t, conn.ofType(t, "error"), 2)
	sh, _ := s.Ship("p1")
	assert.Empty(t, sh.TargetID())
}

func TestWeaponsStationLoadsAimsAndFires(t *testing.T) {
	s, rec := newTestSector(t)
	_, err := s.SpawnShip("", "p1", "Phobos", "human", geom.Vec2{})
	require.NoError(t, err)
	_, err = s.SpawnShip("", "k1", "Raider", "kraylor", geom.Vec2{X: 3000})
	require.NoError(t, err)
	conn := joinCrew(s, "c1", "p1", StationWeapons)

	s.OnInput(Input{Crew: "c1", Msg: InputMessage{Type: "weapons", Command: CmdTarget, Target: "k1"}})
	s.OnInput(Input{Crew: "c1", Msg: InputMessage{Type: "weapons", Command: CmdLoad, Tube: 0, Munition: "homing"}})
	s.Tick()

	p1, _ := s.Ship("p1")
	tube, _ := p1.Tube(0)
	require.True(t, tube.IsLoading())
	for i := 0; i < 220 && !tube.IsLoaded(); i++ {
		s.Tick()
	}
	require.True(t, tube.IsLoaded())

	s.OnInput(Input{Crew: "c1", Msg: InputMessage{Type: "weapons", Command: CmdAim, Tube: 0}})
	s.OnInput(Input{Crew: "c1", Msg: InputMessage{Type: "weapons", Command: CmdAim, Tube: 1}})
	s.OnInput(Input{Crew: "c1", Msg: InputMessage{Type: "weapons", Command: CmdFire, Tube: 0}})
	s.Tick()

	aims := conn.ofType(t, "aim")
	require.Len(t, aims, 2)
	assert.InDelta(t, 0.0, aims[0]["bearing"], 1e-6)
	assert.Equal(t, "no_solution", aims[1]["result"], "empty tube has no solution")

	require.Len(t, rec.launches, 1)
	assert.Equal(t, "homing", rec.launches[0].Munition)
	assert.Equal(t, "k1", rec.launches[0].TargetID)
	assert.InDelta(t, 0.0, rec.launches[0].TargetAngle, 1e-6)
	assert.True(t, tube.IsEmpty())
	assert.Equal(t, 7, p1.Magazine()[weapons.Homing])
	assert.True(t, p1.Revealed())
}

func TestHelmRejectsNonFiniteAndWrapsHugeHeading(t *testing.T) {
	s, _ := newTestSector(t)
	conn := joinCrew(s, "c1", "p1", StationHelm)
	s.Tick()

	s.OnInput(Input{Crew: "c1", Msg: InputMessage{Type: "helm", Command: CmdHeading, Value: math.Inf(1)}})
	s.OnInput(Input{Crew: "c1", Msg: InputMessage{Type: "helm", Command: CmdImpulse, Value: math.NaN()}})
	s.OnInput(Input{Crew: "c1", Msg: InputMessage{Type: "helm", Command: CmdHeading, Value: 1e300}})
	s.Tick()

	assert.Len(t, conn.ofType(t, "error"), 2)
	assert.Equal(t, int64(1), s.Metrics().InputsAccepted)
	sh, _ := s.Ship("p1")
	assert.GreaterOrEqual(t, sh.Rotation(), 0.0)
	assert.Less(t, sh.Rotation(), 360.0)
}

func TestSalvoCountIsBounded(t *testing.T) {
	s, rec := newTestSector(t)
	conn := joinCrew(s, "c1", "p1", StationWeapons)
	s.OnInput(Input{Crew: "c1", Msg: InputMessage{Type: "weapons", Command: CmdLoad, Tube: 0, Munition: "hvli"}})
	s.Tick()

	p1, _ := s.Ship("p1")
	tube, _ := p1.Tube(0)
	for i := 0; i < 220 && !tube.IsLoaded(); i++ {
		s.Tick()
	}
	require.True(t, tube.IsLoaded())

	s.OnInput(Input{Crew: "c1", Msg: InputMessage{Type: "weapons", Command: CmdSalvo, Tube: 0, Count: 0}})
	s.OnInput(Input{Crew: "c1", Msg: InputMessage{Type: "weapons", Command: CmdSalvo, Tube: 0, Count: maxSalvoCount + 1}})
	s.OnInput(Input{Crew: "c1", Msg: InputMessage{Type: "weapons", Command: CmdSalvo, Tube: 0, Count: 3}})
	for i := 0; i < 200 && !tube.IsEmpty(); i++ {
		s.Tick()
	}

	assert.Len(t, conn.ofType(t, "error"), 2)
	require.Len(t, rec.launches, 3)
	assert.Equal(t, 12-3, p1.Magazine()[weapons.HVLI])
}

func TestDestroyedShipIsRemoved(t *testing.T) {
	s, _ := newTestSector(t)
	k1, err := s.SpawnShip("", "k1", "Raider", "kraylor", geom.Vec2{X: 500})
	require.NoError(t, err)
	conn := joinCrew(s, "c1", "p1", StationWeapons)
	s.Tick()

	k1.TakeDamage(1e6, weapons.DamageInfo{Type: weapons.DamageKinetic, Location: geom.Vec2{}, SystemTarget: weapons.SystemNone})
	s.Tick()

	_, ok := s.Ship("k1")
	assert.False(t, ok)
	events := conn.ofType(t, "events")
	require.Len(t, events, 1)
	assert.Equal(t, []any{"k1"}, events[0]["destroyed"])
	assert.Equal(t, int64(1), s.Metrics().ShipsDestroyed)
}

func TestDockingCompletesAfterDelay(t *testing.T) {
	s, _ := newTestSector(t)
	joinCrew(s, "c1", "p1", StationHelm)
	s.Tick()

	s.OnInput(Input{Crew: "c1", Msg: InputMessage{Type: "helm", Command: CmdDock}})
	s.Tick()
	sh, _ := s.Ship("p1")
	assert.Equal(t, weapons.Docking, sh.DockingState())

	for i := 0; i < 60; i++ {
		s.Tick()
	}
	assert.Equal(t, weapons.Docked, sh.DockingState())

	s.OnInput(Input{Crew: "c1", Msg: InputMessage{Type: "helm", Command: CmdUndock}})
	s.Tick()
	assert.Equal(t, weapons.NotDocking, sh.DockingState())
}

func TestStaleConnectionCannotEvictReconnectedCrew(t *testing.T) {
	s, _ := newTestSector(t)
	first := joinCrew(s, "c1", "p1", StationHelm)
	s.Tick()
	second := joinCrew(s, "c1", "p1", StationHelm)
	s.Tick()
	assert.True(t, first.closed)

	s.RequestLeave("c1", first)
	s.Tick()
	assert.Contains(t, s.crews, CrewID("c1"))
	assert.False(t, second.closed)

	s.RequestLeave("c1", second)
	s.Tick()
	assert.NotContains(t, s.crews, CrewID("c1"))
	assert.True(t, second.closed)
}

func TestPausedSectorFreezesWorld(t *testing.T) {
	s, _ := newTestSector(t)
	joinCrew(s, "c1", "p1", StationHelm)
	s.Tick()
	s.UpdateSettings(func(st *SectorSettings) { st.Paused = true })

	s.OnInput(Input{Crew: "c1", Msg: InputMessage{Type: "helm", Command: CmdImpulse, Value: 1}})
	s.Tick()

	sh, _ := s.Ship("p1")
	assert.Equal(t, geom.Vec2{}, sh.Position())
	assert.Equal(t, int64(1), s.Metrics().InputsAccepted, "inputs still apply while paused")
}

func TestParseStation(t *testing.T) {
	assert.Equal(t, StationHelm, ParseStation("Helm"))
	assert.Equal(t, StationEngineering, ParseStation("engineering"))
	assert.Equal(t, StationNone, ParseStation("none"))
	assert.Equal(t, StationNone, ParseStation("captain"))
}
