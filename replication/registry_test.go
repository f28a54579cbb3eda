package replication

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(cs []Change) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Name)
	}
	return out
}

func TestCollectFirstPassSendsEverything(t *testing.T) {
	r := NewRegistry()
	arc, rng := 30.0, 1000.0
	Register(r, "arc", &arc)
	Register(r, "range", &rng)

	assert.Equal(t, []string{"arc", "range"}, names(r.Collect(0)))
	assert.Empty(t, r.Collect(0.05))

	rng = 1200
	got := r.Collect(0.1)
	require.Len(t, got, 1)
	assert.Equal(t, Change{Name: "range", Value: 1200.0}, got[0])
}

func TestCollectHonoursMaxInterval(t *testing.T) {
	r := NewRegistry()
	cooldown := 6.0
	Register(r, "cooldown", &cooldown, WithMaxInterval(0.5))

	require.Len(t, r.Collect(0), 1)

	cooldown = 5.95
	assert.Empty(t, r.Collect(0.05), "throttled inside the interval")
	cooldown = 5.6
	assert.Empty(t, r.Collect(0.45))

	got := r.Collect(0.5)
	require.Len(t, got, 1)
	assert.Equal(t, 5.6, got[0].Value)
}

func TestRegisterTwicePanics(t *testing.T) {
	r := NewRegistry()
	v := 1
	Register(r, "state", &v)
	assert.Panics(t, func() { Register(r, "state", &v) })
	assert.Equal(t, 1, r.Len())
	assert.True(t, r.Has("state"))
}

func TestSnapshotIsSortedAndComplete(t *testing.T) {
	r := NewRegistry()
	b, a := 2, "x"
	Register(r, "b", &b)
	Register(r, "a", &a)
	r.Collect(0)

	assert.Equal(t, []Change{{Name: "a", Value: "x"}, {Name: "b", Value: 2}}, r.Snapshot())
}
