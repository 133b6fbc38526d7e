package inventory

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjenw/portward/internal/port"
)

func rec(portNum, pid int, command string) port.PortRecord {
	return port.PortRecord{
		Port:    portNum,
		PID:     pid,
		Process: "proc",
		Address: "*",
		User:    "arjen",
		Command: command,
		FD:      "8u",
		Active:  true,
	}
}

func TestApply_AdoptsNewState(t *testing.T) {
	s := NewStore(zerolog.Nop())

	changed, _ := s.Apply([]port.PortRecord{rec(3000, 10, "a"), rec(80, 20, "b")})
	require.True(t, changed)

	ports := s.CurrentPorts()
	require.Len(t, ports, 2)
	assert.Equal(t, 80, ports[0].Port)
	assert.Equal(t, 3000, ports[1].Port)
}

func TestApply_NoOpOnSameKeySet(t *testing.T) {
	s := NewStore(zerolog.Nop())
	s.Apply([]port.PortRecord{rec(3000, 10, "node server.js")})

	fired := 0
	s.Subscribe(func() { fired++ })

	// Same (port, pid) pair, cosmetically different command.
	changed, _ := s.Apply([]port.PortRecord{rec(3000, 10, "node server.js --verbose")})
	assert.False(t, changed)
	assert.Zero(t, fired, "no change signal may fire for a cosmetic difference")

	// The previous record is retained, including its command text.
	ports := s.CurrentPorts()
	require.Len(t, ports, 1)
	assert.Equal(t, "node server.js", ports[0].Command)
}

func TestApply_ChangeSignal(t *testing.T) {
	s := NewStore(zerolog.Nop())
	fired := 0
	s.Subscribe(func() { fired++ })

	s.Apply([]port.PortRecord{rec(3000, 10, "a")})
	assert.Equal(t, 1, fired)

	// New PID on the same port is a real change.
	s.Apply([]port.PortRecord{rec(3000, 11, "a")})
	assert.Equal(t, 2, fired)
}

func TestApply_FavoritesFirstOrdering(t *testing.T) {
	s := NewStore(zerolog.Nop())
	s.SetFavorites([]int{9000})

	s.Apply([]port.PortRecord{
		rec(80, 1, "a"),
		rec(9000, 2, "b"),
		rec(443, 3, "c"),
	})

	ports := s.CurrentPorts()
	require.Len(t, ports, 3)
	assert.Equal(t, 9000, ports[0].Port, "favorited port sorts first")
	assert.Equal(t, 80, ports[1].Port)
	assert.Equal(t, 443, ports[2].Port)
}

func TestCurrentPorts_PlaceholderForTrackedPort(t *testing.T) {
	s := NewStore(zerolog.Nop())
	s.AddFavorite(5432)
	s.Apply([]port.PortRecord{rec(80, 1, "a")})

	ports := s.CurrentPorts()
	require.Len(t, ports, 2)

	placeholder := ports[0]
	assert.Equal(t, 5432, placeholder.Port)
	assert.False(t, placeholder.Active)
	assert.Zero(t, placeholder.PID)
	assert.Equal(t, "-", placeholder.User)
	assert.Equal(t, "*", placeholder.Address)
	assert.Equal(t, "-", placeholder.FD)
}

func TestCurrentPorts_ReturnsCopy(t *testing.T) {
	s := NewStore(zerolog.Nop())
	s.Apply([]port.PortRecord{rec(80, 1, "a")})

	first := s.CurrentPorts()
	first[0].Command = "mutated"

	second := s.CurrentPorts()
	assert.Equal(t, "a", second[0].Command)
}

func TestWatchTransitions(t *testing.T) {
	s := NewStore(zerolog.Nop())
	s.AddWatch(NewWatchSpec(3000, true, true))

	// First cycle: port inactive, status recorded, no transition.
	_, transitions := s.Apply(nil)
	assert.Empty(t, transitions, "first observation must not fire")

	// Port comes up: start transition fires exactly once.
	_, transitions = s.Apply([]port.PortRecord{rec(3000, 10, "a")})
	require.Len(t, transitions, 1)
	assert.Equal(t, Transition{Port: 3000, Active: true}, transitions[0])

	// Steady state: nothing fires.
	_, transitions = s.Apply([]port.PortRecord{rec(3000, 10, "a")})
	assert.Empty(t, transitions)

	// Port goes down: stop transition.
	_, transitions = s.Apply(nil)
	require.Len(t, transitions, 1)
	assert.Equal(t, Transition{Port: 3000, Active: false}, transitions[0])
}

func TestWatchTransitions_FirstCycleActive(t *testing.T) {
	s := NewStore(zerolog.Nop())
	s.AddWatch(NewWatchSpec(3000, true, true))

	// The port is already active the first time the watch is evaluated.
	_, transitions := s.Apply([]port.PortRecord{rec(3000, 10, "a")})
	assert.Empty(t, transitions, "first observation must not fire even when active")

	_, transitions = s.Apply(nil)
	require.Len(t, transitions, 1)
	assert.False(t, transitions[0].Active)
}

func TestWatchTransitions_FlagFiltering(t *testing.T) {
	s := NewStore(zerolog.Nop())
	s.AddWatch(NewWatchSpec(3000, true, false)) // start only

	s.Apply(nil)
	_, transitions := s.Apply([]port.PortRecord{rec(3000, 10, "a")})
	require.Len(t, transitions, 1)

	// Stop is not requested, so going down fires nothing.
	_, transitions = s.Apply(nil)
	assert.Empty(t, transitions)

	// Status tracking continued, so coming back up fires start again.
	_, transitions = s.Apply([]port.PortRecord{rec(3000, 11, "a")})
	require.Len(t, transitions, 1)
	assert.True(t, transitions[0].Active)
}

func TestRemoveByPID_OptimisticRemoval(t *testing.T) {
	s := NewStore(zerolog.Nop())
	s.Apply([]port.PortRecord{rec(80, 1, "a"), rec(3000, 10, "b"), rec(3001, 10, "c")})

	s.RemoveByPID(10)

	ports := s.CurrentPorts()
	require.Len(t, ports, 1)
	assert.Equal(t, 80, ports[0].Port)

	// The confirming scan is authoritative: the binding survived the kill
	// and is re-adopted.
	changed, _ := s.Apply([]port.PortRecord{rec(80, 1, "a"), rec(3000, 10, "b"), rec(3001, 10, "c")})
	assert.True(t, changed)
	assert.Len(t, s.CurrentPorts(), 3)
}

func TestRemoveByPID_ThenConfirmingScanAgrees(t *testing.T) {
	s := NewStore(zerolog.Nop())
	s.Apply([]port.PortRecord{rec(80, 1, "a"), rec(3000, 10, "b")})
	s.RemoveByPID(10)

	// Kill really freed the port: confirming scan matches the optimistic
	// state, so no extra change signal fires.
	changed, _ := s.Apply([]port.PortRecord{rec(80, 1, "a")})
	assert.False(t, changed)
}

func TestWatchManagement(t *testing.T) {
	s := NewStore(zerolog.Nop())

	w := NewWatchSpec(3000, true, false)
	require.NotEmpty(t, w.ID)
	s.AddWatch(w)
	s.AddWatch(NewWatchSpec(8080, false, true))

	assert.Len(t, s.Watches(), 2)
	assert.True(t, s.RemoveWatch(w.ID))
	assert.False(t, s.RemoveWatch(w.ID))
	assert.Len(t, s.Watches(), 1)

	assert.Equal(t, 1, s.RemoveWatchByPort(8080))
	assert.Empty(t, s.Watches())
}

func TestFavorites(t *testing.T) {
	s := NewStore(zerolog.Nop())
	s.AddFavorite(443)
	s.AddFavorite(80)
	assert.Equal(t, []int{80, 443}, s.Favorites())
	assert.True(t, s.IsFavorite(80))

	s.RemoveFavorite(80)
	assert.False(t, s.IsFavorite(80))
	assert.Equal(t, []int{443}, s.Favorites())
}
