package inventory

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/arjenw/portward/internal/port"
)

// Store owns the canonical port list, the favorites set, and the watched
// port specs. All mutation happens under one mutex; other components only
// ever see copies. Scan execution runs elsewhere, only the short result
// merge in Apply holds the lock.
type Store struct {
	mu         sync.Mutex
	records    []port.PortRecord // canonical, favorites-first then port asc
	favorites  map[int]bool
	watches    []WatchSpec
	lastStatus map[int]bool // last observed active status per watched port
	subs       []func()
	log        zerolog.Logger
}

// NewStore creates an empty inventory store.
func NewStore(log zerolog.Logger) *Store {
	return &Store{
		favorites:  make(map[int]bool),
		lastStatus: make(map[int]bool),
		log:        log.With().Str("component", "inventory").Logger(),
	}
}

// Subscribe registers a callback invoked after every canonical-state
// change. Callbacks run outside the lock.
func (s *Store) Subscribe(fn func()) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}

// Apply reconciles a freshly scanned list against the canonical state.
// If the (port, pid) key sets are equal the previous list is retained
// unchanged and no change signal fires, even when cosmetic fields differ.
// Otherwise the scanned list is adopted in canonical order.
//
// After reconciling, watched-port transition detection runs: each watched
// port's current status is compared against the previous cycle's. The
// returned transitions are already filtered by each spec's notify flags.
// A watched port seen for the first time records its status without
// firing.
func (s *Store) Apply(fresh []port.PortRecord) (changed bool, transitions []Transition) {
	s.mu.Lock()

	if !sameKeySet(s.records, fresh) {
		adopted := append([]port.PortRecord(nil), fresh...)
		sortCanonical(adopted, s.favorites)
		s.records = adopted
		changed = true
	}

	transitions = s.detectTransitionsLocked()

	var subs []func()
	if changed {
		subs = append([]func(){}, s.subs...)
		s.log.Debug().Int("records", len(s.records)).Msg("canonical state replaced")
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
	return changed, transitions
}

// detectTransitionsLocked compares every watched port's status against the
// previous cycle and updates the recorded status. Caller holds the lock.
func (s *Store) detectTransitionsLocked() []Transition {
	active := make(map[int]bool)
	for _, r := range s.records {
		active[r.Port] = true
	}

	var transitions []Transition
	seen := make(map[int]bool)
	for _, w := range s.watches {
		if seen[w.Port] {
			continue
		}
		seen[w.Port] = true

		now := active[w.Port]
		prev, tracked := s.lastStatus[w.Port]
		s.lastStatus[w.Port] = now

		if !tracked || prev == now {
			continue
		}
		if now && !w.NotifyOnStart {
			continue
		}
		if !now && !w.NotifyOnStop {
			continue
		}
		transitions = append(transitions, Transition{Port: w.Port, Active: now})
	}
	return transitions
}

// CurrentPorts returns the last reconciled canonical list. Tracked ports
// (favorited or watched) without a live binding appear as synthesized
// inactive placeholders so they stay visible. The result is a copy.
func (s *Store) CurrentPorts() []port.PortRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := append([]port.PortRecord(nil), s.records...)

	bound := make(map[int]bool, len(s.records))
	for _, r := range s.records {
		bound[r.Port] = true
	}

	tracked := make(map[int]bool)
	for p := range s.favorites {
		tracked[p] = true
	}
	for _, w := range s.watches {
		tracked[w.Port] = true
	}

	var missing []int
	for p := range tracked {
		if !bound[p] {
			missing = append(missing, p)
		}
	}
	sort.Ints(missing)
	for _, p := range missing {
		out = append(out, port.Placeholder(p))
	}

	sortCanonical(out, s.favorites)
	return out
}

// RemoveByPID optimistically drops records owned by a PID from the
// canonical list, keeping the UI responsive after a kill. The confirming
// scan that follows is authoritative and may re-add the binding.
func (s *Store) RemoveByPID(pid int) {
	s.mu.Lock()
	kept := s.records[:0]
	removed := 0
	for _, r := range s.records {
		if r.PID == pid {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	var subs []func()
	if removed > 0 {
		subs = append([]func(){}, s.subs...)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

// AddFavorite marks a port as favorited and re-sorts the canonical list.
func (s *Store) AddFavorite(portNum int) {
	s.mu.Lock()
	s.favorites[portNum] = true
	sortCanonical(s.records, s.favorites)
	subs := append([]func(){}, s.subs...)
	s.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

// RemoveFavorite clears a port's favorite flag.
func (s *Store) RemoveFavorite(portNum int) {
	s.mu.Lock()
	delete(s.favorites, portNum)
	sortCanonical(s.records, s.favorites)
	subs := append([]func(){}, s.subs...)
	s.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

// IsFavorite reports whether a port is favorited.
func (s *Store) IsFavorite(portNum int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.favorites[portNum]
}

// Favorites returns the favorited ports in ascending order.
func (s *Store) Favorites() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, 0, len(s.favorites))
	for p := range s.favorites {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

// SetFavorites replaces the favorites set, used when loading preferences.
func (s *Store) SetFavorites(ports []int) {
	s.mu.Lock()
	s.favorites = make(map[int]bool, len(ports))
	for _, p := range ports {
		s.favorites[p] = true
	}
	sortCanonical(s.records, s.favorites)
	s.mu.Unlock()
}

// AddWatch registers a watch spec.
func (s *Store) AddWatch(w WatchSpec) {
	s.mu.Lock()
	s.watches = append(s.watches, w)
	s.mu.Unlock()
}

// RemoveWatch deletes the watch with the given ID. Returns true if found.
func (s *Store) RemoveWatch(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, w := range s.watches {
		if w.ID == id {
			s.watches = append(s.watches[:i], s.watches[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveWatchByPort deletes all watches for a port. Returns the number
// removed.
func (s *Store) RemoveWatchByPort(portNum int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.watches[:0]
	removed := 0
	for _, w := range s.watches {
		if w.Port == portNum {
			removed++
			continue
		}
		kept = append(kept, w)
	}
	s.watches = kept
	if removed > 0 {
		delete(s.lastStatus, portNum)
	}
	return removed
}

// Watches returns a copy of the registered watch specs.
func (s *Store) Watches() []WatchSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]WatchSpec(nil), s.watches...)
}

// SetWatches replaces the watch list, used when loading preferences.
func (s *Store) SetWatches(watches []WatchSpec) {
	s.mu.Lock()
	s.watches = append([]WatchSpec(nil), watches...)
	s.lastStatus = make(map[int]bool)
	s.mu.Unlock()
}
