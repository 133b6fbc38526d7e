package inventory

import (
	"sort"

	"github.com/arjenw/portward/internal/port"
)

// keySet builds the (port, pid) identity set used for change detection.
// The same key function drives de-duplication, diffing, and display
// ordering so the three can never diverge.
func keySet(records []port.PortRecord) map[string]struct{} {
	keys := make(map[string]struct{}, len(records))
	for _, r := range records {
		keys[r.Key()] = struct{}{}
	}
	return keys
}

// sameKeySet reports whether two record lists describe the same set of
// bindings. Cosmetic field differences (a command string fluctuating
// run-to-run) do not count as change.
func sameKeySet(a, b []port.PortRecord) bool {
	ka := keySet(a)
	kb := keySet(b)
	if len(ka) != len(kb) {
		return false
	}
	for k := range ka {
		if _, ok := kb[k]; !ok {
			return false
		}
	}
	return true
}

// sortCanonical orders records for the canonical list: favorited ports
// first, then ascending by port within each partition. The sort is stable
// so equal ports preserve scan-encounter order.
func sortCanonical(records []port.PortRecord, favorites map[int]bool) {
	sort.SliceStable(records, func(i, j int) bool {
		fi, fj := favorites[records[i].Port], favorites[records[j].Port]
		if fi != fj {
			return fi
		}
		return records[i].Port < records[j].Port
	})
}
