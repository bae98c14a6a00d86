package txdownload

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/txrelay/txdownload/core/types"
)

// reconsiderableRejects is the "small set of reconsiderable rejects" from
// spec.md §3: wtxids that failed validation with a single, possibly
// transient failure and may be worth reconsidering once a package-relay
// peer supplies more context. mapset.Set has no eviction policy of its own,
// so a FIFO ring of insertion order is kept alongside it to enforce a cap.
type reconsiderableRejects struct {
	set   mapset.Set[types.Wtxid]
	order []types.Wtxid
	cap   int
}

func newReconsiderableRejects(cap int) *reconsiderableRejects {
	return &reconsiderableRejects{
		set: mapset.NewThreadUnsafeSet[types.Wtxid](),
		cap: cap,
	}
}

// Add inserts wtxid, evicting the oldest entry first if at capacity.
func (r *reconsiderableRejects) Add(wtxid types.Wtxid) {
	if r.set.Contains(wtxid) {
		return
	}
	if r.cap > 0 && r.set.Cardinality() >= r.cap {
		oldest := r.order[0]
		r.order = r.order[1:]
		r.set.Remove(oldest)
	}
	r.set.Add(wtxid)
	r.order = append(r.order, wtxid)
}

// Contains reports whether wtxid is currently tracked as reconsiderable.
func (r *reconsiderableRejects) Contains(wtxid types.Wtxid) bool {
	return r.set.Contains(wtxid)
}

// Remove drops wtxid, e.g. once it has actually been reconsidered.
func (r *reconsiderableRejects) Remove(wtxid types.Wtxid) {
	if !r.set.Contains(wtxid) {
		return
	}
	r.set.Remove(wtxid)
	for i, w := range r.order {
		if w == wtxid {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}
