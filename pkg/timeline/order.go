package timeline

import (
	"sort"
	"time"

	"github.com/xaionaro-go/audiosync/pkg/model"
)

// SortChronologically returns the clips ordered by creation time. A clip
// without a creation time stays right after the clip preceding it in the
// given (import) order; equal timestamps keep the import order.
func SortChronologically(clips []*model.Clip) []*model.Clip {
	type keyed struct {
		clip *model.Clip
		key  time.Time
		has  bool
	}
	items := make([]keyed, len(clips))
	var (
		last    time.Time
		hasLast bool
	)
	for i, c := range clips {
		if c.CreationTime != nil {
			last, hasLast = *c.CreationTime, true
		}
		items[i] = keyed{clip: c, key: last, has: hasLast}
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.has != b.has {
			// leading clips without any timestamp keep their place at the front
			return !a.has
		}
		return a.key.Before(b.key)
	})

	out := make([]*model.Clip, len(items))
	for i, it := range items {
		out[i] = it.clip
	}
	return out
}
