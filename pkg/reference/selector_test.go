package reference

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/audiosync/pkg/model"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func clipAt(offset time.Duration, duration float64) *model.Clip {
	ct := t0.Add(offset)
	return &model.Clip{CreationTime: &ct, Duration: duration}
}

func TestSelect(t *testing.T) {
	t.Run("widest coverage", func(t *testing.T) {
		tracks := []*model.Track{
			{Name: "long single", Clips: []*model.Clip{clipAt(0, 100)}},
			// two clips spanning 0..200 s although summing up to 20 s only
			{Name: "sparse", Clips: []*model.Clip{clipAt(0, 10), clipAt(190*time.Second, 10)}},
		}
		sel, err := Select(tracks)
		require.NoError(t, err)
		assert.Equal(t, 1, sel.Index)
		assert.Equal(t, ReasonCoverage, sel.Reason)
	})

	t.Run("summed duration without metadata", func(t *testing.T) {
		tracks := []*model.Track{
			{Name: "a", Clips: []*model.Clip{{Duration: 50}}},
			{Name: "b", Clips: []*model.Clip{{Duration: 30}, {Duration: 30}}},
		}
		sel, err := Select(tracks)
		require.NoError(t, err)
		assert.Equal(t, 1, sel.Index)
		assert.Equal(t, ReasonSummedDuration, sel.Reason)
	})

	t.Run("pinned wins", func(t *testing.T) {
		tracks := []*model.Track{
			{Name: "a", Clips: []*model.Clip{clipAt(0, 1000)}},
			{Name: "b", PinnedReference: true, Clips: []*model.Clip{clipAt(0, 1)}},
		}
		sel, err := Select(tracks)
		require.NoError(t, err)
		assert.Equal(t, 1, sel.Index)
		assert.Equal(t, ReasonPinned, sel.Reason)
	})

	t.Run("several pinned", func(t *testing.T) {
		tracks := []*model.Track{
			{Name: "a", PinnedReference: true, Clips: []*model.Clip{clipAt(0, 1)}},
			{Name: "b", PinnedReference: true, Clips: []*model.Clip{clipAt(0, 1)}},
		}
		sel, err := Select(tracks)
		require.NoError(t, err)
		assert.Equal(t, 0, sel.Index)
		assert.Len(t, sel.Warnings, 1)
	})

	t.Run("tie goes to the lower index", func(t *testing.T) {
		tracks := []*model.Track{
			{Name: "empty"},
			{Name: "a", Clips: []*model.Clip{clipAt(0, 10)}},
			{Name: "b", Clips: []*model.Clip{clipAt(time.Hour, 10)}},
		}
		sel, err := Select(tracks)
		require.NoError(t, err)
		assert.Equal(t, 1, sel.Index)
	})

	t.Run("no tracks", func(t *testing.T) {
		_, err := Select(nil)
		assert.ErrorIs(t, err, ErrNoUsableReference)
	})

	t.Run("no clips", func(t *testing.T) {
		_, err := Select([]*model.Track{{Name: "a"}, {Name: "b"}})
		assert.ErrorIs(t, err, ErrNoUsableReference)
	})

	t.Run("pinned track without clips", func(t *testing.T) {
		_, err := Select([]*model.Track{
			{Name: "a", PinnedReference: true},
			{Name: "b", Clips: []*model.Clip{clipAt(0, 10)}},
		})
		assert.ErrorIs(t, err, ErrNoUsableReference)
	})
}

func TestCoverage(t *testing.T) {
	_, ok := Coverage(&model.Track{Clips: []*model.Clip{{Duration: 5}}})
	assert.False(t, ok)

	coverage, ok := Coverage(&model.Track{Clips: []*model.Clip{
		clipAt(10*time.Second, 5),
		{Duration: 1000},
		clipAt(0, 5),
	}})
	assert.True(t, ok)
	assert.InDelta(t, 15.0, coverage, 1e-6)
}
