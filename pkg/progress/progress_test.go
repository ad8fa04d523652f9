package progress

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReporter(t *testing.T) {
	var events []Event
	sink := SinkFunc(func(_ context.Context, ev Event) {
		events = append(events, ev)
	})

	r := NewReporter(sink, StagePass1, 10)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Step(context.Background(), "clip %d", i)
		}(i)
	}
	wg.Wait()
	r.Complete(context.Background(), "pass 1 complete")

	require.Len(t, events, 11)
	for i, ev := range events[:10] {
		assert.Equal(t, i+1, ev.Done)
		assert.Equal(t, 10, ev.Total)
		assert.Equal(t, StagePass1, ev.Stage)
	}
	assert.Equal(t, "[10/10] pass 1 complete", events[10].String())
}

func TestChanSink(t *testing.T) {
	ch := make(ChanSink, 1)
	r := NewReporter(ch, StageDrift, 2)
	r.Step(context.Background(), "a")
	r.Step(context.Background(), "b")
	ev := <-ch
	assert.Equal(t, "a", ev.Message)
	assert.Empty(t, ch)
}

func TestNilSink(t *testing.T) {
	r := NewReporter(nil, StageStitch, 1)
	r.Step(context.Background(), "nothing happens")
}
