// Package progress delivers progress notifications of long running
// operations to the caller.
package progress

import (
	"context"
	"fmt"
	"sync"
)

type Stage int

const (
	StageUndefined = Stage(iota)
	StageDecode
	StagePass1
	StagePass2
	StageDrift
	StageStitch
	EndOfStage
)

func (s Stage) String() string {
	switch s {
	case StageUndefined:
		return "<undefined>"
	case StageDecode:
		return "decode"
	case StagePass1:
		return "pass1"
	case StagePass2:
		return "pass2"
	case StageDrift:
		return "drift"
	case StageStitch:
		return "stitch"
	default:
		return fmt.Sprintf("<unknown_%d>", int(s))
	}
}

type Event struct {
	Stage   Stage
	Done    int
	Total   int
	Message string
}

func (ev Event) String() string {
	return fmt.Sprintf("[%d/%d] %s", ev.Done, ev.Total, ev.Message)
}

// Sink receives the progress events. It may be called from several
// goroutines, but never concurrently: calls are serialized by Reporter.
type Sink interface {
	OnProgress(ctx context.Context, ev Event)
}

type SinkFunc func(ctx context.Context, ev Event)

func (fn SinkFunc) OnProgress(ctx context.Context, ev Event) {
	fn(ctx, ev)
}

type nopSink struct{}

func (nopSink) OnProgress(context.Context, Event) {}

// Nop is the Sink that ignores everything.
var Nop Sink = nopSink{}

// ChanSink forwards events to a channel, dropping them if the channel is full.
type ChanSink chan Event

func (ch ChanSink) OnProgress(_ context.Context, ev Event) {
	select {
	case ch <- ev:
	default:
	}
}

// Reporter counts the completed steps of one stage.
type Reporter struct {
	locker sync.Mutex
	sink   Sink
	stage  Stage
	done   int
	total  int
}

// NewReporter returns a Reporter of a stage with the given amount of steps;
// a nil sink means Nop.
func NewReporter(sink Sink, stage Stage, total int) *Reporter {
	if sink == nil {
		sink = Nop
	}
	return &Reporter{
		sink:  sink,
		stage: stage,
		total: total,
	}
}

// Step marks one more step as done.
func (r *Reporter) Step(ctx context.Context, format string, args ...any) {
	r.locker.Lock()
	defer r.locker.Unlock()
	if r.done < r.total {
		r.done++
	}
	r.sink.OnProgress(ctx, Event{
		Stage:   r.stage,
		Done:    r.done,
		Total:   r.total,
		Message: fmt.Sprintf(format, args...),
	})
}

// Complete reports the stage as finished.
func (r *Reporter) Complete(ctx context.Context, format string, args ...any) {
	r.locker.Lock()
	defer r.locker.Unlock()
	r.done = r.total
	r.sink.OnProgress(ctx, Event{
		Stage:   r.stage,
		Done:    r.done,
		Total:   r.total,
		Message: fmt.Sprintf(format, args...),
	})
}
