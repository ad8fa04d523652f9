// Package engine is the entry point of the synchronization: it imports the
// files, places every clip on the shared timeline, measures the clock drift
// and stitches the tracks.
//
// Every operation works on a snapshot of the given tracks and writes the
// results back only on success, so a cancelled or failed run leaves the
// tracks untouched.
package engine

import (
	"github.com/xaionaro-go/audiosync/pkg/analysiscache"
	"github.com/xaionaro-go/audiosync/pkg/fft"
	"github.com/xaionaro-go/audiosync/pkg/model"
	"github.com/xaionaro-go/audiosync/pkg/reference"
	"github.com/xaionaro-go/audiosync/pkg/source"
	"github.com/xaionaro-go/audiosync/pkg/syncer"
	"github.com/xaionaro-go/audiosync/pkg/syncer/implementations/xcorr"
)

// ErrNoUsableReference is returned when no track can anchor the timeline.
var ErrNoUsableReference = reference.ErrNoUsableReference

type Engine struct {
	source        source.AudioSource
	cache         *analysiscache.Cache
	syncerFactory syncer.Factory
}

type config struct {
	Cache         *analysiscache.Cache
	CacheBudget   uint64
	SyncerFactory syncer.Factory
	FFTBackend    fft.Backend
	Weighting     xcorr.Weighting
}

type Option func(*config)

// WithCache makes the engine share the analysis buffers with other users of the cache.
func WithCache(cache *analysiscache.Cache) Option {
	return func(cfg *config) {
		cfg.Cache = cache
	}
}

// WithCacheBudget sets the byte budget of the engine's own cache.
func WithCacheBudget(bytes uint64) Option {
	return func(cfg *config) {
		cfg.CacheBudget = bytes
	}
}

func WithSyncerFactory(factory syncer.Factory) Option {
	return func(cfg *config) {
		cfg.SyncerFactory = factory
	}
}

// WithFFTBackend selects the FFT implementation of the default syncer.
func WithFFTBackend(backend fft.Backend) Option {
	return func(cfg *config) {
		cfg.FFTBackend = backend
	}
}

// WithWeighting selects the cross-power spectrum weighting of the default syncer.
func WithWeighting(weighting xcorr.Weighting) Option {
	return func(cfg *config) {
		cfg.Weighting = weighting
	}
}

func New(src source.AudioSource, opts ...Option) *Engine {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Cache == nil {
		cfg.Cache = analysiscache.New(src, cfg.CacheBudget)
	}
	if cfg.SyncerFactory == nil {
		cfg.SyncerFactory = &xcorr.Factory{
			Backend:   cfg.FFTBackend,
			Weighting: cfg.Weighting,
		}
	}
	return &Engine{
		source:        src,
		cache:         cfg.Cache,
		syncerFactory: cfg.SyncerFactory,
	}
}

func (e *Engine) Cache() *analysiscache.Cache {
	return e.cache
}

// snapshot deep-copies the tracks and remembers which original clip every copy came from.
func snapshot(tracks []*model.Track) ([]*model.Track, map[*model.Clip]*model.Clip) {
	cpy := model.CloneTracks(tracks)
	originals := map[*model.Clip]*model.Clip{}
	for i, t := range tracks {
		for j, c := range t.Clips {
			originals[cpy[i].Clips[j]] = c
		}
	}
	return cpy, originals
}

// commit writes the snapshot back into the original tracks, keeping the
// identity of the clip objects.
func commit(tracks, snap []*model.Track, originals map[*model.Clip]*model.Clip) {
	for i, t := range tracks {
		s := snap[i]
		t.IsReference = s.IsReference
		clips := make([]*model.Clip, len(s.Clips))
		for j, sc := range s.Clips {
			orig := originals[sc]
			*orig = *sc
			clips[j] = orig
		}
		t.Clips = clips
	}
}

func clipKey(c *model.Clip) string {
	if c.ID != "" {
		return c.ID
	}
	return c.SourceID()
}
