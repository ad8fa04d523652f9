// Package analysiscache keeps the downsampled mono analysis buffers of the
// source files, so repeated analysis runs do not decode everything again.
//
// Entries are keyed by the file path and the analysis sample rate, remember
// the modification time they were built from (a changed file invalidates its
// entry) and are evicted least-recently-used first once the total size
// exceeds the byte budget. Concurrent requests of the same missing entry
// share a single build.
package analysiscache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/audiosync/pkg/audio"
	"github.com/xaionaro-go/audiosync/pkg/audio/resampler"
	"github.com/xaionaro-go/audiosync/pkg/source"
	"golang.org/x/sync/singleflight"
)

// DefaultByteBudget is 2 GiB.
const DefaultByteBudget = uint64(2) << 30

type Entry struct {
	// Samples is the mono signal at SampleRate. It is shared between all
	// users of the cache and must not be modified.
	Samples          []float64
	SampleRate       uint32
	SourceSampleRate audio.SampleRate
	SourceChannels   audio.Channel
	// Duration is the duration of the source in seconds.
	Duration float64
}

// Size returns the memory footprint of the samples in bytes.
func (e *Entry) Size() uint64 {
	return uint64(len(e.Samples)) * 8
}

type key struct {
	path       string
	sampleRate uint32
}

type item struct {
	key     key
	modTime time.Time
	entry   *Entry
}

type Cache struct {
	source     source.AudioSource
	byteBudget uint64

	locker sync.Mutex
	// lru has the most recently used item at the front.
	lru   *list.List
	items map[key]*list.Element
	size  uint64

	group singleflight.Group
}

// New returns a cache over the given source; byteBudget == 0 means DefaultByteBudget.
func New(src source.AudioSource, byteBudget uint64) *Cache {
	if byteBudget == 0 {
		byteBudget = DefaultByteBudget
	}
	return &Cache{
		source:     src,
		byteBudget: byteBudget,
		lru:        list.New(),
		items:      map[key]*list.Element{},
	}
}

// Get returns the cached entry if it was built from the file at the given modification time.
func (c *Cache) Get(path string, modTime time.Time, sampleRate uint32) (*Entry, bool) {
	c.locker.Lock()
	defer c.locker.Unlock()
	return c.getLocked(key{path: path, sampleRate: sampleRate}, modTime)
}

func (c *Cache) getLocked(k key, modTime time.Time) (*Entry, bool) {
	el, ok := c.items[k]
	if !ok {
		return nil, false
	}
	it := el.Value.(*item)
	if !it.modTime.Equal(modTime) {
		c.removeLocked(el)
		return nil, false
	}
	c.lru.MoveToFront(el)
	return it.entry, true
}

// GetOrBuild returns the analysis buffer of the file, decoding and
// downsampling it on a miss.
func (c *Cache) GetOrBuild(
	ctx context.Context,
	path string,
	modTime time.Time,
	sampleRate uint32,
) (*Entry, error) {
	if sampleRate == 0 {
		return nil, fmt.Errorf("the analysis sample rate must be positive")
	}
	if entry, ok := c.Get(path, modTime, sampleRate); ok {
		return entry, nil
	}

	flightKey := fmt.Sprintf("%s\x00%d\x00%d", path, sampleRate, modTime.UnixNano())
	// the build outlives a cancelled caller: other callers may be waiting for it
	buildCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flightKey, func() (any, error) {
		return c.build(buildCtx, path, modTime, sampleRate)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Entry), nil
	}
}

func (c *Cache) build(
	ctx context.Context,
	path string,
	modTime time.Time,
	sampleRate uint32,
) (_ *Entry, _err error) {
	logger.Tracef(ctx, "build(%s, %d)", path, sampleRate)
	defer func() { logger.Tracef(ctx, "/build(%s, %d): %v", path, sampleRate, _err) }()

	// the entry might have been inserted by a build that finished right before this one started
	if entry, ok := c.Get(path, modTime, sampleRate); ok {
		return entry, nil
	}

	decoded, err := c.source.Decode(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("unable to decode '%s': %w", path, err)
	}
	if decoded.SampleRate == 0 {
		return nil, fmt.Errorf("'%s' has no sample rate", path)
	}

	samples, err := resampler.Convert(decoded.Samples, float64(decoded.SampleRate), float64(sampleRate))
	if err != nil {
		return nil, fmt.Errorf("unable to downsample '%s': %w", path, err)
	}

	entry := &Entry{
		Samples:          samples,
		SampleRate:       sampleRate,
		SourceSampleRate: decoded.SampleRate,
		SourceChannels:   decoded.Channels,
		Duration:         decoded.Duration(),
	}
	c.insert(ctx, key{path: path, sampleRate: sampleRate}, modTime, entry)
	return entry, nil
}

func (c *Cache) insert(ctx context.Context, k key, modTime time.Time, entry *Entry) {
	c.locker.Lock()
	defer c.locker.Unlock()

	if el, ok := c.items[k]; ok {
		c.removeLocked(el)
	}
	if entry.Size() > c.byteBudget {
		logger.Debugf(ctx, "the analysis buffer of '%s' (%d bytes) exceeds the whole cache budget (%d bytes); not caching", k.path, entry.Size(), c.byteBudget)
		return
	}

	c.items[k] = c.lru.PushFront(&item{key: k, modTime: modTime, entry: entry})
	c.size += entry.Size()
	for c.size > c.byteBudget {
		oldest := c.lru.Back()
		logger.Debugf(ctx, "evicting '%s' from the analysis cache", oldest.Value.(*item).key.path)
		c.removeLocked(oldest)
	}
}

func (c *Cache) removeLocked(el *list.Element) {
	it := c.lru.Remove(el).(*item)
	delete(c.items, it.key)
	c.size -= it.entry.Size()
}

// Len returns the amount of cached entries.
func (c *Cache) Len() int {
	c.locker.Lock()
	defer c.locker.Unlock()
	return c.lru.Len()
}

// Size returns the total size of the cached entries in bytes.
func (c *Cache) Size() uint64 {
	c.locker.Lock()
	defer c.locker.Unlock()
	return c.size
}

func (c *Cache) Purge() {
	c.locker.Lock()
	defer c.locker.Unlock()
	c.lru.Init()
	c.items = map[key]*list.Element{}
	c.size = 0
}
