package source

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
)

// Auto is an AudioSource over real files which dispatches to the registered
// decoders and metadata probers.
type Auto struct {
	Decoders []Decoder
	Probers  []MetadataProber
	// ModTimeFallback makes ProbeCreationTime return the file modification
	// time when no prober knows the creation time.
	ModTimeFallback bool
}

var _ AudioSource = (*Auto)(nil)

// NewAuto returns an Auto over everything registered so far
// (blank-import the implementations to register them).
func NewAuto() *Auto {
	return &Auto{
		Decoders:        Decoders(),
		Probers:         MetadataProbers(),
		ModTimeFallback: true,
	}
}

func (a *Auto) Decode(
	ctx context.Context,
	path string,
) (_ *Decoded, _err error) {
	logger.Tracef(ctx, "Decode(%s)", path)
	defer func() { logger.Tracef(ctx, "/Decode(%s): %v", path, _err) }()

	var mErr *multierror.Error
	for _, decoder := range a.Decoders {
		if !decoder.Supports(path) {
			continue
		}
		decoded, err := decoder.Decode(ctx, path)
		logger.Debugf(ctx, "decoding '%s' with %T result is %v", path, decoder, err)
		if err == nil {
			return decoded, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		mErr = multierror.Append(mErr, fmt.Errorf("unable to decode with %T: %w", decoder, err))
	}
	if err := mErr.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("unable to decode '%s': %w", path, err)
	}
	return nil, fmt.Errorf("no decoder supports '%s'", path)
}

func (a *Auto) ProbeCreationTime(
	ctx context.Context,
	path string,
) (*time.Time, error) {
	for _, prober := range a.Probers {
		ts, err := prober.ProbeCreationTime(ctx, path)
		if err != nil {
			logger.Debugf(ctx, "unable to probe '%s' with %T: %v", path, prober, err)
			continue
		}
		if ts != nil {
			return ts, nil
		}
	}
	if !a.ModTimeFallback {
		return nil, nil
	}

	info, err := a.Stat(ctx, path)
	if err != nil {
		return nil, err
	}
	ts := info.ModTime
	return &ts, nil
}

func (a *Auto) Stat(
	ctx context.Context,
	path string,
) (FileInfo, error) {
	st, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("unable to stat '%s': %w", path, err)
	}
	return FileInfo{
		ModTime: st.ModTime(),
		Size:    st.Size(),
	}, nil
}
