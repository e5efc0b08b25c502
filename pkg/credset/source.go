// Copyright (c) 2022. Alvin Baena.
// SPDX-License-Identifier: MIT

package credset

import (
	"context"
	"fmt"
	"github.com/alvinbaena/credcheck/internal/util"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Roughly what a 64 char hex token costs once inside the map.
const memberSize = 128

// Bytes per member of a source file (64 hex chars and a separator).
const bytesPerToken = 65

// Source is an opened credential source.
type Source struct {
	io.ReadCloser
	// Size in bytes, -1 when unknown.
	Size int64
	// Location is the path or URL the source was opened from.
	Location string
}

// EstimatedMembers guesses how many members the source holds from its size.
func (s *Source) EstimatedMembers() int {
	if s.Size <= 0 {
		return 0
	}
	return int(s.Size / bytesPerToken)
}

func isRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// Open opens a credential source. Locations starting with http:// or https:// are
// downloaded (with retries), anything else is treated as a file path.
func Open(ctx context.Context, location string) (*Source, error) {
	if isRemote(location) {
		return openRemote(ctx, location)
	}

	file, err := os.Open(location)
	if err != nil {
		return nil, errors.Wrap(err, "opening credentials file")
	}

	size := int64(-1)
	if info, err := file.Stat(); err == nil {
		size = info.Size()
	}

	return &Source{ReadCloser: file, Size: size, Location: location}, nil
}

func httpClient() *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = 5
	client.RetryWaitMax = 10 * time.Second
	return client
}

func openRemote(ctx context.Context, location string) (*Source, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building credentials request")
	}
	req.Header.Set("User-Agent", "credcheck/1.0")

	res, err := httpClient().Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "downloading credentials from %s", location)
	}

	if res.StatusCode >= 400 {
		_ = res.Body.Close()
		return nil, fmt.Errorf("request [%s] failed with status [%d] %s", location, res.StatusCode, res.Status)
	}

	return &Source{ReadCloser: res.Body, Size: res.ContentLength, Location: location}, nil
}

// LoadSource opens location and loads it into a Set. The source is always closed.
func LoadSource(ctx context.Context, location string, opts Options) (*Set, error) {
	s := util.Stats()
	defer s()

	src, err := Open(ctx, location)
	if err != nil {
		return nil, err
	}

	defer func(src *Source) {
		if err := src.Close(); err != nil {
			log.Error().Err(err).Msg("error closing credentials source")
		}
	}(src)

	estimate := src.EstimatedMembers()
	if opts.Capacity > 0 && estimate > opts.Capacity {
		estimate = opts.Capacity
	}
	if estimate > 0 {
		if err = util.CheckRam(uint64(estimate), memberSize); err != nil {
			log.Warn().Err(err).Msg("credential set might not fit in memory")
		}
	}

	log.Info().Msgf("loading credentials from %s", location)
	if opts.SizeHint == 0 {
		opts.SizeHint = estimate
	}

	set, err := Load(src, opts)
	if err != nil {
		return nil, err
	}

	log.Info().Msgf("loaded %s credentials", util.Count(set.Len()))
	return set, nil
}
