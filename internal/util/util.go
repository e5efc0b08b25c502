// Copyright (c) 2022. Alvin Baena.
// SPDX-License-Identifier: MIT

package util

import (
	"fmt"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"net/http"
	"path/filepath"
	"runtime"
	"strings"
	"time"
	"unicode"
)

var printer = message.NewPrinter(language.English)

// Stats logs the time since the call and the memory statistics of the process when
// the returned func is called. Meant to be deferred.
func Stats() func() {
	start := time.Now()
	return func() {
		log.Debug().Msgf("time to run %v", time.Since(start))
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		log.Debug().Msgf("Alloc: %s, TotalAlloc: %s, Sys: %s",
			humanize.IBytes(ms.Alloc), humanize.IBytes(ms.TotalAlloc), humanize.IBytes(ms.Sys))
		log.Debug().Msgf("Mallocs: %d, Frees: %d, GC: %d", ms.Mallocs, ms.Frees, ms.NumGC)
		log.Debug().Msgf("HeapAlloc: %s, HeapSys: %s, HeapIdle: %s",
			humanize.IBytes(ms.HeapAlloc), humanize.IBytes(ms.HeapSys), humanize.IBytes(ms.HeapIdle))
		log.Debug().Msgf("HeapObjects: %d", ms.HeapObjects)
	}
}

// Count formats n with thousands separators.
func Count[T ~int | ~int64 | ~uint64 | ~uint32](n T) string {
	return printer.Sprintf("%d", n)
}

func ApplyCliSettings(verbose bool, profile bool, pprofPort uint16) {
	if verbose {
		log.Warn().Msgf("verbosity up")
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if profile {
		log.Info().Msgf("profiling is enabled for this session. Server will listen on port %d", pprofPort)
		go func() {
			if err := http.ListenAndServe(fmt.Sprintf(":%d", pprofPort), nil); err != nil {
				log.Error().Err(err).Msgf("error starting profiling server on port %d", pprofPort)
				return
			}
		}()
	}
}

// CheckRam verifies that items of itemSize bytes each fit in the memory currently
// available. When the system memory can not be read only a warning is logged.
func CheckRam(items uint64, itemSize uint64) error {
	required := items * itemSize
	memStat, err := mem.VirtualMemory()
	if err != nil {
		log.Warn().Msgf("estimated memory use for %s items is %s", Count(items), humanize.IBytes(required))
		log.Warn().Msgf("this process will cause disk swapping and general slowness if your "+
			"current system memory is not at least %s", humanize.IBytes(required))
		return nil
	}

	log.Debug().Msgf("system has %s of RAM available, %s estimated for %s items",
		humanize.IBytes(memStat.Available), humanize.IBytes(required), Count(items))
	if required > memStat.Available {
		return errors.Errorf("not enough memory: %s required, %s available",
			humanize.IBytes(required), humanize.IBytes(memStat.Available))
	}

	return nil
}

// CheckDiskSpace verifies the drive holding fileName has at least required bytes free.
// Errors reading the partitions are only logged.
func CheckDiskSpace(fileName string, required uint64) error {
	abs, err := filepath.Abs(fileName)
	if err != nil {
		return errors.WithStack(err)
	}

	parts, err := disk.Partitions(false)
	if err != nil {
		log.Debug().Err(err).Msgf("error getting current storage sizes")
		return nil
	}

	// The most specific mount point holds the file.
	mountpoint := ""
	for _, part := range parts {
		if strings.HasPrefix(abs, part.Mountpoint) && len(part.Mountpoint) > len(mountpoint) {
			mountpoint = part.Mountpoint
		}
	}

	if mountpoint == "" {
		return nil
	}

	usage, err := disk.Usage(mountpoint)
	if err != nil {
		log.Debug().Err(err).Msgf("error getting current storage sizes")
		return nil
	}

	log.Debug().Msgf("%s has %s free", mountpoint, humanize.IBytes(usage.Free))
	if required > usage.Free {
		return errors.Errorf("drive %s does not have sufficient space free (%s) for %s",
			mountpoint, humanize.IBytes(required), fileName)
	}

	return nil
}

// ToScreamingSnakeCase turns a Go field name (or a space separated list of them) into
// the environment variable style used in the configuration messages.
func ToScreamingSnakeCase(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)

	runes := []rune(s)
	for i, r := range runes {
		switch {
		case r == ' ':
			b.WriteString(", ")
			continue
		case unicode.IsUpper(r) && i > 0 && runes[i-1] != ' ':
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToUpper(r))
	}

	return b.String()
}
