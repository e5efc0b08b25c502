// Copyright (c) 2022. Alvin Baena.
// SPDX-License-Identifier: MIT

package cli

import (
	"bufio"
	"context"
	"github.com/alvinbaena/credcheck/internal/util"
	"github.com/alvinbaena/credcheck/pkg/credset"
	"github.com/alvinbaena/credcheck/pkg/gcs"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"math"
	"os"
	"path/filepath"
)

var (
	createCmd = &cobra.Command{
		Use:   "create",
		Short: "Create a GCS credential set from a credential source",
		RunE: func(cmd *cobra.Command, args []string) error {
			return createCommand(cmd.Context())
		},
	}
)

//goland:noinspection GoUnhandledErrorResult
func init() {
	createCmd.Flags().Uint64VarP(&probability, "false-positive-rate", "p", gcs.DefaultProbability, "False positive rate for queries, 1-in-p.")
	createCmd.Flags().Uint64VarP(&indexGranularity, "index-granularity", "g", gcs.DefaultIndexGranularity, "Entries per index point (16 bytes each).")
	createCmd.Flags().StringVarP(&inputFile, "in-file", "i", "", "Credential source, a file path or an http(s) URL (required)")
	createCmd.MarkFlagRequired("in-file")
	createCmd.Flags().StringVarP(&outFile, "out-file", "o", "./credentials.gcs", "GCS file output path")
	createCmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite any existing files while writing the results.")

	rootCmd.AddCommand(createCmd)
}

func createCommand(ctx context.Context) error {
	util.ApplyCliSettings(verbose, profile, pprofPort)

	s := util.Stats()
	defer s()

	abs, err := filepath.Abs(outFile)
	if err != nil {
		return errors.Wrap(err, "could not get absolute path of file")
	}

	if !overwrite {
		if _, err = os.Stat(abs); !os.IsNotExist(err) {
			return errors.Errorf("file %s exists and overwrite flag is not set", outFile)
		}
	}

	src, err := credset.Open(ctx, inputFile)
	if err != nil {
		return err
	}

	defer func(src *credset.Source) {
		if err := src.Close(); err != nil {
			log.Error().Err(err).Msg("error closing credential source")
		}
	}(src)

	estimated := src.EstimatedMembers()
	// Every value is held as an u64 while building.
	if err = util.CheckRam(uint64(estimated), 8); err != nil {
		return err
	}

	builder, err := gcs.NewBuilder(probability, indexGranularity, estimated)
	if err != nil {
		return err
	}

	log.Info().Msg("starting process. This might take a while, be patient :)")
	if _, err = builder.ReadFrom(src); err != nil {
		return err
	}

	if err = util.CheckDiskSpace(abs, estimateSize(uint64(builder.Len()), probability, indexGranularity)); err != nil {
		return err
	}

	return writeGCS(abs, builder)
}

// estimateSize is the expected size in bytes of a GCS of n items.
func estimateSize(n, probability, granularity uint64) uint64 {
	bitsPerItem := math.Log2(float64(probability)) + 2
	return uint64(float64(n)*bitsPerItem/8) + n/granularity*16 + 40
}

func writeGCS(path string, builder *gcs.Builder) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return errors.WithStack(err)
	}

	defer func(out *os.File) {
		if cErr := out.Close(); cErr != nil && err == nil {
			err = errors.Wrap(cErr, "error closing GCS file")
		}
		// A truncated file would only fail later, when served.
		if err != nil {
			if rErr := os.Remove(path); rErr != nil {
				log.Warn().Err(rErr).Msgf("could not remove incomplete file %s", path)
			}
		}
	}(out)

	w := bufio.NewWriterSize(out, 1024*1024)
	n, err := builder.WriteTo(w)
	if err != nil {
		return err
	}
	if err = w.Flush(); err != nil {
		return errors.WithStack(err)
	}

	log.Info().Msgf("wrote %s bytes to %s", util.Count(n), path)
	return nil
}
