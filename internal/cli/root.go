// Copyright (c) 2022. Alvin Baena.
// SPDX-License-Identifier: MIT

package cli

import (
	"context"
	"github.com/spf13/cobra"
	"os"
	"os/signal"
	"syscall"
)

var (
	rootCmd = &cobra.Command{
		Use:   "credcheck [COMMAND] [OPTIONS]",
		Short: "Check hashed usernames and passwords against a set of breached credentials",
		Long: "Serve and query a set of breached credentials over a line based TCP protocol. Clients send " +
			"SHA-256 hex digests of a username/email, a password or both and get back whether they are known. " +
			"This command also helps you create a GCS (Golomb Coded Set) file for very large credential sets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print more information on the processing")
	rootCmd.PersistentFlags().BoolVar(&profile, "profile", false, "Enable the profiling server (pprof) when running commands")
	rootCmd.PersistentFlags().Uint16Var(&pprofPort, "profile-port", 6060, "The port to use for the pprof server. Only used if the profile flag is set")
}

// Execute runs the command line. SIGINT and SIGTERM cancel the context handed to the
// commands.
func Execute() error {
	// kill (no param) default send syscall.SIGTERM
	// kill -2 is syscall.SIGINT
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}
