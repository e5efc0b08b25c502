// Copyright (c) 2022. Alvin Baena.
// SPDX-License-Identifier: MIT

package cli

import (
	"context"
	"fmt"
	"github.com/alvinbaena/credcheck/internal/api"
	"github.com/alvinbaena/credcheck/internal/config"
	"github.com/alvinbaena/credcheck/internal/match"
	"github.com/alvinbaena/credcheck/internal/server"
	"github.com/alvinbaena/credcheck/internal/util"
	"github.com/alvinbaena/credcheck/pkg/credset"
	"github.com/alvinbaena/credcheck/pkg/gcs"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"net"
	"net/http"
	"strings"
	"time"
)

var (
	serveViper = config.NewViper()

	serveCmd = &cobra.Command{
		Use:   "serve [port] [credentials]",
		Short: "Serve the credential check protocol over TCP",
		Long: "Load a credential set and answer check_username, check_password and check_both queries over TCP. " +
			"Every flag can also be set with its CREDCHECK_ environment variable, e.g. CREDCHECK_MAX_CONNS.",
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveCommand(cmd.Context(), args)
		},
	}
)

//goland:noinspection GoUnhandledErrorResult
func init() {
	d := config.Defaults()
	f := serveCmd.Flags()

	f.Uint16P("port", "p", d.Port, "TCP port of the credential check protocol")
	f.StringP("credentials", "i", "", "Credential source: a file path or an http(s) URL (required)")
	f.String("format", d.Format, "Credential source format, text or gcs")
	f.Int("capacity", d.Capacity, "Maximum distinct credentials loaded from a text source, 0 for no limit")
	f.Int64("cache-size", d.CacheSize, "Lookups cached in front of a gcs source, 0 disables the cache")
	f.Int("max-conns", d.MaxConns, "Maximum connections served concurrently")
	f.Duration("idle-timeout", d.IdleTimeout, "Close connections without a request for this long, 0 disables")
	f.Duration("grace", d.Grace, "Time given to open connections on shutdown")
	f.Bool("strict", d.Strict, "Only accept full lowercase SHA-256 hex digests")
	f.Duration("stats-interval", d.StatsInterval, "How often the server counters are logged, 0 disables")
	f.Uint16("http-port", d.HTTPPort, "Port of the HTTP API, 0 disables it")
	f.Bool("self-tls", d.SelfTLS,
		"If the HTTP API should use a self-signed certificate. The certificate is renewed on each server restart")
	f.String("tls-cert", d.TLSCert, "Path to the PEM encoded TLS certificate of the HTTP API")
	f.String("tls-key", d.TLSKey, "Path to the PEM encoded TLS private key of the HTTP API")

	bindFlags(serveViper, serveCmd)
	rootCmd.AddCommand(serveCmd)
}

// bindFlags makes every flag of cmd a viper key, "max-conns" becomes MAX_CONNS.
func bindFlags(v *viper.Viper, cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})
}

func serveCommand(ctx context.Context, args []string) error {
	util.ApplyCliSettings(verbose, profile, pprofPort)

	// Positional form: serve <port> <credentials>
	if len(args) > 0 {
		serveViper.Set("PORT", args[0])
	}
	if len(args) > 1 {
		serveViper.Set("CREDENTIALS", args[1])
	}

	cfg, err := config.Load(serveViper)
	if err != nil {
		return err
	}

	set, closeSet, err := loadCredentials(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSet()

	srv, err := server.New(set, cfg.ServerConfig())
	if err != nil {
		return err
	}

	// Bind before anything is served so a taken port fails the start.
	l, err := net.Listen("tcp", cfg.Address())
	if err != nil {
		return errors.Wrapf(err, "listening on %s", cfg.Address())
	}

	if cfg.HTTPEnabled() {
		httpSrv, err := startHTTP(cfg, srv)
		if err != nil {
			_ = l.Close()
			return err
		}
		defer shutdownHTTP(httpSrv)
	}

	if err = srv.Run(ctx, l); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn().Msg("some connections were closed before finishing")
			return nil
		}
		return err
	}

	return nil
}

func loadCredentials(ctx context.Context, cfg config.Server) (match.Membership, func(), error) {
	switch cfg.Format {
	case config.FormatGCS:
		set, err := gcs.OpenSet(cfg.Credentials, cfg.CacheSize)
		if err != nil {
			return nil, nil, err
		}
		log.Warn().Msgf("gcs credential sets report false positives at a rate of 1 in %s",
			util.Count(set.Probability()))
		return set, set.Close, nil
	default:
		set, err := credset.LoadSource(ctx, cfg.Credentials, credset.Options{Capacity: cfg.Capacity})
		if err != nil {
			return nil, nil, err
		}
		return set, func() {}, nil
	}
}

func startHTTP(cfg config.Server, srv *server.Server) (*http.Server, error) {
	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(srv, cfg.Strict, verbose),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.SelfTLS {
		tlsConfig, err := api.SelfSignedTLS()
		if err != nil {
			return nil, err
		}
		httpSrv.TLSConfig = tlsConfig
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listening on %s", addr)
	}

	go func() {
		var err error
		if cfg.TLSEnabled() {
			log.Info().Msgf("starting HTTPS API on address: %s", addr)
			// With --self-tls the certificate is already in TLSConfig and both paths are empty.
			err = httpSrv.ServeTLS(ln, cfg.TLSCert, cfg.TLSKey)
		} else {
			log.Warn().Msgf("starting HTTP API without TLS on address: %s. Please use either the --self-tls flag "+
				"or set a certificate with the --tls-cert and --tls-key flags", addr)
			err = httpSrv.Serve(ln)
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP API stopped")
		}
	}()

	return httpSrv, nil
}

func shutdownHTTP(httpSrv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("HTTP API shutdown")
	}
}
