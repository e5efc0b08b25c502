// Copyright (c) 2022. Alvin Baena.
// SPDX-License-Identifier: MIT

// Package api exposes the credential checks and the server counters over HTTP.
package api

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"github.com/alvinbaena/credcheck/internal/server"
	"github.com/gin-contrib/logger"
	"github.com/gin-gonic/gin"
	"github.com/likexian/selfca"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"time"
)

// NewRouter builds the gin router for srv under /v1.
func NewRouter(srv *server.Server, strict bool, debug bool) *gin.Engine {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.SetLogger(logger.WithLogger(func(_ *gin.Context, _ zerolog.Logger) zerolog.Logger {
		return log.Logger.With().Str("component", "http").Logger()
	})))

	v1 := router.Group("/v1")
	RegisterCheckApi(v1.Group("/check"), srv.Engine(), strict)
	RegisterStatsApi(v1, srv.Stats)

	return router
}

// SelfSignedTLS generates a throwaway certificate valid for 30 days. A new one is
// created on each start.
func SelfSignedTLS() (*tls.Config, error) {
	log.Warn().Msgf("using auto self-signed certificate for TLS. This is not recommended for production. " +
		"Please consider using your own certificates.")

	certificate, key, err := selfca.GenerateCertificate(selfca.Certificate{
		IsCA:      true,
		KeySize:   2048,
		NotBefore: time.Now(),
		NotAfter:  time.Now().Add(time.Duration(30*24) * time.Hour),
	})
	if err != nil {
		return nil, errors.Wrap(err, "generating self-signed certificate")
	}

	pair, err := tls.X509KeyPair(
		pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certificate}),
		pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "loading self-signed certificate")
	}

	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{pair},
	}, nil
}
