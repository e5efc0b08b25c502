// Copyright (c) 2022. Alvin Baena.
// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"github.com/alvinbaena/credcheck/internal/server"
	"github.com/alvinbaena/credcheck/internal/util"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"reflect"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment variable read by the configuration.
const EnvPrefix = "CREDCHECK"

const (
	FormatText = "text"
	FormatGCS  = "gcs"
)

// Server is the configuration of the serve command. Every field can be set with a flag
// or with its CREDCHECK_ prefixed environment variable.
type Server struct {
	Port          uint16        `mapstructure:"PORT" validate:"required"`
	Credentials   string        `mapstructure:"CREDENTIALS" validate:"required"`
	Format        string        `mapstructure:"FORMAT" validate:"oneof=text gcs"`
	Capacity      int           `mapstructure:"CAPACITY" validate:"gte=0"`
	CacheSize     int64         `mapstructure:"CACHE_SIZE" validate:"gte=0"`
	MaxConns      int           `mapstructure:"MAX_CONNS" validate:"gte=1"`
	IdleTimeout   time.Duration `mapstructure:"IDLE_TIMEOUT" validate:"gte=0"`
	Grace         time.Duration `mapstructure:"GRACE" validate:"gt=0"`
	Strict        bool          `mapstructure:"STRICT"`
	StatsInterval time.Duration `mapstructure:"STATS_INTERVAL" validate:"gte=0"`
	HTTPPort      uint16        `mapstructure:"HTTP_PORT"`
	SelfTLS       bool          `mapstructure:"SELF_TLS"`
	TLSCert       string        `mapstructure:"TLS_CERT" validate:"required_with=TLSKey,excluded_with=SelfTLS"`
	TLSKey        string        `mapstructure:"TLS_KEY" validate:"required_with=TLSCert,excluded_with=SelfTLS"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() Server {
	return Server{
		Port:          4000,
		Format:        FormatText,
		Capacity:      1_000_000,
		CacheSize:     100_000,
		MaxConns:      server.DefaultMaxConns,
		IdleTimeout:   server.DefaultIdleTimeout,
		Grace:         server.DefaultGrace,
		StatsInterval: time.Minute,
	}
}

// Address is the TCP listen address of the protocol server.
func (c Server) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// HTTPEnabled reports whether the HTTP API should be started.
func (c Server) HTTPEnabled() bool {
	return c.HTTPPort > 0
}

// TLSEnabled reports whether the HTTP API is served over TLS.
func (c Server) TLSEnabled() bool {
	return c.SelfTLS || c.TLSCert != ""
}

// ServerConfig translates the configuration into the protocol server settings.
func (c Server) ServerConfig() server.Config {
	idle := c.IdleTimeout
	if idle == 0 {
		idle = -1
	}
	stats := c.StatsInterval
	if stats == 0 {
		stats = -1
	}

	return server.Config{
		MaxConns:      c.MaxConns,
		IdleTimeout:   idle,
		Grace:         c.Grace,
		StatsInterval: stats,
		Strict:        c.Strict,
	}
}

// NewViper returns a viper instance reading the CREDCHECK_ environment variables, with
// the defaults applied.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	// Unmarshal ignores environment variables for keys viper does not know about.
	// https://github.com/spf13/viper/issues/188#issuecomment-399884438
	bindEnvs(v, Defaults())
	return v
}

func bindEnvs(v *viper.Viper, iface interface{}, parts ...string) {
	ifv := reflect.ValueOf(iface)
	ift := reflect.TypeOf(iface)
	for i := 0; i < ift.NumField(); i++ {
		fv := ifv.Field(i)
		t := ift.Field(i)
		tv, ok := t.Tag.Lookup("mapstructure")
		if !ok {
			continue
		}

		key := strings.Join(append(parts, tv), ".")
		switch fv.Kind() {
		case reflect.Struct:
			bindEnvs(v, fv.Interface(), append(parts, tv)...)
		default:
			_ = v.BindEnv(key)
			v.SetDefault(key, fv.Interface())
		}
	}
}

func msgForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "required_with":
		return fmt.Sprintf("This field requires the presence of %s", util.ToScreamingSnakeCase(fe.Param()))
	case "excluded_with":
		return fmt.Sprintf("This field can not be used with %s", util.ToScreamingSnakeCase(fe.Param()))
	case "oneof":
		return fmt.Sprintf("This field must be one of [%s]", fe.Param())
	case "gte":
		return fmt.Sprintf("This field must be at least %s", fe.Param())
	case "gt":
		return fmt.Sprintf("This field must be greater than %s", fe.Param())
	}
	return fe.Error()
}

// Load reads the serve configuration out of v and validates it.
func Load(v *viper.Viper) (Server, error) {
	config := Server{}
	if err := v.Unmarshal(&config); err != nil {
		return config, errors.Wrap(err, "reading configuration")
	}

	if err := Validate(config); err != nil {
		return config, err
	}

	return config, nil
}

// Validate checks config, reporting fields by their environment variable names.
func Validate(config Server) error {
	validate := validator.New()
	err := validate.Struct(&config)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return errors.Wrap(err, "validating configuration")
	}

	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fmt.Sprintf("%s: %s", util.ToScreamingSnakeCase(fe.Field()), msgForTag(fe)))
	}

	return errors.New(strings.Join(msgs, ". "))
}
