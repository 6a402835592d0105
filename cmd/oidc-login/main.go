// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// oidc-login is an example host which lets users log in with the providers
// of a providers file.
//
//	oidc-login --providers providers.yaml --base-url http://localhost:8080
//
// Configuration flags can also be set with OIDC_LOGIN_* environment
// variables, which are read from the --env-file when it exists.
package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/sessions"
	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/hashicorp/cap-connect/metrics"
	"github.com/hashicorp/cap-connect/oidc"
	"github.com/hashicorp/cap-connect/oidc/callback"
	"github.com/hashicorp/cap-connect/session"
)

const envPrefix = "OIDC_LOGIN_"

type options struct {
	envFile       string
	listen        string
	baseUrl       string
	providersFile string
	logLevel      string
	sessionStore  string
	hashKey       string
	blockKey      string
	redisAddr     string
	sessionTTL    time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "oidc-login",
		Short:         "Serve OIDC logins for the configured providers",
		SilenceUsage:  true,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadEnv(cmd.Flags(), opts.envFile)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return run(ctx, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.envFile, "env-file", ".env", "file of environment variables to load, if it exists")
	f.StringVar(&opts.listen, "listen", "localhost:8080", "address to listen on")
	f.StringVar(&opts.baseUrl, "base-url", "http://localhost:8080", "external URL of the server, used for redirect URLs")
	f.StringVar(&opts.providersFile, "providers", "providers.yaml", "YAML file of providers")
	f.StringVar(&opts.logLevel, "log-level", "info", "log level: trace, debug, info, warn or error")
	f.StringVar(&opts.sessionStore, "session-store", "cookie", "where sessions are kept: cookie or redis")
	f.StringVar(&opts.hashKey, "session-hash-key", "", "base64 key used to sign session cookies (required)")
	f.StringVar(&opts.blockKey, "session-block-key", "", "base64 key used to encrypt session cookies")
	f.StringVar(&opts.redisAddr, "redis-addr", "localhost:6379", "redis address for the redis session store")
	f.DurationVar(&opts.sessionTTL, "session-ttl", session.DefaultTTL, "lifetime of redis sessions")
	return cmd
}

// loadEnv loads the env file, when it exists, then sets every flag which
// wasn't given on the command line from its OIDC_LOGIN_* variable.
func loadEnv(flags *pflag.FlagSet, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("unable to load %s: %w", envFile, err)
		}
	}
	var result error
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Changed || result != nil {
			return
		}
		name := envPrefix + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
		if v, ok := os.LookupEnv(name); ok {
			if err := flags.Set(f.Name, v); err != nil {
				result = fmt.Errorf("invalid %s: %w", name, err)
			}
		}
	})
	return result
}

func run(ctx context.Context, opts *options) error {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "oidc-login",
		Level: hclog.LevelFromString(opts.logLevel),
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec, err := metrics.NewRecorder(reg)
	if err != nil {
		return err
	}

	providers, err := loadProviders(opts.providersFile, strings.TrimSuffix(opts.baseUrl, "/"), logger, oidc.WithObserver(rec))
	if err != nil {
		logger.Error("unable to load providers", "error", err)
		return err
	}

	sFn, closeStore, err := newSessionFunc(opts, strings.HasPrefix(opts.baseUrl, "https://"), logger)
	if err != nil {
		logger.Error("unable to create session store", "error", err)
		return err
	}
	defer closeStore()

	h, err := newServer(providers, sFn, rec, reg, logger)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              opts.listen,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", opts.listen, "providers", len(providers))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server closed", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// newSessionFunc creates the session store selected by the options.
func newSessionFunc(opts *options, secure bool, logger hclog.Logger) (callback.SessionFunc, func(), error) {
	keyPairs, err := decodeKeys(opts.hashKey, opts.blockKey)
	if err != nil {
		return nil, nil, err
	}
	switch opts.sessionStore {
	case "cookie":
		store := sessions.NewCookieStore(keyPairs...)
		store.Options.HttpOnly = true
		store.Options.Secure = secure
		store.Options.SameSite = http.SameSiteLaxMode
		return session.Func(store), func() {}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: opts.redisAddr})
		store, err := session.NewRedisStore(client,
			session.WithKeyPairs(keyPairs...),
			session.WithTTL(opts.sessionTTL),
			session.WithCookieOptions(&sessions.Options{Path: "/", HttpOnly: true, Secure: secure, SameSite: http.SameSiteLaxMode}),
			session.WithLogger(logger.Named("session")),
		)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return session.Func(store), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown session store %q", opts.sessionStore)
	}
}

func decodeKeys(hashKey, blockKey string) ([][]byte, error) {
	if hashKey == "" {
		return nil, errors.New("session hash key is required")
	}
	hk, err := base64.StdEncoding.DecodeString(hashKey)
	if err != nil {
		return nil, fmt.Errorf("invalid session hash key: %w", err)
	}
	if blockKey == "" {
		return [][]byte{hk}, nil
	}
	bk, err := base64.StdEncoding.DecodeString(blockKey)
	if err != nil {
		return nil, fmt.Errorf("invalid session block key: %w", err)
	}
	return [][]byte{hk, bk}, nil
}
