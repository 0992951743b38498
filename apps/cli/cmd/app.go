package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitsession/packages/core/config"
	"github.com/abdul-hamid-achik/hitsession/packages/core/env"
	"github.com/abdul-hamid-achik/hitsession/packages/http"
	"github.com/abdul-hamid-achik/hitsession/packages/output"
	"github.com/abdul-hamid-achik/hitsession/packages/store"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// app is everything a command needs, built from config file, flags and
// the optional stored session.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	out      output.Formatter
	resolver *env.Resolver
	session  *http.Session
	store    *store.Store
	record   *store.Record
}

func newApp(cmd *cobra.Command, opts *globalOptions, numbered bool) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, withCode(ExitConfigError, err)
	}

	a := &app{
		cfg:    cfg,
		logger: newLogger(cmd, cfg),
		out:    output.New(cmd.OutOrStdout(), opts.jsonOutput, cfg.GetVerbose(), cfg.GetNoColor(), numbered),
	}

	a.resolver, err = newResolver(opts)
	if err != nil {
		return nil, withCode(ExitConfigError, err)
	}

	if _, err := http.LookupCharset(cfg.DefaultEncoding); err != nil {
		return nil, withCode(ExitConfigError, err)
	}

	sessionOpts := []http.SessionOption{
		http.WithTransport(newTransport(cfg)),
		http.WithEncoding(cfg.DefaultEncoding),
		http.WithLogger(a.logger),
		http.WithKeepCookieOnMissing(cfg.GetKeepCookieOnMissing()),
	}

	if opts.session != "" {
		if err := a.openStore(); err != nil {
			return nil, err
		}
		rec, err := a.store.Load(cmd.Context(), opts.session)
		switch {
		case errors.Is(err, store.ErrNotFound):
			a.record = &store.Record{Name: opts.session}
			a.logger.Debug().Str("name", opts.session).Msg("starting new stored session")
		case err != nil:
			a.Close()
			return nil, withCode(ExitConfigError, err)
		default:
			a.record = rec
			sessionOpts = append(sessionOpts, http.WithCookie(rec.Cookie))
			// An explicit --encoding beats the stored one.
			if rec.Encoding != "" && opts.encoding == "" {
				sessionOpts = append(sessionOpts, http.WithEncoding(rec.Encoding))
			}
		}
	}

	a.session = http.NewSession(sessionOpts...)
	return a, nil
}

func (a *app) openStore() error {
	st, err := store.Open(a.cfg.SessionStore)
	if err != nil {
		return withCode(ExitConfigError, err)
	}
	a.store = st
	return nil
}

// saveSession writes the session state back to the store when a named
// session is in use.
func (a *app) saveSession(ctx context.Context, lastURL string) error {
	if a.store == nil || a.record == nil {
		return nil
	}
	a.record.Cookie = a.session.Cookie()
	a.record.Encoding = a.session.DefaultEncoding()
	a.record.LastURL = lastURL
	a.record.UpdatedAt = time.Now()
	if err := a.store.Save(ctx, a.record); err != nil {
		return fmt.Errorf("failed to save session %q: %w", a.record.Name, err)
	}
	a.logger.Debug().Str("name", a.record.Name).Str("store", a.store.Path()).Msg("session saved")
	return nil
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("failed to close session store")
		}
	}
}

// finish flushes the formatter. A flush failure only surfaces when the
// command itself succeeded.
func (a *app) finish(err error) error {
	if ferr := a.out.Flush(); ferr != nil && err == nil {
		return fmt.Errorf("error writing output: %w", ferr)
	}
	return err
}

func loadConfig(opts *globalOptions) (*config.Config, error) {
	fileConfig, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	overrides := &config.Config{
		DefaultEncoding: opts.encoding,
		ConnectTimeout:  int(opts.connectTimeout.Milliseconds()),
		ReadTimeout:     int(opts.readTimeout.Milliseconds()),
		Proxy:           opts.proxy,
		SessionStore:    opts.storePath,
	}
	if opts.keepCookie {
		overrides.KeepCookieOnMissing = config.BoolPtr(true)
	}
	if opts.verbose {
		overrides.Verbose = config.BoolPtr(true)
	}
	if opts.noColor {
		overrides.NoColor = config.BoolPtr(true)
	}
	return fileConfig.Merge(overrides), nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) zerolog.Logger {
	level := zerolog.WarnLevel
	if cfg.GetVerbose() {
		level = zerolog.DebugLevel
	}
	writer := zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), NoColor: cfg.GetNoColor()}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

func newTransport(cfg *config.Config) *http.NetTransport {
	opts := []http.ClientOption{
		http.WithConnectTimeout(cfg.ConnectTimeoutDuration()),
		http.WithReadTimeout(cfg.ReadTimeoutDuration()),
		http.WithFollowRedirects(cfg.GetFollowRedirects()),
		http.WithDefaultHeaders(cfg.Headers),
	}
	if cfg.MaxRedirects > 0 {
		opts = append(opts, http.WithMaxRedirects(cfg.MaxRedirects))
	}
	if cfg.Proxy != "" {
		opts = append(opts, http.WithProxy(cfg.Proxy))
	}
	return http.NewNetTransport(opts...)
}

func newResolver(opts *globalOptions) (*env.Resolver, error) {
	resolver := env.NewResolver()
	if opts.envFile != "" {
		vars, err := env.LoadDotEnv(opts.envFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
		resolver.SetVariables(vars)
	}

	vars, err := parsePairs(opts.vars, "=")
	if err != nil {
		return nil, fmt.Errorf("invalid --var: %w", err)
	}
	resolver.SetVariables(vars)
	return resolver, nil
}

// parsePairs splits "key<sep>value" arguments at the earliest of the given
// separators. Keys are trimmed and must not be empty; values are trimmed
// only after a ":" so that "Name: value" header syntax works.
func parsePairs(values []string, seps ...string) (map[string]string, error) {
	pairs := make(map[string]string, len(values))
	for _, v := range values {
		idx, sep := -1, ""
		for _, s := range seps {
			if i := strings.Index(v, s); i >= 0 && (idx < 0 || i < idx) {
				idx, sep = i, s
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("expected key%svalue, got %q", seps[0], v)
		}
		key, value := strings.TrimSpace(v[:idx]), v[idx+len(sep):]
		if key == "" {
			return nil, fmt.Errorf("empty key in %q", v)
		}
		if sep == ":" {
			value = strings.TrimSpace(value)
		}
		pairs[key] = value
	}
	return pairs, nil
}

// exitCodeForRequest maps a session error to the CLI exit code
func exitCodeForRequest(err error) int {
	switch {
	case errors.Is(err, http.ErrMalformedURL):
		return ExitUsageError
	case http.IsTransportFailure(err), errors.Is(err, http.ErrResponseRead):
		return ExitNetworkError
	default:
		return ExitFailure
	}
}
