package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/five82/squint/internal/accesslog"
	"github.com/five82/squint/internal/aggregate"
	"github.com/five82/squint/internal/api"
	"github.com/five82/squint/internal/client"
	"github.com/five82/squint/internal/config"
	"github.com/five82/squint/internal/logging"
	"github.com/five82/squint/internal/logtail"
	"github.com/five82/squint/internal/prefs"
	"github.com/five82/squint/internal/state"
	"github.com/five82/squint/internal/ui"
)

const (
	localPollTick  = 5 * time.Second
	remotePollTick = 10 * time.Second
)

// Options configure a squint command.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/squint/prefs.toml
	Remote     bool   // top only: read from the API at api_bind
}

// runtime is everything a command needs around one cache.
type runtime struct {
	cfg    config.Config
	log    zerolog.Logger
	closer io.Closer
	cache  *state.Cache
}

func (rt *runtime) Close() {
	if rt.cache != nil {
		rt.cache.Close()
	}
	_ = rt.closer.Close()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// setup loads the config and builds the logger. The cache is only built when
// withCache is set.
func setup(opts Options, quiet, withCache bool) (*runtime, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logCfg := logging.Config{Level: cfg.Log.Level, Output: cfg.Log.Output, File: cfg.Log.File}
	var (
		log    zerolog.Logger
		closer io.Closer
	)
	if quiet && logCfg.Output != logging.OutputFile {
		// The dashboard owns the terminal.
		log, closer = logging.Nop(), nopCloser{}
	} else {
		log, closer, err = logging.New(logCfg)
		if err != nil {
			return nil, fmt.Errorf("init logging: %w", err)
		}
	}

	rt := &runtime{cfg: cfg, log: log, closer: closer}
	if !withCache {
		return rt, nil
	}

	parser, err := accesslog.NewParser(cfg.Location, cfg.LogEncoding)
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("init parser: %w", err)
	}
	reader := logtail.NewReader(logtail.Options{
		Path:      cfg.LogPath,
		BlockSize: cfg.BlockSize,
		Parser:    parser,
		Logger:    logging.Component(log, "logtail"),
	})
	maxStale := cfg.MaxStale
	if maxStale == 0 {
		maxStale = state.NeverStale
	}
	rt.cache = state.New(state.Options{
		Reader:             reader,
		Engine:             aggregate.NewEngine(cfg.TopDomains, cfg.DomainCacheSize),
		TTL:                cfg.CacheTTL,
		PartialTTL:         cfg.PartialTTL,
		MaxStale:           maxStale,
		FallbackLines:      cfg.FallbackLines,
		RecentLines:        cfg.RecentLines,
		ClientHistoryLines: cfg.ClientHistoryLines,
		Logger:             logging.Component(log, "cache"),
	})
	return rt, nil
}

// Serve runs the poller and the HTTP API until ctx is cancelled.
func Serve(ctx context.Context, opts Options) error {
	rt, err := setup(opts, false, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.log.Info().
		Str("log_path", rt.cfg.LogPath).
		Str("timezone", rt.cfg.Timezone).
		Dur("refresh_interval", rt.cfg.RefreshInterval).
		Msg("starting squint")

	pollCtx, stopPoller := context.WithCancel(ctx)
	pollerDone := StartPoller(pollCtx, rt.cache, rt.cfg.RefreshInterval, logging.Component(rt.log, "poller"))
	defer func() {
		stopPoller()
		<-pollerDone
	}()

	server := api.NewServer(api.Options{
		Service:         api.NewService(rt.cache),
		Logger:          logging.Component(rt.log, "api"),
		RateLimit:       rt.cfg.RateLimit,
		RateLimitWindow: rt.cfg.RateLimitWindow,
	})
	if err := server.ListenAndServe(ctx, rt.cfg.APIBind); err != nil {
		return fmt.Errorf("serve api: %w", err)
	}
	return nil
}

// Top runs the dashboard, reading the local log or, with Remote, a running
// squint API.
func Top(ctx context.Context, opts Options) error {
	rt, err := setup(opts, true, !opts.Remote)
	if err != nil {
		return err
	}
	defer rt.Close()

	userPrefs, _ := prefs.Load(opts.PrefsPath)

	uiOpts := ui.Options{
		Context:   ctx,
		ThemeName: userPrefs.Theme,
		Window:    userPrefs.Window,
		PrefsPath: opts.PrefsPath,
	}

	if opts.Remote {
		remote, err := client.NewClient(rt.cfg.APIBind)
		if err != nil {
			return fmt.Errorf("init api client: %w", err)
		}
		uiOpts.Source = remote
		uiOpts.Origin = rt.cfg.APIBind
		uiOpts.PollTick = remotePollTick
		return ui.Run(uiOpts)
	}

	pollCtx, stopPoller := context.WithCancel(ctx)
	pollerDone := StartPoller(pollCtx, rt.cache, rt.cfg.RefreshInterval, logging.Component(rt.log, "poller"))
	defer func() {
		stopPoller()
		<-pollerDone
	}()

	uiOpts.Source = ui.Local(api.NewService(rt.cache))
	uiOpts.Origin = rt.cfg.LogPath
	uiOpts.PollTick = localPollTick
	return ui.Run(uiOpts)
}

// RefreshOnce runs a single full refresh and reports what it processed.
func RefreshOnce(ctx context.Context, opts Options, out io.Writer) error {
	rt, err := setup(opts, false, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := rt.cache.Refresh(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "Cache updated with %d log entries, %d clients (%d lines skipped)\n",
		res.Entries, res.Clients, res.Skipped)
	return err
}
