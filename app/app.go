// Package app wires the recording engine's collaborators into a runnable
// process: load config, open a Discord session, install the registry on
// every voice connection, and expose SaveSnapshot/MixWindow to whatever
// outer surface (HTTP, CLI) an embedding process adds.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/EasterCompany/dex-voice-recorder/cache"
	"github.com/EasterCompany/dex-voice-recorder/codec"
	"github.com/EasterCompany/dex-voice-recorder/config"
	"github.com/EasterCompany/dex-voice-recorder/health"
	"github.com/EasterCompany/dex-voice-recorder/identity"
	"github.com/EasterCompany/dex-voice-recorder/log"
	"github.com/EasterCompany/dex-voice-recorder/metrics"
	"github.com/EasterCompany/dex-voice-recorder/mixer"
	"github.com/EasterCompany/dex-voice-recorder/recorder"
	"github.com/EasterCompany/dex-voice-recorder/session"
	"github.com/EasterCompany/dex-voice-recorder/snapshot"
	"github.com/EasterCompany/dex-voice-recorder/voicesession"
)

// App bundles every collaborator the recording engine needs for one
// process lifetime.
type App struct {
	Config   *config.Config
	Session  *discordgo.Session
	Logger   log.Logger
	Metrics  *metrics.Metrics
	Registry *recorder.Registry
	Snapshot *snapshot.Writer
	Mixer    *mixer.Mixer
	Health   *health.Reporter

	metricsHandler http.Handler
	metricsShut    func(context.Context) error
	adapters       map[string]*voicesession.DiscordAdapter
}

// New constructs an App from process configuration. It does not open the
// Discord session or start any background loop; call Run for that.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("app: load config: %w", err)
	}

	logger := log.New(nil)

	met, metricsHandler, metricsShut, err := metrics.InitProvider(context.Background())
	if err != nil {
		return nil, fmt.Errorf("app: init metrics: %w", err)
	}

	s, err := session.New(cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("app: create discord session: %w", err)
	}

	gc := recorder.GCConfig{
		RecordingWindowSeconds: cfg.RecordingWindowSeconds,
		UserIdleSeconds:        cfg.UserIdleSeconds,
		UserGCPeriodSeconds:    cfg.UserGCPeriodSeconds,
	}
	registry := recorder.NewRegistry(gc, logger, met)

	codecRunner := codec.NewRunner(cfg.CodecBinary)
	lookup := identity.NewDiscordLookup(s)

	writer := snapshot.NewWriter(registry, codecRunner, lookup, cfg.RecordingsDir, logger, met)
	if cfg.RedisAddr != "" {
		idx, err := cache.New(context.Background(), cfg.RedisAddr)
		if err != nil {
			logger.Error("app: connect manifest cache", err)
		} else {
			writer.Cache = idx
		}
	}

	mx := mixer.New(codecRunner, cfg.RecordingsDir, cfg.MixesDir,
		time.Duration(cfg.MixTTLSeconds)*time.Second, logger, met)

	reporter, err := health.NewReporter(registry, cfg.RecordingWindowSeconds, 30*time.Second, logger, met, health.DefaultPID())
	if err != nil {
		return nil, fmt.Errorf("app: init health reporter: %w", err)
	}

	return &App{
		Config:         cfg,
		Session:        s,
		Logger:         logger,
		Metrics:        met,
		Registry:       registry,
		Snapshot:       writer,
		Mixer:          mx,
		Health:         reporter,
		metricsHandler: metricsHandler,
		metricsShut:    metricsShut,
		adapters:       make(map[string]*voicesession.DiscordAdapter),
	}, nil
}

// Run opens the Discord session, purges stale mix artifacts left over from
// a prior process, starts the health reporter and metrics endpoint, and
// blocks until SIGINT/SIGTERM.
func (a *App) Run() error {
	if err := purgeMixesDir(a.Config.MixesDir); err != nil {
		a.Logger.Error("app: purge mixes dir at startup", err)
	}

	a.Session.AddHandler(a.onVoiceStateUpdate)

	if err := a.Session.Open(); err != nil {
		return fmt.Errorf("app: open discord session: %w", err)
	}
	defer a.Session.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Health.Run(ctx)

	if a.metricsHandler != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", a.metricsHandler)
		srv := &http.Server{Addr: a.Config.MetricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.Logger.Error("app: metrics server", err)
			}
		}()
		defer srv.Close()
	}

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	if a.metricsShut != nil {
		_ = a.metricsShut(context.Background())
	}
	return nil
}

// onVoiceStateUpdate joins the engine to a voice channel's decoded-audio
// stream the first time it observes a VoiceStateUpdate in a guild that
// isn't tracked yet; later updates for other channels of that guild are
// ignored. Joining itself stays in the platform adapter's
// purview in production deployments that already hold a voice connection;
// this handler exists so the engine is self-sufficient when embedded
// stand-alone.
func (a *App) onVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if v.UserID == s.State.User.ID || v.ChannelID == "" {
		return
	}
	if _, tracked := a.adapters[v.GuildID]; tracked {
		return
	}

	vc, err := s.ChannelVoiceJoin(v.GuildID, v.ChannelID, true, false)
	if err != nil {
		a.Logger.Error("app: join voice channel", err)
		return
	}

	adapter := voicesession.NewDiscordAdapter(v.GuildID, vc, a.Logger)
	a.adapters[v.GuildID] = adapter
	a.Registry.Install(adapter.Session())

	vc.AddHandler(func(vc *discordgo.VoiceConnection, su *discordgo.VoiceSpeakingUpdate) {
		adapter.HandleDiscordSpeakingUpdate(uint32(su.SSRC), parseUserID(su.UserID))
	})
}

func parseUserID(raw string) uint64 {
	var id uint64
	_, _ = fmt.Sscanf(raw, "%d", &id)
	return id
}

// purgeMixesDir removes every entry under the mixes root, matching spec.md
// §6's "directory contents are purged at process startup".
func purgeMixesDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
