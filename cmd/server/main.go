// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/19voice/internal/api/connect"
	"github.com/osa030/19voice/internal/app/autoplay"
	"github.com/osa030/19voice/internal/app/filter"
	"github.com/osa030/19voice/internal/app/notification"
	"github.com/osa030/19voice/internal/app/playback"
	"github.com/osa030/19voice/internal/app/search"
	"github.com/osa030/19voice/internal/app/session"
	"github.com/osa030/19voice/internal/infra/config"
	"github.com/osa030/19voice/internal/infra/discord"
	"github.com/osa030/19voice/internal/infra/lavalink"
	"github.com/osa030/19voice/internal/infra/logger"
	"github.com/osa030/19voice/internal/infra/spotify"
	"github.com/osa030/19voice/internal/infra/store"
)

const startupTimeout = 30 * time.Second

var (
	app        = kingpin.New("19voice-server", "19voice music bot")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// list-filters command
	listFiltersCmd = app.Command("list-filters", "List available autoplay filters and exit")
)

func init() {
	app.Command("start", "Start the bot (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	loggerConfig := logger.Config{Output: "stdout", Level: "info"}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	logCloser, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logCloser.Close()

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until a shutdown signal. Using a
// separate function ensures defers run even when returning with an error.
func run(cfg *config.Config) error {
	ctx := context.Background()

	scale, err := playback.ParseVolumeScale(cfg.Lavalink.VolumeScale)
	if err != nil {
		return err
	}

	node, err := lavalink.NewNode(lavalink.Config{
		URL:            cfg.Lavalink.URL,
		Password:       cfg.Lavalink.Password,
		ClientName:     cfg.Lavalink.ClientName,
		ReconnectDelay: cfg.ReconnectDelay(),
	})
	if err != nil {
		return errors.Wrap(err, "failed to create lavalink node")
	}
	defer node.Close()

	bot, err := discord.New(cfg.Discord)
	if err != nil {
		return err
	}

	transport := lavalink.NewTransport(node, bot, lavalink.TransportOptions{
		VolumeScale:  scale,
		VoiceTimeout: cfg.VoiceTimeout(),
	})
	bot.SetVoiceSink(transport)

	var spotifyResolver search.TrackResolver
	if cfg.SpotifyEnabled() {
		client, err := spotify.New(ctx, spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			Market:       cfg.Spotify.Market,
		})
		if err != nil {
			return errors.Wrap(err, "failed to create spotify client")
		}
		spotifyResolver = client
		zlog.Info().Msg("Spotify link resolution enabled")
	}
	resolver := search.NewResolver(node, spotifyResolver, search.ConfigFrom(cfg.Search))

	// Autoplay searches are not subject to the user rate limit.
	autoplayFactory, err := autoplay.NewFactoryFromConfig(cfg, search.NewResolver(node, nil, search.Config{Prefix: cfg.Search.Prefix}))
	if err != nil {
		return errors.Wrap(err, "invalid autoplay config")
	}

	notifications := notification.NewManager()
	defer notifications.Close()

	deps := session.Dependencies{
		Transport:   transport,
		Searcher:    resolver,
		NewExtender: func() session.Extender { return autoplayFactory.New() },
		Notifier:    notifications,
	}
	if cfg.Store.Path != "" {
		settings, err := store.Open(cfg.Store.Path, cfg.Session.DefaultVolume)
		if err != nil {
			return err
		}
		defer settings.Close()
		deps.Settings = settings
		zlog.Info().Msgf("Guild settings stored in %s", cfg.Store.Path)
	}

	sessions := session.NewManager(session.OptionsFromConfig(cfg), deps)

	bot.SetCommands(discord.NewCommands(sessions, cfg))
	notifications.Subscribe(discord.NewAnnouncer(bot.Session()))

	ready := make(chan string, 1)
	bot.OnReady(func(userID string) {
		select {
		case ready <- userID:
		default:
		}
	})
	if err := bot.Open(); err != nil {
		return err
	}
	defer bot.Close()

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()
	select {
	case userID := <-ready:
		node.SetUserID(userID)
	case <-startCtx.Done():
		return errors.New("timed out waiting for discord ready")
	}
	if err := node.Connect(startCtx); err != nil {
		return errors.Wrap(err, "failed to connect to lavalink")
	}

	// Admin RPC server with h2c (HTTP/2 cleartext) support
	adminService := apiconnect.NewAdminService(sessions, notifications)
	adminPath, adminHandler := apiconnect.NewAdminServiceHandler(
		adminService,
		connect.WithInterceptors(apiconnect.NewAdminAuthInterceptor(cfg.Admin.Token)),
	)
	mux := http.NewServeMux()
	mux.Handle(adminPath, adminHandler)

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: h2c.NewHandler(mux, &http2.Server{}),
	}

	serverErrCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("Starting admin server: addr=%s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		return errors.Wrap(err, "admin server error")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	// Leave voice everywhere before the gateway goes away.
	sessions.Close(shutdownCtx)

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")
	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")
	return nil
}

// printFilters prints available autoplay filters.
func printFilters() {
	fmt.Println("Available Filters:")
	for _, name := range filter.Names() {
		f, _ := filter.Lookup(name)
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-30s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
