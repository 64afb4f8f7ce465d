package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/urfave/cli/v3"

	"github.com/Tyrowin/messenger/internal/config"
	"github.com/Tyrowin/messenger/internal/directory"
	"github.com/Tyrowin/messenger/internal/entities"
	"github.com/Tyrowin/messenger/internal/messaging"
	"github.com/Tyrowin/messenger/internal/server"
	"github.com/Tyrowin/messenger/internal/simulator"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version = "dev"
	commit  = "HEAD"
)

type flags struct {
	ConfigPath string
	LogLevel   string
	LogFile    string
	Addr       string
}

func main() {
	_ = godotenv.Load()

	if err := setupLogger("info", ""); err != nil {
		panic(err)
	}

	f := &flags{}
	app := &cli.Command{
		Name:    "messenger",
		Usage:   "Real-time messaging demo server",
		Version: fmt.Sprintf("%s (%s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "load configuration from `FILE`",
				Sources:     cli.EnvVars("MESSENGER_CONFIG"),
				Destination: &f.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error); overrides the config file",
				Destination: &f.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (optional)",
				Destination: &f.LogFile,
			},
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address; overrides the config file",
				Destination: &f.Addr,
			},
		},
		Action: func(ctx context.Context, _ *cli.Command) error {
			return serve(ctx, f)
		},
		Commands: []*cli.Command{
			{
				Name:      "init-config",
				Usage:     "write a sample configuration file",
				ArgsUsage: "[path]",
				Action: func(_ context.Context, c *cli.Command) error {
					path := c.Args().First()
					if path == "" {
						path = "messenger.toml"
					}
					if err := config.InitConfig(path); err != nil {
						return err
					}
					log.Info().Str("path", path).Msg("configuration written")
					return nil
				},
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, f *flags) error {
	cfg, err := config.Load(f.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.Addr != "" {
		cfg.Server.Addr = f.Addr
	}
	if err := setupLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := server.NewHub(component("hub"), cfg.Hub.BroadcastBuffer)
	store := directory.New(directory.DefaultUsers())
	svc := messaging.New(store, hub, component("messaging"))
	for _, c := range directory.DefaultChannels() {
		svc.CreateChannel(c.ID, c.Name, c.Participants)
	}

	currentUser, ok := pickCurrentUser(svc.Snapshot().Users, cfg.App.CurrentUser)
	if !ok {
		return errors.New("no users to render the page for")
	}
	log.Info().Str("user_id", currentUser).Msg("current user selected")

	handlers, err := server.NewHandlers(svc, hub, cfg, currentUser, component("http"))
	if err != nil {
		return err
	}
	httpServer := server.CreateServer(cfg.Server.Addr, server.SetupRoutes(handlers, cfg, component("http")))

	server.StartHub(hub)

	if cfg.Simulator.Enabled {
		sim := simulator.New(svc, currentUser, cfg.Simulator.Interval, nil, component("simulator"))
		go func() {
			_ = sim.Run(ctx)
		}()
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.StartServer(httpServer)
	}()

	select {
	case err = <-serverErr:
	case <-ctx.Done():
	}
	stop()

	if shutdownErr := server.ShutdownServer(httpServer, cfg.Server.ShutdownTimeout); shutdownErr != nil && err == nil {
		err = shutdownErr
	}
	if hubErr := hub.Shutdown(cfg.Server.ShutdownTimeout); hubErr != nil {
		log.Warn().Err(hubErr).Msg("hub did not stop cleanly")
	}
	return err
}

func component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// pickCurrentUser returns the configured user when it exists, otherwise a random one.
func pickCurrentUser(users []entities.User, configured string) (string, bool) {
	if len(users) == 0 {
		return "", false
	}
	if configured != "" {
		if _, ok := lo.Find(users, func(u entities.User) bool { return u.ID == configured }); ok {
			return configured, true
		}
		log.Warn().Str("user_id", configured).Msg("configured current user not found; picking one at random")
	}
	return users[rand.IntN(len(users))].ID, true
}

func setupLogger(level string, logFile string) error {
	parsedLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}

	var output io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}

	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}

		output = io.MultiWriter(zerolog.ConsoleWriter{Out: os.Stderr}, file)
	}

	log.Logger = log.Output(output).Level(parsedLevel)

	return nil
}
