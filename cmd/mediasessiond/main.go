// Package main is the entry point for the mediasessiond daemon.
// mediasessiond discovers the media sessions other applications publish on the
// session bus and lets paired clients select one, control it and follow its
// playback over a unix socket or HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/op/go-logging"

	"github.com/austinkregel/local-media/mediasessiond/internal/auth"
	"github.com/austinkregel/local-media/mediasessiond/internal/bridge"
	"github.com/austinkregel/local-media/mediasessiond/internal/config"
	"github.com/austinkregel/local-media/mediasessiond/internal/httpapi"
	"github.com/austinkregel/local-media/mediasessiond/internal/ipc"
	"github.com/austinkregel/local-media/mediasessiond/internal/listener"
	"github.com/austinkregel/local-media/mediasessiond/internal/media"
)

// Version is set at build time via ldflags
var Version = "dev"

var log = logging.MustGetLogger("main")

var backendLeveled logging.LeveledBackend

// Flags holds command line options
type Flags struct {
	SocketPath     string
	ConfigDir      string
	TestMode       bool
	Verbose        bool
	GrantListener  bool
	RevokeListener bool
	ListClients    bool
	RevokeClient   string
}

// InitLogger installs the formatted backend at the given level. Calling it
// again only changes the level.
func InitLogger(logLevel string) error {
	level, err := logging.LogLevel(logLevel)
	if err != nil {
		return err
	}

	if backendLeveled == nil {
		baseBackend := logging.NewLogBackend(os.Stderr, "", 0)
		format := logging.MustStringFormatter(
			`%{time:2006-01-02 15:04:05} %{level:.5s} [%{module}] %{message}`,
		)
		backendFormatter := logging.NewBackendFormatter(baseBackend, format)
		backendLeveled = logging.AddModuleLevel(backendFormatter)
		logging.SetBackend(backendLeveled)
	}
	backendLeveled.SetLevel(level, "")
	return nil
}

func main() {
	flags := parseFlags()

	configMgr := config.NewManager(flags.ConfigDir)
	if err := configMgr.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg := configMgr.Get()

	level := cfg.Log.Level
	if flags.Verbose {
		level = "DEBUG"
	}
	if err := InitLogger(level); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level %q: %v\n", level, err)
		os.Exit(1)
	}

	switch {
	case flags.GrantListener:
		if err := configMgr.GrantListener(); err != nil {
			log.Fatalf("Failed to grant listener: %v", err)
		}
		log.Infof("Listener enabled in %s", configMgr.GetPath())
		return
	case flags.RevokeListener:
		if err := configMgr.RevokeListener(); err != nil {
			log.Fatalf("Failed to revoke listener: %v", err)
		}
		log.Infof("Listener disabled in %s", configMgr.GetPath())
		return
	case flags.ListClients || flags.RevokeClient != "":
		authManager, err := newAuthManager(flags)
		if err != nil {
			log.Fatalf("%v", err)
		}
		if flags.ListClients {
			err = listClients(os.Stdout, authManager)
		} else {
			err = revokeClient(os.Stdout, authManager, flags.RevokeClient)
		}
		if err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	log.Infof("mediasessiond version %s starting...", Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flags, configMgr); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func parseFlags() *Flags {
	f := &Flags{}

	flag.StringVar(&f.SocketPath, "socket", "", "IPC socket path (default: from config)")
	flag.StringVar(&f.ConfigDir, "config", "", "Configuration directory (default: ~/.config/mediasessiond)")
	flag.BoolVar(&f.TestMode, "test-mode", false, "Run in test mode (auto-approve pairing)")
	flag.BoolVar(&f.Verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&f.GrantListener, "grant-listener", false, "Enable the session listener and exit")
	flag.BoolVar(&f.RevokeListener, "revoke-listener", false, "Disable the session listener and exit")
	flag.BoolVar(&f.ListClients, "list-clients", false, "List paired clients and exit")
	flag.StringVar(&f.RevokeClient, "revoke-client", "", "Revoke the paired client with this id and exit")
	flag.Parse()

	if f.ConfigDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to get home directory: %v\n", err)
			os.Exit(1)
		}
		f.ConfigDir = filepath.Join(homeDir, ".config", "mediasessiond")
	}

	return f
}

func newAuthManager(flags *Flags) (*auth.Manager, error) {
	authStore, err := auth.NewStore(filepath.Join(flags.ConfigDir, "clients.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize auth store: %w", err)
	}
	return auth.NewManager(authStore, flags.TestMode), nil
}

func run(ctx context.Context, flags *Flags, configMgr *config.Manager) error {
	cfg := configMgr.Get()

	configMgr.Watch(func(updated *config.Config) {
		if flags.Verbose {
			return
		}
		if err := InitLogger(updated.Log.Level); err != nil {
			log.Warningf("Ignoring log level %q: %v", updated.Log.Level, err)
		}
	})

	authManager, err := newAuthManager(flags)
	if err != nil {
		return err
	}

	platform, err := media.NewPlatform(media.PlatformOptions{
		CallTimeout: cfg.DBus.CallTimeout,
		Art:         media.NewArtLoader(cfg.Art.FetchTimeout, cfg.Art.MaxBytes),
	})
	if err != nil {
		log.Warningf("Failed to connect to media sessions: %v", err)
		log.Warningf("Continuing without OS media integration")
		platform = media.NewNoOpPlatform()
	} else {
		log.Infof("Media session platform initialized")
	}
	defer platform.Close()

	entitlement := listener.NewEntitlement(configMgr, cfg.AppID)
	if !entitlement.Enabled() {
		log.Warningf("Listener not enabled, run with -grant-listener or edit %s", configMgr.GetPath())
	}

	controller := media.NewController(platform, entitlement, media.Options{
		SnapshotOnChange: cfg.Events.SnapshotOnChange,
		MaxArtSize:       cfg.Art.MaxSize,
	})
	controller.Attach()
	defer controller.Detach()

	handler := bridge.NewHandler(controller, listener.NewOpener(configMgr.GetPath()))
	dispatcher := ipc.NewDispatcher(authManager, handler, cfg.Bridge.RequireAuth)

	socketPath := cfg.Bridge.SocketPath
	if flags.SocketPath != "" {
		socketPath = flags.SocketPath
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	server := ipc.NewServer(socketPath, dispatcher)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Start(ctx); err != nil {
			errCh <- fmt.Errorf("IPC server error: %w", err)
			cancel()
		}
	}()

	if cfg.Bridge.HTTPAddr != "" {
		if !flags.Verbose {
			gin.SetMode(gin.ReleaseMode)
		}
		httpServer := httpapi.NewServer(httpapi.Options{
			Addr:           cfg.Bridge.HTTPAddr,
			AllowedOrigins: cfg.Bridge.AllowedOrigins,
			RequireAuth:    cfg.Bridge.RequireAuth,
		}, authManager, handler, dispatcher)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := httpServer.Start(ctx); err != nil {
				errCh <- fmt.Errorf("HTTP server error: %w", err)
				cancel()
			}
		}()
	}

	wg.Wait()
	close(errCh)

	log.Infof("Shut down")
	return <-errCh
}
