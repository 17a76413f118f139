package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"
	"github.com/warpdl/warpcas/cmd/common"
	"github.com/warpdl/warpcas/internal/api"
	"github.com/warpdl/warpcas/internal/config"
	"github.com/warpdl/warpcas/internal/metrics"
	"github.com/warpdl/warpcas/internal/server"
	"github.com/warpdl/warpcas/internal/store"
	"github.com/warpdl/warpcas/pkg/credman"
	"github.com/warpdl/warpcas/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

var (
	listenAddr string
	debugFlag  bool

	serveFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "listen, l",
			Usage:       "address to listen on (default: config listen)",
			Destination: &listenAddr,
		},
		cli.BoolFlag{
			Name:        "debug, d",
			Usage:       "log every request and login step",
			Destination: &debugFlag,
		},
	}
)

// DaemonComponents holds everything the daemon opened, so it can be released
// in reverse order.
type DaemonComponents struct {
	Vault  *credman.Vault
	Store  *store.Store
	Api    *api.Api
	Server *server.Server
	logger logger.Logger
}

func (c *DaemonComponents) Close() {
	if c.Api != nil {
		_ = c.Api.Close()
	}
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			c.logger.Warning("close store: %v", err)
		}
	}
	if c.Vault != nil {
		if err := c.Vault.Close(); err != nil {
			c.logger.Warning("close vault: %v", err)
		}
	}
	c.logger.Info("daemon stopped")
}

var initDaemonComponents = func(cfg *config.Config, l logger.Logger) (*DaemonComponents, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &DaemonComponents{logger: l}
	var err error
	c.Vault, err = openVault(cfg)
	if err != nil {
		l.Error("session vault initialization failed: %v", err)
		return nil, err
	}
	client, err := newClient(cfg, l, c.Vault)
	if err != nil {
		l.Error("http client initialization failed: %v", err)
		c.Close()
		return nil, err
	}
	reg, err := cfg.Registry()
	if err != nil {
		l.Error("portal registry initialization failed: %v", err)
		c.Close()
		return nil, err
	}
	c.Store, err = openStore(cfg)
	if err != nil {
		l.Error("record store initialization failed: %v", err)
		c.Close()
		return nil, err
	}

	var a *api.Api
	m := metrics.New(func() float64 {
		if a == nil {
			return 0
		}
		return float64(a.PendingCount())
	})
	a, err = api.New(&api.Options{
		Client:     client,
		Portals:    reg,
		Logger:     l,
		Store:      c.Store,
		Vault:      c.Vault,
		Metrics:    m,
		Limiter:    api.NewLimiter(cfg.RateLimit),
		PendingTTL: cfg.PendingTTL.Std(),
	})
	if err != nil {
		l.Error("API initialization failed: %v", err)
		c.Close()
		return nil, err
	}
	c.Api = a
	if cfg.RPCSecret == "" {
		l.Warning("no rpc secret configured, JSON-RPC requests will be refused")
	}
	c.Server = server.NewServer(l, a, m, cfg.Listen, &server.RPCConfig{
		Secret:    cfg.RPCSecret,
		Version:   currentBuildArgs.Version,
		Commit:    currentBuildArgs.Commit,
		BuildType: currentBuildArgs.BuildType,
	})
	return c, nil
}

func serve(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	cfg, err := loadConfig(ctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "serve", "load_config", err)
		return nil
	}
	if listenAddr != "" {
		cfg.Listen = listenAddr
	}
	if debugFlag {
		cfg.Debug = true
	}
	l := newDaemonLogger(cfg)
	defer l.Close()

	c, err := initDaemonComponents(cfg, l)
	if err != nil {
		common.PrintRuntimeErr(ctx, "serve", "init", err)
		return nil
	}
	defer c.Close()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- c.Server.Start() }()

	select {
	case err = <-errCh:
	case <-sigCtx.Done():
		l.Info("shutting down")
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = c.Server.Shutdown(shutCtx)
	}
	if err != nil {
		common.PrintRuntimeErr(ctx, "serve", "listen", err)
	}
	return nil
}
