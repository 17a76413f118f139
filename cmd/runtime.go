package cmd

import (
	"io"
	"log"
	"os"

	"github.com/spf13/afero"
	"github.com/urfave/cli"
	"github.com/warpdl/warpcas/internal/config"
	"github.com/warpdl/warpcas/internal/store"
	"github.com/warpdl/warpcas/pkg/casauth"
	"github.com/warpdl/warpcas/pkg/credman"
	"github.com/warpdl/warpcas/pkg/credman/keyring"
	"github.com/warpdl/warpcas/pkg/logger"
)

// Package level hooks, replaced in tests.
var (
	appFs     afero.Fs  = afero.NewOsFs()
	logOutput io.Writer = os.Stderr

	loadVaultKey = func(cfg *config.Config) ([]byte, error) {
		if cfg.Vault.Key != "" {
			return keyring.DecodeKey(cfg.Vault.Key)
		}
		return keyring.LoadOrCreate(keyring.NewKeyring(), keyring.NewFileKeyStore(appFs, cfg.DataDir))
	}
)

func loadConfig(ctx *cli.Context) (*config.Config, error) {
	return config.Load(appFs, ctx.GlobalString("config"))
}

func newLogger(cfg *config.Config) logger.Logger {
	return logger.NewStandardLogger(log.New(logOutput, "warpcas: ", log.LstdFlags), cfg.Debug)
}

// newDaemonLogger mirrors the console log into the log file of the data
// directory. The console alone is used when the file cannot be opened.
func newDaemonLogger(cfg *config.Config) logger.Logger {
	l := newLogger(cfg)
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		l.Warning("log file disabled: %v", err)
		return l
	}
	fl, err := logger.NewFileLogger(cfg.LogPath(), cfg.Debug)
	if err != nil {
		l.Warning("log file disabled: %v", err)
		return l
	}
	return logger.NewMultiLogger(l, fl)
}

// openVault returns nil when the vault is disabled.
func openVault(cfg *config.Config) (*credman.Vault, error) {
	if !cfg.Vault.Enabled {
		return nil, nil
	}
	key, err := loadVaultKey(cfg)
	if err != nil {
		return nil, err
	}
	return credman.NewVault(cfg.VaultPath(), key, cfg.Vault.TTL.Std())
}

func newClient(cfg *config.Config, l logger.Logger, v *credman.Vault) (*casauth.Client, error) {
	hc, err := casauth.NewHTTPClient(cfg.Proxy, cfg.Timeout.Std())
	if err != nil {
		return nil, err
	}
	opts := &casauth.ClientOpts{
		HTTPClient: hc,
		Logger:     l,
		Headers:    casauth.DefaultHeaders().Merge(cfg.Headers),
	}
	if v != nil {
		opts.Sessions = v
	}
	return casauth.NewClient(cfg.CAS, opts)
}

func openStore(cfg *config.Config) (*store.Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}
	return store.Open(cfg.StorePath())
}
