package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"

	goVPS "github.com/MrEthical07/goVPS"
	"github.com/MrEthical07/goVPS/hypervisor"
	"github.com/MrEthical07/goVPS/internal/appconfig"
	"github.com/MrEthical07/goVPS/store/sqlstore"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// app carries the resolved configuration into subcommands.
type app struct {
	cfg    *appconfig.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "vpspanel",
		Short:         "VPS hosting panel API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := appconfig.Load(cmd.Flags(), os.LookupEnv)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = cfg.NewLogger(cmd.ErrOrStderr())
			slog.SetDefault(a.logger)
			return nil
		},
	}
	appconfig.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newSeedCmd(a),
		newAccountCmd(a),
		newAuditCmd(a),
	)

	return root
}

// openStore opens the configured database and applies pending migrations.
func (a *app) openStore(ctx context.Context) (*sqlstore.Store, error) {
	st, err := sqlstore.OpenMigrated(ctx, sqlstore.Dialect(a.cfg.DBDialect), a.cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", a.cfg.DBDialect, err)
	}
	return st, nil
}

// buildEngine wires the engine over st. Offline commands pass
// requireKey=false and get a throwaway signing key since they issue no
// tokens.
func (a *app) buildEngine(ctx context.Context, st *sqlstore.Store, requireKey bool) (*goVPS.Engine, func(), error) {
	cfg := *a.cfg
	if cfg.SigningKey == "" && !requireKey {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, nil, err
		}
		cfg.SigningKey = hex.EncodeToString(key)
	}
	engineCfg, err := cfg.Engine()
	if err != nil {
		return nil, nil, err
	}

	b := goVPS.New().
		WithConfig(engineCfg).
		WithStore(st).
		WithAuditSink(goVPS.NewRecorderSink(st)).
		WithHypervisor(hypervisor.NoopController{}).
		WithLogger(a.logger)

	cleanup := func() {}
	if cfg.RedisAddr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{cfg.RedisAddr}})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		b = b.WithRedis(client)
		cleanup = func() { _ = client.Close() }
	}

	engine, err := b.Build()
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return engine, func() {
		engine.Close()
		cleanup()
	}, nil
}
