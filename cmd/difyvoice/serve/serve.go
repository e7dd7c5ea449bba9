// Package servecmder provides the serve command running the metrics API.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/difyvoice/api"
	"github.com/papercomputeco/difyvoice/pkg/config"
	"github.com/papercomputeco/difyvoice/pkg/logger"
	"github.com/papercomputeco/difyvoice/pkg/sink"
)

type serveCommander struct {
	listen      string
	sqlitePath  string
	postgresDSN string
	debug       bool
	logFile     string

	viper *viper.Viper
}

var serveFlags = []string{
	config.FlagAPIListen,
	config.FlagSQLite,
	config.FlagPostgres,
}

const serveLongDesc string = `Run the difyvoice metrics API.

The API serves the completion metrics recorded by "difyvoice chat" from the
configured storage (PostgreSQL, SQLite, or in-memory):
  GET /ping
  GET /v1/metrics?label=&limit=
  GET /v1/metrics/stats?label=
  GET /v1/metrics/:request_id

Examples:
  difyvoice serve --sqlite ~/.difyvoice/metrics.sqlite
  difyvoice serve --postgres postgres://localhost/difyvoice --listen :9000`

const serveShortDesc string = "Run the metrics API"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, serveFlags)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.logFile, _ = cmd.Flags().GetString("log-file")

			cmder.listen = cmder.viper.GetString("api.listen")
			cmder.sqlitePath = cmder.viper.GetString("storage.sqlite_path")
			cmder.postgresDSN = cmder.viper.GetString("storage.postgres_dsn")

			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresDSN)

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	log, closeLog, err := logger.CLI(os.Stderr, c.debug, c.logFile)
	if err != nil {
		return err
	}
	defer closeLog()

	driver, err := sink.OpenDriver(ctx, sink.Options{
		PostgresDSN: c.postgresDSN,
		SQLitePath:  c.sqlitePath,
		Logger:      log,
	})
	if err != nil {
		return err
	}
	defer driver.Close()

	server := api.NewServer(api.Config{ListenAddr: c.listen}, driver, log)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		log.Info("received signal, shutting down", "signal", sig.String())
		return server.Shutdown()
	case <-ctx.Done():
		return server.Shutdown()
	}
}
