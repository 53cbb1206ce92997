package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/telhawk-systems/console/common/logging"
	"github.com/telhawk-systems/console/common/messaging"
	"github.com/telhawk-systems/console/internal/devserver"
	"github.com/telhawk-systems/console/internal/seeder"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a demo admin API serving every view from generated data",
	Long: `Serves GET /api/v1/<resource> for every catalog view with the same paging,
sorting, search and filter params the console sends, plus /healthz and
/metrics. New log rows are generated on an interval and published on NATS
when it is enabled.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "listen address (default :server.port)")
	serveCmd.Flags().Int("seed", 0, "rows generated per view (default server.seed)")
	serveCmd.Flags().Duration("emit-interval", 2*time.Second, "how often a new log row is generated; 0 disables")
}

func runServe(cmd *cobra.Command, _ []string) error {
	c := currentConfig()
	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = fmt.Sprintf(":%d", c.Server.Port)
	}
	rows, _ := cmd.Flags().GetInt("seed")
	if rows <= 0 {
		rows = c.Server.Seed
	}
	interval, _ := cmd.Flags().GetDuration("emit-interval")

	srv, err := newDevServer(rows)
	if err != nil {
		return err
	}
	log := serverLogger()

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if interval > 0 {
		var pub messaging.Publisher
		if c.NATS.Enabled {
			nc, err := connectNATS()
			if err != nil {
				log.Warn("log rows will not be published", logging.Error(err))
			} else {
				defer nc.Close()
				pub = nc
			}
		}
		go func() {
			gen := seeder.New(time.Now().UnixNano(), time.Now())
			if err := srv.EmitLogs(ctx, pub, c.NATS.Subject, gen, interval); err != nil {
				log.Error("log emitter stopped", logging.Error(err))
			}
		}()
	}

	httpSrv := devserver.NewHTTPServer(addr, srv.Handler(), c.Server.ReadTimeout(), c.Server.WriteTimeout(), c.Server.IdleTimeout())
	errCh := make(chan error, 1)
	go func() {
		log.Info("demo backend listening", slog.String("addr", addr), slog.Int("rows_per_view", rows))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	newPrinter(cmd).Success("demo backend listening on %s (%d rows per view)", addr, rows)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// newDevServer builds the demo backend over the catalog and seeds it.
func newDevServer(rows int) (*devserver.Server, error) {
	catalog, err := loadCatalog()
	if err != nil {
		return nil, err
	}
	srv := devserver.New(catalog,
		devserver.WithMaxLimit(currentConfig().Server.MaxLimit),
		devserver.WithLogger(serverLogger()))
	if err := srv.Seed(seeder.New(demoSeed, time.Now()), rows); err != nil {
		return nil, fmt.Errorf("seed demo data: %w", err)
	}
	return srv, nil
}

func serverLogger() *logging.Logger {
	if logger == nil {
		return &logging.Logger{Logger: logging.Discard()}
	}
	return logger
}
