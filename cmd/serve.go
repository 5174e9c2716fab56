package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/storewatch/internal/alerting"
	"github.com/sells-group/storewatch/internal/api"
)

var (
	servePort    int
	serveMonitor bool
)

// shutdownTimeout bounds how long in-flight requests may take to drain.
const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the review API server",
	Long:  "Serves stats, observations, alerts and feedback endpoints. With --monitor, runs the background alert checker alongside.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		if serveMonitor {
			checker := alerting.NewChecker(st, cfg.Monitoring)
			go checker.Run(ctx)
		}

		srv := api.NewServer(st, *cfg).HTTPServer()

		go shutdownOnDone(ctx, srv)

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// shutdownOnDone blocks until ctx is done, then shuts the server down with a
// fresh timeout context: ctx is already cancelled at that point, and Shutdown
// needs time to drain in-flight requests.
func shutdownOnDone(ctx context.Context, srv *http.Server) {
	<-ctx.Done()
	zap.L().Info("shutting down server")
	sdCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sdCtx); err != nil {
		zap.L().Warn("server shutdown", zap.Error(err))
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveMonitor, "monitor", true, "run the background alert checker")
	rootCmd.AddCommand(serveCmd)
}
