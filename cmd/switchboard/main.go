package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/Operative-001/switchboard/internal/console"
	"github.com/Operative-001/switchboard/internal/history"
	"github.com/Operative-001/switchboard/internal/liveness"
	"github.com/Operative-001/switchboard/internal/server"
)

func defaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".switchboard")
}

var rootCmd = &cobra.Command{
	Use:   "switchboard",
	Short: "Hold raw TCP connections and talk to them from a console.",
	Long: `switchboard accepts TCP connections, keeps every one of them open in a
shared table and lets an operator list them, check whether they are still
there, pick one as the current target and write raw bytes to it or to all.

Nothing is ever read from the connections and no protocol is spoken.`,
	SilenceUsage: true,
}

// ─── serve ───────────────────────────────────────────────────────────────────

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Listen for connections and run the operator console",
	RunE: func(cmd *cobra.Command, args []string) error {
		listen, _ := cmd.Flags().GetString("listen")
		dataDir, _ := cmd.Flags().GetString("data")
		noHistory, _ := cmd.Flags().GetBool("no-history")
		sweep, _ := cmd.Flags().GetDuration("sweep")
		payload, _ := cmd.Flags().GetString("probe-payload")

		logger, err := newLogger(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		if noHistory {
			dataDir = ""
		}
		srv, err := server.New(server.Config{
			Listen:        listen,
			DataDir:       dataDir,
			ProbePayload:  []byte(payload),
			SweepInterval: sweep,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := srv.Start(ctx); err != nil {
			srv.Stop() //nolint:errcheck
			return err
		}

		fmt.Printf("TCP listening at %s\n", srv.Addr())
		if sweep > 0 {
			fmt.Printf("Sweeping dead clients every %s\n", sweep)
		}

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			<-ctx.Done()
			fmt.Println("\nShutting down.")
			return srv.Stop()
		})
		g.Go(func() error {
			// EOF on stdin leaves the server running until a signal arrives.
			return srv.Dispatcher(os.Stdout).Run(ctx, os.Stdin)
		})
		return g.Wait()
	},
}

// ─── history ─────────────────────────────────────────────────────────────────

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print recorded connection events",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data")
		n, _ := cmd.Flags().GetInt("count")

		if _, err := os.Stat(filepath.Join(dataDir, history.FileName)); errors.Is(err, os.ErrNotExist) {
			fmt.Printf("No history at %s.\n", dataDir)
			return nil
		}
		hist, err := history.Open(dataDir)
		if err != nil {
			return fmt.Errorf("open history (is a server running on %s?): %w", dataDir, err)
		}
		defer hist.Close()

		events, err := hist.Recent(n)
		if err != nil {
			return err
		}
		fmt.Printf("%d of %d events\n", len(events), hist.Len())
		for _, e := range events {
			fmt.Println(console.FormatEvent(e))
		}
		return nil
	},
}

func newLogger(cmd *cobra.Command) (*zap.Logger, error) {
	levelText, _ := cmd.Flags().GetString("log-level")
	dev, _ := cmd.Flags().GetBool("dev-log")

	level, err := zapcore.ParseLevel(levelText)
	if err != nil {
		return nil, fmt.Errorf("invalid --log-level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	if dev {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

func init() {
	dd := defaultDataDir()

	for _, cmd := range []*cobra.Command{serveCmd, historyCmd} {
		cmd.Flags().String("data", dd, "Data directory holding the history database")
	}

	serveCmd.Flags().String("listen", server.DefaultListen, "TCP listen address")
	serveCmd.Flags().Bool("no-history", false, "Do not record connection history")
	serveCmd.Flags().Duration("sweep", 0, "Evict dead clients on this interval (0 = only on demand)")
	serveCmd.Flags().String("probe-payload", liveness.DefaultPayload, "Bytes written to each client by a liveness probe")
	serveCmd.Flags().String("log-level", "warn", "Log level: debug, info, warn, error")
	serveCmd.Flags().Bool("dev-log", false, "Human-readable development logging")

	historyCmd.Flags().Int("count", console.DefaultHistoryCount, "Number of events to print")

	rootCmd.AddCommand(serveCmd, historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
