// Command rain-server runs the Rain core: the single-threaded graph/
// scheduler/placement reactor of spec.md §1, fronted by the RPC control
// and HTTP dashboard endpoints of spec.md §6.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/rain/pkg/config"
	"github.com/cuemby/rain/pkg/driver"
	"github.com/cuemby/rain/pkg/events"
	"github.com/cuemby/rain/pkg/graph"
	"github.com/cuemby/rain/pkg/log"
	"github.com/cuemby/rain/pkg/rpcapi"
	"github.com/cuemby/rain/pkg/scheduler"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "rain-server",
	Short:   "Rain's task-graph scheduling core",
	Version: Version,
	RunE:    runServer,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.Bool("debug", false, "run the consistency checker after every public mutation")
	flags.Bool("test-mode", false, "disable scheduler jitter for deterministic test runs")
	flags.String("listen-addr", "0.0.0.0:7210", "RPC control endpoint (clients and workers both dial this)")
	flags.String("dashboard-addr", "0.0.0.0:8080", "HTTP dashboard endpoint")
	flags.String("ready-file", "", "file to create once both listeners are up")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "output logs in JSON format")
}

func runServer(cmd *cobra.Command, args []string) error {
	v := config.New()
	if err := config.BindFlags(v, cmd.PersistentFlags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}
	cfg := config.Load(v)
	graph.DebugEnabled = cfg.Debug

	logJSON, _ := cmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(cfg.LogLevel), JSONOutput: logJSON})

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sched := scheduler.NewRandomScheduler(cfg.TestMode, time.Now().UnixNano())
	d := driver.New(sched, broker)

	srv := rpcapi.NewServer(d, cfg, broker)
	if err := srv.Listen(); err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	log.Info(fmt.Sprintf("rain-server listening: rpc=%s dashboard=%s", cfg.ListenAddr, cfg.DashboardAddr))

	if err := srv.Serve(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
