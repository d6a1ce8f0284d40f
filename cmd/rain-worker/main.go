// Command rain-worker is a reference worker process: it registers with a
// rain-server's RPC control endpoint and answers the worker-control calls
// of spec.md §4.6 using an in-memory Executor. Real task execution
// (subworker process management, worker-local filesystem layout) is out
// of scope per spec.md §1's Non-goals — this binary exists to exercise
// the RPC contract end to end.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/rain/pkg/ids"
	"github.com/cuemby/rain/pkg/log"
	"github.com/cuemby/rain/pkg/workeragent"
)

var (
	Version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "rain-worker SERVER_ADDR",
	Short:   "Rain reference worker agent",
	Version: Version,
	Args:    cobra.ExactArgs(1),
	RunE:    runWorker,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("listen", "0.0.0.0:0", "address this worker announces to the server")
	flags.Int("cpus", runtime.NumCPU(), "cpu count to advertise")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "output logs in JSON format")
}

func runWorker(cmd *cobra.Command, args []string) error {
	serverAddr := args[0]
	announced, _ := cmd.Flags().GetString("listen")
	cpus, _ := cmd.Flags().GetInt("cpus")
	logLevel, _ := cmd.Flags().GetString("log-level")
	logJSON, _ := cmd.Flags().GetBool("log-json")

	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	agent, err := workeragent.Dial(ctx, workeragent.Config{
		ServerAddr:       serverAddr,
		AnnouncedAddress: announced,
		Resources:        ids.Resources{CPUs: cpus},
		Executor:         workeragent.NewEchoExecutor(),
	})
	if err != nil {
		return fmt.Errorf("register with %s: %w", serverAddr, err)
	}
	defer func() { _ = agent.Close() }()

	log.Info(fmt.Sprintf("rain-worker registered as %s against %s", agent.WorkerID(), serverAddr))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	return nil
}
