// tc-server runs one TomChain server instance: it loads a JSON config
// file, wires every subsystem via node.New, and blocks until interrupted.
//
// Grounded on the teacher's cmd/main.go: a cobra root command executed via
// rootCmd.Execute(), with tendermint's os.TrapSignal used the same way the
// teacher's run_node command would have used it to block the process
// until SIGINT/SIGTERM.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	tmflags "github.com/tendermint/tendermint/libs/cli/flags"
	"github.com/tendermint/tendermint/libs/log"
	tmos "github.com/tendermint/tendermint/libs/os"

	"github.com/tomchain/tomchain/config"
	"github.com/tomchain/tomchain/node"
)

var (
	configFile string
	idOverride uint64
)

var rootCmd = &cobra.Command{
	Use:   "tc-server",
	Short: "run a TomChain consensus-core server instance",
	RunE:  runServer,
}

func init() {
	rootCmd.Flags().StringVar(&configFile, "cf", "", "path to the JSON config file (required)")
	rootCmd.Flags().Uint64Var(&idOverride, "id", 0, "override this server's server-id from the config file")
	rootCmd.MarkFlagRequired("cf")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, idOverride)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}

	n, err := node.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("constructing node: %w", err)
	}

	if err := n.Start(); err != nil {
		return fmt.Errorf("starting node: %w", err)
	}
	logger.Info("tc-server started", "server_id", cfg.ServerID, "packer", cfg.IsPacker())

	tmos.TrapSignal(logger, func() {
		if err := n.Stop(); err != nil {
			logger.Error("stopping node", "err", err)
		}
	})
	<-make(chan struct{}) // blocks until TrapSignal's handler calls os.Exit

	return nil
}

func newLogger(level string) (log.Logger, error) {
	logger := log.NewTMLogger(log.NewSyncWriter(os.Stdout))
	if level == "" {
		return logger, nil
	}
	return tmflags.ParseLogLevel(level, logger, "info")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
