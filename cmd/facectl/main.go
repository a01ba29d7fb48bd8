// Command facectl is the operator tool for the face worker: it enqueues
// jobs and inspects or edits the identity store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/your-org/facerec/internal/config"
	"github.com/your-org/facerec/internal/observability"
	"github.com/your-org/facerec/internal/storage"
)

var (
	configPath string
	// cfg is loaded once by the root command before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "facectl",
	Short:         "Operate the face identification worker",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "path to config file")
}

// openStore opens the identity store named in the config. The caller closes it.
func openStore(ctx context.Context) (storage.IdentityStore, error) {
	s, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open identity store: %w", err)
	}
	return s, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
