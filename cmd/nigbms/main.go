// Package main provides the nigbms command line.
//
// Usage:
//
//	nigbms minimize --config run.yaml --grad-types f_true,cv_fwd --plot
//	nigbms train --config poisson.yaml
//	nigbms convert --n 64
//	nigbms version
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/born-ml/nigbms/internal/config"
)

const version = "v0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	klog.Flush()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "nigbms",
		Short:         "Gradient-based meta solvers with estimated gradients",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)
	root.PersistentFlags().AddGoFlagSet(klogFlags)
	root.PersistentFlags().String("config", "", "YAML run configuration (defaults are used when empty)")
	root.PersistentFlags().Uint64("seed", 0, "Random seed, overrides the configuration when set")

	root.AddCommand(
		newMinimizeCmd(),
		newTrainCmd(),
		newConvertCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "nigbms %s\n", version)
		},
	}
}

// loadConfig reads --config, or the defaults, and applies --seed.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	var cfg *config.Config
	if path == "" {
		cfg = config.Default()
		cfg.ApplyEnv()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	} else {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed, _ = cmd.Flags().GetUint64("seed")
	}
	return cfg, nil
}
