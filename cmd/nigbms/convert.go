package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/born-ml/nigbms/internal/parallel"
	"github.com/born-ml/nigbms/internal/task"
	"github.com/born-ml/nigbms/internal/train"
)

func newConvertCmd() *cobra.Command {
	var (
		n, modes, count int
	)
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Round-trip generated Poisson tasks through the dense and sparse forms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			pcfg := cfg.Poisson.Task()
			if cmd.Flags().Changed("n") {
				pcfg.N = n
			}
			if cmd.Flags().Changed("modes") {
				pcfg.Modes = modes
			}
			return runConvert(cmd.OutOrStdout(), pcfg, count, cfg.Seed)
		},
	}
	cmd.Flags().IntVar(&n, "n", 0, "Grid size, overrides poisson.n")
	cmd.Flags().IntVar(&modes, "modes", 0, "Source modes, overrides poisson.modes")
	cmd.Flags().IntVar(&count, "count", 1, "Number of tasks to convert")
	return cmd
}

func runConvert(w io.Writer, pcfg task.Poisson1DConfig, count int, seed uint64) error {
	if count <= 0 {
		return errors.Errorf("count must be positive, got %d", count)
	}
	rng := train.NewRand(seed)
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"TASK", "N", "NNZ", "DENSE", "ROUND TRIP"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	sparse := make([]*task.SparseLinearSystemTask, count)
	for i := range sparse {
		var err error
		if sparse[i], err = task.Poisson1D(pcfg, rng); err != nil {
			return err
		}
	}
	results, err := parallel.Map(sparse, roundTrip, parallel.DefaultConfig())
	if err != nil {
		return err
	}

	var failed int
	for i, r := range results {
		status := "ok"
		if !r.equal {
			status = "MISMATCH"
			failed++
		}
		table.Append([]string{
			fmt.Sprint(i),
			fmt.Sprint(r.dense.Dim()),
			humanize.Comma(int64(sparse[i].A.NNZ())),
			humanize.Bytes(uint64(8 * r.dense.A.NumElements())),
			status,
		})
	}
	table.Render()
	if failed > 0 {
		return errors.Errorf("%d of %d tasks changed in the round trip", failed, count)
	}
	return nil
}

type roundTripResult struct {
	dense *task.DenseLinearSystemTask
	equal bool
}

// roundTrip converts a sparse task to dense and back.
func roundTrip(sparse *task.SparseLinearSystemTask) (roundTripResult, error) {
	dense := task.SparseToDense(sparse)
	back, err := task.DenseToSparse(dense)
	if err != nil {
		return roundTripResult{}, err
	}
	return roundTripResult{dense: dense, equal: back.Equal(sparse)}, nil
}
