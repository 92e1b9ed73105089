package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/born-ml/nigbms/internal/nn"
	"github.com/born-ml/nigbms/internal/train"
)

func newTrainCmd() *cobra.Command {
	var (
		epochs int
		quiet  bool
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a meta solver on generated 1D Poisson problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if epochs > 0 {
				cfg.Meta.Epochs = epochs
			}
			progress := cmd.ErrOrStderr()
			if quiet {
				progress = io.Discard
			}

			t, err := train.NewMetaTrainer(cfg, train.NewRand(cfg.Seed))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "meta solver: %s parameters, base solver %s, grad type %s\n",
				humanize.Comma(int64(nn.NumParameters(t.Meta()))), cfg.Solver.Name, cfg.Wrapper.GradType)

			bar := progressbar.NewOptions(cfg.Meta.Epochs,
				progressbar.OptionSetDescription("training"),
				progressbar.OptionShowIts(),
				progressbar.OptionSetItsString("epochs"),
				progressbar.OptionSetTheme(progressbar.ThemeASCII),
				progressbar.OptionSetWriter(progress),
				progressbar.OptionOnCompletion(func() { fmt.Fprintln(progress) }),
			)
			t.OnEpoch(func(train.EpochResult) { _ = bar.Add(1) })

			results, err := t.Run(cmd.Context())
			if err != nil {
				return err
			}
			_ = bar.Finish()
			printEpochTable(out, results)
			if len(results) == 0 {
				return nil
			}

			if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
				return errors.Wrapf(err, "creating %s", cfg.Output.Dir)
			}
			path := filepath.Join(cfg.Output.Dir, fmt.Sprintf("meta-%s.safetensors", uuid.NewString()[:8]))
			if err := t.SaveCheckpoint(path, results[len(results)-1]); err != nil {
				return err
			}
			info, err := os.Stat(path)
			if err != nil {
				return errors.WithStack(err)
			}
			fmt.Fprintf(out, "checkpoint: %s (%s)\n", path, humanize.Bytes(uint64(info.Size())))
			return nil
		},
	}
	cmd.Flags().IntVar(&epochs, "epochs", 0, "Number of epochs, overrides the configuration when positive")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Hide the progress bar")
	return cmd
}

func printEpochTable(w io.Writer, results []train.EpochResult) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"EPOCH", "TRAIN", "VAL"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	for _, r := range results {
		table.Append([]string{
			fmt.Sprint(r.Epoch),
			fmt.Sprintf("%.4g", r.Train),
			fmt.Sprintf("%.4g", r.Val),
		})
	}
	table.Render()
}
