package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/born-ml/nigbms/internal/config"
	"github.com/born-ml/nigbms/internal/estimator"
	"github.com/born-ml/nigbms/internal/train"
)

func newMinimizeCmd() *cobra.Command {
	var (
		gradTypes []string
		plot      bool
		quiet     bool
	)
	cmd := &cobra.Command{
		Use:   "minimize",
		Short: "Minimize a test function with each gradient estimator",
		Long: `Minimize runs the configured test function once per gradient type,
starting every run from the same points, and saves the objective trajectories
to the output directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("plot") {
				cfg.Output.Plot = plot
			}
			progress := cmd.ErrOrStderr()
			if quiet {
				progress = io.Discard
			}
			return runMinimize(cmd, cfg, gradTypes, progress)
		},
	}
	cmd.Flags().StringSliceVar(&gradTypes, "grad-types", []string{"f_true", "f_fwd", "f_hat_true", "cv_fwd"}, "Gradient types to compare")
	cmd.Flags().BoolVar(&plot, "plot", false, "Save a convergence plot next to the trajectories")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Hide the progress bars")
	return cmd
}

type minimizeRow struct {
	gradType  string
	final     train.Stats
	sim       float64
	fallbacks int
	elapsed   time.Duration
	path      string
}

func runMinimize(cmd *cobra.Command, cfg *config.Config, gradTypes []string, progress io.Writer) error {
	if len(gradTypes) == 0 {
		return errors.New("no gradient types given")
	}
	for _, gt := range gradTypes {
		if _, err := estimator.ParseGradType(gt); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", cfg.Output.Dir)
	}

	var (
		rows []minimizeRow
		runs []*train.Trajectories
	)
	for _, gt := range gradTypes {
		runCfg := *cfg
		runCfg.Wrapper.GradType = gt
		row, traj, err := minimizeOne(cmd, &runCfg, progress)
		if err != nil {
			return errors.WithMessagef(err, "grad type %s", gt)
		}
		rows = append(rows, row)
		runs = append(runs, traj)
	}

	printMinimizeTable(cmd.OutOrStdout(), rows)

	if cfg.Output.Plot {
		name := fmt.Sprintf("%s%dD.png", cfg.Problem.TestFunction, cfg.Problem.Dim)
		path := filepath.Join(cfg.Output.Dir, name)
		title := fmt.Sprintf("%s %dD", cfg.Problem.TestFunction, cfg.Problem.Dim)
		if err := train.PlotConvergence(path, title, runs); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "plot: %s\n", path)
	}
	return nil
}

func minimizeOne(cmd *cobra.Command, cfg *config.Config, progress io.Writer) (minimizeRow, *train.Trajectories, error) {
	row := minimizeRow{gradType: cfg.Wrapper.GradType}
	m, err := train.NewMinimizer(cfg, train.NewRand(cfg.Seed))
	if err != nil {
		return row, nil, err
	}

	bar := progressbar.NewOptions(cfg.Problem.NumIter,
		progressbar.OptionSetDescription(cfg.Wrapper.GradType),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("steps"),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionSetWriter(progress),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(progress) }),
	)
	var simSum float64
	m.OnStep(func(_ int, _ train.Stats, sim float64) {
		simSum += sim
		_ = bar.Add(1)
	})

	start := time.Now()
	traj, err := m.Run(cmd.Context())
	if err != nil {
		return row, nil, err
	}
	row.elapsed = time.Since(start)
	_ = bar.Finish()

	row.final = train.Summarize(traj.Ys[len(traj.Ys)-1])
	if n := cfg.Problem.NumIter; n > 0 {
		row.sim = simSum / float64(n)
	}
	row.fallbacks = m.Wrapper().Fallbacks()
	if row.path, err = traj.Save(cfg.Output.Dir); err != nil {
		return row, nil, err
	}
	klog.V(1).Infof("%s: saved %s (run %s)", traj.Name(), row.path, traj.RunID)
	return row, traj, nil
}

func printMinimizeTable(w io.Writer, rows []minimizeRow) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"GRAD TYPE", "Y MEAN", "Y MEDIAN", "Y MIN", "MEAN SIM", "FALLBACKS", "ELAPSED", "FILE"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	for _, r := range rows {
		table.Append([]string{
			r.gradType,
			fmt.Sprintf("%.4g", r.final.Mean),
			fmt.Sprintf("%.4g", r.final.Median),
			fmt.Sprintf("%.4g", r.final.Min),
			fmt.Sprintf("%.3f", r.sim),
			fmt.Sprint(r.fallbacks),
			r.elapsed.Round(time.Millisecond).String(),
			filepath.Base(r.path),
		})
	}
	table.Render()
}
