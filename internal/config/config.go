// Package config loads run configurations for nigbms.
//
// A configuration is a YAML document layered over Default(). A few
// environment variables override the file:
//
//	NIGBMS_GRAD_TYPE   wrapper.grad_type
//	NIGBMS_JVP_TYPE    wrapper.jvp_type
//	NIGBMS_OUTPUT_DIR  output.dir
package config

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/nigbms/internal/estimator"
	"github.com/born-ml/nigbms/internal/solver"
	"github.com/born-ml/nigbms/internal/task"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is a complete run configuration.
type Config struct {
	Seed      uint64          `yaml:"seed"`
	Problem   ProblemConfig   `yaml:"problem"`
	Poisson   PoissonConfig   `yaml:"poisson"`
	Solver    SolverConfig    `yaml:"solver"`
	Wrapper   WrapperConfig   `yaml:"wrapper"`
	Surrogate SurrogateConfig `yaml:"surrogate"`
	Meta      MetaConfig      `yaml:"meta_solver"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
	Loss      LossConfig      `yaml:"loss"`
	Output    OutputConfig    `yaml:"output"`
}

// ProblemConfig describes a test-function minimisation run.
type ProblemConfig struct {
	TestFunction string     `yaml:"test_function"`
	Dim          int        `yaml:"dim"`
	NumSamples   int        `yaml:"num_samples"`
	NumIter      int        `yaml:"num_iter"`
	InitialRange [2]float64 `yaml:"initial_range"`
	LogEvery     int        `yaml:"log_every"`
}

// PoissonConfig describes the generated 1D Poisson data set.
type PoissonConfig struct {
	N        int     `yaml:"n"`
	Modes    int     `yaml:"modes"`
	Rtol     float64 `yaml:"rtol"`
	Maxiter  int     `yaml:"maxiter"`
	NumTrain int     `yaml:"num_train"`
	NumVal   int     `yaml:"num_val"`
}

// Task returns the generator configuration.
func (p PoissonConfig) Task() task.Poisson1DConfig {
	return task.Poisson1DConfig{N: p.N, Rtol: p.Rtol, Maxiter: p.Maxiter, Modes: p.Modes}
}

// SolverConfig names the base solver; the remaining fields are passed to
// solver.New.
type SolverConfig struct {
	Name          string `yaml:"name"`
	solver.Config `yaml:",inline"`
}

// WrapperConfig configures the gradient-estimation layer. Types are kept as
// names and parsed by Estimator.
type WrapperConfig struct {
	GradType string  `yaml:"grad_type"`
	JVPType  string  `yaml:"jvp_type"`
	Eps      float64 `yaml:"eps"`
	Nv       int     `yaml:"Nv"`
	VScale   float64 `yaml:"v_scale"`
}

// Estimator parses the wrapper configuration.
func (w WrapperConfig) Estimator() (estimator.Config, error) {
	gt, err := estimator.ParseGradType(w.GradType)
	if err != nil {
		return estimator.Config{}, err
	}
	jt, err := estimator.ParseJVPType(w.JVPType)
	if err != nil {
		return estimator.Config{}, err
	}
	return estimator.Config{GradType: gt, JVPType: jt, Eps: w.Eps, Nv: w.Nv, VScale: w.VScale}, nil
}

// SurrogateConfig configures the surrogate network.
type SurrogateConfig struct {
	Hidden     []int  `yaml:"hidden"`
	Activation string `yaml:"activation"`
}

// MetaConfig configures the meta-solver network and its training schedule.
type MetaConfig struct {
	Hidden     []int  `yaml:"hidden"`
	Activation string `yaml:"activation"`
	Epochs     int    `yaml:"epochs"`
	BatchSize  int    `yaml:"batch_size"`
}

// OptConfig selects an optimizer from optim.New.
type OptConfig struct {
	Name string  `yaml:"name"`
	LR   float64 `yaml:"lr"`
}

// OptimizerConfig holds the meta (theta) and surrogate optimizers. Zero clip
// values disable gradient clipping.
type OptimizerConfig struct {
	Meta          OptConfig `yaml:"m_opt"`
	Surrogate     OptConfig `yaml:"s_opt"`
	MetaClip      float64   `yaml:"m_clip"`
	SurrogateClip float64   `yaml:"s_clip"`
}

// LossConfig weights the surrogate loss terms.
type LossConfig struct {
	Y   float64 `yaml:"y"`
	DVF float64 `yaml:"dvf"`
}

// Weights returns the loss weights for estimator.SurrogateLoss.
func (l LossConfig) Weights() estimator.LossWeights {
	return estimator.LossWeights{Y: l.Y, DVF: l.DVF}
}

// OutputConfig controls where results are written.
type OutputConfig struct {
	Dir  string `yaml:"dir"`
	Plot bool   `yaml:"plot"`
}

// Default returns the configuration used when no file is given: a 2D
// rosenbrock minimisation with cv_fwd.
func Default() *Config {
	return &Config{
		Seed: 0,
		Problem: ProblemConfig{
			TestFunction: "rosenbrock",
			Dim:          2,
			NumSamples:   10,
			NumIter:      1000,
			InitialRange: [2]float64{-5, 5},
			LogEvery:     100,
		},
		Poisson: PoissonConfig{
			N:        32,
			Modes:    8,
			Rtol:     1e-6,
			Maxiter:  10,
			NumTrain: 256,
			NumVal:   32,
		},
		Solver:  SolverConfig{Name: "jacobi"},
		Wrapper: WrapperConfig{
			GradType: estimator.CVFwd.String(),
			JVPType:  estimator.ForwardAD.String(),
			Eps:      1e-6,
			Nv:       1,
			VScale:   1,
		},
		Surrogate: SurrogateConfig{Hidden: []int{64, 64}, Activation: "relu"},
		Meta:      MetaConfig{Hidden: []int{64}, Activation: "tanh", Epochs: 10, BatchSize: 16},
		Optimizer: OptimizerConfig{
			Meta:      OptConfig{Name: "sgd", LR: 1e-3},
			Surrogate: OptConfig{Name: "adam", LR: 1e-3},
		},
		Loss:   LossConfig{Y: 1, DVF: 1},
		Output: OutputConfig{Dir: "."},
	}
}

// Load reads the YAML file at path over Default, applies the environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening config %q", path)
	}
	defer f.Close()
	cfg, err := Decode(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "config %q", path)
	}
	return cfg, nil
}

// Decode is Load for an already opened document. Unknown keys are errors.
func Decode(r io.Reader) (*Config, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	cfg := Default()
	if len(bytes.TrimSpace(content)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(content))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, errors.Wrap(err, "decoding yaml")
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Var returns an environment variable stripped of blanks and quotes.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

// ApplyEnv applies the NIGBMS_* overrides that are set.
func (c *Config) ApplyEnv() {
	if s := Var("NIGBMS_GRAD_TYPE"); s != "" {
		c.Wrapper.GradType = s
	}
	if s := Var("NIGBMS_JVP_TYPE"); s != "" {
		c.Wrapper.JVPType = s
	}
	if s := Var("NIGBMS_OUTPUT_DIR"); s != "" {
		c.Output.Dir = s
	}
}

// Validate checks the fields every command relies on.
func (c *Config) Validate() error {
	if _, err := c.Wrapper.Estimator(); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "wrapper: %v", err)
	}
	switch {
	case c.Wrapper.Nv <= 0:
		return errors.Wrapf(ErrInvalidConfig, "wrapper.Nv must be positive, got %d", c.Wrapper.Nv)
	case c.Wrapper.Eps <= 0:
		return errors.Wrapf(ErrInvalidConfig, "wrapper.eps must be positive, got %g", c.Wrapper.Eps)
	case c.Problem.Dim <= 0:
		return errors.Wrapf(ErrInvalidConfig, "problem.dim must be positive, got %d", c.Problem.Dim)
	case c.Problem.NumSamples <= 0:
		return errors.Wrapf(ErrInvalidConfig, "problem.num_samples must be positive, got %d", c.Problem.NumSamples)
	case c.Problem.NumIter < 0:
		return errors.Wrapf(ErrInvalidConfig, "problem.num_iter must not be negative, got %d", c.Problem.NumIter)
	case c.Problem.InitialRange[0] > c.Problem.InitialRange[1]:
		return errors.Wrapf(ErrInvalidConfig, "problem.initial_range %v is reversed", c.Problem.InitialRange)
	case c.Meta.BatchSize <= 0:
		return errors.Wrapf(ErrInvalidConfig, "meta_solver.batch_size must be positive, got %d", c.Meta.BatchSize)
	case c.Optimizer.MetaClip < 0 || c.Optimizer.SurrogateClip < 0:
		return errors.Wrapf(ErrInvalidConfig, "optimizer clip values must not be negative")
	}
	return nil
}

// String renders the configuration as YAML.
func (c *Config) String() string {
	out, err := yaml.Marshal(c)
	if err != nil {
		return err.Error()
	}
	return string(out)
}
