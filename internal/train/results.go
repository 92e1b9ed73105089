package train

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/born-ml/nigbms/internal/serialization"
	"github.com/born-ml/nigbms/internal/tensor"
)

// Trajectories records a minimisation run: Ys[step][sample] is the objective
// of each sample after step updates, Sims[step][sample] the cosine similarity
// between the exact gradient and the estimate used at that step. Row 0 holds
// the initial objectives and zero similarities.
type Trajectories struct {
	RunID    string
	Function string
	Dim      int
	GradType string
	Ys       [][]float64
	Sims     [][]float64
}

// NewTrajectories allocates steps+1 rows of samples values each.
func NewTrajectories(function string, dim int, gradType string, steps, samples int) *Trajectories {
	t := &Trajectories{
		RunID:    uuid.NewString(),
		Function: function,
		Dim:      dim,
		GradType: gradType,
		Ys:       make([][]float64, steps+1),
		Sims:     make([][]float64, steps+1),
	}
	for i := range t.Ys {
		t.Ys[i] = make([]float64, samples)
		t.Sims[i] = make([]float64, samples)
	}
	return t
}

// Name is the file stem of the run, e.g. "rosenbrock2D-cv_fwd".
func (t *Trajectories) Name() string {
	return fmt.Sprintf("%s%dD-%s", t.Function, t.Dim, t.GradType)
}

// MeanPerStep returns the mean objective of every step.
func (t *Trajectories) MeanPerStep() []float64 {
	out := make([]float64, len(t.Ys))
	for i, row := range t.Ys {
		out[i] = stat.Mean(row, nil)
	}
	return out
}

// Save writes the run to dir as <Name>.safetensors and returns the path.
func (t *Trajectories) Save(dir string) (string, error) {
	path := filepath.Join(dir, t.Name()+".safetensors")
	return path, SaveTrajectories(path, t)
}

// SaveTrajectories writes t as a SafeTensors file with tensors "ys" and
// "sims" of shape [steps+1, samples].
func SaveTrajectories(path string, t *Trajectories) error {
	ys, err := matrix(t.Ys)
	if err != nil {
		return errors.Wrap(err, "ys")
	}
	sims, err := matrix(t.Sims)
	if err != nil {
		return errors.Wrap(err, "sims")
	}
	metadata := map[string]string{
		"run_id":    t.RunID,
		"function":  t.Function,
		"dim":       strconv.Itoa(t.Dim),
		"grad_type": t.GradType,
	}
	return serialization.WriteSafeTensors(path, map[string]*tensor.RawTensor{"ys": ys, "sims": sims}, metadata)
}

// LoadTrajectories reads a file written by SaveTrajectories.
func LoadTrajectories(path string) (*Trajectories, error) {
	tensors, metadata, err := serialization.ReadSafeTensors(path)
	if err != nil {
		return nil, errors.Wrapf(err, "loading trajectories %q", path)
	}
	ys, ok := tensors["ys"]
	if !ok {
		return nil, errors.Errorf("trajectories %q: missing tensor \"ys\"", path)
	}
	sims, ok := tensors["sims"]
	if !ok {
		return nil, errors.Errorf("trajectories %q: missing tensor \"sims\"", path)
	}
	if len(ys.Shape()) != 2 || !ys.Shape().Equal(sims.Shape()) {
		return nil, errors.Wrapf(tensor.ErrShapeMismatch, "trajectories %q: ys %v, sims %v", path, ys.Shape(), sims.Shape())
	}
	dim, err := strconv.Atoi(metadata["dim"])
	if err != nil {
		return nil, errors.Wrapf(err, "trajectories %q: dim", path)
	}
	return &Trajectories{
		RunID:    metadata["run_id"],
		Function: metadata["function"],
		Dim:      dim,
		GradType: metadata["grad_type"],
		Ys:       rows(ys),
		Sims:     rows(sims),
	}, nil
}

func matrix(values [][]float64) (*tensor.RawTensor, error) {
	if len(values) == 0 {
		return nil, errors.New("no steps recorded")
	}
	width := len(values[0])
	data := make([]float64, 0, len(values)*width)
	for i, row := range values {
		if len(row) != width {
			return nil, errors.Errorf("row %d has %d values, want %d", i, len(row), width)
		}
		data = append(data, row...)
	}
	return tensor.FromSlice(data, tensor.Shape{len(values), width})
}

func rows(t *tensor.RawTensor) [][]float64 {
	shape := t.Shape()
	n, width := shape[0], shape[1]
	out := make([][]float64, n)
	for i := range out {
		out[i] = append([]float64(nil), t.Data()[i*width:(i+1)*width]...)
	}
	return out
}
