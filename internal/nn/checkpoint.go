package nn

import (
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/born-ml/nigbms/internal/serialization"
)

// Checkpoint is a snapshot of a network's weights plus training metadata.
//
// Example:
//
//	ckpt := &nn.Checkpoint{Model: meta, Step: 500, Loss: 1e-3}
//	err := ckpt.Save("meta_solver.safetensors")
//
// To resume:
//
//	ckpt, err := nn.LoadCheckpoint("meta_solver.safetensors", meta)
type Checkpoint struct {
	Model    *Sequential
	Step     int
	Loss     float64
	Metadata map[string]string
}

// Save writes the checkpoint as a SafeTensors file.
func (c *Checkpoint) Save(path string) error {
	meta := make(map[string]string, len(c.Metadata)+3)
	for k, v := range c.Metadata {
		meta[k] = v
	}
	meta["step"] = strconv.Itoa(c.Step)
	meta["loss"] = strconv.FormatFloat(c.Loss, 'g', -1, 64)
	meta["saved_at"] = time.Now().UTC().Format(time.RFC3339)

	if err := serialization.WriteSafeTensors(path, c.Model.StateDict(), meta); err != nil {
		return errors.Wrapf(err, "saving checkpoint to %s", path)
	}
	return nil
}

// LoadCheckpoint reads weights from path into model and returns the
// checkpoint metadata.
func LoadCheckpoint(path string, model *Sequential) (*Checkpoint, error) {
	tensors, meta, err := serialization.ReadSafeTensors(path)
	if err != nil {
		return nil, errors.Wrapf(err, "loading checkpoint %s", path)
	}
	if err := model.LoadStateDict(tensors); err != nil {
		return nil, errors.Wrapf(err, "loading checkpoint %s", path)
	}

	ckpt := &Checkpoint{Model: model, Metadata: meta}
	if s, ok := meta["step"]; ok {
		if ckpt.Step, err = strconv.Atoi(s); err != nil {
			return nil, errors.Wrap(err, "invalid step in checkpoint metadata")
		}
	}
	if s, ok := meta["loss"]; ok {
		if ckpt.Loss, err = strconv.ParseFloat(s, 64); err != nil {
			return nil, errors.Wrap(err, "invalid loss in checkpoint metadata")
		}
	}
	return ckpt, nil
}
