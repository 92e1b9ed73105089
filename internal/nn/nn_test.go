package nn_test

import (
	"math"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/nigbms/internal/autodiff"
	"github.com/born-ml/nigbms/internal/backend/cpu"
	"github.com/born-ml/nigbms/internal/nn"
	"github.com/born-ml/nigbms/internal/tensor"
)

func fromSlice(data []float64, shape ...int) *tensor.RawTensor {
	return must.M1(tensor.FromSlice(data, tensor.Shape(shape)))
}

func newBackend() *autodiff.AutodiffBackend[*cpu.CPUBackend] {
	b := autodiff.New(cpu.New())
	b.Tape().StartRecording()
	return b
}

func TestParameter(t *testing.T) {
	data := fromSlice([]float64{1, 2, 3}, 3)
	param := nn.NewParameter("test_param", data)

	assert.Equal(t, "test_param", param.Name())
	assert.Same(t, data, param.Tensor())
	assert.Nil(t, param.Grad())

	grad := fromSlice([]float64{0.1, 0.2, 0.3}, 3)
	param.SetGrad(grad)
	assert.Same(t, grad, param.Grad())

	param.ZeroGrad()
	assert.Nil(t, param.Grad())

	assert.Panics(t, func() { param.SetGrad(fromSlice([]float64{1}, 1)) })
}

func TestLinearForward(t *testing.T) {
	backend := newBackend()
	rng := rand.New(rand.NewPCG(1, 1))
	layer := nn.NewLinear(2, 3, backend, rng)

	copy(layer.Weight().Tensor().Data(), []float64{1, 0, 0, 1, 1, 1})
	copy(layer.Bias().Tensor().Data(), []float64{0.5, -0.5, 0})

	out := layer.Forward(fromSlice([]float64{2, 3, -1, 4}, 2, 2))
	assert.Equal(t, tensor.Shape{2, 3}, out.Shape())
	assert.InDeltaSlice(t, []float64{2.5, 2.5, 5, -0.5, 3.5, 3}, out.Data(), 1e-12)

	assert.Len(t, layer.Parameters(), 2)
	assert.Panics(t, func() { layer.Forward(fromSlice([]float64{1, 2, 3}, 1, 3)) })
}

func TestXavierBounds(t *testing.T) {
	rng := rand.New(rand.NewPCG(2, 2))
	w := nn.Xavier(10, 20, tensor.Shape{20, 10}, rng)
	bound := math.Sqrt(6.0 / 30.0)
	for _, v := range w.Data() {
		assert.LessOrEqual(t, math.Abs(v), bound)
	}
}

func TestActivations(t *testing.T) {
	backend := newBackend()
	x := fromSlice([]float64{-2, 0, 3}, 1, 3)

	assert.Equal(t, []float64{0, 0, 3}, nn.NewReLU(backend).Forward(x).Data())
	assert.InDeltaSlice(t, []float64{math.Tanh(-2), 0, math.Tanh(3)}, nn.NewTanh(backend).Forward(x).Data(), 1e-12)

	sig := nn.NewSigmoid(backend).Forward(x).Data()
	assert.InDelta(t, 0.5, sig[1], 1e-12)
	assert.InDelta(t, 1/(1+math.Exp(2)), sig[0], 1e-12)

	assert.Nil(t, nn.NewActivation("gelu", backend))
}

func TestMLPLearnsWithGradients(t *testing.T) {
	backend := newBackend()
	rng := rand.New(rand.NewPCG(3, 3))
	mlp, err := nn.NewMLP([]int{2, 8, 1}, "tanh", backend, rng)
	require.NoError(t, err)
	assert.Equal(t, 3, mlp.Len())
	assert.Equal(t, "Sequential(Linear(2->8), Tanh, Linear(8->1))", mlp.String())
	assert.Equal(t, 2*8+8+8+1, nn.NumParameters(mlp))

	x := fromSlice([]float64{0.1, 0.2, -0.3, 0.4}, 2, 2)
	target := fromSlice([]float64{0.5, -0.5}, 2, 1)
	loss := nn.NewMSELoss(backend)

	first := loss.Forward(mlp.Forward(x), target)
	for step := 0; step < 500; step++ {
		backend.Tape().Clear()
		l := loss.Forward(mlp.Forward(x), target)
		grads, err := backend.Gradient(l, tensor.Ones(l.Shape()), nn.Tensors(mlp)...)
		require.NoError(t, err)
		for i, p := range mlp.Parameters() {
			data := p.Tensor().Data()
			for j, g := range grads[i].Data() {
				data[j] -= 0.1 * g
			}
		}
	}
	last := loss.Forward(mlp.Forward(x), target)
	assert.Less(t, last.Item(), first.Item()/10)

	_, err = nn.NewMLP([]int{2}, "tanh", backend, rng)
	assert.Error(t, err)
	_, err = nn.NewMLP([]int{2, 1}, "gelu", backend, rng)
	assert.Error(t, err)
}

func TestMSELoss(t *testing.T) {
	backend := newBackend()
	pred := fromSlice([]float64{1, 2, 3, 4}, 4, 1)
	target := fromSlice([]float64{1, 0, 3, 2}, 4, 1)
	assert.InDelta(t, 2.0, nn.NewMSELoss(backend).Forward(pred, target).Item(), 1e-12)
	assert.Panics(t, func() { nn.NewMSELoss(backend).Forward(pred, fromSlice([]float64{1}, 1)) })
}

func TestCheckpointRoundTrip(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewPCG(4, 4))
	model := must.M1(nn.NewMLP([]int{3, 4, 1}, "relu", backend, rng))
	path := filepath.Join(t.TempDir(), "ckpt.safetensors")

	ckpt := &nn.Checkpoint{Model: model, Step: 42, Loss: 0.125, Metadata: map[string]string{"task": "poisson1d"}}
	require.NoError(t, ckpt.Save(path))

	fresh := must.M1(nn.NewMLP([]int{3, 4, 1}, "relu", backend, rand.New(rand.NewPCG(5, 5))))
	loaded, err := nn.LoadCheckpoint(path, fresh)
	require.NoError(t, err)
	assert.Equal(t, 42, loaded.Step)
	assert.Equal(t, 0.125, loaded.Loss)
	assert.Equal(t, "poisson1d", loaded.Metadata["task"])

	for i, p := range fresh.Parameters() {
		assert.Equal(t, model.Parameters()[i].Tensor().Data(), p.Tensor().Data())
	}

	wrong := must.M1(nn.NewMLP([]int{3, 5, 1}, "relu", backend, rng))
	_, err = nn.LoadCheckpoint(path, wrong)
	assert.Error(t, err)
}
