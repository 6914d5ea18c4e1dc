package main

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

const (
	PolicyThreshold = "threshold"
	PolicyLinear    = "linear"
)

// Classification is the outcome of a policy over a contextual vector.
type Classification struct {
	Policy string    `json:"policy"`
	Label  string    `json:"label"`
	Index  int       `json:"index"`
	Scores []float64 `json:"scores,omitempty"` // softmax distribution, linear policy only
	Mean   float64   `json:"mean,omitempty"`   // threshold policy only
}

// ClassificationPolicy turns a contextual vector into a label.
// Implementations are stateless.
type ClassificationPolicy interface {
	Name() string
	Classify(contextual []float64) (Classification, error)
}

// ThresholdCfg configures the mean-threshold policy.
type ThresholdCfg struct {
	Cuts   []float64 `mapstructure:"cuts" json:"cuts"`
	Labels []string  `mapstructure:"labels" json:"labels"`
}

// LinearCfg holds the mock weights of the linear layer.
type LinearCfg struct {
	Weights []float64 `mapstructure:"weights" json:"weights"`
	Bias    float64   `mapstructure:"bias" json:"bias"`
	Labels  []string  `mapstructure:"labels" json:"labels"`
}

type ClassifierCfg struct {
	Policy    string       `mapstructure:"policy" json:"policy"`
	Threshold ThresholdCfg `mapstructure:"threshold" json:"threshold"`
	Linear    LinearCfg    `mapstructure:"linear" json:"linear"`
}

func DefaultClassifierCfg() ClassifierCfg {
	return ClassifierCfg{
		Policy: PolicyLinear,
		Threshold: ThresholdCfg{
			Cuts:   []float64{0.3, 0.5},
			Labels: []string{"Technical content", "General description", "Creative writing"},
		},
		Linear: LinearCfg{
			Weights: []float64{0.5, -0.3, 0.8, -0.2, 0.1},
			Bias:    0.1,
			Labels:  []string{"Statement", "Question", "Command", "Greeting", "Description"},
		},
	}
}

// NewPolicy builds the policy named in cfg.
func NewPolicy(cfg ClassifierCfg) (ClassificationPolicy, error) {
	switch cfg.Policy {
	case PolicyThreshold:
		return NewThresholdPolicy(cfg.Threshold)
	case PolicyLinear, "":
		return NewLinearSoftmaxPolicy(cfg.Linear)
	default:
		return nil, fmt.Errorf("%q: %w", cfg.Policy, ErrUnknownPolicy)
	}
}

// ThresholdPolicy labels a vector by where its mean falls between the cut
// points. Cuts are ascending and there is one more label than cuts.
type ThresholdPolicy struct {
	cfg ThresholdCfg
}

func NewThresholdPolicy(cfg ThresholdCfg) (*ThresholdPolicy, error) {
	if len(cfg.Labels) != len(cfg.Cuts)+1 {
		return nil, fmt.Errorf("threshold policy: %d cuts need %d labels, got %d", len(cfg.Cuts), len(cfg.Cuts)+1, len(cfg.Labels))
	}
	for i := 1; i < len(cfg.Cuts); i++ {
		if cfg.Cuts[i] < cfg.Cuts[i-1] {
			return nil, fmt.Errorf("threshold policy: cuts must be ascending, got %v", cfg.Cuts)
		}
	}
	return &ThresholdPolicy{cfg: cfg}, nil
}

func (p *ThresholdPolicy) Name() string { return PolicyThreshold }

func (p *ThresholdPolicy) Classify(contextual []float64) (Classification, error) {
	if len(contextual) == 0 {
		return Classification{}, ErrEmptyInput
	}
	mean := stat.Mean(contextual, nil)

	idx := len(p.cfg.Cuts)
	for i, cut := range p.cfg.Cuts {
		if mean < cut {
			idx = i
			break
		}
	}
	return Classification{
		Policy: PolicyThreshold,
		Label:  p.cfg.Labels[idx],
		Index:  idx,
		Mean:   mean,
	}, nil
}

// LinearSoftmaxPolicy scales each value by its weight, adds the bias, and
// picks the label at the arg-max of the softmax.
type LinearSoftmaxPolicy struct {
	cfg LinearCfg
}

func NewLinearSoftmaxPolicy(cfg LinearCfg) (*LinearSoftmaxPolicy, error) {
	if len(cfg.Weights) == 0 {
		return nil, fmt.Errorf("linear policy: no weights")
	}
	if len(cfg.Labels) < len(cfg.Weights) {
		return nil, fmt.Errorf("linear policy: %d weights but only %d labels", len(cfg.Weights), len(cfg.Labels))
	}
	return &LinearSoftmaxPolicy{cfg: cfg}, nil
}

func (p *LinearSoftmaxPolicy) Name() string { return PolicyLinear }

// Logits returns x[i]*w[i]+b over the first min(len(x), len(w)) values.
func (p *LinearSoftmaxPolicy) Logits(contextual []float64) []float64 {
	n := min(len(contextual), len(p.cfg.Weights))
	logits := make([]float64, n)
	for i := 0; i < n; i++ {
		logits[i] = contextual[i]*p.cfg.Weights[i] + p.cfg.Bias
	}
	return logits
}

func (p *LinearSoftmaxPolicy) Classify(contextual []float64) (Classification, error) {
	if len(contextual) == 0 {
		return Classification{}, ErrEmptyInput
	}
	n := min(len(contextual), len(p.cfg.Weights))
	if n == 1 {
		// A single logit always gets all the mass.
		return Classification{Policy: PolicyLinear, Label: p.cfg.Labels[0], Scores: []float64{1}}, nil
	}

	g := gorgonia.NewGraph()
	x := gorgonia.NewVector(g, tensor.Float64,
		gorgonia.WithShape(n),
		gorgonia.WithName("contextual"),
		gorgonia.WithValue(denseOf(contextual[:n])))
	w := gorgonia.NewVector(g, tensor.Float64,
		gorgonia.WithShape(n),
		gorgonia.WithName("weights"),
		gorgonia.WithValue(denseOf(p.cfg.Weights[:n])))
	b := gorgonia.NewVector(g, tensor.Float64,
		gorgonia.WithShape(n),
		gorgonia.WithName("bias"),
		gorgonia.WithValue(denseOf(filled(n, p.cfg.Bias))))

	// Linear layer: x ⊙ w + b
	xw, err := gorgonia.HadamardProd(x, w)
	if err != nil {
		return Classification{}, fmt.Errorf("linear layer: %w", err)
	}
	logits, err := gorgonia.Add(xw, b)
	if err != nil {
		return Classification{}, fmt.Errorf("linear bias: %w", err)
	}
	probs, err := gorgonia.SoftMax(logits)
	if err != nil {
		return Classification{}, fmt.Errorf("softmax failed: %w", err)
	}

	scores, err := runForValues(g, probs)
	if err != nil {
		return Classification{}, err
	}

	idx := floats.MaxIdx(scores)
	return Classification{
		Policy: PolicyLinear,
		Label:  p.cfg.Labels[idx],
		Index:  idx,
		Scores: scores,
	}, nil
}

// Softmax computes exp(x_i)/Σexp(x_j) on a gorgonia graph.
func Softmax(logits []float64) ([]float64, error) {
	if len(logits) == 0 {
		return nil, ErrEmptyInput
	}
	if len(logits) == 1 {
		return []float64{1}, nil
	}
	g := gorgonia.NewGraph()
	x := gorgonia.NewVector(g, tensor.Float64,
		gorgonia.WithShape(len(logits)),
		gorgonia.WithName("logits"),
		gorgonia.WithValue(denseOf(logits)))
	probs, err := gorgonia.SoftMax(x)
	if err != nil {
		return nil, fmt.Errorf("softmax failed: %w", err)
	}
	return runForValues(g, probs)
}

func runForValues(g *gorgonia.ExprGraph, out *gorgonia.Node) ([]float64, error) {
	vm := gorgonia.NewTapeMachine(g)
	defer vm.Close()

	if err := vm.RunAll(); err != nil {
		return nil, fmt.Errorf("vm.RunAll failed: %w", err)
	}
	val := out.Value()
	if val == nil {
		return nil, fmt.Errorf("%s value is nil", out.Name())
	}
	data, ok := val.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected backing %T", out.Name(), val.Data())
	}
	return append([]float64(nil), data...), nil
}

func denseOf(v []float64) *tensor.Dense {
	backing := append([]float64(nil), v...)
	return tensor.New(tensor.WithShape(len(backing)), tensor.WithBacking(backing))
}

func filled(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
