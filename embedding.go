package main

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// EmbeddingCfg holds the constants of the toy embedding steps.
type EmbeddingCfg struct {
	Scale    float64 `mapstructure:"scale" json:"scale"`         // character code divisor
	ModelDim int     `mapstructure:"model_dim" json:"model_dim"` // d_model in the positional formula
	Base     float64 `mapstructure:"base" json:"base"`           // positional frequency base
}

func DefaultEmbeddingCfg() EmbeddingCfg {
	return EmbeddingCfg{
		Scale:    255.0,
		ModelDim: 64,
		Base:     10000.0,
	}
}

// CharacterVector maps every rune of text to code/Scale.
// Code points above Scale are not clamped and produce values above 1.
func CharacterVector(text string, cfg EmbeddingCfg) []float64 {
	runes := []rune(text)
	vec := make([]float64, len(runes))
	for i, r := range runes {
		vec[i] = float64(r) / cfg.Scale
	}
	return vec
}

// PositionalValue is a single sinusoid per position. The parity of the
// position stands in for the dimension index of the full encoding.
func PositionalValue(pos int, cfg EmbeddingCfg) float64 {
	exponent := float64(2*(pos%2)) / float64(cfg.ModelDim)
	return math.Sin(float64(pos) / math.Pow(cfg.Base, exponent))
}

// PositionalVector returns PositionalValue for positions 0..n-1.
func PositionalVector(n int, cfg EmbeddingCfg) []float64 {
	vec := make([]float64, n)
	for i := range vec {
		vec[i] = PositionalValue(i, cfg)
	}
	return vec
}

// PositionalTable is the standard per-dimension encoding: sin on even
// dimensions, cos on odd ones.
func PositionalTable(positions, dim int, base float64) [][]float64 {
	pe := make([][]float64, positions)
	for pos := 0; pos < positions; pos++ {
		pe[pos] = make([]float64, dim)
		for i := 0; i < dim; i++ {
			denom := math.Pow(base, float64(2*(i/2))/float64(dim))
			val := float64(pos) / denom
			if i%2 == 0 {
				pe[pos][i] = math.Sin(val)
			} else {
				pe[pos][i] = math.Cos(val)
			}
		}
	}
	return pe
}

// Combine adds the character and positional vectors elementwise.
func Combine(character, positional []float64) ([]float64, error) {
	if len(character) != len(positional) {
		return nil, fmt.Errorf("combine %d and %d values: %w", len(character), len(positional), ErrLengthMismatch)
	}
	out := make([]float64, len(character))
	if len(out) == 0 {
		return out, nil
	}
	floats.AddTo(out, character, positional)
	return out, nil
}
