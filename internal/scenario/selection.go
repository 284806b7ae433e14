// Package scenario decides which of an endpoint's response scenarios serves a
// given request.
package scenario

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

type Mode string

const (
	ModeFixed    Mode = "fixed"
	ModeRandom   Mode = "random"
	ModeWeighted Mode = "weighted"
)

// Selection is one of Fixed, Random or Weighted.
type Selection interface {
	Mode() Mode
}

// Fixed always serves the scenario at Index.
type Fixed struct {
	Index int
}

// Random serves a uniformly chosen scenario.
type Random struct{}

// Weighted serves scenario i with probability Weights[i]/sum(Weights). A zero
// sum degrades to uniform.
type Weighted struct {
	Weights []float64
}

func (Fixed) Mode() Mode    { return ModeFixed }
func (Random) Mode() Mode   { return ModeRandom }
func (Weighted) Mode() Mode { return ModeWeighted }

// ParseMode maps the stored mode string. Empty means fixed.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeFixed:
		return ModeFixed, nil
	case ModeRandom:
		return ModeRandom, nil
	case ModeWeighted:
		return ModeWeighted, nil
	default:
		return "", fmt.Errorf("unknown selection mode %q", s)
	}
}

// Build validates stored selection settings for an endpoint with n scenarios.
// An out-of-range fixed index is clamped rather than rejected.
func Build(mode string, index int, weights []float64, n int) (Selection, error) {
	m, err := ParseMode(mode)
	if err != nil {
		return nil, err
	}

	switch m {
	case ModeRandom:
		return Random{}, nil
	case ModeWeighted:
		if len(weights) != n {
			return nil, fmt.Errorf("weighted selection needs %d weights, got %d", n, len(weights))
		}
		for i, w := range weights {
			if w < 0 {
				return nil, fmt.Errorf("weight %d is negative", i)
			}
		}
		cp := make([]float64, len(weights))
		copy(cp, weights)
		return Weighted{Weights: cp}, nil
	default:
		return Fixed{Index: Clamp(index, n)}, nil
	}
}

// Clamp pulls i into [0, n).
func Clamp(i, n int) int {
	if n <= 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// Select returns an index in [0, n). n must be positive.
func Select(sel Selection, n int, rng *rand.Rand) int {
	if n <= 1 {
		return 0
	}

	switch s := sel.(type) {
	case Fixed:
		return Clamp(s.Index, n)
	case Weighted:
		return pickWeighted(s.Weights, n, rng)
	default:
		return rng.IntN(n)
	}
}

func pickWeighted(weights []float64, n int, rng *rand.Rand) int {
	if len(weights) != n {
		return rng.IntN(n)
	}

	var total float64
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return rng.IntN(n)
	}

	r := rng.Float64() * total
	var acc float64
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		acc += w
		if r < acc {
			return i
		}
	}

	// float rounding: fall back to the last positive weight
	for i := n - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return i
		}
	}
	return n - 1
}

// NewRand returns a generator for one request.
func NewRand() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}
