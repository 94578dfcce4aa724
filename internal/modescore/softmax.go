package modescore

import "math"

// normalizerFloor keeps the softmax denominator away from zero. After the max
// logit is subtracted the denominator is already at least 1.
const normalizerFloor = 1e-12

// Softmax returns exp(l/tau) normalized to sum to 1. The maximum logit is
// subtracted before scaling, so every exponent is <= 0 and the result stays
// finite for any finite logits and tau > 0.
func Softmax(logits []float64, tau float64) []float64 {
	if len(logits) == 0 {
		return nil
	}
	maxL := math.Inf(-1)
	for _, l := range logits {
		maxL = math.Max(maxL, l)
	}

	out := make([]float64, len(logits))
	var sum float64
	for i, l := range logits {
		// l-maxL may round to -Inf for extreme spreads; exp gives 0.
		out[i] = math.Exp((l - maxL) / tau)
		sum += out[i]
	}
	sum = math.Max(sum, normalizerFloor)

	for i := range out {
		out[i] /= sum
	}
	return out
}

// Entropy returns the Shannon entropy in nats. Zero probabilities contribute
// nothing.
func Entropy(p []float64) float64 {
	var h float64
	for _, v := range p {
		if v > 0 {
			h -= v * math.Log(v)
		}
	}
	return h
}

// Top2Gap returns the difference between the two largest probabilities, or
// the largest alone when there is a single value.
func Top2Gap(p []float64) float64 {
	switch len(p) {
	case 0:
		return 0
	case 1:
		return p[0]
	}
	first, second := math.Inf(-1), math.Inf(-1)
	for _, v := range p {
		switch {
		case v > first:
			first, second = v, first
		case v > second:
			second = v
		}
	}
	return first - second
}
