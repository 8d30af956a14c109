package embed

import "math"

// HashEmbedding derives a deterministic unit vector from text. Each rune c at
// position i adds sin(c*(i+1)) to slot (c+i) mod dim. Empty text yields the
// zero vector.
func HashEmbedding(text string, dim int) []float32 {
	if dim <= 0 {
		return nil
	}
	acc := make([]float64, dim)
	i := 0
	for _, r := range text {
		c := int(r)
		acc[(c+i)%dim] += math.Sin(float64(c) * float64(i+1))
		i++
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, dim)
	if norm == 0 {
		return out
	}
	for j, v := range acc {
		out[j] = float32(v / norm)
	}
	return out
}
