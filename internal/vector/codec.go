package vector

import (
	"fmt"
	"math"
	"sort"

	appErr "github.com/xxxsen/persona/internal/pkg/errors"
)

const (
	// DefaultGamma is the companding exponent. Values below 1 expand small
	// magnitudes so that direction near zero survives 8-bit rounding.
	DefaultGamma = 0.5
	// DefaultPercentile is the magnitude percentile used as the
	// normalization scale, so a few outliers do not crush resolution.
	DefaultPercentile = 0.95

	quantLimit = 127
)

// Codec quantizes float embeddings into signed 8-bit blobs and back. The
// decoded vector restores only the companding step, not the scale: every
// downstream use is cosine similarity, which is scale-invariant.
type Codec struct {
	gamma float64
}

func NewCodec(gamma float64) (*Codec, error) {
	if math.IsNaN(gamma) || math.IsInf(gamma, 0) || gamma <= 0 || gamma > 1 {
		return nil, fmt.Errorf("gamma must be in (0, 1]: %w", appErr.ErrInvalid)
	}
	return &Codec{gamma: gamma}, nil
}

// Encode quantizes values into one signed byte per element, every output in
// [-127, 127]. The scale is the given percentile of the absolute values;
// scaled values are clamped to [-1, 1], companded with
// sign(x)*|x|^gamma and rounded to 127 levels. A non-finite input value
// fails the whole call: a NaN coming from the embedding endpoint means the
// vector is garbage, and zero-coercing a coordinate would silently skew
// every similarity computed against the stored blob.
func (c *Codec) Encode(values []float32, percentile float64) ([]byte, error) {
	if math.IsNaN(percentile) || math.IsInf(percentile, 0) || percentile < 0 || percentile > 1 {
		return nil, fmt.Errorf("percentile must be in [0, 1]: %w", appErr.ErrInvalid)
	}
	abs := make([]float64, len(values))
	for i, v := range values {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("non-finite value at index %d: %w", i, appErr.ErrInvalid)
		}
		abs[i] = math.Abs(f)
	}
	out := make([]byte, len(values))
	if len(values) == 0 {
		return out, nil
	}
	sort.Float64s(abs)
	scale := abs[int(percentile*float64(len(abs)-1)+0.5)]
	if scale == 0 {
		return out, nil
	}
	for i, v := range values {
		x := float64(v) / scale
		if x > 1 {
			x = 1
		} else if x < -1 {
			x = -1
		}
		compressed := math.Copysign(math.Pow(math.Abs(x), c.gamma), x)
		q := math.Round(compressed * quantLimit)
		if q > quantLimit {
			q = quantLimit
		} else if q < -quantLimit {
			// -128 is never emitted; the code range stays symmetric.
			q = -quantLimit
		}
		out[i] = byte(int8(q))
	}
	return out, nil
}

// Decode inverts the companding step, returning values in [-1, 1]. Bytes
// above 127 are treated as the unsigned image of a negative code
// (value - 256), so raw-byte producers of either signedness interoperate.
func (c *Codec) Decode(data []byte) []float32 {
	out := make([]float32, len(data))
	inv := 1 / c.gamma
	for i, b := range data {
		v := int(b)
		if v > quantLimit {
			v -= 256
		}
		n := float64(v) / quantLimit
		out[i] = float32(math.Copysign(math.Pow(math.Abs(n), inv), n))
	}
	return out
}

// CosineSimilarity returns the cosine of the angle between a and b in
// [-1, 1]. A zero-norm vector yields exactly 0 instead of dividing by zero.
func CosineSimilarity(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch: %d vs %d: %w", len(a), len(b), appErr.ErrInvalid)
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("empty vector: %w", appErr.ErrInvalid)
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB))), nil
}
