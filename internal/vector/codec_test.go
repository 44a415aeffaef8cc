package vector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustCodec(t *testing.T) *Codec {
	c, err := NewCodec(DefaultGamma)
	require.NoError(t, err)
	return c
}

func TestNewCodecRejectsBadGamma(t *testing.T) {
	for _, gamma := range []float64{0, -0.5, 1.5, math.NaN(), math.Inf(1)} {
		_, err := NewCodec(gamma)
		require.Error(t, err, "gamma=%v", gamma)
	}
}

func TestEncodeRoundTripExtremes(t *testing.T) {
	c := mustCodec(t)
	data, err := c.Encode([]float32{-2, 0, 2}, 1)
	require.NoError(t, err)
	out := c.Decode(data)
	require.InDelta(t, -1, out[0], 1e-6)
	require.InDelta(t, 0, out[1], 1e-6)
	require.InDelta(t, 1, out[2], 1e-6)
}

func TestEncodeRangeAndSign(t *testing.T) {
	c := mustCodec(t)
	in := []float32{-3.5, -1, -0.25, -0.001, 0, 0.001, 0.25, 1, 3.5}
	data, err := c.Encode(in, 0.95)
	require.NoError(t, err)
	for _, b := range data {
		require.NotEqual(t, byte(0x80), b, "must never emit -128")
	}
	out := c.Decode(data)
	for i := range in {
		require.LessOrEqual(t, out[i], float32(1))
		require.GreaterOrEqual(t, out[i], float32(-1))
		switch {
		case in[i] > 0:
			require.Greater(t, out[i], float32(0))
		case in[i] < 0:
			require.Less(t, out[i], float32(0))
		default:
			require.Equal(t, float32(0), out[i])
		}
	}
	// companding is lossy but strictly monotonic for separated inputs
	for i := 1; i < len(out); i++ {
		require.Greater(t, out[i], out[i-1])
	}
}

func TestEncodeAllZeros(t *testing.T) {
	c := mustCodec(t)
	data, err := c.Encode(make([]float32, 8), 0.95)
	require.NoError(t, err)
	for _, b := range data {
		require.Equal(t, byte(0), b)
	}
}

func TestEncodeRejectsNonFinite(t *testing.T) {
	c := mustCodec(t)
	_, err := c.Encode([]float32{1, float32(math.NaN()), 2}, 0.95)
	require.Error(t, err)
	_, err = c.Encode([]float32{float32(math.Inf(1))}, 0.95)
	require.Error(t, err)
}

func TestEncodeRejectsBadPercentile(t *testing.T) {
	c := mustCodec(t)
	for _, p := range []float64{-0.1, 1.1, math.NaN(), math.Inf(-1)} {
		_, err := c.Encode([]float32{1, 2}, p)
		require.Error(t, err, "percentile=%v", p)
	}
}

func TestEncodePercentileResistsOutliers(t *testing.T) {
	c := mustCodec(t)
	// one huge outlier, bulk around 0.5; with a true-max scale the bulk
	// would collapse into a handful of codes
	in := make([]float32, 100)
	for i := range in {
		in[i] = 0.5
	}
	in[0] = 1000
	data, err := c.Encode(in, 0.95)
	require.NoError(t, err)
	out := c.Decode(data)
	require.InDelta(t, 1, out[1], 0.01, "bulk values sit at the percentile scale")
}

func TestDecodeAcceptsUnsignedWraparound(t *testing.T) {
	c := mustCodec(t)
	// 0x81 = 129 unsigned = -127 signed
	out := c.Decode([]byte{0x81, 0x7f, 0x00})
	require.InDelta(t, -1, out[0], 1e-6)
	require.InDelta(t, 1, out[1], 1e-6)
	require.InDelta(t, 0, out[2], 1e-6)
}

func TestCosineSimilarity(t *testing.T) {
	v := []float32{1, 2, 3}
	got, err := CosineSimilarity(v, v)
	require.NoError(t, err)
	require.InDelta(t, 1, got, 1e-6)

	scaled := []float32{2.5, 5, 7.5}
	got, err = CosineSimilarity(v, scaled)
	require.NoError(t, err)
	require.InDelta(t, 1, got, 1e-6)

	neg := []float32{-1, -2, -3}
	got, err = CosineSimilarity(v, neg)
	require.NoError(t, err)
	require.InDelta(t, -1, got, 1e-6)

	got, err = CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	require.InDelta(t, 0, got, 1e-6)
}

func TestCosineSimilarityErrors(t *testing.T) {
	_, err := CosineSimilarity([]float32{1, 2}, []float32{1})
	require.Error(t, err)
	_, err = CosineSimilarity(nil, nil)
	require.Error(t, err)

	got, err := CosineSimilarity([]float32{0, 0}, []float32{1, 2})
	require.NoError(t, err)
	require.Equal(t, float32(0), got)
}
