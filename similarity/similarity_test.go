package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestL2(t *testing.T) {
	a := []float64{1, 2, 3}

	assert.Equal(t, 1.0, L2(a, a))

	// Distance 5 => similarity 1/6.
	assert.InDelta(t, 1.0/6.0, L2([]float64{0, 0}, []float64{3, 4}), 1e-12)

	// Farther apart means less similar.
	assert.Greater(t, L2([]float64{0}, []float64{1}), L2([]float64{0}, []float64{2}))
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float64{1, 1}, []float64{2, 2}), 1e-12)
	assert.InDelta(t, 0.0, Cosine([]float64{1, 0}, []float64{0, 1}), 1e-12)
	assert.InDelta(t, -1.0, Cosine([]float64{1, 0}, []float64{-1, 0}), 1e-12)
	assert.Equal(t, 0.0, Cosine([]float64{0, 0}, []float64{1, 1}))
}

func TestJaroWinkler(t *testing.T) {
	assert.Equal(t, 1.0, JaroWinkler("viagra", "viagra"))
	assert.Equal(t, 0.0, JaroWinkler("abc", "xyz"))

	// Classic reference pair.
	assert.InDelta(t, 0.9611, JaroWinkler("MARTHA", "MARHTA"), 0.001)

	// Shared prefixes are boosted.
	assert.Greater(t, JaroWinkler("prefixed", "prefixes"), JaroWinkler("prefixed", "dexiferp"))
}
