package mapsafe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	params := map[string]any{
		"n_predict":   float64(50),
		"temperature": 1,
		"language":    "en",
		"special":     true,
		"nothing":     nil,
	}

	assert.Equal(t, 50, Get(params, "n_predict", 512))
	assert.InDelta(t, 1.0, Get(params, "temperature", 0.8), 1e-9)
	assert.Equal(t, "en", Get(params, "language", ""))
	assert.True(t, Get(params, "special", false))

	assert.Equal(t, 512, Get(params, "missing", 512))
	assert.Equal(t, 7, Get(params, "nothing", 7))
	assert.Equal(t, 3, Get(params, "language", 3), "type mismatch falls back to default")
}

func TestGet_NilMap(t *testing.T) {
	assert.Equal(t, "x", Get[string](nil, "k", "x"))
}

func TestHas(t *testing.T) {
	params := map[string]any{"a": 1, "b": nil}

	assert.True(t, Has(params, "a"))
	assert.False(t, Has(params, "b"))
	assert.False(t, Has(params, "c"))
}
