package tfidf

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var corpus = []string{
	"ElementType: wall GlobalId: w1 Name: Basic Wall FireRating: EI60",
	"ElementType: door GlobalId: d1 Name: Entrance Door FireRating: EI30",
	"ElementType: window GlobalId: x1 Name: Ribbon Window ThermalTransmittance: 0.8",
}

func TestPrepareRejectsEmptyCorpus(t *testing.T) {
	e := NewEmbedder()
	assert.Error(t, e.Prepare(nil))
	assert.Error(t, e.Prepare([]string{"the and of"}))
}

func TestEmbedRequiresPrepare(t *testing.T) {
	_, err := NewEmbedder().Embed(context.Background(), "wall")
	assert.Error(t, err)
}

func TestEmbedIsNormalizedAndDeterministic(t *testing.T) {
	e := NewEmbedder()
	require.NoError(t, e.Prepare(corpus))
	assert.Positive(t, e.Dimension())

	v1, err := e.Embed(context.Background(), "entrance door fire rating")
	require.NoError(t, err)
	assert.Len(t, v1, e.Dimension())

	norm := 0.0
	for _, x := range v1 {
		norm += x * x
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)

	other := NewEmbedder()
	require.NoError(t, other.Prepare(corpus))
	v2, err := other.Embed(context.Background(), "entrance door fire rating")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
}

func TestEmbedUnknownTermsGivesZeroVector(t *testing.T) {
	e := NewEmbedder()
	require.NoError(t, e.Prepare(corpus))
	v, err := e.Embed(context.Background(), "zeppelin")
	require.NoError(t, err)
	for _, x := range v {
		assert.Zero(t, x)
	}
}

func TestEmbedHonoursContext(t *testing.T) {
	e := NewEmbedder()
	require.NoError(t, e.Prepare(corpus))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Embed(ctx, "wall")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTokenizeSplitsCamelCase(t *testing.T) {
	e := NewEmbedder()
	toks := e.tokenize("ThermalTransmittance: 0.8 EI60")
	assert.Contains(t, toks, "thermal")
	assert.Contains(t, toks, "transmittance")
	assert.Contains(t, toks, "thermaltransmittance")
	assert.Contains(t, toks, "0.8")
	assert.Contains(t, toks, "ei60")
}

func TestSplitCamel(t *testing.T) {
	assert.Equal(t, []string{"Fire", "Rating"}, splitCamel("FireRating"))
	assert.Equal(t, []string{"MMI"}, splitCamel("MMI"))
	assert.Equal(t, []string{"wall"}, splitCamel("wall"))
}
