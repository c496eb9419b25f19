package fetch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/searchscout/searchscout/internal/pattern"
)

func TestComposite_ProbeOnlyWhenNoPromotion(t *testing.T) {
	t.Parallel()

	probe := &Static{Artifacts: map[string]pattern.Artifact{
		"example.com": {StatusCode: 200, Body: []byte("<html><body>a long static page about nothing in particular</body></html>")},
	}}
	headless := &Static{Artifacts: map[string]pattern.Artifact{
		"example.com": {StatusCode: 200, Body: []byte("<html>rendered</html>"), UsedHeadless: true},
	}}

	c := NewComposite(probe, headless, NewPromoter(0), zap.NewNop())
	artifact, err := c.Fetch(context.Background(), "example.com")
	require.NoError(t, err)
	require.False(t, artifact.UsedHeadless)
}

func TestComposite_PromotesSPAPages(t *testing.T) {
	t.Parallel()

	probe := &Static{Artifacts: map[string]pattern.Artifact{
		"spa.example": {StatusCode: 200, Body: []byte(`<div id="root"></div>`)},
	}}
	headless := &Static{Artifacts: map[string]pattern.Artifact{
		"spa.example": {StatusCode: 200, Body: []byte("<html>rendered</html>"), UsedHeadless: true},
	}}

	c := NewComposite(probe, headless, NewPromoter(0), zap.NewNop())
	artifact, err := c.Fetch(context.Background(), "spa.example")
	require.NoError(t, err)
	require.True(t, artifact.UsedHeadless)
}

func TestComposite_FallsBackToHeadlessOnProbeError(t *testing.T) {
	t.Parallel()

	probe := &Static{Err: &pattern.FetchError{Kind: pattern.FetchNetwork, URL: "https://spa.example/"}}
	headless := &Static{Artifacts: map[string]pattern.Artifact{
		"spa.example": {StatusCode: 200, Body: []byte("<html>rendered</html>"), UsedHeadless: true},
	}}

	c := NewComposite(probe, headless, NewPromoter(0), zap.NewNop())
	artifact, err := c.Fetch(context.Background(), "spa.example")
	require.NoError(t, err)
	require.True(t, artifact.UsedHeadless)
}

func TestComposite_KeepsProbeArtifactWhenHeadlessFails(t *testing.T) {
	t.Parallel()

	probe := &Static{Artifacts: map[string]pattern.Artifact{
		"spa.example": {StatusCode: 200, Body: []byte(`<div id="app"></div>`)},
	}}
	headless := &Static{Err: &pattern.FetchError{Kind: pattern.FetchTimeout, URL: "https://spa.example/"}}

	c := NewComposite(probe, headless, NewPromoter(0), zap.NewNop())
	artifact, err := c.Fetch(context.Background(), "spa.example")
	require.NoError(t, err)
	require.False(t, artifact.UsedHeadless)
}

func TestComposite_ProbeErrorWithoutHeadlessPropagates(t *testing.T) {
	t.Parallel()

	probe := &Static{Err: &pattern.FetchError{Kind: pattern.FetchTimeout, URL: "https://down.example/"}}
	c := NewComposite(probe, nil, NewPromoter(0), zap.NewNop())
	_, err := c.Fetch(context.Background(), "down.example")
	require.Error(t, err)
	require.True(t, pattern.IsRetryable(err))
}
