package detect

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/searchscout/searchscout/internal/pattern"
)

func TestCMS_GeneratorMatch(t *testing.T) {
	t.Parallel()
	c := NewCMS(nil)

	html := `<html><head><meta name="generator" content="WordPress 6.4"></head><body></body></html>`
	candidates := c.Detect(artifactWithBody(html))
	require.Len(t, candidates, 1)
	got := candidates[0]
	require.Equal(t, pattern.DetectorCMS, got.Source)
	require.Equal(t, pattern.TypeQueryParam, got.Type)
	require.InDelta(t, 0.95, got.RawScore, 1e-9)
	require.Equal(t, "wordpress", got.Evidence.CMS)
	require.Equal(t, "/?s={query}", got.Evidence.Template)
}

func TestCMS_AssetMarkerMatch(t *testing.T) {
	t.Parallel()
	c := NewCMS(nil)

	artifact := artifactWithBody(`<html><body><img src="https://cdn.shopify.com/s/files/x.png"></body></html>`)
	candidates := c.Detect(artifact)
	require.Len(t, candidates, 1)
	require.Equal(t, "shopify", candidates[0].Evidence.CMS)
}

func TestCMS_MarkerInNetworkRequests(t *testing.T) {
	t.Parallel()
	c := NewCMS(nil)

	artifact := pattern.Artifact{
		Body: []byte("<html><body>store</body></html>"),
		Requests: []pattern.NetworkRequest{
			{URL: "https://example.com/static/frontend/Vendor/theme/en_US/mage/bootstrap.js"},
		},
	}
	candidates := c.Detect(artifact)
	require.Len(t, candidates, 1)
	require.Equal(t, "magento", candidates[0].Evidence.CMS)
}

func TestCMS_NoMatch(t *testing.T) {
	t.Parallel()
	c := NewCMS(nil)
	require.Empty(t, c.Detect(artifactWithBody("<html><body>hand rolled site</body></html>")))
	require.Empty(t, c.Detect(pattern.Artifact{}))
}

func TestParseRegistry(t *testing.T) {
	t.Parallel()

	yaml := `
fingerprints:
  - name: acme-cms
    generator: acme
    pattern_type: query_param
    template: "/search?q={query}"
    score: 0.92
`
	reg, err := ParseRegistry([]byte(yaml))
	require.NoError(t, err)
	require.Equal(t, 1, reg.Len())

	fp, ok := reg.Lookup("Acme CMS 2.0", "")
	require.True(t, ok)
	require.Equal(t, "acme-cms", fp.Name)
	require.InDelta(t, 0.92, fp.Score, 1e-9)
}

func TestParseRegistry_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
	}{
		{name: "missing name", yaml: "fingerprints:\n  - generator: x\n    pattern_type: query_param\n"},
		{name: "no matchers", yaml: "fingerprints:\n  - name: x\n    pattern_type: query_param\n"},
		{name: "bad type", yaml: "fingerprints:\n  - name: x\n    generator: x\n    pattern_type: nonsense\n"},
		{name: "bad yaml", yaml: "fingerprints: ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseRegistry([]byte(tt.yaml))
			require.Error(t, err)
		})
	}
}
