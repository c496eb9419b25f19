package detect

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/searchscout/searchscout/internal/pattern"
)

func artifactWithBody(body string) pattern.Artifact {
	return pattern.Artifact{
		Domain:     "example.com",
		FinalURL:   "https://example.com/",
		StatusCode: 200,
		Body:       []byte(body),
	}
}

func TestDOM_SearchForm(t *testing.T) {
	t.Parallel()
	d := NewDOM()

	html := `<html><body>
		<form action="/search" method="get">
			<input type="text" name="q" placeholder="Search">
			<button type="submit">Go</button>
		</form>
	</body></html>`

	candidates := d.Detect(artifactWithBody(html))
	require.Len(t, candidates, 1)
	c := candidates[0]
	require.Equal(t, pattern.DetectorDOM, c.Source)
	require.Equal(t, pattern.TypeFormSubmit, c.Type)
	require.InDelta(t, 0.7, c.RawScore, 1e-9)
	require.Equal(t, "input[name='q']", c.Evidence.Selector)
}

func TestDOM_InputWithoutForm(t *testing.T) {
	t.Parallel()
	d := NewDOM()

	html := `<html><body><div><input type="search" placeholder="Search the site"></div></body></html>`
	candidates := d.Detect(artifactWithBody(html))
	require.Len(t, candidates, 1)
	require.Equal(t, pattern.TypeClientRendered, candidates[0].Type)
	require.InDelta(t, 0.7, candidates[0].RawScore, 1e-9)
}

func TestDOM_WeakSelectorScoresLower(t *testing.T) {
	t.Parallel()
	d := NewDOM()

	html := `<html><body>
		<form action="/find"><input type="text" class="site-search-box" name="term"></form>
	</body></html>`
	candidates := d.Detect(artifactWithBody(html))
	require.Len(t, candidates, 1)
	require.Equal(t, pattern.TypeFormSubmit, candidates[0].Type)
	require.InDelta(t, 0.45, candidates[0].RawScore, 1e-9)
}

func TestDOM_QueryLink(t *testing.T) {
	t.Parallel()
	d := NewDOM()

	html := `<html><body><nav><a href="/results?q=">Search</a></nav></body></html>`
	candidates := d.Detect(artifactWithBody(html))
	require.Len(t, candidates, 1)
	require.Equal(t, pattern.TypeQueryParam, candidates[0].Type)
	require.InDelta(t, 0.4, candidates[0].RawScore, 1e-9)
	require.Equal(t, "/results?q=", candidates[0].Evidence.EndpointURL)
}

func TestDOM_IconOnlyProposesClientRendered(t *testing.T) {
	t.Parallel()
	d := NewDOM()

	html := `<html><body><header><button aria-label="Search" class="nav-toggle"></button></header></body></html>`
	candidates := d.Detect(artifactWithBody(html))
	require.Len(t, candidates, 1)
	require.Equal(t, pattern.TypeClientRendered, candidates[0].Type)
	require.InDelta(t, 0.5, candidates[0].RawScore, 1e-9)
}

func TestDOM_IconSuppressedWhenInputPresent(t *testing.T) {
	t.Parallel()
	d := NewDOM()

	html := `<html><body>
		<button class="search-toggle"></button>
		<form><input name="q"></form>
	</body></html>`
	candidates := d.Detect(artifactWithBody(html))
	require.Len(t, candidates, 1)
	require.Equal(t, pattern.TypeFormSubmit, candidates[0].Type)
}

func TestDOM_IgnoresNonSearchInputs(t *testing.T) {
	t.Parallel()
	d := NewDOM()

	html := `<html><body>
		<form action="/login">
			<input type="email" name="q">
			<input type="password" name="search">
		</form>
	</body></html>`
	require.Empty(t, d.Detect(artifactWithBody(html)))
}

func TestDOM_MalformedBodyIsNoSignal(t *testing.T) {
	t.Parallel()
	d := NewDOM()

	require.Empty(t, d.Detect(artifactWithBody("")))
	require.Empty(t, d.Detect(artifactWithBody("\x00\x01<<<not html")))
	require.Empty(t, d.Detect(artifactWithBody("plain text with no markup")))
}
