package browser

import (
	"context"
	"os"
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-block/internal/block/domain"
)

func TestResourceTypeFor(t *testing.T) {
	tests := map[proto.NetworkResourceType]domain.ResourceType{
		proto.NetworkResourceTypeDocument:   domain.ResourceMainFrame,
		proto.NetworkResourceTypeXHR:        domain.ResourceXMLHTTPRequest,
		proto.NetworkResourceTypeFetch:      domain.ResourceXMLHTTPRequest,
		proto.NetworkResourceTypeMedia:      domain.ResourceMedia,
		proto.NetworkResourceTypeImage:      domain.ResourceImage,
		proto.NetworkResourceTypeScript:     domain.ResourceScript,
		proto.NetworkResourceTypeStylesheet: domain.ResourceOther,
		proto.NetworkResourceTypeFont:       domain.ResourceOther,
	}
	for in, want := range tests {
		assert.Equal(t, want, resourceTypeFor(in), "resource type %s", in)
	}
}

type recordingMatcher struct {
	gotURL  string
	gotType domain.ResourceType
	result  domain.BlockDecision
}

func (m *recordingMatcher) Match(rawURL string, rt domain.ResourceType) domain.BlockDecision {
	m.gotURL, m.gotType = rawURL, rt
	return m.result
}

func TestGateway_Decide(t *testing.T) {
	m := &recordingMatcher{result: domain.BlockDecision{Blocked: true, RuleID: 3}}
	g := &Gateway{matcher: m}

	d := g.decide("https://www.youtube.com/", proto.NetworkResourceTypeDocument)
	assert.True(t, d.Blocked)
	assert.Equal(t, "https://www.youtube.com/", m.gotURL)
	assert.Equal(t, domain.ResourceMainFrame, m.gotType)

	assert.False(t, (&Gateway{}).decide("https://x/", proto.NetworkResourceTypeImage).Blocked, "no matcher allows everything")
}

func TestNoopInventory(t *testing.T) {
	tabs, err := NoopInventory{}.Tabs(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, tabs)
	assert.NoError(t, NoopInventory{}.Reload(context.Background(), "x"))
}

// TestGateway_RemoteBrowser needs a running Chromium with remote debugging,
// e.g. BLOCK_TEST_BROWSER_URL=127.0.0.1:9222.
func TestGateway_RemoteBrowser(t *testing.T) {
	u := os.Getenv("BLOCK_TEST_BROWSER_URL")
	if u == "" || testing.Short() {
		t.Skip("BLOCK_TEST_BROWSER_URL not set")
	}
	ctx := context.Background()
	g, err := Connect(ctx, Options{ControlURL: u})
	require.NoError(t, err)
	defer func() { _ = g.Close() }()

	require.NoError(t, g.Intercept())
	require.NoError(t, g.Intercept(), "second call is a no-op")

	tabs, err := g.Tabs(ctx)
	require.NoError(t, err)
	for _, tab := range tabs {
		assert.NotEmpty(t, tab.ID)
	}
}
