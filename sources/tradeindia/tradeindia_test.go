package tradeindia

import (
	"strings"
	"testing"

	"github.com/bulkmart/go-aggregator/request"
	"github.com/bulkmart/go-aggregator/types"
	"github.com/stretchr/testify/assert"
)

const searchFixture = `
<html><body>
<div class="product-card">
  <h3><a href="/products/ms-steel-pipe-4721.html">MS Steel Pipe</a></h3>
  <div class="price">Rs 52,000 / Ton</div>
  <div class="company-name">Bharat Tubes</div>
</div>
</body></html>`

const detailFixture = `
<html><head>
<meta property="og:image" content="https://cdn.tradeindia.com/img/ms-steel-pipe.jpg"/>
</head><body>
<table class="product-specs">
<tr><td>Material</td><td>Mild Steel</td></tr>
<tr><td>Shape</td><td>Round</td></tr>
</table>
</body></html>`

// fixtureFetcher routes by url substring so search and detail pages can
// serve different content in one test
type fixtureFetcher struct {
	pages map[string]string
	calls int
}

func (f *fixtureFetcher) GetPage(url string) request.WebResponse {
	f.calls++
	for marker, content := range f.pages {
		if strings.Contains(url, marker) {
			return request.WebResponse{URL: url, Status: 200, Content: content}
		}
	}
	return request.WebResponse{URL: url, Status: 404}
}

func newTestAdapter(pages map[string]string) (*Adapter, *fixtureFetcher) {
	f := &fixtureFetcher{pages: pages}
	return &Adapter{static: f, rendered: f, minHits: 1}, f
}

func TestFetchParsesCards(t *testing.T) {
	adapter, _ := newTestAdapter(map[string]string{"search.html": searchFixture})
	items, err := adapter.Fetch("steel pipe", 10, &types.FetchOptions{})
	assert.NoError(t, err)

	assert.Equal(t, 1, len(items))
	l := items[0]
	assert.Equal(t, types.PlatformTradeindia, l.Platform)
	assert.Equal(t, "https://www.tradeindia.com/products/ms-steel-pipe-4721.html", l.URL)
	assert.Equal(t, "MS Steel Pipe", l.Title)
	assert.Equal(t, "Bharat Tubes", l.StoreName)
	assert.Empty(t, l.Image)
}

func TestFetchUpgradeImagesEnriches(t *testing.T) {
	adapter, fetcher := newTestAdapter(map[string]string{
		"search.html": searchFixture,
		"/products/":  detailFixture,
	})
	items, err := adapter.Fetch("steel pipe", 10, &types.FetchOptions{UpgradeImages: true})
	assert.NoError(t, err)

	assert.Equal(t, 1, len(items))
	l := items[0]
	assert.Equal(t, "https://cdn.tradeindia.com/img/ms-steel-pipe.jpg", l.Image)
	assert.Equal(t, "Mild Steel", l.Attributes["Material"])
	assert.Equal(t, "Round", l.Attributes["Shape"])
	assert.True(t, fetcher.calls >= 2)
}
