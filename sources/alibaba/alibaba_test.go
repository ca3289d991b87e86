package alibaba

import (
	"strings"
	"testing"

	"github.com/bulkmart/go-aggregator/request"
	"github.com/bulkmart/go-aggregator/types"
	"github.com/stretchr/testify/assert"
)

const cardsFixture = `
<html><body>
<div class="fy23-search-card">
  <a href="/product-detail/fly-ash-brick-machine_1600234.html?spm=a2700" title="Fly Ash Brick Making Machine Automatic"></a>
  <div class="search-card-e-price-main">US$12,500.00-15,800.00</div>
  <div class="search-card-e-moq">MOQ: 1 sets</div>
  <div class="search-card-e-company">Henan Machinery Co., Ltd.</div>
  <img data-src="//sc04.alicdn.com/kf/brick.jpg"/>
</div>
<div class="fy23-search-card">
  <a href="/product-detail/clay-brick-machine_1600777.html" title="Clay Brick Machine"></a>
  <div class="search-card-e-price-main">US$9,000.00</div>
  <div class="search-card-e-moq">negotiable</div>
</div>
</body></html>`

const anchorsFixture = `
<html><body>
<div><a href="/product-detail/interlocking-machine_555.html">Interlocking Brick Machine</a>
<span>US$4,200.00 MOQ 1 sets</span></div>
<a href="/about-us.html">About</a>
</body></html>`

type fixtureFetcher struct {
	content string
	blocked bool
	calls   int
}

func (f *fixtureFetcher) GetPage(url string) request.WebResponse {
	f.calls++
	status := 200
	if f.blocked {
		status = 429
	}
	return request.WebResponse{URL: url, Status: status, Content: f.content, Blocked: f.blocked}
}

func newTestAdapter(content string) (*Adapter, *fixtureFetcher) {
	f := &fixtureFetcher{content: content}
	return &Adapter{static: f, rendered: f, minHits: 1, requireMoq: true}, f
}

func TestFetchParsesCards(t *testing.T) {
	adapter, _ := newTestAdapter(cardsFixture)
	items, err := adapter.Fetch("brick making machine", 10, &types.FetchOptions{})
	assert.NoError(t, err)

	// Second card has no extractable MOQ and is gated out
	assert.Equal(t, 1, len(items))
	l := items[0]
	assert.Equal(t, types.PlatformAlibaba, l.Platform)
	assert.Equal(t, "https://www.alibaba.com/product-detail/fly-ash-brick-machine_1600234.html", l.URL)
	assert.Equal(t, "Fly Ash Brick Making Machine Automatic", l.Title)
	if assert.NotNil(t, l.PriceMin) {
		assert.InDelta(t, 12500.0, *l.PriceMin, 0.001)
	}
	if assert.NotNil(t, l.PriceMax) {
		assert.InDelta(t, 15800.0, *l.PriceMax, 0.001)
	}
	assert.Equal(t, "USD", l.Currency)
	if assert.NotNil(t, l.MoqValue) {
		assert.Equal(t, 1, *l.MoqValue)
	}
	assert.Equal(t, "Henan Machinery Co., Ltd.", l.StoreName)
	assert.Equal(t, "https://sc04.alicdn.com/kf/brick.jpg", l.Image)
}

func TestFetchAnchorFallback(t *testing.T) {
	adapter, _ := newTestAdapter(anchorsFixture)
	items, err := adapter.Fetch("interlocking machine", 10, &types.FetchOptions{})
	assert.NoError(t, err)

	assert.Equal(t, 1, len(items))
	assert.Equal(t, "https://www.alibaba.com/product-detail/interlocking-machine_555.html", items[0].URL)
	assert.Equal(t, "Interlocking Brick Machine", items[0].Title)
	if assert.NotNil(t, items[0].MoqValue) {
		assert.Equal(t, 1, *items[0].MoqValue)
	}
}

func TestFetchBlocked(t *testing.T) {
	adapter, fetcher := newTestAdapter("")
	fetcher.blocked = true
	items, err := adapter.Fetch("brick machine", 10, &types.FetchOptions{})
	assert.Error(t, err)
	assert.Empty(t, items)
}

func TestMoqGateDisabled(t *testing.T) {
	adapter, _ := newTestAdapter(cardsFixture)
	adapter.requireMoq = false
	items, err := adapter.Fetch("brick machine", 10, &types.FetchOptions{})
	assert.NoError(t, err)
	assert.Equal(t, 2, len(items))
}

func TestFetchRespectsLimit(t *testing.T) {
	var cards strings.Builder
	cards.WriteString("<html><body>")
	for i := 0; i < 6; i++ {
		cards.WriteString(`<div class="fy23-search-card">
  <a href="/product-detail/machine_` + string(rune('a'+i)) + `.html" title="Machine ` + string(rune('A'+i)) + `"></a>
  <div class="search-card-e-price-main">US$100.00</div>
  <div class="search-card-e-moq">MOQ: 2 sets</div>
</div>`)
	}
	cards.WriteString("</body></html>")

	adapter, _ := newTestAdapter(cards.String())
	items, err := adapter.Fetch("machine", 3, &types.FetchOptions{})
	assert.NoError(t, err)
	assert.Equal(t, 3, len(items))
}
