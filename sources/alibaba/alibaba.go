package alibaba

import (
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/bulkmart/go-aggregator/normalize"
	"github.com/bulkmart/go-aggregator/request"
	"github.com/bulkmart/go-aggregator/sources"
	"github.com/bulkmart/go-aggregator/types"
	"github.com/bulkmart/go-aggregator/utils"
)

const (
	baseURL = "https://www.alibaba.com"
	// Rate-sensitive platform, keep static pagination short
	maxPages = 5
)

var searchTemplates = []string{
	baseURL + "/trade/search?SearchText=%s&page=%d",
	baseURL + "/products/%s.html?page=%d",
}

var detailHrefRe = regexp.MustCompile(`(?:/product-detail/|/offer/)[^"'\s]+`)
var embeddedDataRe = regexp.MustCompile(`window\.__page__data(?:_sse10)?\s*=\s*(\{.+?\});?\s*</script>`)

// Adapter scrapes alibaba.com search results. MOQ presence is a correctness
// gate here: a listing with no discernible minimum order is dropped.
type Adapter struct {
	static     request.PageFetcher
	rendered   request.PageFetcher
	minHits    int
	requireMoq bool
}

func New(appC *types.Config) *Adapter {
	return &Adapter{
		static:     request.NewStaticFetcher(appC.ConfigData.FetchTimeout),
		rendered:   request.NewRenderedFetcher(appC.ConfigData.FetchTimeout + 15),
		minHits:    appC.ConfigData.HeadlessMinHits,
		requireMoq: true,
	}
}

func (a *Adapter) Platform() types.Platform {
	return types.PlatformAlibaba
}

func (a *Adapter) Fetch(query string, limit int, opts *types.FetchOptions) ([]*types.ExternalListing, error) {
	if opts == nil {
		opts = &types.FetchOptions{}
	}
	items, err := sources.RunStrategies(a.Platform(), a.fetchStatic, a.fetchRendered, query, limit, a.minHits, opts)
	if err != nil {
		return nil, err
	}
	items = a.applyMoqGate(items, opts)
	if opts.UpgradeImages {
		a.upgradeImages(items, opts)
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (a *Adapter) fetchStatic(query string, limit int, opts *types.FetchOptions) (items []*types.ExternalListing, blocked bool) {
	seen := make(map[string]bool)
	for page := 1; page <= maxPages && len(items) < limit; page++ {
		pageItems, pageBlocked := a.fetchOnePage(a.static, query, page, opts)
		if pageBlocked {
			return items, true
		}
		// A page that yields nothing new means pagination is exhausted
		added := 0
		for _, l := range pageItems {
			if seen[l.URL] {
				continue
			}
			seen[l.URL] = true
			items = append(items, l)
			added++
		}
		if added == 0 {
			break
		}
		request.PageSleep()
	}
	return items, false
}

func (a *Adapter) fetchRendered(query string, limit int, opts *types.FetchOptions) (items []*types.ExternalListing, blocked bool) {
	// Rendering is expensive: a single scrolled page usually carries more
	// cards than several static pages
	return a.fetchOnePage(a.rendered, query, 1, opts)
}

func (a *Adapter) fetchOnePage(fetcher request.PageFetcher, query string, page int, opts *types.FetchOptions) (items []*types.ExternalListing, blocked bool) {
	for _, template := range searchTemplates {
		pageURL := fmt.Sprintf(template, url.QueryEscape(query), page)
		resp := fetcher.GetPage(pageURL)
		if opts.Debug {
			utils.PrintResponseDetails(resp.Status, fmt.Sprintf("ALIBABA_PAGE: (%s) status %d, %d bytes", pageURL, resp.Status, len(resp.Content)))
		}
		if resp.Blocked {
			return nil, true
		}
		if !request.IsSuccess(resp.Status) || resp.Content == "" {
			continue
		}
		items = a.parsePage(resp.Content, opts)
		if len(items) > 0 {
			return items, false
		}
	}
	return items, false
}

// parsePage chains the extraction tiers: structured cards, permissive
// anchor scan, embedded script data. Each tier runs only when the previous
// produced nothing.
func (a *Adapter) parsePage(content string, opts *types.FetchOptions) []*types.ExternalListing {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		log.Printf("ALIBABA_PARSEERR: %v\n", err)
		return nil
	}

	items := a.parseCards(doc)
	if len(items) > 0 {
		if opts.Debug {
			log.Printf("ALIBABA_EXTRACT: card selectors fired, %d items\n", len(items))
		}
		return items
	}

	items = a.parseAnchors(doc)
	if len(items) > 0 {
		if opts.Debug {
			log.Printf("ALIBABA_EXTRACT: anchor fallback fired, %d items\n", len(items))
		}
		return items
	}

	items = a.parseEmbeddedData(content)
	if len(items) > 0 && opts.Debug {
		log.Printf("ALIBABA_EXTRACT: embedded data fallback fired, %d items\n", len(items))
	}
	return items
}

func (a *Adapter) parseCards(doc *goquery.Document) []*types.ExternalListing {
	items := make([]*types.ExternalListing, 0)
	doc.Find(".fy23-search-card, .organic-list-offer-outter, .J-offer-wrapper").Each(func(i int, card *goquery.Selection) {
		anchor := card.Find("a[href*='product-detail'], a.elements-title-normal").First()
		href, ok := anchor.Attr("href")
		if !ok {
			return
		}
		listing := a.newListing(href)
		if listing == nil {
			return
		}

		listing.Title = strings.TrimSpace(anchor.AttrOr("title", anchor.Text()))
		if listing.Title == "" {
			listing.Title = strings.TrimSpace(card.Find(".search-card-e-title, h2").First().Text())
		}

		priceText := strings.TrimSpace(card.Find(".search-card-e-price-main, .elements-offer-price-normal").First().Text())
		listing.Price = priceText
		listing.PriceMin, listing.PriceMax, listing.Currency = normalize.ExtractPrice(priceText)

		moqText := strings.TrimSpace(card.Find(".search-card-e-moq, .element-offer-minorder-normal").First().Text())
		if moqText == "" {
			moqText = card.Text()
		}
		listing.Moq = moqText
		listing.MoqValue = normalize.ExtractMoq(moqText)

		listing.StoreName = strings.TrimSpace(card.Find(".search-card-e-company, .organic-list-offer__seller").First().Text())

		if src, ok := cardImage(card); ok {
			if abs, ok := normalize.AbsoluteImageURL(src, baseURL); ok {
				listing.Image = abs
			}
		}
		items = append(items, listing)
	})
	return items
}

// Looser heuristic: any anchor whose href looks like a detail page
func (a *Adapter) parseAnchors(doc *goquery.Document) []*types.ExternalListing {
	items := make([]*types.ExternalListing, 0)
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(i int, anchor *goquery.Selection) {
		href, _ := anchor.Attr("href")
		if !detailHrefRe.MatchString(href) {
			return
		}
		listing := a.newListing(href)
		if listing == nil || seen[listing.URL] {
			return
		}
		title := strings.TrimSpace(anchor.AttrOr("title", anchor.Text()))
		if title == "" {
			return
		}
		listing.Title = title
		surrounding := anchor.Parent().Text()
		listing.Price = strings.TrimSpace(surrounding)
		listing.PriceMin, listing.PriceMax, listing.Currency = normalize.ExtractPrice(surrounding)
		listing.Moq = surrounding
		listing.MoqValue = normalize.ExtractMoq(surrounding)
		seen[listing.URL] = true
		items = append(items, listing)
	})
	return items
}

// Last resort: listing payloads embedded for the client-side renderer
func (a *Adapter) parseEmbeddedData(content string) []*types.ExternalListing {
	m := embeddedDataRe.FindStringSubmatch(content)
	if m == nil {
		return nil
	}
	offers := parseOffersJSON(m[1])
	items := make([]*types.ExternalListing, 0, len(offers))
	for _, offer := range offers {
		listing := a.newListing(offer.URL)
		if listing == nil || offer.Title == "" {
			continue
		}
		listing.Title = offer.Title
		listing.Price = offer.Price
		listing.PriceMin, listing.PriceMax, listing.Currency = normalize.ExtractPrice(offer.Price)
		listing.Moq = offer.Moq
		listing.MoqValue = normalize.ExtractMoq(offer.Moq)
		if abs, ok := normalize.AbsoluteImageURL(offer.Image, baseURL); ok {
			listing.Image = abs
		}
		items = append(items, listing)
	}
	return items
}

func (a *Adapter) newListing(href string) *types.ExternalListing {
	abs, ok := normalize.AbsoluteURL(href, baseURL)
	if !ok {
		return nil
	}
	clean := normalize.CleanURL(abs)
	if !strings.Contains(clean, "alibaba.com") {
		return nil
	}
	return &types.ExternalListing{
		Platform: types.PlatformAlibaba,
		URL:      clean,
	}
}

// MOQ presence is platform business logic on alibaba: wholesale-only
// listings without a minimum order are not poolable
func (a *Adapter) applyMoqGate(items []*types.ExternalListing, opts *types.FetchOptions) []*types.ExternalListing {
	if !a.requireMoq {
		return items
	}
	out := make([]*types.ExternalListing, 0, len(items))
	for _, l := range items {
		if l.MoqValue == nil {
			if opts.Debug {
				log.Printf("ALIBABA_MOQGATE: dropped %s (no moq)\n", l.URL)
			}
			continue
		}
		out = append(out, l)
	}
	return out
}

// upgradeImages visits detail pages to replace missing thumbnails with the
// main product image, and fills the spec-table attributes along the way
func (a *Adapter) upgradeImages(items []*types.ExternalListing, opts *types.FetchOptions) {
	for _, l := range items {
		if l.Image != "" && len(l.Attributes) > 0 {
			continue
		}
		if err := a.Enrich(l, opts); err != nil && opts.Debug {
			log.Printf("ALIBABA_ENRICHSKIP: (%s) %v\n", l.URL, err)
		}
		request.PageSleep()
	}
}

// Enrich re-scrapes one detail page to fill image, attributes and any
// price/moq fields the search card did not carry
func (a *Adapter) Enrich(l *types.ExternalListing, opts *types.FetchOptions) error {
	resp := a.static.GetPage(l.URL)
	if resp.Blocked {
		return sources.ErrBlocked
	}
	if !request.IsSuccess(resp.Status) {
		return fmt.Errorf("ALIBABA_DETAILERR: (%s) status %d", l.URL, resp.Status)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.Content))
	if err != nil {
		return fmt.Errorf("ALIBABA_DETAILPARSEERR: (%s) %v", l.URL, err)
	}
	if l.Image == "" {
		src, ok := doc.Find("meta[property='og:image']").First().Attr("content")
		if !ok {
			src, ok = doc.Find(".main-image img, #J-dcv-image-trigger img").First().Attr("src")
		}
		if ok {
			if abs, ok := normalize.AbsoluteImageURL(src, baseURL); ok {
				l.Image = abs
			}
		}
	}
	if attrs := parseSpecTable(doc); len(attrs) > 0 {
		l.Attributes = attrs
	}
	if l.PriceMin == nil {
		priceText := strings.TrimSpace(doc.Find(".price, .product-price, .price-item").First().Text())
		if priceText != "" {
			l.Price = priceText
			l.PriceMin, l.PriceMax, l.Currency = normalize.ExtractPrice(priceText)
		}
	}
	if l.MoqValue == nil {
		moqText := strings.TrimSpace(doc.Find(".moq, .ma-min-order").First().Text())
		if moqText != "" {
			l.Moq = moqText
			l.MoqValue = normalize.ExtractMoq(moqText)
		}
	}
	return nil
}

// parseSpecTable reads the product attribute table on a detail page
func parseSpecTable(doc *goquery.Document) map[string]string {
	attrs := make(map[string]string)
	doc.Find(".do-entry-item, .attribute-item, table.attributes-table tr").Each(func(i int, row *goquery.Selection) {
		key := strings.TrimSpace(row.Find(".attr-name, th, .left").First().Text())
		val := strings.TrimSpace(row.Find(".attr-value, td, .right").First().Text())
		if key != "" && val != "" {
			attrs[key] = val
		}
	})
	return attrs
}

func cardImage(card *goquery.Selection) (string, bool) {
	img := card.Find("img").First()
	for _, attr := range []string{"data-src", "data-image", "src"} {
		if src, ok := img.Attr(attr); ok && src != "" {
			return src, true
		}
	}
	return "", false
}

type embeddedOffer struct {
	URL   string
	Title string
	Price string
	Moq   string
	Image string
}

// The embedded payload shape shifts with frontend releases; pull the few
// stable fields with regexes instead of binding the whole document
var offerFieldRe = regexp.MustCompile(`"productUrl"\s*:\s*"([^"]+)"[^}]*?"title"\s*:\s*"((?:[^"\\]|\\.)*)"[^}]*?(?:"price"\s*:\s*"([^"]*)")?[^}]*?(?:"moq"\s*:\s*"([^"]*)")?[^}]*?(?:"image"\s*:\s*"([^"]*)")?`)

func parseOffersJSON(blob string) []embeddedOffer {
	matches := offerFieldRe.FindAllStringSubmatch(blob, -1)
	offers := make([]embeddedOffer, 0, len(matches))
	for _, m := range matches {
		title, err := strconv.Unquote(`"` + m[2] + `"`)
		if err != nil {
			title = m[2]
		}
		offers = append(offers, embeddedOffer{
			URL:   strings.ReplaceAll(m[1], `\/`, "/"),
			Title: title,
			Price: m[3],
			Moq:   m[4],
			Image: strings.ReplaceAll(m[5], `\/`, "/"),
		})
	}
	return offers
}
