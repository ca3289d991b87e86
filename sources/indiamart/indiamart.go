package indiamart

import (
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/bulkmart/go-aggregator/normalize"
	"github.com/bulkmart/go-aggregator/request"
	"github.com/bulkmart/go-aggregator/sources"
	"github.com/bulkmart/go-aggregator/types"
	"github.com/bulkmart/go-aggregator/utils"
)

const (
	baseURL  = "https://dir.indiamart.com"
	maxPages = 10
)

var searchTemplate = baseURL + "/search.mp?ss=%s&pg=%d"

var detailHrefRe = regexp.MustCompile(`(?:/proddetail/|/impcat/)[^"'\s]+`)
var jsonLdRe = regexp.MustCompile(`<script type="application/ld\+json">\s*(\{.+?\})\s*</script>`)
var jsonLdProductRe = regexp.MustCompile(`"@type"\s*:\s*"Product"[^}]*?"name"\s*:\s*"((?:[^"\\]|\\.)*)"[^}]*?"url"\s*:\s*"([^"]+)"`)

// Adapter scrapes dir.indiamart.com. Prices are often "Ask Price" and MOQ
// is optional here, so nothing is gated on either being extractable.
type Adapter struct {
	static   request.PageFetcher
	rendered request.PageFetcher
	minHits  int
}

func New(appC *types.Config) *Adapter {
	return &Adapter{
		static:   request.NewStaticFetcher(appC.ConfigData.FetchTimeout),
		rendered: request.NewRenderedFetcher(appC.ConfigData.FetchTimeout + 15),
		minHits:  appC.ConfigData.HeadlessMinHits,
	}
}

func (a *Adapter) Platform() types.Platform {
	return types.PlatformIndiamart
}

func (a *Adapter) Fetch(query string, limit int, opts *types.FetchOptions) ([]*types.ExternalListing, error) {
	if opts == nil {
		opts = &types.FetchOptions{}
	}
	items, err := sources.RunStrategies(a.Platform(), a.fetchStatic, a.fetchRendered, query, limit, a.minHits, opts)
	if err != nil {
		return nil, err
	}
	if opts.UpgradeImages {
		a.upgradeImages(items)
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (a *Adapter) fetchStatic(query string, limit int, opts *types.FetchOptions) (items []*types.ExternalListing, blocked bool) {
	seen := make(map[string]bool)
	for page := 1; page <= maxPages && len(items) < limit; page++ {
		pageURL := fmt.Sprintf(searchTemplate, url.QueryEscape(query), page)
		resp := a.static.GetPage(pageURL)
		if opts.Debug {
			utils.PrintResponseDetails(resp.Status, fmt.Sprintf("INDIAMART_PAGE: (%s) status %d, %d bytes", pageURL, resp.Status, len(resp.Content)))
		}
		if resp.Blocked {
			return items, true
		}
		if !request.IsSuccess(resp.Status) || resp.Content == "" {
			// One failed page never aborts the call
			continue
		}
		added := 0
		for _, l := range a.parsePage(resp.Content, opts) {
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
	pageURL := fmt.Sprintf(searchTemplate, url.QueryEscape(query), 1)
	resp := a.rendered.GetPage(pageURL)
	if resp.Blocked {
		return nil, true
	}
	if !request.IsSuccess(resp.Status) {
		return nil, false
	}
	return a.parsePage(resp.Content, opts), false
}

func (a *Adapter) parsePage(content string, opts *types.FetchOptions) []*types.ExternalListing {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		log.Printf("INDIAMART_PARSEERR: %v\n", err)
		return nil
	}

	items := a.parseCards(doc)
	if len(items) > 0 {
		if opts.Debug {
			log.Printf("INDIAMART_EXTRACT: card selectors fired, %d items\n", len(items))
		}
		return items
	}

	items = a.parseAnchors(doc)
	if len(items) > 0 {
		if opts.Debug {
			log.Printf("INDIAMART_EXTRACT: anchor fallback fired, %d items\n", len(items))
		}
		return items
	}

	items = a.parseJSONLd(content)
	if len(items) > 0 && opts.Debug {
		log.Printf("INDIAMART_EXTRACT: json-ld fallback fired, %d items\n", len(items))
	}
	return items
}

func (a *Adapter) parseCards(doc *goquery.Document) []*types.ExternalListing {
	items := make([]*types.ExternalListing, 0)
	doc.Find(".prd-card, .lst-crd, div.card").Each(func(i int, card *goquery.Selection) {
		anchor := card.Find("a.prd-name, a[href*='proddetail']").First()
		href, ok := anchor.Attr("href")
		if !ok {
			return
		}
		listing := a.newListing(href)
		if listing == nil {
			return
		}

		listing.Title = strings.TrimSpace(anchor.Text())
		priceText := strings.TrimSpace(card.Find(".prc, .price, p.prd-prc").First().Text())
		listing.Price = priceText
		listing.PriceMin, listing.PriceMax, listing.Currency = normalize.ExtractPrice(priceText)

		moqText := strings.TrimSpace(card.Find(".moq, .min-qty").First().Text())
		if moqText == "" {
			moqText = card.Text()
		}
		listing.Moq = moqText
		listing.MoqValue = normalize.ExtractMoq(moqText)

		listing.StoreName = strings.TrimSpace(card.Find(".cmp-name, .companyname").First().Text())
		if src, ok := card.Find("img").First().Attr("data-original"); ok {
			if abs, ok := normalize.AbsoluteImageURL(src, baseURL); ok {
				listing.Image = abs
			}
		} else if src, ok := card.Find("img").First().Attr("src"); ok {
			if abs, ok := normalize.AbsoluteImageURL(src, baseURL); ok {
				listing.Image = abs
			}
		}
		items = append(items, listing)
	})
	return items
}

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
		title := strings.TrimSpace(anchor.Text())
		if title == "" {
			return
		}
		listing.Title = title
		surrounding := anchor.Parent().Text()
		listing.PriceMin, listing.PriceMax, listing.Currency = normalize.ExtractPrice(surrounding)
		listing.MoqValue = normalize.ExtractMoq(surrounding)
		seen[listing.URL] = true
		items = append(items, listing)
	})
	return items
}

// Product entries ship as json-ld blobs on most category pages
func (a *Adapter) parseJSONLd(content string) []*types.ExternalListing {
	items := make([]*types.ExternalListing, 0)
	for _, block := range jsonLdRe.FindAllStringSubmatch(content, -1) {
		for _, m := range jsonLdProductRe.FindAllStringSubmatch(block[1], -1) {
			listing := a.newListing(strings.ReplaceAll(m[2], `\/`, "/"))
			if listing == nil {
				continue
			}
			listing.Title = m[1]
			items = append(items, listing)
		}
	}
	return items
}

func (a *Adapter) newListing(href string) *types.ExternalListing {
	abs, ok := normalize.AbsoluteURL(href, baseURL)
	if !ok {
		return nil
	}
	clean := normalize.CleanURL(abs)
	if !strings.Contains(clean, "indiamart.com") {
		return nil
	}
	return &types.ExternalListing{
		Platform: types.PlatformIndiamart,
		URL:      clean,
	}
}

func (a *Adapter) upgradeImages(items []*types.ExternalListing) {
	for _, l := range items {
		if l.Image != "" && len(l.Attributes) > 0 {
			continue
		}
		a.Enrich(l, nil)
		request.PageSleep()
	}
}

// Enrich re-scrapes one detail page for the image and spec-table attributes
func (a *Adapter) Enrich(l *types.ExternalListing, opts *types.FetchOptions) error {
	resp := a.static.GetPage(l.URL)
	if resp.Blocked {
		return sources.ErrBlocked
	}
	if !request.IsSuccess(resp.Status) {
		return fmt.Errorf("INDIAMART_DETAILERR: (%s) status %d", l.URL, resp.Status)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.Content))
	if err != nil {
		return fmt.Errorf("INDIAMART_DETAILPARSEERR: (%s) %v", l.URL, err)
	}
	if l.Image == "" {
		if src, ok := doc.Find("meta[property='og:image']").First().Attr("content"); ok {
			if abs, ok := normalize.AbsoluteImageURL(src, baseURL); ok {
				l.Image = abs
			}
		}
	}
	attrs := make(map[string]string)
	doc.Find("table.spec-table tr, .fs14 tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() >= 2 {
			key := strings.TrimSpace(cells.Eq(0).Text())
			val := strings.TrimSpace(cells.Eq(1).Text())
			if key != "" && val != "" {
				attrs[key] = val
			}
		}
	})
	if len(attrs) > 0 {
		l.Attributes = attrs
	}
	if l.PriceMin == nil {
		priceText := strings.TrimSpace(doc.Find(".prc, .price").First().Text())
		if priceText != "" {
			l.Price = priceText
			l.PriceMin, l.PriceMax, l.Currency = normalize.ExtractPrice(priceText)
		}
	}
	if l.MoqValue == nil {
		l.MoqValue = normalize.ExtractMoq(strings.TrimSpace(doc.Find(".moq, .min-qty").First().Text()))
	}
	return nil
}
