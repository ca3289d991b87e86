package tradeindia

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
	baseURL = "https://www.tradeindia.com"
	// Tolerant platform, deeper static pagination is safe
	maxPages = 20
)

var searchTemplate = baseURL + "/search.html?keyword=%s&page=%d"

var detailHrefRe = regexp.MustCompile(`/products/[^"'\s]+\.html`)
var nextDataRe = regexp.MustCompile(`<script id="__NEXT_DATA__"[^>]*>(\{.+?\})</script>`)
var nextProductRe = regexp.MustCompile(`"product_name"\s*:\s*"((?:[^"\\]|\\.)*)"[^}]*?"product_url"\s*:\s*"([^"]+)"`)

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
	return types.PlatformTradeindia
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
		a.upgradeImages(items, opts)
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// upgradeImages visits detail pages for items whose cards carried no image
// or attribute table
func (a *Adapter) upgradeImages(items []*types.ExternalListing, opts *types.FetchOptions) {
	for _, l := range items {
		if l.Image != "" && len(l.Attributes) > 0 {
			continue
		}
		if err := a.Enrich(l, opts); err != nil && opts.Debug {
			log.Printf("TRADEINDIA_ENRICHSKIP: (%s) %v\n", l.URL, err)
		}
		request.PageSleep()
	}
}

func (a *Adapter) fetchStatic(query string, limit int, opts *types.FetchOptions) (items []*types.ExternalListing, blocked bool) {
	seen := make(map[string]bool)
	for page := 1; page <= maxPages && len(items) < limit; page++ {
		pageURL := fmt.Sprintf(searchTemplate, url.QueryEscape(query), page)
		resp := a.static.GetPage(pageURL)
		if opts.Debug {
			utils.PrintResponseDetails(resp.Status, fmt.Sprintf("TRADEINDIA_PAGE: (%s) status %d, %d bytes", pageURL, resp.Status, len(resp.Content)))
		}
		if resp.Blocked {
			return items, true
		}
		if !request.IsSuccess(resp.Status) || resp.Content == "" {
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
		log.Printf("TRADEINDIA_PARSEERR: %v\n", err)
		return nil
	}

	items := a.parseCards(doc)
	if len(items) > 0 {
		if opts.Debug {
			log.Printf("TRADEINDIA_EXTRACT: card selectors fired, %d items\n", len(items))
		}
		return items
	}

	items = a.parseAnchors(doc)
	if len(items) > 0 {
		if opts.Debug {
			log.Printf("TRADEINDIA_EXTRACT: anchor fallback fired, %d items\n", len(items))
		}
		return items
	}

	// tradeindia is a next.js frontend; the first page payload carries the
	// product list even when cards render client side
	items = a.parseNextData(content)
	if len(items) > 0 && opts.Debug {
		log.Printf("TRADEINDIA_EXTRACT: next-data fallback fired, %d items\n", len(items))
	}
	return items
}

func (a *Adapter) parseCards(doc *goquery.Document) []*types.ExternalListing {
	items := make([]*types.ExternalListing, 0)
	doc.Find(".product-card, .prod-box, li.product-item").Each(func(i int, card *goquery.Selection) {
		anchor := card.Find("a[href*='/products/'], h3 a, h2 a").First()
		href, ok := anchor.Attr("href")
		if !ok {
			return
		}
		listing := a.newListing(href)
		if listing == nil {
			return
		}
		listing.Title = strings.TrimSpace(anchor.Text())

		priceText := strings.TrimSpace(card.Find(".price, .product-price").First().Text())
		listing.Price = priceText
		listing.PriceMin, listing.PriceMax, listing.Currency = normalize.ExtractPrice(priceText)

		moqText := card.Text()
		listing.Moq = strings.TrimSpace(card.Find(".moq").First().Text())
		listing.MoqValue = normalize.ExtractMoq(moqText)

		listing.StoreName = strings.TrimSpace(card.Find(".company-name, .supplier").First().Text())

		if ratingText := strings.TrimSpace(card.Find(".rating-value").First().Text()); ratingText != "" {
			if v, err := strconv.ParseFloat(ratingText, 64); err == nil {
				listing.Rating = &v
			}
		}

		if src, ok := card.Find("img").First().Attr("src"); ok {
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

func (a *Adapter) parseNextData(content string) []*types.ExternalListing {
	m := nextDataRe.FindStringSubmatch(content)
	if m == nil {
		return nil
	}
	items := make([]*types.ExternalListing, 0)
	for _, pm := range nextProductRe.FindAllStringSubmatch(m[1], -1) {
		listing := a.newListing(strings.ReplaceAll(pm[2], `\/`, "/"))
		if listing == nil {
			continue
		}
		title, err := strconv.Unquote(`"` + pm[1] + `"`)
		if err != nil {
			title = pm[1]
		}
		listing.Title = title
		items = append(items, listing)
	}
	return items
}

// Enrich re-scrapes one detail page for the image and attribute table
func (a *Adapter) Enrich(l *types.ExternalListing, opts *types.FetchOptions) error {
	resp := a.static.GetPage(l.URL)
	if resp.Blocked {
		return sources.ErrBlocked
	}
	if !request.IsSuccess(resp.Status) {
		return fmt.Errorf("TRADEINDIA_DETAILERR: (%s) status %d", l.URL, resp.Status)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.Content))
	if err != nil {
		return fmt.Errorf("TRADEINDIA_DETAILPARSEERR: (%s) %v", l.URL, err)
	}
	if l.Image == "" {
		if src, ok := doc.Find("meta[property='og:image']").First().Attr("content"); ok {
			if abs, ok := normalize.AbsoluteImageURL(src, baseURL); ok {
				l.Image = abs
			}
		}
	}
	attrs := make(map[string]string)
	doc.Find("table.product-specs tr, .specification tr").Each(func(i int, row *goquery.Selection) {
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
		priceText := strings.TrimSpace(doc.Find(".price, .product-price").First().Text())
		if priceText != "" {
			l.Price = priceText
			l.PriceMin, l.PriceMax, l.Currency = normalize.ExtractPrice(priceText)
		}
	}
	return nil
}

func (a *Adapter) newListing(href string) *types.ExternalListing {
	abs, ok := normalize.AbsoluteURL(href, baseURL)
	if !ok {
		return nil
	}
	clean := normalize.CleanURL(abs)
	if !strings.Contains(clean, "tradeindia.com") {
		return nil
	}
	return &types.ExternalListing{
		Platform: types.PlatformTradeindia,
		URL:      clean,
	}
}
