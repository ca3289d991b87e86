package request

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// RenderedFetcher drives a headless browser for platforms that only ship
// listing cards through client-side scripts. Escalation to this path is
// decided by the adapter policy, never by the caller directly.
type RenderedFetcher struct {
	timeout time.Duration
}

func NewRenderedFetcher(timeoutSecs int) *RenderedFetcher {
	if timeoutSecs == 0 {
		timeoutSecs = 60
	}
	return &RenderedFetcher{timeout: time.Duration(timeoutSecs) * time.Second}
}

// GetPage renders one url: navigate, scroll to trigger lazy loading, wait
// for the network to settle, then snapshot the DOM. Errors degrade to an
// empty response like the static path.
func (f *RenderedFetcher) GetPage(url string) (resp WebResponse) {
	start := time.Now()
	resp.URL = url
	resp.Rendered = true

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(userAgents[0]),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	defer cancelAlloc()

	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	taskCtx, cancelTimeout := context.WithTimeout(taskCtx, f.timeout)
	defer cancelTimeout()

	status := http.StatusOK
	chromedp.ListenTarget(taskCtx, func(ev interface{}) {
		if e, ok := ev.(*network.EventResponseReceived); ok {
			if e.Type == network.ResourceTypeDocument && e.Response.URL == url {
				status = int(e.Response.Status)
			}
		}
	})

	var html string
	err := chromedp.Run(taskCtx,
		network.Enable(),
		chromedp.Navigate(url),
		chromedp.Sleep(2*time.Second),
		// Scroll the full page in steps so lazy-loaded cards mount
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight/3)`, nil),
		chromedp.Sleep(1*time.Second),
		chromedp.Evaluate(`window.scrollTo(0, 2*document.body.scrollHeight/3)`, nil),
		chromedp.Sleep(1*time.Second),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(2*time.Second),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		log.Printf("RENDER_FETCHERR: (%s) %v\n", url, err)
		resp.Status = http.StatusRequestTimeout
		resp.TimeTaken = time.Since(start).Seconds()
		return resp
	}

	resp.Status = status
	resp.Content = html
	resp.Blocked = IsBlocked(status, html)
	resp.TimeTaken = time.Since(start).Seconds()
	log.Printf("RENDER_DONE: URL: %s, Status: %d, Size: %d, Round-Trip: %.2f\n", url, resp.Status, len(html), resp.TimeTaken)
	return resp
}
