package request

import (
	"fmt"
	"io/ioutil"
	"log"
	"net/http"
	"time"
)

// StaticFetcher downloads search pages with a plain GET and spoofed
// browser headers. One client is shared per adapter.
type StaticFetcher struct {
	Client *http.Client
}

func NewStaticFetcher(timeoutSecs int) *StaticFetcher {
	if timeoutSecs == 0 {
		timeoutSecs = 45
	}
	return &StaticFetcher{
		Client: &http.Client{
			Timeout: time.Duration(timeoutSecs) * time.Second,
		},
	}
}

// GetPage fetches one url. Network errors are reported through the response
// status, never as a panic: a failed page is zero results for that page.
func (f *StaticFetcher) GetPage(url string) (resp WebResponse) {
	start := time.Now()
	resp.URL = url

	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		resp.Status = http.StatusBadRequest
		log.Printf("STATIC_REQERR: (%s) %v\n", url, err)
		return resp
	}
	SetBrowserHeaders(req)

	httpResp, err := f.Client.Do(req)
	if err != nil {
		resp.Status = http.StatusRequestTimeout
		log.Printf("STATIC_FETCHERR: (%s) %v\n", url, err)
		return resp
	}
	defer httpResp.Body.Close()

	body, err := ioutil.ReadAll(httpResp.Body)
	if err != nil {
		resp.Status = http.StatusInternalServerError
		log.Printf("STATIC_READERR: (%s) %v\n", url, err)
		return resp
	}

	resp.Status = httpResp.StatusCode
	resp.Content = string(body)
	resp.Blocked = IsBlocked(resp.Status, resp.Content)
	resp.TimeTaken = time.Since(start).Seconds()

	logMessage := fmt.Sprintf("STATIC_DONE: URL: %s, Status: %d, Size: %d, Round-Trip: %.2f", url, resp.Status, len(body), resp.TimeTaken)
	if resp.Blocked {
		logMessage = fmt.Sprintf("STATIC_BLOCKED: URL: %s, Status: %d", url, resp.Status)
	}
	log.Println(logMessage)
	return resp
}
