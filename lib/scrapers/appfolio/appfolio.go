// Package appfolio scrapes an AppFolio property-management deployment over
// an existing session cookie. It covers the HTML-rendered pages (properties,
// vacancies, leases, occupancies) as well as the JSON:API surface under /api.
package appfolio

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	browser "github.com/EDDYCJY/fake-useragent"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"

	"rentassist-backend/lib/telemetry"
)

var tracer = otel.Tracer("scrapers/appfolio")

const defaultMaxRedirects = 5

// Cookie is one name/value pair of the session credential. Pairs are
// serialized in slice order, so the header reproduces the order credentials
// were captured in.
type Cookie struct {
	Name  string
	Value string
}

type ClientOptions struct {
	// BaseUrl is the deployment to scrape, e.g. "https://acme.appfolio.com".
	BaseUrl string
	// CookieString is a ready-made Cookie header value. Takes precedence
	// over Cookies when both are set.
	CookieString string
	Cookies      []Cookie
	// UserAgent defaults to a random browser user agent.
	UserAgent string
	// MaxRedirects bounds the manual redirect fallback, default 5.
	MaxRedirects int
	// StatusCodes overrides the work-order status filter table for
	// deployments whose status codes diverge from the default.
	StatusCodes map[string]string
}

type Client struct {
	baseUrl      *url.URL
	auto         *resty.Client
	manual       *resty.Client
	cookie       string
	headers      map[string]string
	maxRedirects int
	statusCodes  map[string]string
}

func serializeCookies(cookies []Cookie) string {
	pairs := make([]string, 0, len(cookies))
	for _, c := range cookies {
		pairs = append(pairs, fmt.Sprintf("%s=%s", c.Name, c.Value))
	}
	return strings.Join(pairs, "; ")
}

func newHttpClient(baseUrl string, limiter *rate.Limiter) *resty.Client {
	client := resty.New()
	client.SetBaseURL(baseUrl)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return limiter.Wait(req.Context())
	})
	return client
}

func NewClient(opts ClientOptions) (*Client, error) {
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, fmt.Errorf("appfolio: parse base url: %w", err)
	}

	cookie := opts.CookieString
	if cookie == "" && len(opts.Cookies) > 0 {
		cookie = serializeCookies(opts.Cookies)
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = browser.Random()
	}

	maxRedirects := opts.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = defaultMaxRedirects
	}

	statusCodes := opts.StatusCodes
	if statusCodes == nil {
		statusCodes = defaultStatusCodes
	}

	// 2 requests max per second, shared across both transports
	limiter := rate.NewLimiter(2, 2)

	auto := newHttpClient(opts.BaseUrl, limiter)
	auto.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))

	manual := newHttpClient(opts.BaseUrl, limiter)
	manual.SetRedirectPolicy(resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}))

	telemetry.InstrumentResty(auto, "scrapers/appfolio/http")
	telemetry.InstrumentResty(manual, "scrapers/appfolio/http")

	headers := map[string]string{
		"Host":       baseUrl.Host,
		"User-Agent": userAgent,
	}
	if cookie != "" {
		headers["Cookie"] = cookie
	}

	return &Client{
		baseUrl:      baseUrl,
		auto:         auto,
		manual:       manual,
		cookie:       cookie,
		headers:      headers,
		maxRedirects: maxRedirects,
		statusCodes:  statusCodes,
	}, nil
}

// baseHeaders copies the client's headers so concurrent fetches can add
// their own entries without racing each other.
func (c *Client) baseHeaders() map[string]string {
	headers := make(map[string]string, len(c.headers)+4)
	for k, v := range c.headers {
		headers[k] = v
	}
	return headers
}

func (c *Client) apiHeaders(apiClient string) map[string]string {
	headers := c.baseHeaders()
	headers["Accept"] = "application/vnd.api+json"
	headers["Accept-Version"] = "v2"
	if apiClient != "" {
		headers["X-Api-Client"] = apiClient
	}
	return headers
}

// ajaxHeaders mimic the site's own XHR table requests.
func (c *Client) ajaxHeaders() map[string]string {
	headers := c.baseHeaders()
	headers["X-Requested-With"] = "XMLHttpRequest"
	headers["Accept"] = "application/json, text/javascript, */*; q=0.01"
	headers["Accept-Language"] = "en-US,en;q=0.5"
	return headers
}

func (c *Client) htmlHeaders() map[string]string {
	headers := c.baseHeaders()
	headers["Accept"] = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8"
	headers["Accept-Language"] = "en-US,en;q=0.5"
	return headers
}

// absoluteUrl resolves a path against the configured deployment.
func (c *Client) absoluteUrl(rawUrl string) string {
	if strings.HasPrefix(rawUrl, "/") {
		return c.baseUrl.Scheme + "://" + c.baseUrl.Host + rawUrl
	}
	return rawUrl
}
