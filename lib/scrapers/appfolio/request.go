package appfolio

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
)

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently,
		http.StatusFound,
		http.StatusSeeOther,
		http.StatusTemporaryRedirect,
		http.StatusPermanentRedirect:
		return true
	}
	return false
}

// execute issues a request preferring automatic redirect following. Some
// deployments drop cookies or headers across redirect hops, so when the
// transport errors out or hands back an unresolved 3xx, the request is
// retried through a manual redirect loop that re-sends the full header set
// on every hop.
func (c *Client) execute(ctx context.Context, method, rawUrl string, headers map[string]string, query url.Values, body any) (string, error) {
	req := c.auto.R().
		SetContext(ctx).
		SetHeaders(headers)
	if query != nil {
		req.SetQueryParamsFromValues(query)
	}
	if body != nil {
		req.SetBody(body)
	}

	res, err := req.Execute(method, rawUrl)
	if err != nil {
		slog.DebugContext(
			ctx, "automatic redirect failed, handling manually",
			"method", method,
			"url", rawUrl,
			"err", err,
		)
		return c.manualRedirect(ctx, method, rawUrl, headers, query, body)
	}

	if res.StatusCode() == http.StatusOK {
		return c.handleResponse(res)
	}
	if isRedirect(res.StatusCode()) {
		slog.DebugContext(
			ctx, "transport gave up on redirect, handling manually",
			"method", method,
			"url", rawUrl,
			"status", res.StatusCode(),
		)
		return c.manualRedirect(ctx, method, rawUrl, headers, query, body)
	}

	return c.handleResponse(res)
}

// manualRedirect re-implements redirect following: one hop at a time, every
// request carrying the caller's headers verbatim. A 303 forces the next hop
// to GET regardless of the original method.
func (c *Client) manualRedirect(ctx context.Context, method, rawUrl string, headers map[string]string, query url.Values, body any) (string, error) {
	currentUrl := c.absoluteUrl(rawUrl)
	currentMethod := method

	for redirects := 0; redirects < c.maxRedirects; redirects++ {
		req := c.manual.R().
			SetContext(ctx).
			SetHeaders(headers)
		if query != nil {
			req.SetQueryParamsFromValues(query)
		}
		if body != nil {
			req.SetBody(body)
		}

		res, err := req.Execute(currentMethod, currentUrl)
		if err != nil {
			return "", fmt.Errorf("appfolio: manual redirect request: %w", err)
		}
		if !isRedirect(res.StatusCode()) {
			return c.handleResponse(res)
		}

		location := res.Header().Get("Location")
		if location == "" {
			return "", &RedirectError{
				StatusCode: res.StatusCode(),
				Message: fmt.Sprintf(
					"received redirect status %d but no Location header",
					res.StatusCode(),
				),
			}
		}

		next, err := resolveLocation(currentUrl, location)
		if err != nil {
			return "", err
		}

		slog.DebugContext(
			ctx, "following manual redirect",
			"count", redirects+1,
			"max", c.maxRedirects,
			"url", next,
		)

		// for 303, always use GET for the redirect
		if res.StatusCode() == http.StatusSeeOther {
			currentMethod = http.MethodGet
		}
		currentUrl = next
	}

	return "", &RedirectError{
		Message: fmt.Sprintf("too many redirects (max: %d)", c.maxRedirects),
	}
}

// resolveLocation makes a relative Location absolute using the current
// request's scheme and host.
func resolveLocation(currentUrl, location string) (string, error) {
	if !strings.HasPrefix(location, "/") {
		return location, nil
	}
	parsed, err := url.Parse(currentUrl)
	if err != nil {
		return "", fmt.Errorf("appfolio: parse redirect base %q: %w", currentUrl, err)
	}
	return parsed.Scheme + "://" + parsed.Host + location, nil
}

// handleResponse maps a response to body text or to the error taxonomy:
// 4xx is presumed auth-related, anything else non-success is an API error.
func (c *Client) handleResponse(res *resty.Response) (string, error) {
	if res.StatusCode() == http.StatusOK || res.IsSuccess() {
		return res.String(), nil
	}

	status := res.StatusCode()
	if status >= 400 && status < 500 {
		if c.cookie == "" {
			return "", errNoCredentials()
		}
		return "", &AuthError{StatusCode: status, Reason: res.Status()}
	}
	return "", &APIError{StatusCode: status, Headers: res.Header()}
}
