package appfolio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"rentassist-backend/lib/telemetry"
)

func newTestClient(t testing.TB, baseUrl, cookie string) *Client {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/appfolio")
	t.Cleanup(cleanup)

	client, err := NewClient(ClientOptions{
		BaseUrl:      baseUrl,
		CookieString: cookie,
		UserAgent:    "rentassist-test",
		MaxRedirects: 3,
	})
	require.NoError(t, err)
	return client
}

func TestExecuteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "session=abc", r.Header.Get("Cookie"))
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, "session=abc")
	body, err := client.execute(context.Background(), "GET", "/page", client.baseHeaders(), nil, nil)
	require.NoError(t, err)
	require.Equal(t, "hello", body)
}

func TestExecuteFollowsRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/start":
			http.Redirect(w, r, "/middle", http.StatusFound)
		case "/middle":
			http.Redirect(w, r, "/end", http.StatusFound)
		case "/end":
			w.Write([]byte("made it"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, "session=abc")
	body, err := client.execute(context.Background(), "GET", "/start", nil, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "made it", body)
}

func TestManualRedirectResendsHeaders(t *testing.T) {
	var hops int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "session=abc", r.Header.Get("Cookie"))
		switch r.URL.Path {
		case "/start":
			hops++
			w.Header().Set("Location", "/middle")
			w.WriteHeader(http.StatusFound)
		case "/middle":
			hops++
			w.Header().Set("Location", "/end")
			w.WriteHeader(http.StatusFound)
		case "/end":
			w.Write([]byte("done"))
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, "session=abc")
	headers := map[string]string{"Cookie": "session=abc"}

	body, err := client.manualRedirect(context.Background(), "GET", "/start", headers, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "done", body)
	require.Equal(t, 2, hops)
}

func TestManualRedirectSeeOtherBecomesGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/submit":
			require.Equal(t, http.MethodPost, r.Method)
			w.Header().Set("Location", "/result")
			w.WriteHeader(http.StatusSeeOther)
		case "/result":
			require.Equal(t, http.MethodGet, r.Method)
			w.Write([]byte("created"))
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, "session=abc")
	body, err := client.manualRedirect(context.Background(), "POST", "/submit", nil, nil, "payload")
	require.NoError(t, err)
	require.Equal(t, "created", body)
}

func TestManualRedirectMissingLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusFound)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, "session=abc")
	_, err := client.manualRedirect(context.Background(), "GET", "/loop", nil, nil, nil)

	var redirectErr *RedirectError
	require.ErrorAs(t, err, &redirectErr)
	require.Equal(t, http.StatusFound, redirectErr.StatusCode)
}

func TestManualRedirectTooMany(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/loop")
		w.WriteHeader(http.StatusFound)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, "session=abc")
	_, err := client.manualRedirect(context.Background(), "GET", "/loop", nil, nil, nil)

	var redirectErr *RedirectError
	require.ErrorAs(t, err, &redirectErr)
	require.Contains(t, redirectErr.Message, "too many redirects (max: 3)")
}

func TestHandleResponseAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, "session=abc")
	_, err := client.execute(context.Background(), "GET", "/page", nil, nil, nil)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, http.StatusForbidden, authErr.StatusCode)
	require.False(t, authErr.NoCredentials)
}

func TestHandleResponseNoCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, "")
	_, err := client.execute(context.Background(), "GET", "/page", nil, nil, nil)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	require.True(t, authErr.NoCredentials)
}

func TestHandleResponseAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", "r-123")
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, "session=abc")
	_, err := client.execute(context.Background(), "GET", "/page", nil, nil, nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	require.Equal(t, "r-123", apiErr.Headers.Get("X-Request-Id"))
}

func TestSerializeCookiesKeepsOrder(t *testing.T) {
	cookies := []Cookie{
		{Name: "_session", Value: "abc"},
		{Name: "remember", Value: "1"},
		{Name: "tz", Value: "America/New_York"},
	}
	require.Equal(t, "_session=abc; remember=1; tz=America/New_York", serializeCookies(cookies))
}
