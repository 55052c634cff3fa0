package appfolio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatFilterDate(t *testing.T) {
	formatted, err := formatFilterDate("2025-01-01")
	require.NoError(t, err)
	require.Equal(t, "Wed, 01 Jan 2025 00:00:00 GMT", formatted)

	_, err = formatFilterDate("01/01/2025")
	require.Error(t, err)
}

func TestExtractServiceRequestId(t *testing.T) {
	require.Equal(t, "777", extractServiceRequestId("/maintenance/service_requests/777/work_orders/1"))
	require.Equal(t, "", extractServiceRequestId("/maintenance/work_orders/1"))
}

func TestStatusCodes(t *testing.T) {
	client := newTestClient(t, "https://acme.appfolio.com", "session=abc")
	require.Equal(t, "0", client.statusCode("New"))
	require.Equal(t, "10", client.statusCode("New by Appfolio"))
	require.Equal(t, "5", client.statusCode("Canceled"))
	require.Equal(t, "", client.statusCode("Nonexistent"))

	custom, err := NewClient(ClientOptions{
		BaseUrl:     "https://acme.appfolio.com",
		StatusCodes: map[string]string{"New": "99"},
	})
	require.NoError(t, err)
	require.Equal(t, "99", custom.statusCode("New"))
}

const workOrderListJson = `{
	"data": [{
		"type": "work_orders",
		"id": "1",
		"attributes": {
			"display_number": "WO-1",
			"status": "New",
			"instructions": "Fix the sink",
			"remarks": "internal only"
		},
		"links": {"page": "/maintenance/service_requests/777/work_orders/1"},
		"relationships": {
			"vendor": {"data": {"type": "vendors", "id": "9"}},
			"vendor_company": {"data": {"type": "companies", "id": "5"}}
		}
	}],
	"included": [
		{"type": "vendors", "id": "9", "attributes": {"name": "Acme Plumbing"}},
		{"type": "companies", "id": "5", "attributes": {"name": "Acme Holdings"}}
	]
}`

const workOrderPageHtml = `
<html><body>
  <div class="js-work-order-description">Leaky faucet in unit 12B</div>
  <span class="js-service-request-header-priority">High</span>
  <div class="js-tenant-contact-card">
    <span class="contact-card__name">Pat Doe</span>
    <div class="js-contact-card-details"><span>555-0100</span></div>
  </div>
  <div class="js-assigned-to">
    <span class="js-assignee-name">Alex Kim</span>
  </div>
  <div id="notes"><div class="card-body"></div></div>
</body></html>`

const notesFragmentJs = `$("#show-notes").html("<section class=\"js-notes-block\"><div class=\"js-block-show\">Call before entering\nEdit\nDelete<\/div><\/section>")`

func TestFetchWorkOrders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/work_orders":
			require.Equal(t, "application/vnd.api+json", r.Header.Get("Accept"))
			require.Equal(t, "v2", r.Header.Get("Accept-Version"))
			require.Equal(t, "0", r.URL.Query().Get("filter[status_code]"))
			require.Equal(t, "Wed, 01 Jan 2025 00:00:00 GMT", r.URL.Query().Get("filter[created_at__gteq]"))

			page, err := strconv.Atoi(r.URL.Query().Get("page[number]"))
			require.NoError(t, err)
			if page == 1 {
				w.Write([]byte(workOrderListJson))
			} else {
				w.Write([]byte(`{"data": []}`))
			}
		case "/maintenance/service_requests/777/work_orders/1":
			w.Write([]byte(workOrderPageHtml))
		case "/notes":
			require.Equal(t, "777", r.URL.Query().Get("show_notes_for_id"))
			w.Write([]byte(notesFragmentJs))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, "session=abc")
	workOrders, err := client.FetchWorkOrders(context.Background(), "New", "2025-01-01")
	require.NoError(t, err)
	require.Len(t, workOrders, 1)

	order := workOrders[0]
	require.Equal(t, "WO-1", order["display_number"])
	require.Equal(t, "Fix the sink", order["instructions"])
	require.Equal(t, "Leaky faucet in unit 12B", order["description"])
	require.Equal(t, "High", order["priority"])
	require.Equal(t, []string{"Alex Kim"}, order["assigned_to"])
	require.Equal(t, []string{"Call before entering"}, order["notes"])

	resident, ok := order["resident"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "Pat Doe", resident["name"])
	require.Equal(t, "555-0100", resident["data"])

	vendor, ok := order["vendor"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "Acme Plumbing", vendor["name"])

	// stripped before the order is returned
	require.NotContains(t, order, "remarks")
	require.NotContains(t, order, "vendor_company")
	require.NotContains(t, order, "work_order_assigned_users")
}
