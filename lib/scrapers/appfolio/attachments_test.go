package appfolio

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"rentassist-backend/lib/jsonapi"
)

func TestFetchAttachments(t *testing.T) {
	payload := `{
		"data": [{
			"type": "work_orders",
			"id": "1",
			"attributes": {"display_number": "WO-1"},
			"relationships": {
				"visible_attachments": {"data": [
					{"type": "attachments", "id": "41"},
					{"type": "attachments", "id": "42"}
				]}
			}
		}],
		"included": [
			{"type": "attachments", "id": "41", "attributes": {"name": "before.jpg", "size": 1024}},
			{"type": "attachments", "id": "42", "attributes": {"name": "after.jpg", "size": 2048}}
		]
	}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/work_orders", r.URL.Path)
		require.Equal(t, "777", r.URL.Query().Get("filter[service_request][id]"))
		require.Equal(t, "visible_attachments", r.URL.Query().Get("include"))
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, "session=abc")
	attachments, err := client.FetchAttachments(context.Background(), "777")
	require.NoError(t, err)
	require.Len(t, attachments, 2)
	require.Equal(t, "before.jpg", attachments[0]["name"])
	require.Equal(t, "after.jpg", attachments[1]["name"])
}

func TestUploadTicketFromRecord(t *testing.T) {
	ticket, err := uploadTicketFromRecord(jsonapi.Record{
		"id":         "41",
		"upload_url": "https://bucket.example.com/put",
		"upload_fields": []any{
			map[string]any{"name": "key", "value": "uploads/41"},
			map[string]any{"name": "policy", "value": "cG9saWN5"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "41", ticket.id)
	require.Equal(t, "https://bucket.example.com/put", ticket.url)
	require.Equal(t, []uploadField{
		{Name: "key", Value: "uploads/41"},
		{Name: "policy", Value: "cG9saWN5"},
	}, ticket.fields)

	_, err = uploadTicketFromRecord(jsonapi.Record{"id": "41"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
}

func TestUploadAttachment(t *testing.T) {
	fileData := []byte("jpeg bytes here")

	var uploadedToBucket bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/attachments" && r.Method == http.MethodPost:
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			require.Contains(t, string(body), `"service_requests"`)
			require.Contains(t, string(body), `"before.jpg"`)

			w.Write([]byte(`{
				"data": {
					"type": "attachments",
					"id": "41",
					"attributes": {
						"upload_url": "` + serverUrl(r) + `/bucket/put",
						"upload_fields": [
							{"name": "key", "value": "uploads/41"},
							{"name": "policy", "value": "cG9saWN5"}
						]
					}
				}
			}`))
		case r.URL.Path == "/bucket/put":
			// pre-signed target: session cookie must not leak here
			require.Empty(t, r.Header.Get("Cookie"))
			require.True(t, strings.HasPrefix(
				r.Header.Get("Content-Type"),
				"multipart/form-data; boundary=----RentassistFormBoundary",
			))

			require.NoError(t, r.ParseMultipartForm(1<<20))
			require.Equal(t, "uploads/41", r.MultipartForm.Value["key"][0])
			require.Equal(t, "cG9saWN5", r.MultipartForm.Value["policy"][0])

			file, header, err := r.FormFile("file")
			require.NoError(t, err)
			defer file.Close()
			require.Equal(t, "before.jpg", header.Filename)
			content, err := io.ReadAll(file)
			require.NoError(t, err)
			require.Equal(t, fileData, content)

			uploadedToBucket = true
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/api/attachments/41" && r.Method == http.MethodPut:
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			require.Contains(t, string(body), `"uploaded"`)

			w.Write([]byte(`{
				"data": {
					"type": "attachments",
					"id": "41",
					"attributes": {
						"name": "before.jpg",
						"download_url": "https://bucket.example.com/uploads/41",
						"preview_url": "https://bucket.example.com/previews/41"
					}
				}
			}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, "session=abc")
	attachment, err := client.UploadAttachment(
		context.Background(), "777", "before.jpg", "image/jpeg", fileData,
	)
	require.NoError(t, err)
	require.True(t, uploadedToBucket)
	require.Equal(t, Attachment{
		Id:          "41",
		Name:        "before.jpg",
		DownloadUrl: "https://bucket.example.com/uploads/41",
		PreviewUrl:  "https://bucket.example.com/previews/41",
	}, attachment)
}

func serverUrl(r *http.Request) string {
	return "http://" + r.Host
}
