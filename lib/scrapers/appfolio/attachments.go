package appfolio

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"net/url"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel/codes"

	"rentassist-backend/lib/jsonapi"
)

// FetchAttachments lists the visible attachments of a service request via
// the work-orders API include filter.
func (c *Client) FetchAttachments(ctx context.Context, serviceId string) ([]map[string]any, error) {
	ctx, span := tracer.Start(ctx, "FetchAttachments")
	defer span.End()

	query := url.Values{}
	query.Set("filter[service_request][id]", serviceId)
	query.Set("fields[service_requests]", "id")
	query.Set("fields[work_orders]", "remarks,display_number")
	query.Set("fields[attachments]", "name,preview_url,created_at,size")
	query.Set("include", "visible_attachments")

	body, err := c.execute(ctx, "GET", "/api/work_orders", c.apiHeaders(""), query, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch attachments")
		return nil, err
	}

	doc, err := jsonapi.Decode([]byte(body))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode attachments payload")
		return nil, fmt.Errorf("appfolio: attachments for service request %s: %w", serviceId, err)
	}

	var attachments []map[string]any
	for _, included := range doc.Included {
		if included.Type == "attachments" {
			attachments = append(attachments, included.Attributes)
		}
	}
	return attachments, nil
}

// Attachment is the result of a completed upload.
type Attachment struct {
	Id          string
	Name        string
	DownloadUrl string
	PreviewUrl  string
}

type uploadField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type uploadTicket struct {
	id     string
	url    string
	fields []uploadField
}

func uploadTicketFromRecord(rec jsonapi.Record) (uploadTicket, error) {
	ticket := uploadTicket{}
	ticket.id, _ = rec["id"].(string)
	ticket.url, _ = rec["upload_url"].(string)
	if ticket.id == "" || ticket.url == "" {
		return uploadTicket{}, &APIError{Message: "attachment creation response missing id or upload url"}
	}

	// the pre-signed fields come back ordered and must be reproduced
	// verbatim in that order
	rawFields, _ := rec["upload_fields"].([]any)
	for _, raw := range rawFields {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := entry["name"].(string)
		value, _ := entry["value"].(string)
		if name != "" {
			ticket.fields = append(ticket.fields, uploadField{Name: name, Value: value})
		}
	}
	return ticket, nil
}

// UploadAttachment runs the three-phase attachment flow: create the
// attachment record to obtain a pre-signed upload target, post the file as
// multipart/form-data directly to that target, then confirm the upload.
func (c *Client) UploadAttachment(ctx context.Context, serviceId, name, contentType string, data []byte) (Attachment, error) {
	ctx, span := tracer.Start(ctx, "UploadAttachment")
	defer span.End()

	ticket, err := c.createAttachment(ctx, serviceId, name, contentType, len(data))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create attachment record")
		return Attachment{}, err
	}

	err = c.uploadFile(ctx, ticket, name, contentType, data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upload file")
		return Attachment{}, err
	}

	attachment, err := c.confirmUpload(ctx, ticket.id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to confirm upload")
		return Attachment{}, err
	}
	return attachment, nil
}

func (c *Client) createAttachment(ctx context.Context, serviceId, name, contentType string, size int) (uploadTicket, error) {
	payload := map[string]any{
		"data": map[string]any{
			"type": "attachments",
			"attributes": map[string]any{
				"name":         name,
				"content_type": contentType,
				"size":         size,
			},
			"relationships": map[string]any{
				"service_request": map[string]any{
					"data": map[string]any{
						"type": "service_requests",
						"id":   serviceId,
					},
				},
			},
		},
	}

	headers := c.apiHeaders("")
	headers["Content-Type"] = "application/vnd.api+json"

	body, err := c.execute(ctx, "POST", "/api/attachments", headers, nil, payload)
	if err != nil {
		return uploadTicket{}, err
	}

	records, err := jsonapi.DenormalizeBytes([]byte(body))
	if err != nil {
		return uploadTicket{}, fmt.Errorf("appfolio: attachment creation response: %w", err)
	}
	if len(records) == 0 {
		return uploadTicket{}, &APIError{Message: "attachment creation returned no record"}
	}
	return uploadTicketFromRecord(records[0])
}

// uploadFile posts the multipart body straight to the pre-signed target.
// Pre-signed fields go first, in order, the raw file bytes last.
func (c *Client) uploadFile(ctx context.Context, ticket uploadTicket, name, contentType string, data []byte) error {
	suffix, err := random.String(16)
	if err != nil {
		return fmt.Errorf("appfolio: generate multipart boundary: %w", err)
	}
	boundary := "----RentassistFormBoundary" + suffix

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	err = writer.SetBoundary(boundary)
	if err != nil {
		return fmt.Errorf("appfolio: set multipart boundary: %w", err)
	}

	for _, field := range ticket.fields {
		err = writer.WriteField(field.Name, field.Value)
		if err != nil {
			return fmt.Errorf("appfolio: write multipart field %q: %w", field.Name, err)
		}
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, name))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("appfolio: create multipart file part: %w", err)
	}
	_, err = part.Write(data)
	if err != nil {
		return fmt.Errorf("appfolio: write file bytes: %w", err)
	}
	err = writer.Close()
	if err != nil {
		return fmt.Errorf("appfolio: finish multipart body: %w", err)
	}

	// the upload target is a pre-signed external URL: no session cookie
	headers := map[string]string{
		"User-Agent":   c.headers["User-Agent"],
		"Content-Type": writer.FormDataContentType(),
	}

	_, err = c.execute(ctx, "POST", ticket.url, headers, nil, buf.Bytes())
	return err
}

func (c *Client) confirmUpload(ctx context.Context, uploadId string) (Attachment, error) {
	payload := map[string]any{
		"data": map[string]any{
			"type": "attachments",
			"id":   uploadId,
			"attributes": map[string]any{
				"status": "uploaded",
			},
		},
	}

	headers := c.apiHeaders("")
	headers["Content-Type"] = "application/vnd.api+json"

	body, err := c.execute(ctx, "PUT", "/api/attachments/"+uploadId, headers, nil, payload)
	if err != nil {
		return Attachment{}, err
	}

	records, err := jsonapi.DenormalizeBytes([]byte(body))
	if err != nil {
		return Attachment{}, fmt.Errorf("appfolio: upload confirmation response: %w", err)
	}
	if len(records) == 0 {
		return Attachment{}, &APIError{Message: "upload confirmation returned no record"}
	}

	rec := records[0]
	attachment := Attachment{}
	attachment.Id, _ = rec["id"].(string)
	attachment.Name, _ = rec["name"].(string)
	attachment.DownloadUrl, _ = rec["download_url"].(string)
	attachment.PreviewUrl, _ = rec["preview_url"].(string)
	return attachment, nil
}
