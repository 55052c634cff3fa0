package appfolio

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"

	"rentassist-backend/lib/htmlutil"
	"rentassist-backend/lib/jsonapi"
)

// WorkOrder is a denormalized work-order record merged with the fields
// scraped off its detail page.
type WorkOrder = jsonapi.Record

// formatFilterDate converts YYYY-MM-DD into the RFC 2822 GMT form the
// created_at filter expects, e.g. "Wed, 01 Jan 2025 00:00:00 GMT".
func formatFilterDate(dateStr string) (string, error) {
	t, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return "", fmt.Errorf("appfolio: invalid date %q, expected YYYY-MM-DD: %w", dateStr, err)
	}
	return t.Format("Mon, 02 Jan 2006 15:04:05") + " GMT", nil
}

func (c *Client) workOrderQuery(status, since string) (url.Values, error) {
	createdAfter, err := formatFilterDate(since)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("page[size]", "100")
	query.Set("filter[created_at__gteq]", createdAfter)
	query.Set("sort", "-created_at")
	query.Set("fields[work_orders]", "id,created_at,scheduled_start,scheduled_end,display_number,instructions,remarks,status,updated_at")
	query.Set("fields[occupancies]", "id,name")
	query.Set("fields[units]", "property_and_unit_name,name")
	query.Set("fields[properties]", "display_name,property_type,name_and_address")
	query.Set("fields[addresses]", "address1,address2,city,postal_code,state")
	query.Set("fields[users]", "name")
	query.Set("fields[vendors]", "name")
	query.Set("fields[work_order_categories]", "name")
	query.Set("fields[work_order_assigned_users]", "accepted")
	query.Set("fields[companies]", "name")
	query.Set("fields[service_requests]", "id,request_type")
	query.Set("fields[work_order_activities]", "comments,details,occurred_at")
	query.Set("stats[work_orders]", "send_surveys_automatically")
	query.Set("include", "occupancy,unit,work_order_assigned_users.user,work_order_category,vendor,vendor_company,service_request,property,property.address")

	if code := c.statusCode(status); code != "" {
		query.Set("filter[status_code]", code)
	}
	return query, nil
}

// FetchWorkOrders lists work orders created since the given date
// (YYYY-MM-DD), optionally filtered by status, then enriches each with its
// detail page. Detail fetches run concurrently; a failing detail page is
// logged and skipped so siblings still come back.
func (c *Client) FetchWorkOrders(ctx context.Context, status, since string) ([]WorkOrder, error) {
	ctx, span := tracer.Start(ctx, "FetchWorkOrders")
	defer span.End()

	query, err := c.workOrderQuery(status, since)
	if err != nil {
		span.SetStatus(codes.Error, "bad filter date")
		return nil, err
	}
	headers := c.apiHeaders("/maintenance/service_requests/work_orders")

	var raw []jsonapi.Record
	for page := 1; ; page++ {
		query.Set("page[number]", strconv.Itoa(page))

		body, err := c.execute(ctx, "GET", "/api/work_orders", headers, query, nil)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to fetch work order page")
			return nil, err
		}
		records, err := jsonapi.DenormalizeBytes([]byte(body))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to denormalize work orders")
			return nil, fmt.Errorf("appfolio: work orders page %d: %w", page, err)
		}
		if len(records) == 0 {
			break
		}
		raw = append(raw, records...)
	}

	workOrders := make([]WorkOrder, 0, len(raw))
	var lock sync.Mutex
	var wg sync.WaitGroup

	for _, order := range raw {
		wg.Add(1)
		go func(order jsonapi.Record) {
			defer wg.Done()

			pageUrl, _ := order["page"].(string)
			if pageUrl != "" {
				parsed, err := c.parseWorkOrderPage(ctx, pageUrl)
				if err != nil {
					slog.ErrorContext(ctx, "failed to parse work order page", "url", pageUrl, "err", err)
					return
				}
				for k, v := range parsed {
					order[k] = v
				}
			}

			delete(order, "vendor_company")
			delete(order, "remarks")
			delete(order, "work_order_assigned_users")

			lock.Lock()
			defer lock.Unlock()
			workOrders = append(workOrders, order)
		}(order)
	}
	wg.Wait()

	return workOrders, nil
}

var serviceRequestIdRegex = regexp.MustCompile(`/service_requests/(\d+)/`)

func extractServiceRequestId(pageUrl string) string {
	groups := serviceRequestIdRegex.FindStringSubmatch(pageUrl)
	if len(groups) < 2 {
		return ""
	}
	return groups[1]
}

func (c *Client) parseWorkOrderPage(ctx context.Context, pageUrl string) (map[string]any, error) {
	ctx, span := tracer.Start(ctx, "parseWorkOrderPage")
	defer span.End()

	body, err := c.execute(ctx, "GET", pageUrl, c.htmlHeaders(), nil, nil)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("appfolio: parse work order page: %w", err)
	}

	data := map[string]any{}
	serviceId := extractServiceRequestId(pageUrl)

	if description := doc.Find("div.js-work-order-description"); description.Length() > 0 {
		data["description"] = strings.TrimSpace(description.Text())
	}

	if card := doc.Find("div.js-property-contact-card"); card.Length() > 0 {
		var lines []string
		card.Find("div.js-contact-card-details span").Each(func(_ int, span *goquery.Selection) {
			lines = append(lines, strings.TrimSpace(span.Text()))
		})
		property := strings.TrimSpace(strings.Join(lines, "\n"))
		data["property"] = strings.ReplaceAll(property, "-5\n", "")
	}

	if card := doc.Find("div.js-owner-contact-card"); card.Length() > 0 {
		owner := map[string]any{}
		if name := card.Find("span.contact-card__name"); name.Length() > 0 {
			owner["name"] = strings.TrimSpace(name.Text())
		}
		owner["data"] = htmlutil.BlockText(card.Find("div.js-contact-card-details"))
		data["owner"] = owner
	}

	if card := doc.Find("div.js-tenant-contact-card"); card.Length() > 0 {
		resident := map[string]any{}
		if name := card.Find("span.contact-card__name"); name.Length() > 0 {
			resident["name"] = strings.TrimSpace(name.Text())
		}
		resident["data"] = strings.TrimSpace(htmlutil.BlockText(card.Find("div.js-contact-card-details")))
		data["resident"] = resident
	}

	if card := doc.Find("div.js-vendor-contact-card"); card.Length() > 0 {
		var contactLines []string
		card.Find("div.js-contact-card-details span").Each(func(_ int, span *goquery.Selection) {
			contactLines = append(contactLines, strings.TrimSpace(span.Text()))
		})
		data["vendor"] = map[string]any{
			"name":    strings.TrimSpace(card.Find("span.contact-card__name").Text()),
			"contact": strings.Join(contactLines, "\n"),
		}
	}

	if priority := doc.Find("span.js-service-request-header-priority"); priority.Length() > 0 {
		data["priority"] = strings.TrimSpace(priority.Text())
	}

	if log := doc.Find("div.js-activity-log"); log.Length() > 0 {
		var actions []string
		log.Find("div.js-activity-log-row").Each(func(_ int, row *goquery.Selection) {
			actions = append(actions, htmlutil.BlockText(row))
		})
		data["actions"] = actions
	}

	if instructions := doc.Find("div.js-work-order-vendor-instructions"); instructions.Length() > 0 {
		data["vendor_instructions"] = htmlutil.BlockText(instructions)
	}

	if notesBlock := doc.Find("div#notes div.card-body"); notesBlock.Length() > 0 && serviceId != "" {
		notes, err := c.FetchNotes(ctx, serviceId)
		if err != nil {
			slog.ErrorContext(ctx, "failed to fetch work order notes", "service_id", serviceId, "err", err)
		} else {
			data["notes"] = notes
		}
	}

	if attachments := doc.Find("div.js-work-order-body__attachments"); attachments.Length() > 0 && serviceId != "" {
		attached, err := c.FetchAttachments(ctx, serviceId)
		if err != nil {
			slog.ErrorContext(ctx, "failed to fetch work order attachments", "service_id", serviceId, "err", err)
		} else {
			data["attachments"] = attached
		}
	}

	if assigned := doc.Find("div.js-assigned-to"); assigned.Length() > 0 {
		var assignees []string
		assigned.Find("span.js-assignee-name").Each(func(_ int, name *goquery.Selection) {
			assignees = append(assignees, strings.TrimSpace(name.Text()))
		})
		data["assigned_to"] = assignees
	}

	return data, nil
}
