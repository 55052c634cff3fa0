package appfolio

import (
	"context"
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"

	"rentassist-backend/lib/htmlutil"
)

// Tenant is one row of the occupancies table keyed by its column headers,
// plus the "Occupancy ID" and "Selected Tenant ID" extracted from the name
// cell's link.
type Tenant map[string]string

// TenantMove is a merged move-in/move-out record for one tenant.
type TenantMove struct {
	TenantId     string `json:"tenant_id"`
	TenantName   string `json:"tenant_name"`
	PropertyUnit string `json:"property_unit"`
	PropertyName string `json:"property_name"`
	Unit         string `json:"unit"`
	MoveInDate   string `json:"move_in_date"`
	MoveOutDate  string `json:"move_out_date"`
	MoveOutType  string `json:"moveout_type"`
	MoveOutId    string `json:"moveout_id"`
	IsOverdue    bool   `json:"is_overdue"`
}

// FetchAllTenants reads one page of the occupancies table sorted by name.
func (c *Client) FetchAllTenants(ctx context.Context, page int) ([]Tenant, error) {
	ctx, span := tracer.Start(ctx, "FetchAllTenants")
	defer span.End()

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("sort[by]", "name")
	query.Set("sort[order]", "asc")

	body, err := c.execute(ctx, "GET", "/occupancies", c.ajaxHeaders(), query, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch occupancies")
		return nil, err
	}

	table, err := decodeTable(body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode occupancies table")
		return nil, err
	}
	headers := table.headers()

	var tenants []Tenant
	for _, row := range table.BodyRowData {
		tenant := Tenant(table.rowMap(headers, row))
		if unit, ok := tenant["Unit"]; ok {
			delete(tenant, "Unit")
			tenant["Unit Name"] = unit
		}

		occupancyId, tenantId := parseOccupancyHref(row.cellHtml(0))
		tenant["Occupancy ID"] = occupancyId
		tenant["Selected Tenant ID"] = tenantId

		tenants = append(tenants, tenant)
	}
	return tenants, nil
}

// parseOccupancyHref pulls the occupancy and selected-tenant ids out of a
// name cell linking to /occupancies/<id>/selected_tenant/<id>.
func parseOccupancyHref(cellHtml string) (occupancyId, tenantId string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(cellHtml))
	if err != nil {
		return "", ""
	}
	href, exists := doc.Find("a").Attr("href")
	if !exists {
		return "", ""
	}
	parts := strings.Split(strings.Trim(href, "/"), "/")
	if len(parts) >= 4 && parts[0] == "occupancies" && parts[2] == "selected_tenant" {
		return parts[1], parts[3]
	}
	return "", ""
}

var emailRegex = regexp.MustCompile(`(?i)\b[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}\b`)

// FetchTenantEmail scrapes the tenant's email off their occupancy page.
// Returns "" when the page carries no mailto link.
func (c *Client) FetchTenantEmail(ctx context.Context, occupancyId, tenantId string) (string, error) {
	ctx, span := tracer.Start(ctx, "FetchTenantEmail")
	defer span.End()

	path := fmt.Sprintf("/occupancies/%s/selected_tenant/%s", occupancyId, tenantId)
	body, err := c.execute(ctx, "GET", path, c.htmlHeaders(), nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch occupancy page")
		return "", err
	}

	if strings.Contains(body, "Occupancy not found.") {
		return "", &APIError{
			Message: fmt.Sprintf("occupancy not found (occupancy: %s, tenant: %s)", occupancyId, tenantId),
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("appfolio: parse occupancy page: %w", err)
	}

	href, exists := doc.Find("a.js-email-mail-to").First().Attr("href")
	if exists && strings.HasPrefix(strings.ToLower(href), "mailto:") {
		candidate := href[len("mailto:"):]
		if match := emailRegex.FindString(candidate); match == candidate {
			return candidate, nil
		}
	}
	return "", nil
}

// FetchTenancyMoveData joins the dashboard's move-in and move-out tables
// into one record per tenant, matched by name.
func (c *Client) FetchTenancyMoveData(ctx context.Context) ([]TenantMove, error) {
	ctx, span := tracer.Start(ctx, "FetchTenancyMoveData")
	defer span.End()

	moveIns, err := c.fetchMoveIns(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch move-ins")
		return nil, err
	}
	moveOuts, err := c.fetchMoveOuts(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch move-outs")
		return nil, err
	}

	return mergeMoves(moveIns, moveOuts), nil
}

type tenantMoveIn struct {
	tenantId     string
	tenantName   string
	propertyUnit string
	propertyName string
	unit         string
	moveInDate   string
}

type tenantMoveOut struct {
	tenantName   string
	propertyUnit string
	propertyName string
	unit         string
	moveOutDate  string
	moveOutType  string
	moveOutId    string
	isOverdue    bool
}

// fetchMoveIns pages through the dashboard move-in table. The endpoint keeps
// serving the last page verbatim past the end, so a repeat ends the loop.
func (c *Client) fetchMoveIns(ctx context.Context) ([]tenantMoveIn, error) {
	query := url.Values{}
	query.Set("sort[by]", "move_in_flow_date")
	query.Set("sort[order]", "asc")

	var tenants []tenantMoveIn
	var mostRecent []tenantMoveIn
	for page := 1; ; page++ {
		query.Set("page", strconv.Itoa(page))
		body, err := c.execute(ctx, "GET", "/dashboard/move_ins_data", c.ajaxHeaders(), query, nil)
		if err != nil {
			return nil, err
		}
		table, err := decodeTable(body)
		if err != nil {
			return nil, err
		}

		ins := parseMoveIns(table)
		if len(ins) == 0 || reflect.DeepEqual(ins, mostRecent) {
			break
		}
		tenants = append(tenants, ins...)
		mostRecent = ins
	}
	return tenants, nil
}

func (c *Client) fetchMoveOuts(ctx context.Context) ([]tenantMoveOut, error) {
	query := url.Values{}
	query.Set("sort[by]", "move_out_flow_date")
	query.Set("sort[order]", "asc")

	var tenants []tenantMoveOut
	var mostRecent []tenantMoveOut
	for page := 1; ; page++ {
		query.Set("page", strconv.Itoa(page))
		body, err := c.execute(ctx, "GET", "/dashboard/move_outs_data", c.ajaxHeaders(), query, nil)
		if err != nil {
			return nil, err
		}
		table, err := decodeTable(body)
		if err != nil {
			return nil, err
		}

		outs := parseMoveOuts(table)
		if len(outs) == 0 || reflect.DeepEqual(outs, mostRecent) {
			break
		}
		tenants = append(tenants, outs...)
		mostRecent = outs
	}
	return tenants, nil
}

var webFlowIdRegex = regexp.MustCompile(`web_flow_id=(\d+)`)
var moveOutIdRegex = regexp.MustCompile(`/move_outs/(\d+)`)
var hrefValueRegex = regexp.MustCompile(`href="([^"]+)"`)

func parseMoveIns(table tableResponse) []tenantMoveIn {
	var tenants []tenantMoveIn
	for _, row := range table.BodyRowData {
		var tenant tenantMoveIn

		if nameHtml := row.cellHtml(0); nameHtml != "" {
			if groups := hrefValueRegex.FindStringSubmatch(nameHtml); len(groups) >= 2 {
				if id := webFlowIdRegex.FindStringSubmatch(groups[1]); len(id) >= 2 {
					tenant.tenantId = id[1]
				}
			}
			tenant.tenantName = htmlutil.StripTags(nameHtml)
		}

		tenant.propertyUnit, tenant.propertyName, tenant.unit = splitPropertyUnit(row.cellHtml(1))
		tenant.moveInDate = htmlutil.StripTags(row.cellHtml(2))

		tenants = append(tenants, tenant)
	}
	return tenants
}

func parseMoveOuts(table tableResponse) []tenantMoveOut {
	var tenants []tenantMoveOut
	for _, row := range table.BodyRowData {
		var tenant tenantMoveOut

		if nameHtml := row.cellHtml(0); nameHtml != "" {
			if groups := hrefValueRegex.FindStringSubmatch(nameHtml); len(groups) >= 2 {
				if id := moveOutIdRegex.FindStringSubmatch(groups[1]); len(id) >= 2 {
					tenant.moveOutId = id[1]
				}
			}
			tenant.tenantName = htmlutil.StripTags(nameHtml)
		}

		tenant.moveOutType = htmlutil.StripTags(row.cellHtml(1))
		tenant.propertyUnit, tenant.propertyName, tenant.unit = splitPropertyUnit(row.cellHtml(2))

		if dateHtml := row.cellHtml(3); dateHtml != "" {
			tenant.isOverdue = strings.Contains(dateHtml, "text-danger")
			tenant.moveOutDate = htmlutil.StripTags(dateHtml)
		}

		tenants = append(tenants, tenant)
	}
	return tenants
}

// splitPropertyUnit breaks "Property - Unit" cells into their halves, keeping
// the combined text as well.
func splitPropertyUnit(cellHtml string) (combined, property, unit string) {
	combined = htmlutil.StripTags(cellHtml)
	if property, unit, ok := strings.Cut(combined, " - "); ok {
		return combined, strings.TrimSpace(property), strings.TrimSpace(unit)
	}
	return combined, combined, ""
}

func mergeMoves(moveIns []tenantMoveIn, moveOuts []tenantMoveOut) []TenantMove {
	outsByName := make(map[string]tenantMoveOut, len(moveOuts))
	for _, out := range moveOuts {
		outsByName[strings.ToLower(out.tenantName)] = out
	}

	var merged []TenantMove
	seen := make(map[string]bool, len(moveIns))
	for _, in := range moveIns {
		move := TenantMove{
			TenantId:     in.tenantId,
			TenantName:   in.tenantName,
			PropertyUnit: in.propertyUnit,
			PropertyName: in.propertyName,
			Unit:         in.unit,
			MoveInDate:   in.moveInDate,
		}
		if out, ok := outsByName[strings.ToLower(in.tenantName)]; ok {
			move.MoveOutDate = out.moveOutDate
			move.MoveOutType = out.moveOutType
			move.MoveOutId = out.moveOutId
			move.IsOverdue = out.isOverdue
		}
		seen[strings.ToLower(in.tenantName)] = true
		merged = append(merged, move)
	}

	for _, out := range moveOuts {
		if seen[strings.ToLower(out.tenantName)] {
			continue
		}
		merged = append(merged, TenantMove{
			TenantName:   out.tenantName,
			PropertyUnit: out.propertyUnit,
			PropertyName: out.propertyName,
			Unit:         out.unit,
			MoveOutDate:  out.moveOutDate,
			MoveOutType:  out.moveOutType,
			MoveOutId:    out.moveOutId,
			IsOverdue:    out.isOverdue,
		})
	}
	return merged
}
