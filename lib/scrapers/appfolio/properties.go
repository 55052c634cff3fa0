package appfolio

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/html"
)

// Property is one row of the properties index table.
type Property struct {
	// Name is empty when the listing carries only an address.
	Name          string `json:"name"`
	StreetAddress string `json:"street_address"`
	CityStateZip  string `json:"city_state_zip"`
	Url           string `json:"url"`
	Type          string `json:"type"`
	Units         string `json:"units"`
	Vacant        bool   `json:"vacant"`
	Owner         string `json:"owner"`
}

// Unit is one row of a property's units table keyed by its column headers,
// plus derived "Unit URL", "Unit ID", "Occupant ID", "Lease Start" and
// "Lease End" entries.
type Unit map[string]string

// FetchProperties reads one page of the properties index, hidden properties
// included.
func (c *Client) FetchProperties(ctx context.Context, page int) ([]Property, error) {
	ctx, span := tracer.Start(ctx, "FetchProperties")
	defer span.End()

	query := url.Values{}
	query.Set("hoa_index_page", "false")
	query.Set("include_hidden_properties", "true")
	query.Set("page", strconv.Itoa(page))
	query.Set("sort[by]", "name")
	query.Set("sort[order]", "asc")

	body, err := c.execute(ctx, "GET", "/properties", c.ajaxHeaders(), query, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch properties")
		return nil, err
	}

	table, err := decodeTable(body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode properties table")
		return nil, err
	}

	var properties []Property
	for _, row := range table.BodyRowData {
		if len(row.Data) < 5 {
			continue
		}

		property := parsePropertyNameCell(row.cellHtml(0))
		property.Type = row.cellText(1)
		property.Units = row.cellText(2)
		property.Vacant = strings.EqualFold(row.cellText(3), "yes")
		property.Owner = row.cellText(4)

		properties = append(properties, property)
	}
	return properties, nil
}

// parsePropertyNameCell splits the name cell's link into name, street address
// and city/state/zip lines. A repeated first line means the property has no
// display name, just its address.
func parsePropertyNameCell(cellHtml string) Property {
	var property Property

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(cellHtml))
	if err != nil {
		return property
	}
	link := doc.Find("a").First()
	if link.Length() == 0 {
		return property
	}
	property.Url, _ = link.Attr("href")

	var lines []string
	for _, node := range link.Contents().Nodes {
		if node.Type != html.TextNode {
			continue
		}
		if text := strings.TrimSpace(node.Data); text != "" {
			lines = append(lines, text)
		}
	}

	switch {
	case len(lines) >= 3:
		if lines[0] != lines[1] {
			property.Name = lines[0]
		}
		property.StreetAddress = lines[1]
		property.CityStateZip = lines[2]
	case len(lines) == 2:
		if lines[0] == lines[1] {
			property.StreetAddress = lines[0]
		} else {
			property.Name = lines[0]
			property.StreetAddress = lines[1]
		}
	case len(lines) == 1:
		property.StreetAddress = lines[0]
	}
	return property
}

// FetchUnits reads all units of one property. propertyUrl is the path or
// absolute url the properties index linked to, e.g. "/properties/1584".
func (c *Client) FetchUnits(ctx context.Context, propertyUrl string) ([]Unit, error) {
	ctx, span := tracer.Start(ctx, "FetchUnits")
	defer span.End()

	query := url.Values{}
	query.Set("items_per_page", "1000")

	body, err := c.execute(ctx, "GET", propertyUrl+"/units", c.ajaxHeaders(), query, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch units")
		return nil, err
	}
	if strings.Contains(body, "Property not found.") {
		return nil, &AuthError{
			StatusCode: 404,
			Reason:     fmt.Sprintf("property not found: %s", propertyUrl),
		}
	}

	table, err := decodeTable(body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode units table")
		return nil, err
	}
	headers := table.headers()

	var units []Unit
	for _, row := range table.BodyRowData {
		unit := Unit(table.rowMap(headers, row))
		if name, ok := unit["Unit"]; ok {
			delete(unit, "Unit")
			unit["Unit Name"] = name
		}

		unitUrl := row.attr("href")
		unit["Unit URL"] = unitUrl
		if unitUrl != "" {
			// expected shape: /properties/<property id>/units/<unit id>
			parts := strings.Split(strings.Trim(unitUrl, "/"), "/")
			if len(parts) >= 4 {
				unit["Unit ID"] = parts[3]
			}
		}

		unit["Occupant ID"] = parseOccupantHref(row.cellHtml(2))

		lease := strings.TrimSpace(unit["Lease Start/End"])
		delete(unit, "Lease Start/End")
		if start, end, ok := strings.Cut(lease, " - "); ok && lease != "N/A" {
			unit["Lease Start"] = strings.TrimSpace(start)
			unit["Lease End"] = strings.TrimSpace(end)
		} else {
			unit["Lease Start"] = ""
			unit["Lease End"] = ""
		}

		units = append(units, unit)
	}
	return units, nil
}

func parseOccupantHref(cellHtml string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(cellHtml))
	if err != nil {
		return ""
	}
	href, exists := doc.Find("a").First().Attr("href")
	if !exists || !strings.Contains(href, "/occupancies/") {
		return ""
	}
	parts := strings.SplitN(href, "/occupancies/", 2)
	return parts[len(parts)-1]
}
