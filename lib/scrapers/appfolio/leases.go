package appfolio

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"

	"rentassist-backend/lib/htmlutil"
)

// LeaseDocument is one row of the lease documents table. Tenants holds the
// tenant names of the lease, Fields the remaining columns keyed by header,
// and Action the row's pending action link when one is offered.
type LeaseDocument struct {
	DocumentId string            `json:"document_id"`
	Tenants    []string          `json:"tenants"`
	Fields     map[string]string `json:"fields"`
	Action     *LeaseAction      `json:"action,omitempty"`
}

type LeaseAction struct {
	Text string `json:"text"`
	Link string `json:"link"`
}

// FetchLeaseDocuments lists every lease document of the deployment.
func (c *Client) FetchLeaseDocuments(ctx context.Context) ([]LeaseDocument, error) {
	ctx, span := tracer.Start(ctx, "FetchLeaseDocuments")
	defer span.End()

	headers := c.baseHeaders()
	headers["Accept"] = "application/json, text/javascript, */*; q=0.01"

	body, err := c.execute(ctx, "GET", "/lease_documents?filter_type=", headers, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch lease documents")
		return nil, err
	}

	resultsHtml := body
	var payload struct {
		ResultsHtml string `json:"results_html"`
	}
	if json.Unmarshal([]byte(body), &payload) == nil && payload.ResultsHtml != "" {
		resultsHtml = payload.ResultsHtml
	}

	documents, err := c.parseLeaseTable(resultsHtml)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse lease documents table")
		return nil, err
	}
	return documents, nil
}

func (c *Client) parseLeaseTable(resultsHtml string) ([]LeaseDocument, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resultsHtml))
	if err != nil {
		return nil, err
	}
	table := doc.Find("table#lease_documents_list_table")

	var headers []string
	table.Find("th").Each(func(_ int, th *goquery.Selection) {
		headers = append(headers, strings.TrimSpace(th.Text()))
	})

	var documents []LeaseDocument
	table.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		document := LeaseDocument{Fields: map[string]string{}}

		if dataHref, exists := row.Attr("data-href"); exists && dataHref != "" {
			parts := strings.Split(dataHref, "/")
			document.DocumentId = parts[len(parts)-1]
		}

		cells := row.Find("td")
		cells.Each(func(i int, cell *goquery.Selection) {
			if i >= len(headers) {
				return
			}
			switch i {
			case 0:
				// tenant names separated by <br>
				for _, line := range strings.Split(htmlutil.BlockText(cell), "\n") {
					if line = strings.TrimSpace(line); line != "" {
						document.Tenants = append(document.Tenants, line)
					}
				}
			case 4:
				link := cell.Find("a").First()
				if link.Length() > 0 {
					href, _ := link.Attr("href")
					document.Action = &LeaseAction{
						Text: strings.TrimSpace(link.Text()),
						Link: c.absoluteUrl(href),
					}
				}
			default:
				document.Fields[headers[i]] = strings.TrimSpace(cell.Text())
			}
		})

		documents = append(documents, document)
	})
	return documents, nil
}
