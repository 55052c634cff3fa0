package appfolio

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"rentassist-backend/lib/htmlutil"
)

// tableResponse is the JSON shape the site uses for its XHR-rendered tables:
// a header row and body rows of pre-rendered HTML cells.
type tableResponse struct {
	TheadRow    string     `json:"thead_row"`
	BodyRowData []tableRow `json:"body_row_data"`
}

type tableRow struct {
	Data              []tableCell `json:"data"`
	RowDataAttributes []tableAttr `json:"row_data_attributes"`
}

type tableCell struct {
	Value string `json:"value"`
}

type tableAttr struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func decodeTable(payload string) (tableResponse, error) {
	var table tableResponse
	err := json.Unmarshal([]byte(payload), &table)
	if err != nil {
		return tableResponse{}, fmt.Errorf("appfolio: decode table payload: %w", err)
	}
	return table, nil
}

func (t tableResponse) headers() []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(t.TheadRow))
	if err != nil {
		return nil
	}
	var headers []string
	doc.Find("th").Each(func(_ int, th *goquery.Selection) {
		headers = append(headers, strings.TrimSpace(th.Text()))
	})
	return headers
}

func (r tableRow) attr(key string) string {
	for _, attr := range r.RowDataAttributes {
		if attr.Key == key {
			return attr.Value
		}
	}
	return ""
}

func (r tableRow) cellHtml(i int) string {
	if i >= len(r.Data) {
		return ""
	}
	return r.Data[i].Value
}

func (r tableRow) cellText(i int) string {
	return htmlutil.CellText(r.cellHtml(i))
}

// rowMap zips header names with cell texts, padding short rows with "".
func (t tableResponse) rowMap(headers []string, row tableRow) map[string]string {
	out := make(map[string]string, len(headers))
	for i, header := range headers {
		out[header] = row.cellText(i)
	}
	return out
}
