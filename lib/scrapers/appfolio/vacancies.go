package appfolio

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"

	"rentassist-backend/lib/htmlutil"
)

// Vacancy is a listing card merged with the fields scraped off its
// marketing page.
type Vacancy map[string]any

// FetchVacancies lists current vacancy cards and enriches each with its
// unit/property marketing page. Cards are fetched concurrently and collected
// as they complete; a card whose page fails to parse is skipped.
func (c *Client) FetchVacancies(ctx context.Context) ([]Vacancy, error) {
	ctx, span := tracer.Start(ctx, "FetchVacancies")
	defer span.End()

	query := url.Values{}
	query.Set("filters[properties_ids]", "")
	query.Set("filters[bedrooms]", "")
	query.Set("filters[min_rent]", "")
	query.Set("filters[max_rent]", "")
	query.Set("filters[available_from]", "")
	query.Set("filters[available_to]", "")
	query.Set("filters[cats]", "")
	query.Set("filters[dogs]", "")
	query.Set("filters[sort_by]", "websitePostingVisible")

	headers := c.baseHeaders()
	headers["Accept"] = "application/json; q=0.01"

	body, err := c.execute(ctx, "GET", "/vacancies", headers, query, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch vacancies")
		return nil, err
	}

	// some deployments answer {"results_html": ...}, others raw markup
	resultsHtml := body
	var payload struct {
		ResultsHtml string `json:"results_html"`
	}
	if json.Unmarshal([]byte(body), &payload) == nil && payload.ResultsHtml != "" {
		resultsHtml = payload.ResultsHtml
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resultsHtml))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse vacancy list")
		return nil, err
	}

	var vacancies []Vacancy
	var lock sync.Mutex
	var wg sync.WaitGroup

	doc.Find("div.js-listable-card").Each(func(_ int, card *goquery.Selection) {
		wg.Add(1)
		go func() {
			defer wg.Done()

			vacancy, err := c.parseVacancyTask(ctx, card)
			if err != nil {
				slog.ErrorContext(ctx, "failed to parse vacancy", "err", err)
				return
			}

			lock.Lock()
			defer lock.Unlock()
			vacancies = append(vacancies, vacancy)
		}()
	})
	wg.Wait()

	return vacancies, nil
}

var campaignHrefRegex = regexp.MustCompile(`href=['"]([^'"]*)['"]`)
var campaignEscapedHrefRegex = regexp.MustCompile(`href=\\['"]([^\\'"]*)\\['"]`)

func (c *Client) parseVacancyTask(ctx context.Context, card *goquery.Selection) (Vacancy, error) {
	headers := c.baseHeaders()
	headers["Accept"] = "*/*"

	vacancy := c.parseVacancyCard(card)
	pageUrl, _ := vacancy["link"].(string)

	if strings.Contains(pageUrl, "campaigns") {
		// the response here is js carrying modal markup; the real page
		// url hides inside it
		fragment, err := c.execute(ctx, "GET", pageUrl, headers, nil, nil)
		if err != nil {
			return nil, err
		}
		pageUrl = c.extractCampaignLink(fragment)
		if pageUrl != "" {
			vacancy["link"] = pageUrl
		}
	}

	if pageUrl == "" {
		return vacancy, nil
	}

	page, err := c.execute(ctx, "GET", pageUrl, headers, nil, nil)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, err
	}

	for k, v := range parseVacancyPage(doc) {
		vacancy[k] = v
	}
	return vacancy, nil
}

// extractCampaignLink digs the campaign unit link out of the modal JS,
// trying the plain href pattern first, then the backslash-escaped one.
func (c *Client) extractCampaignLink(fragment string) string {
	start := strings.Index(fragment, "campaign_unit_type_link")
	if start == -1 {
		return ""
	}
	end := start + 150
	if end > len(fragment) {
		end = len(fragment)
	}
	window := fragment[start:end]

	if groups := campaignHrefRegex.FindStringSubmatch(window); len(groups) >= 2 {
		return c.absoluteUrl(groups[1])
	}
	if groups := campaignEscapedHrefRegex.FindStringSubmatch(window); len(groups) >= 2 {
		return c.absoluteUrl(groups[1])
	}
	return ""
}

func (c *Client) parseVacancyCard(card *goquery.Selection) Vacancy {
	vacancy := Vacancy{}

	if name := card.Find("span.js-card-title"); name.Length() > 0 {
		vacancy["name"] = strings.TrimSpace(name.Text())
		if href, exists := name.Find("a").Attr("href"); exists {
			vacancy["link"] = c.absoluteUrl(href)
		}
	}

	if address := card.Find("span.js-card-address"); address.Length() > 0 {
		text := strings.TrimSpace(address.Text())
		vacancy["address"] = strings.Split(text, "Edit")[0]
	}

	if table := card.Find("table.unit-property-card__table"); table.Length() > 0 {
		var rentData []map[string]string
		table.Find("td").Each(func(_ int, td *goquery.Selection) {
			title := strings.TrimSpace(td.Find("span.unit-property-card__tiny-header").Text())
			value := strings.TrimSpace(td.Find(`[class^=js-card]`).Text())
			rentData = append(rentData, map[string]string{title: value})
		})
		vacancy["rent_data"] = rentData
	}

	actions := card.Find("div.action-table")
	if rentStatus := actions.Find("p.js-vacancy-type"); rentStatus.Length() > 0 {
		vacancy["rent_status"] = strings.TrimSpace(rentStatus.Text())
	}

	if table := actions.Find("table"); table.Length() > 0 {
		if row := table.Find("tr.js-website-tasks td.js-task-status"); row.Length() > 0 {
			vacancy["website_status"] = strings.TrimSpace(row.Text())
		}
		if row := table.Find("tr.js-internet-tasks td.js-task-status"); row.Length() > 0 {
			vacancy["internet_status"] = strings.TrimSpace(row.Text())
		}
		if row := table.Find("tr.js-premium-tasks td.js-task-status"); row.Length() > 0 {
			vacancy["premium_status"] = strings.TrimSpace(row.Text())
		}
		if refresh := table.Find("td.action-table__refresh-container"); refresh.Length() > 0 {
			vacancy["last_updated"] = strings.TrimSpace(refresh.Text())
		}
	}

	return vacancy
}

func parseVacancyPage(doc *goquery.Document) map[string]any {
	data := map[string]any{}
	unit := map[string]any{}
	property := map[string]any{}
	campaign := map[string]any{}

	if desc := doc.Find("div.unit-name-and-address"); desc.Length() > 0 {
		if unitType := desc.Find("div.js-unit_template_key_value_datapair div.datapair__value"); unitType.Length() > 0 {
			unit["type"] = strings.TrimSpace(unitType.Text())
		}
	}

	if desc := doc.Find("div.property-name-and-address"); desc.Length() > 0 {
		if propertyType := desc.Find("div#property_type_value"); propertyType.Length() > 0 {
			property["type"] = strings.TrimSpace(propertyType.Text())
		}
		if county := desc.Find("div.js-marketing-property-county"); county.Length() > 0 {
			property["county"] = strings.TrimSpace(county.Text())
		}
	}

	sections := []struct {
		selector string
		target   map[string]any
		key      string
	}{
		{"div#unit_information_show", unit, "general"},
		{"div#property_information_show", property, "general"},
		{"div#unit_rental_information_show", unit, "rental_info"},
		{"div#property_rental_information_show", property, "rental_info"},
		{"div#amenities_information_show", data, "amenities"},
		{"div#unit_marketing_information_show", unit, "marketing_info"},
		{"div#property_marketing_information_show", property, "marketing_info"},
		{"div#unit_template_basic_information_show", campaign, "rental_info"},
		{"div#unit_template_basic_information_show", campaign, "marketing_info"},
	}
	for _, section := range sections {
		if elem := doc.Find(section.selector); elem.Length() > 0 {
			section.target[section.key] = parseDataPairs(elem.Find("div.datapair"))
		}
	}

	// some page variants only render amenities under a plain card header
	if data["amenities"] == nil {
		doc.Find("h2").EachWithBreak(func(_ int, h2 *goquery.Selection) bool {
			if strings.TrimSpace(h2.Text()) != "Amenities" {
				return true
			}
			cardHeader := h2.Closest("div.card-header")
			if cardHeader.Length() == 0 {
				return true
			}
			section := cardHeader.Closest("section")
			if section.Length() == 0 {
				return true
			}
			data["amenities"] = parseDataPairs(section.Find("div.datapair"))
			return false
		})
	}

	data["unit"] = unit
	data["property"] = property
	data["campaign"] = campaign
	return data
}

func parseDataPairs(pairs *goquery.Selection) map[string]string {
	data := map[string]string{}
	pairs.Each(func(_ int, pair *goquery.Selection) {
		key := strings.TrimSpace(pair.Find("div.datapair__key").Text())
		value := htmlutil.BlockText(pair.Find("div.datapair__value"))
		value = strings.ReplaceAll(value, "View Nearby Advertised Units", "")
		data[key] = strings.TrimSpace(value)
	})
	return data
}
