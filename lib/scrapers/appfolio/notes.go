package appfolio

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"

	"rentassist-backend/lib/htmlutil"
)

const noteDecoratorType = "Maintenance::ServiceRequestDecorator"

// FetchNotes loads the notes attached to a service request. The endpoint
// answers with a JS fragment that injects HTML via .html("..."), so the
// markup has to be dug out of the string literal first. A missing fragment
// yields nil, not an error.
func (c *Client) FetchNotes(ctx context.Context, serviceId string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "FetchNotes")
	defer span.End()

	query := url.Values{}
	query.Set("add_notes_for_id", serviceId)
	query.Set("add_notes_for_type", noteDecoratorType)
	query.Set("show_all", "true")
	query.Set("show_notes_for_id", serviceId)
	query.Set("show_notes_for_type", noteDecoratorType)

	headers := c.baseHeaders()
	headers["Accept"] = "*/*;q=0.5, text/javascript, application/javascript, application/ecmascript, application/x-ecmascript"

	body, err := c.execute(ctx, "GET", "/notes", headers, query, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch notes fragment")
		return nil, err
	}

	content, ok := extractHtmlPayload(body)
	if !ok {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse notes html")
		return nil, fmt.Errorf("appfolio: parse notes fragment: %w", err)
	}

	var notes []string
	doc.Find("section.js-notes-block div.js-block-show").Each(func(_ int, item *goquery.Selection) {
		note := htmlutil.BlockText(item)
		if note == "" {
			return
		}
		note = strings.ReplaceAll(note, "\nEdit\nDelete", "")
		note = strings.ReplaceAll(note, "\nshow full note\ncollapse note", "")
		notes = append(notes, note)
	})

	return notes, nil
}

// extractHtmlPayload pulls the HTML string literal out of a .html("...")
// call in a JS response. Regex matching proved inconsistent upstream, so
// this scans for the quote delimiters directly.
func extractHtmlPayload(response string) (string, bool) {
	startIdx := strings.Index(response, ".html(")
	if startIdx == -1 {
		return "", false
	}
	contentStart := strings.Index(response[startIdx:], `"`)
	if contentStart == -1 {
		return "", false
	}
	contentStart += startIdx

	contentEnd := strings.LastIndex(response, `"`)
	if contentEnd == -1 || contentEnd <= contentStart {
		return "", false
	}

	content := response[contentStart+1 : contentEnd]
	content = strings.ReplaceAll(content, `\"`, `"`)
	content = strings.ReplaceAll(content, `\n`, "\n")
	content = strings.ReplaceAll(content, `\/`, "/")
	return strings.TrimSpace(content), true
}

type noteForm struct {
	Token       string
	NotableId   string
	NotableType string
}

var (
	authenticityTokenRegex = regexp.MustCompile(`name=\\?"authenticity_token\\?"[^>]*?value=\\?"([^"\\]+)\\?"`)
	notableIdRegex         = regexp.MustCompile(`name=\\?"note\[notable_id\]\\?"[^>]*?value=\\?"([^"\\]+)\\?"`)
	notableTypeRegex       = regexp.MustCompile(`name=\\?"note\[notable_type\]\\?"[^>]*?value=\\?"([^"\\]+)\\?"`)
)

// parseNoteForm extracts the form token and parent identifiers from the
// new-note form fragment. The fragment arrives as JS-escaped HTML, so the
// patterns tolerate both escaped and plain quotes.
func parseNoteForm(fragment string) (noteForm, error) {
	token := authenticityTokenRegex.FindStringSubmatch(fragment)
	if len(token) < 2 {
		return noteForm{}, &APIError{Message: "new note form has no authenticity token"}
	}
	form := noteForm{Token: token[1]}

	if groups := notableIdRegex.FindStringSubmatch(fragment); len(groups) >= 2 {
		form.NotableId = groups[1]
	}
	if groups := notableTypeRegex.FindStringSubmatch(fragment); len(groups) >= 2 {
		form.NotableType = groups[1]
	}
	return form, nil
}

var whitespaceRegex = regexp.MustCompile(`\s+`)

// noteCreated checks whether the posted note text shows up in the response:
// exact match, whitespace-insensitive match, or inside a <span>.
func noteCreated(response, note string) bool {
	if strings.Contains(response, note) {
		return true
	}

	collapse := func(s string) string {
		return whitespaceRegex.ReplaceAllString(s, " ")
	}
	if strings.Contains(collapse(response), collapse(note)) {
		return true
	}

	spanRegex := regexp.MustCompile(`<span[^>]*>\s*` + regexp.QuoteMeta(note) + `\s*</span>`)
	return spanRegex.MatchString(response)
}

// CreateNote posts a note onto a service request: fetch the new-note form
// fragment, lift its authenticity token and parent identifiers, post the
// note form-encoded, then verify the note text actually landed.
func (c *Client) CreateNote(ctx context.Context, serviceId, note string) error {
	ctx, span := tracer.Start(ctx, "CreateNote")
	defer span.End()

	query := url.Values{}
	query.Set("add_notes_for_id", serviceId)
	query.Set("add_notes_for_type", noteDecoratorType)

	headers := c.baseHeaders()
	headers["Accept"] = "*/*;q=0.5, text/javascript, application/javascript, application/ecmascript, application/x-ecmascript"

	fragment, err := c.execute(ctx, "GET", "/notes/new", headers, query, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch new note form")
		return err
	}

	form, err := parseNoteForm(fragment)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse new note form")
		return err
	}
	if form.NotableId == "" {
		form.NotableId = serviceId
	}
	if form.NotableType == "" {
		form.NotableType = noteDecoratorType
	}

	formData := url.Values{}
	formData.Set("utf8", "✓")
	formData.Set("authenticity_token", form.Token)
	formData.Set("note[note]", note)
	formData.Set("note[notable_id]", form.NotableId)
	formData.Set("note[notable_type]", form.NotableType)
	formData.Set("commit", "Save")

	postHeaders := c.baseHeaders()
	postHeaders["Accept"] = "*/*;q=0.5, text/javascript, application/javascript, application/ecmascript, application/x-ecmascript"
	postHeaders["Content-Type"] = "application/x-www-form-urlencoded"

	response, err := c.execute(ctx, "POST", "/notes", postHeaders, nil, formData.Encode())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to post note")
		return err
	}

	if !noteCreated(response, note) {
		err := &APIError{Message: "created note not found in response"}
		span.RecordError(err)
		span.SetStatus(codes.Error, "note verification failed")
		return err
	}
	return nil
}
