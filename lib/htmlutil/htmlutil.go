// Package htmlutil holds small text-extraction helpers shared by the page
// scrapers.
package htmlutil

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

// BlockText extracts all text from the selection and its descendants,
// returning each text node's trimmed content on its own line. Empty text
// nodes are skipped.
func BlockText(sel *goquery.Selection) string {
	var lines []string
	for _, node := range sel.Nodes {
		collectTextLines(node, &lines)
	}
	return strings.Join(lines, "\n")
}

func collectTextLines(node *html.Node, lines *[]string) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		text := strings.TrimSpace(node.Data)
		if text != "" {
			*lines = append(*lines, text)
		}
		return
	}
	child := node.FirstChild
	for child != nil {
		collectTextLines(child, lines)
		child = child.NextSibling
	}
}

var tagRegex = regexp.MustCompile(`<[^>]+>`)

// StripTags removes markup from an HTML fragment without parsing it, the way
// table cells embedded in JSON responses are cleaned upstream.
func StripTags(fragment string) string {
	return tagRegex.ReplaceAllString(fragment, "")
}

// CellText parses an HTML fragment and returns its trimmed text content.
func CellText(fragment string) string {
	node, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(StripTags(fragment))
	}
	return strings.TrimSpace(GetText(node))
}
