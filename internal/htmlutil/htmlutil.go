package htmlutil

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"

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

var innerWhitespace = regexp.MustCompile(`\s+`)

// CleanText turns every unicode space (nbsp, thin space, ...) into a plain
// space, drops non-printable runes, collapses runs of whitespace and trims.
func CleanText(s string) string {
	var out strings.Builder
	out.Grow(len(s))
	for _, c := range s {
		switch {
		case unicode.IsSpace(c):
			out.WriteRune(' ')
		case unicode.IsPrint(c):
			out.WriteRune(c)
		}
	}
	return strings.TrimSpace(innerWhitespace.ReplaceAllString(out.String(), " "))
}

// SelectionText is the cleaned text of every node in the selection.
func SelectionText(sel *goquery.Selection) string {
	var buffer bytes.Buffer
	for _, n := range sel.Nodes {
		getTextRecursive(n, &buffer)
	}
	return CleanText(buffer.String())
}
