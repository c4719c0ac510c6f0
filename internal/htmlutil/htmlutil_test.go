package htmlutil

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	table := []struct {
		input    string
		expected string
	}{
		{input: "  Mono\u00a0PERC \n 158mm ", expected: "Mono PERC 158mm"},
		{input: "1\u2009234.50", expected: "1 234.50"},
		{input: "a\u200bb", expected: "ab"},
		{input: "\t\n", expected: ""},
	}

	for _, row := range table {
		require.Equal(t, row.expected, CleanText(row.input))
	}
}

func TestSelectionText(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<table><tr><td> <b>High</b>&nbsp;price </td></tr></table>`,
	))
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "High price", SelectionText(doc.Find("td")))
	require.Equal(t, " High\u00a0price ", GetText(doc.Find("td").Nodes[0]))
}
