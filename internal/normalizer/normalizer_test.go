package normalizer

import (
	"testing"
	"time"

	"pricetrack/internal/locator"
	"pricetrack/internal/record"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var runDate = record.Date{Year: 2024, Month: time.May, Day: 2}

func moduleSchema() Schema {
	return Schema{
		Key: Column{Field: "module_type", Index: 0},
		Columns: []Column{
			{Field: "high", Index: 1, Coerce: CoerceDecimalGrouped, Required: true},
			{Field: "low", Index: 2, Coerce: CoerceDecimalGrouped},
			{Field: "avg", Index: 3, Coerce: CoerceDecimalGrouped},
			{Field: "change", Index: 4, Coerce: CoercePercentText},
		},
		HeaderTokens:   []string{"item", "high"},
		FillerLiterals: []string{"Visit here"},
		MinCells:       4,
	}
}

func TestNormalizeHeaderAndFiller(t *testing.T) {
	table := locator.TableCandidate{Rows: [][]string{
		{"Item", "High", "Low", "Avg", "Change"},
		{"Mono PERC 158mm", "0.205", "0.195", "0.200", "-1.2 %"},
		{"Visit here", "", "", "", ""},
		{"", "", "", ""},
		{"short"},
		{"TOPCon 182mm", "1,234.50", "", "0.210", ""},
	}}

	res := Normalize(table, moduleSchema(), runDate)
	require.Len(t, res.Records, 2)
	require.Empty(t, res.Rejected)
	require.Equal(t, 4, res.Skipped)

	first := res.Records[0]
	require.Equal(t, "Mono PERC 158mm", first.SourceKey)
	require.Equal(t, runDate, first.Date)
	require.True(t, first.Value("high").Equal(record.Decimal(decimal.RequireFromString("0.205"))))
	require.True(t, first.Value("avg").Equal(record.Decimal(decimal.RequireFromString("0.2"))))
	require.Equal(t, "-1.2%", first.Value("change").String())

	second := res.Records[1]
	require.Equal(t, "TOPCon 182mm", second.SourceKey)
	high, ok := second.Value("high").Decimal()
	require.True(t, ok)
	require.Equal(t, "1234.5", high.String())
	require.True(t, second.Value("low").IsNull())
	require.True(t, second.Value("change").IsNull())

	for _, r := range res.Records {
		require.Equal(t, runDate, r.Date)
	}
}

func TestNormalizeRejectsUnparseableRow(t *testing.T) {
	table := locator.TableCandidate{Rows: [][]string{
		{"Mono PERC 166mm", "N/A", "0.1", "0.1", ""},
		{"Mono PERC 182mm", "0.3", "0.2", "0.25", ""},
		{"Mono PERC 210mm", "", "0.2", "0.25", ""},
	}}

	res := Normalize(table, moduleSchema(), runDate)
	require.Len(t, res.Records, 1)
	require.Equal(t, "Mono PERC 182mm", res.Records[0].SourceKey)

	require.Len(t, res.Rejected, 2)
	require.Equal(t, 0, res.Rejected[0].Row)
	require.Equal(t, "high", res.Rejected[0].Field)
	require.Equal(t, "N/A", res.Rejected[0].Cell)
	require.Equal(t, 2, res.Rejected[1].Row)
	require.Equal(t, "missing required value", res.Rejected[1].Reason)
}

func TestNormalizeSkipRowsAndConst(t *testing.T) {
	schema := Schema{
		Key: Column{Field: "category", Index: 0},
		Columns: []Column{
			{Field: "price", Index: 1, Coerce: CoerceDecimalGrouped, Required: true},
			{Field: "currency", Const: "USD"},
		},
		SkipRows: 1,
	}
	table := locator.TableCandidate{Rows: [][]string{
		{"Category", "Price"},
		{"Polysilicon", "5.10"},
	}}

	res := Normalize(table, schema, runDate)
	require.Len(t, res.Records, 1)
	require.Equal(t, 1, res.Skipped)
	require.Equal(t, "USD", res.Records[0].Value("currency").String())
}

func TestNormalizeJSONObjects(t *testing.T) {
	schema := Schema{
		Key: Column{Field: "route", Const: "Shanghai → Casablanca"},
		Columns: []Column{
			{Field: "container_type", Const: "Conteneur 40'HC"},
			{Field: "price_min_usd", Path: "priceEstimate.min", Coerce: CoerceDecimalGrouped, Required: true},
			{Field: "price_max_usd", Path: "priceEstimate.max", Coerce: CoerceDecimalGrouped, Required: true},
			{Field: "transit_min_days", Path: "transitTime.min", Coerce: CoerceDecimalGrouped},
			{Field: "transit_max_days", Path: "transitTime.max", Coerce: CoerceDecimalGrouped},
		},
	}
	table := locator.TableCandidate{Objects: []map[string]any{{
		"priceEstimate": map[string]any{"min": "2100", "max": "2900.5"},
		"transitTime":   map[string]any{"min": float64(28)},
	}}}

	res := Normalize(table, schema, runDate)
	require.Empty(t, res.Rejected)
	require.Len(t, res.Records, 1)

	r := res.Records[0]
	require.Equal(t, "Shanghai → Casablanca", r.SourceKey)
	require.Equal(t, "2900.5", r.Value("price_max_usd").String())
	require.Equal(t, "28", r.Value("transit_min_days").String())
	require.True(t, r.Value("transit_max_days").IsNull())
}

func TestParseGroupedDecimal(t *testing.T) {
	cases := []struct {
		input    string
		expected string
		fail     bool
	}{
		{input: "1,234.50", expected: "1234.5"},
		{input: " 12\u00a0000 ", expected: "12000"},
		{input: "1_000", expected: "1000"},
		{input: "-0.05", expected: "-0.05"},
		{input: "N/A", fail: true},
		{input: "abc", fail: true},
	}

	for _, test := range cases {
		d, err := ParseGroupedDecimal(test.input)
		if test.fail {
			require.Error(t, err, test.input)
			continue
		}
		require.NoError(t, err, test.input)
		require.Equal(t, test.expected, d.String())
	}
}

func TestSchemaValidate(t *testing.T) {
	require.NoError(t, moduleSchema().Validate())

	dup := moduleSchema()
	dup.Columns = append(dup.Columns, Column{Field: "high", Index: 5})
	require.Error(t, dup.Validate())

	reserved := moduleSchema()
	reserved.Columns = append(reserved.Columns, Column{Field: record.DateColumn})
	require.Error(t, reserved.Validate())

	badKey := moduleSchema()
	badKey.Key.Coerce = CoerceDecimalGrouped
	require.Error(t, badKey.Validate())

	layout := moduleSchema().Layout()
	require.Equal(t, []string{"date", "module_type", "high", "low", "avg", "change"}, layout.Header())
}
