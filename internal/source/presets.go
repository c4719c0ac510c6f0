package source

import (
	"fmt"
	"maps"
	"slices"

	"pricetrack/internal/locator"
	"pricetrack/internal/normalizer"
)

const (
	PresetEnergyTrend = "energytrend"
	PresetPVInsights  = "pvinsights"
	PresetFreightos   = "freightos"
)

var presets = map[string]func() Source{
	PresetEnergyTrend: func() Source {
		return Source{
			Name:          PresetEnergyTrend,
			URL:           "https://www.energytrend.com/solar-price.html",
			Discriminator: locator.AtIndex(4),
			Schema: normalizer.Schema{
				Key: normalizer.Column{Field: "module_type", Index: 0},
				Columns: []normalizer.Column{
					{Field: "high", Index: 1, Coerce: normalizer.CoerceDecimalGrouped},
					{Field: "low", Index: 2, Coerce: normalizer.CoerceDecimalGrouped},
					{Field: "avg", Index: 3, Coerce: normalizer.CoerceDecimalGrouped, Required: true},
					{Field: "change", Index: 4, Coerce: normalizer.CoercePercentText},
				},
				HeaderTokens: []string{"item"},
				MinCells:     4,
			},
		}
	},
	PresetPVInsights: func() Source {
		return Source{
			Name:          PresetPVInsights,
			URL:           "http://pvinsights.com/index.php",
			Discriminator: locator.WithClass("price"),
			Schema: normalizer.Schema{
				Key: normalizer.Column{Field: "category", Index: 0},
				Columns: []normalizer.Column{
					{Field: "price", Index: 1, Coerce: normalizer.CoerceDecimalGrouped, Required: true},
					{Field: "currency", Const: "USD"},
				},
				MinCells: 2,
				SkipRows: 1,
			},
		}
	},
	PresetFreightos: func() Source {
		return Source{
			Name:   PresetFreightos,
			URL:    "https://api.freightos.com/api/v1/freightEstimates",
			Method: "POST",
			Body: map[string]any{
				"load": []any{map[string]any{
					"quantity":      1,
					"unitType":      "container40HC",
					"unitWeightKg":  17000,
					"unitVolumeCBM": 76.3,
				}},
				"legs": []any{map[string]any{
					"origin":      map[string]any{"unLocationCode": "CNSHA"},
					"destination": map[string]any{"unLocationCode": "MACAS"},
				}},
			},
			Discriminator:  locator.AtPath("OCEAN"),
			TimeoutSeconds: 10,
			Schema: normalizer.Schema{
				Key: normalizer.Column{Field: "route", Const: "Shanghai → Casablanca"},
				Columns: []normalizer.Column{
					{Field: "container_type", Const: "Conteneur 40'HC"},
					{Field: "weight_tons", Const: "17", Coerce: normalizer.CoerceDecimalGrouped},
					{Field: "price_min_usd", Path: "priceEstimate.min", Coerce: normalizer.CoerceDecimalGrouped, Required: true},
					{Field: "price_max_usd", Path: "priceEstimate.max", Coerce: normalizer.CoerceDecimalGrouped, Required: true},
					{Field: "transit_min_days", Path: "transitTime.min", Coerce: normalizer.CoerceDecimalGrouped},
					{Field: "transit_max_days", Path: "transitTime.max", Coerce: normalizer.CoerceDecimalGrouped},
				},
			},
		}
	},
}

// Presets lists the names of the built-in sources.
func Presets() []string {
	return slices.Sorted(maps.Keys(presets))
}

// Preset returns a fresh copy of a built-in source.
func Preset(name string) (Source, error) {
	p, ok := presets[name]
	if !ok {
		return Source{}, fmt.Errorf("unknown preset %q (known: %v)", name, Presets())
	}
	return p(), nil
}
