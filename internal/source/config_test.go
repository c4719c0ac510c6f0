package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"pricetrack/internal/fetcher"
	"pricetrack/internal/history"
	"pricetrack/internal/locator"
	"pricetrack/internal/normalizer"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, contents string) string {
	path := filepath.Join(dir, name)
	err := os.WriteFile(path, []byte(contents), 0644)
	if err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadPresets(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.json5", `{
		data_dir: "out",
		sources: [
			{ preset: "energytrend" },
			{ preset: "pvinsights", history: { kind: "sqlite" } },
			{ preset: "freightos", headers: { "x-apikey": "secret" } },
		],
	}`)
	writeConfig(t, dir, "config.local.json5", `{ parallelism: 5, retry: { max_attempts: 7 } }`)

	config, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 5, config.Parallelism)
	require.Equal(t, 7, config.RetryPolicy().MaxAttempts)
	require.Equal(t, "UTC", config.Timezone)
	require.Len(t, config.Sources, 3)

	energy, ok := config.Source("energytrend")
	require.True(t, ok)
	require.Equal(t, locator.AtIndex(4), energy.Discriminator)
	require.Equal(t, "GET", energy.Method)
	require.Equal(t, filepath.Join("out", "processed", "historical_energytrend.csv"), energy.History.Path)
	require.Equal(t, filepath.Join("out", "raw"), energy.SnapshotDir)
	require.Equal(t,
		[]string{"date", "module_type", "high", "low", "avg", "change"},
		energy.Schema.Layout().Header(),
	)

	pv, ok := config.Source("pvinsights")
	require.True(t, ok)
	require.Equal(t, HistorySQLite, pv.History.Kind)
	require.Equal(t, filepath.Join("out", "history.db"), pv.History.File)

	freight, ok := config.Source("freightos")
	require.True(t, ok)
	require.Equal(t, "POST", freight.Method)
	require.Equal(t, "secret", freight.Headers["x-apikey"])
	require.NotNil(t, freight.Body)
	require.True(t, freight.Discriminator.IsJSON())

	require.ElementsMatch(t, []string{filepath.Join("out", "raw"), filepath.Join("out", "processed"), "out"}, config.Dirs())
}

func TestPresetOverride(t *testing.T) {
	config, err := Config{Sources: []Source{{
		Preset:        PresetEnergyTrend,
		Name:          "energytrend-mirror",
		URL:           "https://mirror.test/solar-price.html",
		Discriminator: locator.WithHeader("Mono PERC"),
	}}}.Resolve()
	if err != nil {
		t.Fatal(err)
	}

	s := config.Sources[0]
	require.Equal(t, "energytrend-mirror", s.Name)
	require.Equal(t, "https://mirror.test/solar-price.html", s.URL)
	require.Equal(t, locator.HeaderContains, s.Discriminator.Kind)
	require.Equal(t, "Mono PERC", s.Discriminator.Substring)
	require.Equal(t, "module_type", s.Schema.Key.Field)
	require.Contains(t, s.History.Path, "historical_energytrend-mirror.csv")
}

func TestPresetOverrideZeroValues(t *testing.T) {
	config, err := Config{Sources: []Source{{
		Preset:        PresetEnergyTrend,
		Discriminator: locator.AtIndex(0),
	}, {
		Preset: PresetPVInsights,
		Schema: normalizer.Schema{
			Key:     normalizer.Column{Field: "category"},
			Columns: []normalizer.Column{{Field: "price", Index: 1, Coerce: normalizer.CoerceDecimalGrouped}},
		},
	}}}.Resolve()
	if err != nil {
		t.Fatal(err)
	}

	require.Equal(t, locator.AtIndex(0), config.Sources[0].Discriminator)
	pv := config.Sources[1].Schema
	require.Equal(t, 0, pv.SkipRows)
	require.Equal(t, 0, pv.MinCells)
	require.Equal(t, []string{"date", "category", "price"}, pv.Layout().Header())
}

func TestShippedConfigUserAgent(t *testing.T) {
	config, err := Load(filepath.Join("..", "..", "config.json5"))
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, fetcher.DefaultUserAgent, config.FetcherOptions().UserAgent)
	require.Contains(t, config.FetcherOptions().UserAgent, "Mozilla/5.0")
	require.Len(t, config.Sources, 3)
}

func TestResolveErrors(t *testing.T) {
	custom := Source{
		Name:          "custom",
		URL:           "https://prices.test",
		Discriminator: locator.WithClass("price"),
		Schema: normalizer.Schema{
			Key:     normalizer.Column{Field: "name"},
			Columns: []normalizer.Column{{Field: "price", Index: 1, Coerce: normalizer.CoerceDecimalGrouped}},
		},
	}

	cases := []struct {
		name    string
		sources func() []Source
	}{
		{name: "unknown preset", sources: func() []Source {
			return []Source{{Preset: "nope"}}
		}},
		{name: "bad name", sources: func() []Source {
			s := custom
			s.Name = "../etc"
			return []Source{s}
		}},
		{name: "missing url", sources: func() []Source {
			s := custom
			s.URL = ""
			return []Source{s}
		}},
		{name: "bad discriminator", sources: func() []Source {
			s := custom
			s.Discriminator = locator.Discriminator{Kind: locator.CSSClass}
			return []Source{s}
		}},
		{name: "duplicate name", sources: func() []Source {
			return []Source{custom, custom}
		}},
		{name: "shared history", sources: func() []Source {
			other := custom
			other.Name = "other"
			other.History.Path = filepath.Join("data", "processed", "historical_custom.csv")
			return []Source{custom, other}
		}},
		{name: "json without path", sources: func() []Source {
			s := custom
			s.Discriminator = locator.AtPath("OCEAN")
			return []Source{s}
		}},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			_, err := Config{Sources: test.sources()}.Resolve()
			require.Error(t, err)
		})
	}

	_, err := Config{Sources: []Source{custom}}.Resolve()
	require.NoError(t, err)
}

func TestJobs(t *testing.T) {
	dir := t.TempDir()
	config, err := Config{
		DataDir: dir,
		Sources: []Source{
			{Preset: PresetEnergyTrend},
			{Preset: PresetPVInsights, History: HistoryConfig{Kind: HistorySQLite}, NoSnapshot: true},
			{Preset: PresetFreightos, Name: "freight", History: HistoryConfig{Kind: HistorySQLite}},
		},
	}.Resolve()
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	jobs, res, err := config.Jobs(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Close()
	require.Len(t, jobs, 3)
	require.NotNil(t, jobs[0].Snapshots)
	require.Nil(t, jobs[1].Snapshots)
	require.Len(t, res.dbs, 1)
	require.Equal(t, jobs[1].Store.ID(), jobs[2].Store.ID())
	require.IsType(t, history.CSVStore{}, jobs[0].Store)
	require.Equal(t, "POST", jobs[2].Request.Method)

	selected, res2, err := config.Jobs(ctx, []string{"freight"})
	if err != nil {
		t.Fatal(err)
	}
	defer res2.Close()
	require.Len(t, selected, 1)

	_, _, err = config.Jobs(ctx, []string{"missing"})
	require.Error(t, err)
}
