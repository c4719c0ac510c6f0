package commands

import (
	"os"

	"pricetrack/internal/source"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var listPresets bool

func init() {
	sourcesCmd.Flags().BoolVar(&listPresets, "presets", false, "List the built-in presets instead of the configured sources.")
	rootCmd.AddCommand(sourcesCmd)
}

func historyTarget(s source.Source) string {
	switch s.History.Kind {
	case source.HistorySQLite:
		if s.History.Url != "" {
			return s.History.Url
		}
		return s.History.File
	}
	return s.History.Path
}

var sourcesCmd = &cobra.Command{
	Use:   "sources [--presets]",
	Short: "Lists the configured sources.",
	RunE: func(cmd *cobra.Command, args []string) error {
		var sources []source.Source
		if listPresets {
			for _, name := range source.Presets() {
				p, err := source.Preset(name)
				if err != nil {
					return err
				}
				sources = append(sources, p)
			}
		} else {
			config, err := loadConfig()
			if err != nil {
				return err
			}
			sources = config.Sources
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Name", "Method", "URL", "Table", "Columns", "History"})
		for _, s := range sources {
			t.AppendRow(table.Row{
				s.Name,
				s.Method,
				s.URL,
				s.Discriminator.String(),
				len(s.Schema.Columns),
				historyTarget(s),
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}
