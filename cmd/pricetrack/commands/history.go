package commands

import (
	"fmt"
	"os"

	"pricetrack/internal/history"
	"pricetrack/internal/source"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Show only the most recent n records, 0 shows everything.")
	rootCmd.AddCommand(historyCmd)
}

func loadHistory(cmd *cobra.Command, name string) (history.Dataset, error) {
	config, err := loadConfig()
	if err != nil {
		return history.Dataset{}, err
	}
	s, ok := config.Source(name)
	if !ok {
		return history.Dataset{}, fmt.Errorf("unknown source %q", name)
	}

	res := source.NewResources()
	defer res.Close()
	store, err := res.Store(cmd.Context(), s)
	if err != nil {
		return history.Dataset{}, err
	}
	return store.Load(cmd.Context())
}

var historyCmd = &cobra.Command{
	Use:   "history <source> [--limit n]",
	Short: "Prints the stored history of a source.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := loadHistory(cmd, args[0])
		if err != nil {
			return err
		}

		records := data.Records()
		if historyLimit > 0 && len(records) > historyLimit {
			records = records[len(records)-historyLimit:]
		}

		layout := data.Layout()
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		header := table.Row{}
		for _, h := range layout.Header() {
			header = append(header, h)
		}
		t.AppendHeader(header)
		for _, r := range records {
			row := table.Row{}
			for _, cell := range layout.Row(r) {
				row = append(row, cell)
			}
			t.AppendRow(row)
		}
		t.AppendFooter(table.Row{fmt.Sprintf("%d of %d", len(records), data.Len())})
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}
