package commands

import (
	"fmt"
	"log/slog"

	"pricetrack/internal/export"

	"github.com/spf13/cobra"
)

var exportOut string

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "The .xlsx file to write, defaults to <source>.xlsx.")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export <source> [--out file.xlsx]",
	Short: "Exports the history of a source to an excel workbook.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := loadHistory(cmd, args[0])
		if err != nil {
			return err
		}
		out := exportOut
		if out == "" {
			out = fmt.Sprintf("%s.xlsx", args[0])
		}
		err = export.SaveXLSX(out, args[0], data)
		if err != nil {
			return err
		}
		slog.Info("exported history", "source", args[0], "records", data.Len(), "path", out)
		return nil
	},
}
