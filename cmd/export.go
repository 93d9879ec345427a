package cmd

import (
	"bytes"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/estimate-insight/internal/chart"
	"github.com/KaramelBytes/estimate-insight/internal/report"
	"github.com/KaramelBytes/estimate-insight/internal/utils"
)

var exportOutput string

var exportPDFCmd = &cobra.Command{
	Use:   "export-pdf <insight-id>",
	Short: "Write a PDF report for a stored insight",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()
		in, err := store.GetInsight(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		doc := report.FromInsight(*in)
		png, err := chart.Render(doc.Project, doc.Rows)
		if err != nil {
			logger.Debug("chart skipped", "error", err.Error())
			png = nil
		}
		var buf bytes.Buffer
		if err := report.WritePDF(&buf, doc, png); err != nil {
			return err
		}
		path := exportOutput
		if path == "" {
			path = report.PDFFilename(doc.Project, time.Now())
		}
		if err := utils.WriteFileAtomic(path, buf.Bytes()); err != nil {
			return fmt.Errorf("write pdf: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportPDFCmd)
	exportPDFCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output path (default <project>_<date>.pdf)")
}
