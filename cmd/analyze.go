package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/estimate-insight/internal/analysis"
	"github.com/KaramelBytes/estimate-insight/internal/report"
	"github.com/KaramelBytes/estimate-insight/internal/utils"
	"github.com/KaramelBytes/estimate-insight/internal/variance"
)

var (
	anaProjectName string
	anaCombined    string
	anaSaveMemory  bool
	anaQuick       bool
	anaChartPath   string
	anaSheet       string
	anaStrict      bool
	anaDuplicates  string
	anaProvider    string
	anaModel       string
	anaFormat      string
	anaOutputPath  string
	anaJSON        bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <estimate> <actual>",
	Short: "Compare estimated and actual costs and explain the variance",
	Example: `  estinsight analyze estimate.xlsx actual.xlsx --project-name "Kitchen Remodel"
  estinsight analyze --combined budget.csv --quick --chart variance.png
  estinsight analyze est.csv act.csv --save-memory --format markdown -o report.md`,
	Args: func(cmd *cobra.Command, args []string) error {
		if anaCombined != "" {
			return cobra.NoArgs(cmd, args)
		}
		if len(args) != 2 {
			return errors.New("expected <estimate> <actual>, or --combined <file>")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := report.ParseFormat(anaFormat)
		if err != nil {
			return err
		}
		if anaJSON {
			format = report.FormatJSON
		}
		dup := anaDuplicates
		if !cmd.Flags().Changed("duplicates") {
			dup = cfg.DuplicatePolicy
		}
		policy, err := variance.ParseDuplicatePolicy(dup)
		if err != nil {
			return err
		}

		store, err := openStore(cmd.Context())
		if err != nil {
			if anaSaveMemory {
				return err
			}
			fmt.Fprintf(os.Stderr, "⚠ Memory unavailable, continuing without history: %v\n", err)
		}
		if store != nil {
			defer store.Close()
		}
		a, err := newAnalyzer(store, anaProvider, anaModel)
		if err != nil {
			return err
		}

		req := analysis.Request{
			Project:    anaProjectName,
			Sheet:      anaSheet,
			Duplicates: policy,
			Strict:     anaStrict || cfg.StrictNumbers,
			Quick:      anaQuick,
			SaveMemory: anaSaveMemory,
			Chart:      anaChartPath != "",
		}
		if anaCombined != "" {
			req.Combined = analysis.Input{Path: anaCombined}
		} else {
			req.Estimate = analysis.Input{Path: args[0]}
			req.Actual = analysis.Input{Path: args[1]}
		}

		res, err := a.Run(cmd.Context(), req)
		if err != nil {
			return err
		}

		for _, w := range res.Warnings {
			fmt.Fprintf(os.Stderr, "⚠ %s\n", w)
		}

		var out bytes.Buffer
		if format == report.FormatJSON {
			err = writeJSON(&out, res)
		} else {
			err = report.Render(&out, res.Document(), format)
		}
		if err != nil {
			return err
		}
		if anaOutputPath != "" {
			if err := utils.WriteFileAtomic(anaOutputPath, out.Bytes()); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote report to %s\n", anaOutputPath)
		} else {
			_, _ = out.WriteTo(cmd.OutOrStdout())
		}

		if anaChartPath != "" && len(res.ChartPNG) > 0 {
			if err := utils.WriteFileAtomic(anaChartPath, res.ChartPNG); err != nil {
				return fmt.Errorf("write chart: %w", err)
			}
			fmt.Fprintf(os.Stderr, "✓ Chart saved to %s\n", anaChartPath)
		}
		if res.SavedToMem {
			fmt.Fprintf(os.Stderr, "✓ Saved insight %s\n", res.InsightID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	f := analyzeCmd.Flags()
	f.StringVar(&anaProjectName, "project-name", analysis.DefaultProject, "project name used in the report and memory")
	f.StringVar(&anaCombined, "combined", "", "one spreadsheet carrying both estimated and actual columns")
	f.BoolVar(&anaSaveMemory, "save-memory", false, "store the insight for history and similarity search")
	f.BoolVar(&anaQuick, "quick", false, "skip the LLM and print the deterministic summary")
	f.StringVar(&anaChartPath, "chart", "", "write a PNG variance chart to this path")
	f.StringVar(&anaSheet, "sheet", "", "XLSX: worksheet name (default first sheet)")
	f.BoolVar(&anaStrict, "strict-numbers", false, "fail on non-numeric amount cells instead of reading them as 0")
	f.StringVar(&anaDuplicates, "duplicates", string(variance.DuplicateSum), "repeated categories: sum|last|reject")
	f.StringVar(&anaProvider, "provider", "", "narrative provider: gemini|openrouter|ollama (default from config)")
	f.StringVar(&anaModel, "model", "", "narrative model (default from config)")
	f.StringVar(&anaFormat, "format", report.FormatText, "output format: text|markdown|json")
	f.StringVarP(&anaOutputPath, "output", "o", "", "write the report to a file instead of stdout")
	f.BoolVar(&anaJSON, "json", false, "shorthand for --format json")
}
