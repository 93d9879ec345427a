package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/estimate-insight/internal/memory"
	"github.com/KaramelBytes/estimate-insight/internal/report"
)

var (
	insJSON    bool
	insLimit   int
	insFormat  string
	insTopK    int
	insConfirm bool
	patLimit   int
)

var historyCmd = &cobra.Command{
	Use:   "history <project-name>",
	Short: "Show stored insights for a project, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()
		items, err := store.History(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if insJSON {
			return writeJSON(cmd.OutOrStdout(), stripEmbeddings(items))
		}
		if len(items) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No history for %q\n", args[0])
			return nil
		}
		printInsights(cmd.OutOrStdout(), items)
		return nil
	},
}

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Browse and manage stored insights",
}

var insightsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent insights across all projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()
		items, err := store.ListInsights(cmd.Context(), insLimit)
		if err != nil {
			return err
		}
		if insJSON {
			return writeJSON(cmd.OutOrStdout(), stripEmbeddings(items))
		}
		if len(items) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No insights stored")
			return nil
		}
		printInsights(cmd.OutOrStdout(), items)
		return nil
	},
}

var insightsShowCmd = &cobra.Command{
	Use:   "show <insight-id>",
	Short: "Show one stored insight",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := report.ParseFormat(insFormat)
		if err != nil {
			return err
		}
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()
		in, err := store.GetInsight(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return report.Render(cmd.OutOrStdout(), report.FromInsight(*in), format)
	},
}

var insightsSimilarCmd = &cobra.Command{
	Use:   "similar <insight-id>",
	Short: "Rank stored insights by similarity to one insight",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()
		matches, err := memory.SimilarTo(cmd.Context(), store, args[0], insTopK)
		if err != nil {
			return err
		}
		if insJSON {
			for i := range matches {
				matches[i].Insight.Embedding = nil
			}
			return writeJSON(cmd.OutOrStdout(), matches)
		}
		if len(matches) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No similar insights (the insight or its peers have no embedding)")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SCORE\tPROJECT\tVARIANCE\tID")
		for _, m := range matches {
			fmt.Fprintf(tw, "%.3f\t%s\t%s\t%s\n", m.Score, m.Insight.ProjectName,
				report.SignedMoney(m.Insight.Summary.TotalVariance), m.Insight.ID)
		}
		return tw.Flush()
	},
}

var insightsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every stored insight",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !insConfirm {
			fmt.Fprint(cmd.OutOrStdout(), "Delete all stored insights? [y/N]: ")
			line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if a := strings.ToLower(strings.TrimSpace(line)); a != "y" && a != "yes" {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
				return nil
			}
		}
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()
		n, err := store.Clear(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %d insight(s)\n", n)
		return nil
	},
}

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Summarize budget outcomes across stored projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()
		st, items, err := memory.Patterns(cmd.Context(), store, patLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if insJSON {
			return writeJSON(out, struct {
				Stats  memory.PatternStats `json:"statistics"`
				Recent []memory.Insight    `json:"recent_insights"`
			}{st, stripEmbeddings(items)})
		}
		fmt.Fprintf(out, "Projects analysed: %d\n", st.TotalProjects)
		fmt.Fprintf(out, "Average variance:  %s (%+.1f%%)\n", report.SignedMoney(st.AvgVariance), st.AvgVariancePct)
		fmt.Fprintf(out, "Over budget:  %d\n", st.OverBudgetCount)
		fmt.Fprintf(out, "Under budget: %d\n", st.UnderBudgetCount)
		fmt.Fprintf(out, "On budget:    %d\n", st.OnBudgetCount)
		return nil
	},
}

func printInsights(w io.Writer, items []memory.Insight) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tPROJECT\tSTATUS\tVARIANCE\tID")
	for _, in := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			in.CreatedAt.Local().Format("2006-01-02 15:04"), in.ProjectName,
			report.StatusLabel(in.Summary), report.SignedMoney(in.Summary.TotalVariance), in.ID)
	}
	_ = tw.Flush()
}

func stripEmbeddings(items []memory.Insight) []memory.Insight {
	for i := range items {
		items[i].Embedding = nil
	}
	return items
}

func init() {
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(insightsCmd)
	rootCmd.AddCommand(patternsCmd)
	insightsCmd.AddCommand(insightsListCmd)
	insightsCmd.AddCommand(insightsShowCmd)
	insightsCmd.AddCommand(insightsSimilarCmd)
	insightsCmd.AddCommand(insightsClearCmd)

	historyCmd.Flags().BoolVar(&insJSON, "json", false, "print JSON")
	insightsListCmd.Flags().BoolVar(&insJSON, "json", false, "print JSON")
	insightsListCmd.Flags().IntVar(&insLimit, "limit", memory.DefaultListCap, "maximum insights to list")
	insightsShowCmd.Flags().StringVar(&insFormat, "format", report.FormatText, "output format: text|markdown|json")
	insightsSimilarCmd.Flags().BoolVar(&insJSON, "json", false, "print JSON")
	insightsSimilarCmd.Flags().IntVarP(&insTopK, "top-k", "k", 5, "number of matches")
	insightsClearCmd.Flags().BoolVarP(&insConfirm, "yes", "y", false, "skip the confirmation prompt")
	patternsCmd.Flags().BoolVar(&insJSON, "json", false, "print JSON")
	patternsCmd.Flags().IntVar(&patLimit, "limit", memory.DefaultListCap, "number of recent projects to include")
}
