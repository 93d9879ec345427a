package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/estimate-insight/internal/memory"
)

var (
	fbRating   string
	fbType     string
	fbText     string
	fbInsight  string
	fbNegative bool
	fbLimit    int
	fbJSON     bool
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Rate insights and review collected feedback",
}

var feedbackAddCmd = &cobra.Command{
	Use:     "add <insight-id> --rating thumbs_up|thumbs_down",
	Short:   "Record a thumbs up or thumbs down for an insight",
	Example: `  estinsight feedback add 3f2c... --rating thumbs_down --type detailed --text "missed permit costs"`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rating, err := parseRating(fbRating)
		if err != nil {
			return err
		}
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()
		if _, err := store.GetInsight(cmd.Context(), args[0]); err != nil {
			return err
		}
		id, err := store.SaveFeedback(cmd.Context(), &memory.Feedback{
			InsightID:    args[0],
			FeedbackType: fbType,
			Rating:       rating,
			FeedbackText: fbText,
			Metadata:     map[string]string{"source": "cli"},
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Saved feedback %s\n", id)
		return nil
	},
}

var feedbackStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show satisfaction statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()
		st, err := memory.ComputeFeedbackStats(cmd.Context(), store, fbInsight)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if fbJSON {
			return writeJSON(out, st)
		}
		fmt.Fprintf(out, "Total feedback: %d\n", st.Total)
		fmt.Fprintf(out, "Thumbs up:      %d\n", st.ThumbsUp)
		fmt.Fprintf(out, "Thumbs down:    %d\n", st.ThumbsDown)
		fmt.Fprintf(out, "With comments:  %d\n", st.Detailed)
		fmt.Fprintf(out, "Satisfaction:   %.1f%%\n", st.SatisfactionRate)
		return nil
	},
}

var feedbackListCmd = &cobra.Command{
	Use:   "list",
	Short: "List feedback, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()
		items, err := store.ListFeedback(cmd.Context(), memory.FeedbackQuery{
			InsightID:    fbInsight,
			NegativeOnly: fbNegative,
			Limit:        fbLimit,
		})
		if err != nil {
			return err
		}
		if fbJSON {
			return writeJSON(cmd.OutOrStdout(), items)
		}
		if len(items) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No feedback")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "CREATED\tRATING\tTYPE\tINSIGHT\tCOMMENT")
		for _, fb := range items {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", fb.CreatedAt.Local().Format("2006-01-02 15:04"),
				fb.Rating, fb.FeedbackType, fb.InsightID, fb.FeedbackText)
		}
		return tw.Flush()
	},
}

func parseRating(s string) (string, error) {
	switch s {
	case "up", "+", "1", memory.RatingUp:
		return memory.RatingUp, nil
	case "down", "-", "0", memory.RatingDown:
		return memory.RatingDown, nil
	}
	return "", errors.New("rating must be thumbs_up or thumbs_down")
}

func init() {
	rootCmd.AddCommand(feedbackCmd)
	feedbackCmd.AddCommand(feedbackAddCmd)
	feedbackCmd.AddCommand(feedbackStatsCmd)
	feedbackCmd.AddCommand(feedbackListCmd)

	feedbackAddCmd.Flags().StringVar(&fbRating, "rating", "", "thumbs_up|thumbs_down (up/down also accepted)")
	feedbackAddCmd.Flags().StringVar(&fbType, "type", memory.TypeSummary, "feedback type: summary|detailed")
	feedbackAddCmd.Flags().StringVar(&fbText, "text", "", "optional comment")
	_ = feedbackAddCmd.MarkFlagRequired("rating")
	feedbackStatsCmd.Flags().StringVar(&fbInsight, "insight", "", "restrict to one insight id")
	feedbackStatsCmd.Flags().BoolVar(&fbJSON, "json", false, "print JSON")
	feedbackListCmd.Flags().StringVar(&fbInsight, "insight", "", "restrict to one insight id")
	feedbackListCmd.Flags().BoolVar(&fbNegative, "negative", false, "only thumbs-down entries with a comment")
	feedbackListCmd.Flags().IntVar(&fbLimit, "limit", memory.DefaultListCap, "maximum entries")
	feedbackListCmd.Flags().BoolVar(&fbJSON, "json", false, "print JSON")
}
