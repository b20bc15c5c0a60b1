package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/antibody/internal/llm"
	"github.com/ppiankov/antibody/internal/pipeline"
	"github.com/ppiankov/antibody/internal/triage"
)

var (
	actionEditor  string
	actionNote    string
	actionNewText string
	suggestURLs   []string
)

// triageCmd groups the human review workflow
var triageCmd = &cobra.Command{
	Use:   "triage",
	Short: "Review vulnerable claims and record remediations",
}

var triageQueueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show the review queue, most vulnerable first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.Close()

		queue, err := a.triage.Queue(ctx, pageLimit, pageOffset)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(queue)
		}
		printVulnerable(queue)
		return nil
	},
}

var triageActionCmd = &cobra.Command{
	Use:   "action <claim-id> <verified|updated|flagged|dismissed>",
	Short: "Record a remediation decision",
	Long: `Action appends a remediation to the triage log. The claim itself is not modified.

Example:
  antibody triage action 3f1c... verified --editor alice
  antibody triage action 3f1c... updated --new-text "The bridge opened in 1991." --note "per es/fr sources"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.Close()

		rem, err := a.triage.Record(ctx, triage.ActionRequest{
			ClaimID: args[0],
			Action:  args[1],
			Editor:  actionEditor,
			NewText: actionNewText,
			Note:    actionNote,
		})
		if err != nil {
			return err
		}
		fmt.Printf("✓ Recorded %s\n", rem)
		return nil
	},
}

var triageHistoryCmd = &cobra.Command{
	Use:   "history <claim-id>",
	Short: "List remediations for a claim, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		history, err := a.triage.History(args[0])
		if err != nil {
			return err
		}
		return printJSON(history)
	},
}

var triageStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the triage log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.triage.Stats(ctx)
		if err != nil {
			return err
		}
		return printJSON(stats)
	},
}

var triageSuggestCmd = &cobra.Command{
	Use:   "suggest <claim-id>",
	Short: "Draft an updated claim text from contradicting sources",
	Long: `Suggest asks the configured LLM provider for a replacement text citing the given
sources. Without --source, adversarial retrieval supplies them. Nothing is written.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		req := pipeline.SuggestRequest{Languages: retrieveLangs}
		for _, u := range suggestURLs {
			req.Sources = append(req.Sources, llm.SourceRef{URL: u})
		}
		suggestion, err := a.svc.Suggest(ctx, args[0], req)
		if err != nil {
			return err
		}
		return printJSON(suggestion)
	},
}

func init() {
	rootCmd.AddCommand(triageCmd)
	triageCmd.AddCommand(triageQueueCmd, triageActionCmd, triageHistoryCmd, triageStatsCmd, triageSuggestCmd)

	triageQueueCmd.Flags().IntVar(&pageLimit, "limit", 20, "page size (1-100)")
	triageQueueCmd.Flags().IntVar(&pageOffset, "offset", 0, "page offset")
	triageQueueCmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON")

	triageActionCmd.Flags().StringVar(&actionEditor, "editor", "", "who made the decision")
	triageActionCmd.Flags().StringVar(&actionNote, "note", "", "free-form note")
	triageActionCmd.Flags().StringVar(&actionNewText, "new-text", "", "corrected claim text (updated only)")

	triageSuggestCmd.Flags().StringSliceVar(&suggestURLs, "source", nil, "source URL to cite (repeatable)")
	triageSuggestCmd.Flags().StringSliceVar(&retrieveLangs, "lang", nil, "languages searched when no --source is given")
}
