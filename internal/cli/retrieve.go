package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/antibody/internal/model"
	"github.com/ppiankov/antibody/internal/pipeline"
)

var (
	retrieveLangs []string
	retrieveMax   int
	similarLang   string
	similarMax    int
)

// retrieveCmd searches other language editions for contradicting claims
var retrieveCmd = &cobra.Command{
	Use:   "retrieve <claim-id>...",
	Short: "Find contradicting claims in other languages",
	Long: `Retrieve runs adversarial search for each claim: semantically similar claims in
the target languages are checked for contradiction, and every contradiction found
raises the claim's contradiction count.

Example:
  antibody retrieve 3f1c...
  antibody retrieve 3f1c... --lang es,fr --max 5
  antibody retrieve --file ids.txt`,
	Args: cobra.ArbitraryArgs,
	RunE: runRetrieve,
}

// similarCmd is a plain semantic search
var similarCmd = &cobra.Command{
	Use:   "similar <query>",
	Short: "Search claims by meaning",
	Long: `Similar embeds the query and lists the closest stored claims.

Example:
  antibody similar "population of Lisbon"
  antibody similar "población de Lisboa" --lang es --max 20`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSimilar,
}

func init() {
	rootCmd.AddCommand(retrieveCmd)
	rootCmd.AddCommand(similarCmd)

	retrieveCmd.Flags().StringSliceVar(&retrieveLangs, "lang", nil, "target languages (default: retrieval.default_languages)")
	retrieveCmd.Flags().IntVar(&retrieveMax, "max", 0, "maximum contradicting sources per claim")
	retrieveCmd.Flags().StringVar(&idsFile, "file", "", "read claim IDs from a file, one per line")

	similarCmd.Flags().StringVar(&similarLang, "lang", "", "only return claims in this language")
	similarCmd.Flags().IntVar(&similarMax, "max", 10, "maximum results")
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	ids, err := claimIDs(args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := pipeline.RetrieveOptions{Languages: retrieveLangs, MaxResults: retrieveMax}
	if len(ids) == 1 {
		res, err := a.svc.Retrieve(ctx, ids[0], opts)
		if err != nil {
			return err
		}
		return printJSON(res)
	}

	results, summary, err := a.svc.BatchRetrieve(ctx, ids, opts)
	if err != nil && !errors.Is(err, model.ErrPartialBatchFailure) {
		return err
	}
	if perr := printJSON(results); perr != nil {
		return perr
	}
	printSummary(summary)
	return err
}

func runSimilar(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.svc.Similar(ctx, strings.Join(args, " "), similarLang, similarMax)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(results)
	}
	for _, r := range results {
		fmt.Printf("%.3f\t%s\t%s\t%s\n", r.Score, r.Claim.Language, r.Claim.ID, truncate(r.Claim.Text, 80))
	}
	return nil
}
