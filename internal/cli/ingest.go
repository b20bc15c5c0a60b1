package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/antibody/internal/pipeline"
)

var (
	ingestSourceURL string
	ingestArticleID string
	ingestLang      string
	ingestImmutable bool
	ingestWeight    float64
	ingestHTMLFile  string
)

// ingestCmd loads claims and support edges into the stores
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Add claims, support edges or whole articles",
}

var ingestClaimCmd = &cobra.Command{
	Use:   "claim <text>",
	Short: "Store a single claim",
	Example: `  antibody ingest claim "Lisbon has 545,000 inhabitants" --lang en --source-url https://en.wikipedia.org/wiki/Lisbon
  antibody ingest claim "The bridge opened in 1966" --immutable`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := a.svc.IngestClaim(ctx, pipeline.ClaimInput{
			Text:        strings.Join(args, " "),
			SourceURL:   ingestSourceURL,
			ArticleID:   ingestArticleID,
			Language:    ingestLang,
			IsImmutable: ingestImmutable,
		})
		if err != nil {
			return err
		}
		fmt.Println(c.ID)
		return nil
	},
}

var ingestEdgeCmd = &cobra.Command{
	Use:   "edge <from-claim-id> <to-claim-id>",
	Short: "Record that one claim supports another",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		edge, err := a.svc.IngestEdge(ctx, pipeline.EdgeInput{From: args[0], To: args[1], Weight: ingestWeight})
		if err != nil {
			return err
		}
		fmt.Printf("✓ %s supports %s (weight %.2f)\n", edge.From, edge.To, edge.Weight)
		return nil
	},
}

var ingestArticleCmd = &cobra.Command{
	Use:   "article <url>",
	Short: "Fetch an article and store the claims extracted from it",
	Long: `Article fetches the page (robots.txt is honored), extracts candidate claims from
its visible text and stores each one. Use --html to read a saved copy instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		in := pipeline.ArticleInput{URL: args[0], Language: ingestLang}
		if ingestHTMLFile != "" {
			data, err := os.ReadFile(ingestHTMLFile)
			if err != nil {
				return fmt.Errorf("read html: %w", err)
			}
			in.HTML = string(data)
		}

		res, err := a.svc.IngestArticle(ctx, in)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ %s: %d claims stored\n", res.Article.Title, len(res.Claims))
		return printJSON(res)
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.AddCommand(ingestClaimCmd, ingestEdgeCmd, ingestArticleCmd)

	ingestClaimCmd.Flags().StringVar(&ingestSourceURL, "source-url", "", "page the claim was taken from")
	ingestClaimCmd.Flags().StringVar(&ingestArticleID, "article-id", "", "article the claim belongs to")
	ingestClaimCmd.Flags().StringVar(&ingestLang, "lang", "", "language code (default: en)")
	ingestClaimCmd.Flags().BoolVar(&ingestImmutable, "immutable", false, "timeless fact (slow decay, excluded from the queue)")

	ingestEdgeCmd.Flags().Float64Var(&ingestWeight, "weight", 1.0, "edge weight (> 0)")

	ingestArticleCmd.Flags().StringVar(&ingestLang, "lang", "", "language code (default: detected from the page)")
	ingestArticleCmd.Flags().StringVar(&ingestHTMLFile, "html", "", "read HTML from a file instead of fetching")
}
