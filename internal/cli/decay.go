package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/antibody/internal/model"
	"github.com/ppiankov/antibody/internal/worker"
)

var (
	decayTrending bool
	idsFile       string
)

// decayCmd scores claims by age and topic volatility
var decayCmd = &cobra.Command{
	Use:   "decay <claim-id>...",
	Short: "Compute decay scores for claims",
	Long: `Decay recomputes the decay score of one or more claims and stores it.

Example:
  antibody decay 3f1c...
  antibody decay 3f1c... 9ab2... --trending
  antibody decay --file ids.txt
  antibody decay refresh`,
	Args: cobra.ArbitraryArgs,
	RunE: runDecay,
}

var decayRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Recompute decay for every mutable claim",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		results, summary, err := a.svc.RefreshDecay(ctx, decayTrending)
		if err != nil && !errors.Is(err, model.ErrPartialBatchFailure) {
			return err
		}
		for _, r := range results {
			if r.Status == model.StatusFailed {
				fmt.Printf("%s\tfailed\t%s\n", r.ClaimID, r.Error)
			}
		}
		printSummary(summary)
		return err
	},
}

func init() {
	rootCmd.AddCommand(decayCmd)
	decayCmd.AddCommand(decayRefreshCmd)

	decayCmd.PersistentFlags().BoolVar(&decayTrending, "trending", false, "consult the trend provider for topic volatility")
	decayCmd.Flags().StringVar(&idsFile, "file", "", "read claim IDs from a file, one per line")
}

// claimIDs merges positional IDs with the --file list
func claimIDs(args []string) ([]string, error) {
	ids := append([]string(nil), args...)
	if idsFile != "" {
		fromFile, err := worker.ReadIDsFromFile(idsFile)
		if err != nil {
			return nil, err
		}
		ids = append(ids, fromFile...)
	}
	if len(ids) == 0 {
		return nil, model.Invalid("at least one claim ID is required")
	}
	return ids, nil
}

func runDecay(cmd *cobra.Command, args []string) error {
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

	if len(ids) == 1 {
		res, err := a.svc.ComputeDecay(ctx, ids[0], decayTrending)
		if err != nil {
			return err
		}
		return printJSON(res)
	}

	results, summary, err := a.svc.BatchDecay(ctx, ids, decayTrending)
	if err != nil && !errors.Is(err, model.ErrPartialBatchFailure) {
		return err
	}
	if perr := printJSON(results); perr != nil {
		return perr
	}
	printSummary(summary)
	return err
}
