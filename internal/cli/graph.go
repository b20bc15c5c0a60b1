package cli

import (
	"github.com/spf13/cobra"
)

var (
	pageLimit  int
	pageOffset int
)

// graphCmd groups dependency graph queries
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Query the claim dependency graph",
}

var graphClaimCmd = &cobra.Command{
	Use:   "claim <claim-id>",
	Short: "Show a claim with the claims it supports and is supported by",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		deps, err := a.svc.ClaimWithDependencies(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(deps)
	},
}

var graphImpactCmd = &cobra.Command{
	Use:   "impact <claim-id>",
	Short: "List every claim downstream of a claim",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		impact, err := a.svc.Impact(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(impact)
	},
}

var graphScoreCmd = &cobra.Command{
	Use:   "score <claim-id>",
	Short: "Explain a claim's vulnerability score",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		b, err := a.svc.Explain(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(b)
	},
}

var graphVulnerableCmd = &cobra.Command{
	Use:   "vulnerable",
	Short: "Rank mutable claims by vulnerability",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.svc.Vulnerable(ctx, pageLimit, pageOffset)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(records)
		}
		printVulnerable(records)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.AddCommand(graphClaimCmd, graphImpactCmd, graphScoreCmd, graphVulnerableCmd)

	graphVulnerableCmd.Flags().IntVar(&pageLimit, "limit", 20, "page size (1-100)")
	graphVulnerableCmd.Flags().IntVar(&pageOffset, "offset", 0, "page offset")
	graphVulnerableCmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON")
	similarCmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON")
}
