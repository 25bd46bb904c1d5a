package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type globalFlags struct {
	Format   string
	Timezone string
}

func (g globalFlags) format() (Format, error) {
	return ParseFormat(g.Format)
}

func (g globalFlags) location() (*time.Location, error) {
	loc, err := time.LoadLocation(g.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid --tz: %w", err)
	}
	return loc, nil
}

func addGlobalFlags(flags *pflag.FlagSet, g *globalFlags) {
	flags.StringVar(&g.Format, "format", "table", "Output format: table, json, or yaml.")
	flags.StringVar(&g.Timezone, "tz", "Asia/Seoul", "Calendar zone used to read timestamp-shaped dates.")
}

// NewRootCommand builds the complete command tree.
func NewRootCommand(deps Dependencies) *cobra.Command {
	var global globalFlags

	root := &cobra.Command{
		Use:           "composer",
		Short:         "Inspect lunchbox order drafts, price breakdowns and vendor rest days.",
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			showVersion, _ := cmd.Flags().GetBool("version")
			if showVersion {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), resolvedVersion(deps.Version))
				return errVersionShown
			}
			return cmd.Help()
		},
	}
	root.Flags().BoolP("version", "v", false, "Show CLI version and exit.")
	addGlobalFlags(root.PersistentFlags(), &global)

	root.AddCommand(newBreakdownCommand(&global))
	root.AddCommand(newUIDsCommand(&global))
	root.AddCommand(newRestDaysCommand(deps, &global))
	root.AddCommand(newDraftCommand(&global))

	return root
}

func resolvedVersion(v string) string {
	if v == "" {
		return "dev"
	}
	return v
}
