package cli

import (
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lunchbox-market/order-composer/internal/draft"
	"github.com/lunchbox-market/order-composer/internal/models"
)

func newDraftCommand(global *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Read drafts kept by the file draft store.",
	}
	cmd.AddCommand(newDraftShowCommand(global))
	return cmd
}

func newDraftShowCommand(global *globalFlags) *cobra.Command {
	var dir, buyerID string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print one buyer's saved draft.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := global.format()
			if err != nil {
				return err
			}
			loc, err := global.location()
			if err != nil {
				return err
			}
			kv, err := draft.NewFileKV(dir)
			if err != nil {
				return err
			}
			bridge, err := draft.NewBridge(kv, buyerID, loc)
			if err != nil {
				return err
			}
			state, err := bridge.Load(cmd.Context())
			if err != nil {
				return err
			}
			return write(cmd, format, state, func() string {
				return draftTable(state)
			})
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "./data/drafts", "Draft directory (DRAFT_DIR of the server).")
	cmd.Flags().StringVar(&buyerID, "buyer", "", "Buyer id. [required]")
	_ = cmd.MarkFlagRequired("buyer")
	return cmd
}

func draftTable(state models.DraftState) string {
	ids := make(map[string]struct{})
	for id := range state.RangeDates {
		ids[id] = struct{}{}
	}
	for id := range state.DailyDates {
		ids[id] = struct{}{}
	}
	for id := range state.MealCounts {
		ids[id] = struct{}{}
	}
	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	rows := make([][]string, 0, len(sorted))
	for _, id := range sorted {
		meals := 0
		for _, counts := range state.MealCounts[id] {
			meals += counts.Total()
		}
		rows = append(rows, []string{
			id,
			joinDates(state.RangeDates[id]),
			joinDates(state.DailyDates[id]),
			strconv.Itoa(meals),
		})
	}
	return renderTable("", []string{"ITEM", "RANGE", "DAILY", "MEALS"}, rows)
}

func joinDates(dates []models.Date) string {
	if len(dates) == 0 {
		return "-"
	}
	parts := make([]string, len(dates))
	for i, d := range dates {
		parts[i] = d.String()
	}
	return strings.Join(parts, ",")
}
