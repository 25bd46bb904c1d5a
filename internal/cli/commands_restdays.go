package cli

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lunchbox-market/order-composer/internal/models"
	"github.com/lunchbox-market/order-composer/internal/restday"
	"github.com/lunchbox-market/order-composer/pkg/logger"
)

type restDaysOutput struct {
	VendorID string            `json:"vendorId"`
	From     models.Date       `json:"from"`
	To       models.Date       `json:"to"`
	Config   models.RestDaySet `json:"config"`
	Dates    []models.Date     `json:"dates"`
}

func newRestDaysCommand(deps Dependencies, global *globalFlags) *cobra.Command {
	var (
		vendorID string
		from     string
		to       string
		baseURL  string
	)
	cmd := &cobra.Command{
		Use:   "rest-days",
		Short: "List a vendor's rest days in a date window.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := global.format()
			if err != nil {
				return err
			}
			loc, err := global.location()
			if err != nil {
				return err
			}
			start, err := models.ParseDate(from, loc)
			if err != nil {
				return err
			}
			end, err := models.ParseDate(to, loc)
			if err != nil {
				return err
			}
			if baseURL = strings.TrimSpace(baseURL); baseURL == "" {
				baseURL = os.Getenv("BACKEND_URL")
			}
			if baseURL == "" {
				return errors.New("--backend or BACKEND_URL is required")
			}
			if deps.RestDays == nil {
				return errors.New("rest-day lookup is not configured")
			}

			filter := restday.NewFilter(deps.RestDays(baseURL), logger.New("error"))
			set, err := filter.LoadForVendor(cmd.Context(), vendorID)
			if err != nil {
				return err
			}
			dates, err := filter.RestDaysBetween(start, end)
			if err != nil {
				return err
			}
			out := restDaysOutput{
				VendorID: vendorID,
				From:     start,
				To:       end,
				Config:   set,
				Dates:    dates,
			}
			return write(cmd, format, out, func() string {
				rows := make([][]string, 0, len(out.Dates))
				for _, d := range out.Dates {
					rows = append(rows, []string{d.String(), d.Weekday().String()})
				}
				return renderTable("vendor "+vendorID, []string{"DATE", "WEEKDAY"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&vendorID, "vendor", "", "Vendor (company) id. [required]")
	cmd.Flags().StringVar(&from, "from", "", "First day of the window, YYYY-MM-DD. [required]")
	cmd.Flags().StringVar(&to, "to", "", "Last day of the window, YYYY-MM-DD. [required]")
	cmd.Flags().StringVar(&baseURL, "backend", "", "Backend base URL (defaults to BACKEND_URL).")
	_ = cmd.MarkFlagRequired("vendor")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
