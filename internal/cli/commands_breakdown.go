package cli

import (
	"errors"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lunchbox-market/order-composer/internal/models"
	"github.com/lunchbox-market/order-composer/internal/payment"
	"github.com/lunchbox-market/order-composer/internal/pricing"
)

type selectionFlags struct {
	CartPath  string
	DraftPath string
	VendorID  string
}

func (f *selectionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.CartPath, "cart", "", "Cart export JSON file. [required]")
	cmd.Flags().StringVar(&f.DraftPath, "draft", "", "Draft JSON file. [required]")
	cmd.Flags().StringVar(&f.VendorID, "vendor", "", "Vendor (company) id to price. [required]")
	_ = cmd.MarkFlagRequired("cart")
	_ = cmd.MarkFlagRequired("draft")
	_ = cmd.MarkFlagRequired("vendor")
}

func (f *selectionFlags) breakdown(global *globalFlags) (models.Breakdown, error) {
	loc, err := global.location()
	if err != nil {
		return models.Breakdown{}, err
	}
	items, err := readCart(f.CartPath)
	if err != nil {
		return models.Breakdown{}, err
	}
	state, err := readDraft(f.DraftPath, loc)
	if err != nil {
		return models.Breakdown{}, err
	}
	return pricing.ComputeBreakdown(items, state, f.VendorID)
}

func newBreakdownCommand(global *globalFlags) *cobra.Command {
	var flags selectionFlags
	cmd := &cobra.Command{
		Use:   "breakdown",
		Short: "Price a draft for one vendor.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := global.format()
			if err != nil {
				return err
			}
			breakdown, err := flags.breakdown(global)
			if err != nil {
				return err
			}
			return write(cmd, format, breakdown, func() string {
				return breakdownTable(breakdown)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func breakdownTable(b models.Breakdown) string {
	rows := make([][]string, 0)
	for _, line := range b.Lines {
		for _, dm := range line.Dates {
			rows = append(rows, []string{
				line.MerchantItemID,
				line.Name,
				dm.Date.String(),
				strconv.Itoa(dm.Meals.Breakfast),
				strconv.Itoa(dm.Meals.Lunch),
				strconv.Itoa(dm.Meals.Dinner),
				strconv.FormatInt(line.UnitPrice*int64(dm.Meals.Total()), 10),
			})
		}
	}
	rows = append(rows, []string{"", "", "", "", "", "TOTAL", strconv.FormatInt(b.Total, 10)})
	return renderTable("vendor "+b.VendorID, []string{"ITEM", "NAME", "DATE", "B", "L", "D", "AMOUNT"}, rows)
}

func newUIDsCommand(global *globalFlags) *cobra.Command {
	var flags selectionFlags
	var root string
	cmd := &cobra.Command{
		Use:   "uids",
		Short: "Preview the payment request (merchant uids, combined name) for a draft.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := global.format()
			if err != nil {
				return err
			}
			breakdown, err := flags.breakdown(global)
			if err != nil {
				return err
			}
			if breakdown.Total <= 0 {
				return payment.ErrNothingToPay
			}

			var req models.PaymentRequest
			if root = strings.TrimSpace(root); root != "" {
				if strings.Contains(root, "_") {
					return errors.New("--root must not contain '_'")
				}
				req = models.PaymentRequest{
					TransactionRoot:  root,
					TotalAmount:      breakdown.Total,
					MerchantUIDs:     payment.MerchantUIDs(root, breakdown.Lines),
					CombinedItemName: payment.CombinedItemName(breakdown.Lines),
				}
			} else {
				req, err = payment.NewBuilder(payment.NewRootIssuer(16)).Build(breakdown)
				if err != nil {
					return err
				}
			}

			return write(cmd, format, req, func() string {
				rows := make([][]string, 0, len(req.MerchantUIDs))
				for _, uid := range req.MerchantUIDs {
					rows = append(rows, []string{uid})
				}
				title := req.CombinedItemName + " / " + strconv.FormatInt(req.TotalAmount, 10)
				return renderTable(title, []string{"MERCHANT_UID"}, rows)
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&root, "root", "", "Fixed transaction root instead of a random one.")
	return cmd
}
