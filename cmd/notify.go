package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"fulfillment-service/config"
	"fulfillment-service/models"
	"fulfillment-service/services"
)

var (
	notifyOrder   string
	notifyClasses []string
	notifyCompany string
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Re-send notifications for an existing order",
	Long: `Re-send notifications for an existing order. Only the selected
recipient classes are sent; other recipients are not contacted again.

Examples:
  fulfillment notify --order ORD-LOYW3V28-AB12C --class provider
  fulfillment notify --order ORD-LOYW3V28-AB12C --class provider --company 0b6f...`,
	RunE: runNotify,
}

func init() {
	notifyCmd.Flags().StringVar(&notifyOrder, "order", "", "order number")
	notifyCmd.Flags().StringSliceVar(&notifyClasses, "class", nil, "recipient class to send (customer, operator, provider); repeatable")
	notifyCmd.Flags().StringVar(&notifyCompany, "company", "", "limit provider notifications to one company id")
	_ = notifyCmd.MarkFlagRequired("order")
	_ = notifyCmd.MarkFlagRequired("class")
}

func runNotify(cmd *cobra.Command, _ []string) error {
	opts, err := services.ParseDispatchOptions(notifyClasses, notifyCompany)
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.notifier.Redispatch(cmd.Context(), notifyOrder, opts)
	if errors.Is(err, services.ErrOrderNotFound) {
		return fmt.Errorf("order %s not found", notifyOrder)
	}
	if err != nil {
		return err
	}

	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	if n := report.Count(models.NotificationFailed); n > 0 {
		return fmt.Errorf("%d notification(s) failed", n)
	}
	return nil
}
