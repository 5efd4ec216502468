package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thequtt/qutt-client/internal/backend"
	"github.com/thequtt/qutt-client/pkg/enums"
	"github.com/thequtt/qutt-client/pkg/validators"
)

func orderCommands(c *cli) []*cobra.Command {
	placeOrders := &cobra.Command{
		Use:   "checkout",
		Short: "Place one order per shop in the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			if !a.session.IsAuthenticated() {
				return fmt.Errorf("sign in before checking out")
			}
			result, err := a.checkout.PlaceOrders(cmd.Context())
			if result != nil {
				if c.jsonOutput {
					if werr := writeJSON(cmd.OutOrStdout(), result); werr != nil {
						return werr
					}
				} else {
					for _, placed := range result.Orders {
						fmt.Fprintf(cmd.OutOrStdout(), "placed order %s at %s (%d item(s), %s)\n",
							placed.OrderID, placed.ShopName, placed.ItemCount, placed.Subtotal.StringFixed(2))
					}
				}
			}
			return err
		},
	}

	orders := &cobra.Command{
		Use:   "orders [order-id]",
		Short: "List your orders or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			if len(args) == 1 {
				order, err := a.api.Order(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return c.printOrders(cmd, []backend.Order{*order})
			}
			list, err := a.api.Orders(cmd.Context())
			if err != nil {
				return err
			}
			return c.printOrders(cmd, list)
		},
	}

	shopOrders := &cobra.Command{
		Use:   "shop-orders <shop-id>",
		Short: "List orders received by one of your shops",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shopID, err := validators.ParseID("shop_id", args[0])
			if err != nil {
				return err
			}
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			list, err := a.api.ShopOrders(cmd.Context(), shopID)
			if err != nil {
				return err
			}
			return c.printOrders(cmd, list)
		},
	}

	orderStatus := &cobra.Command{
		Use:   "order-status <order-id> <status>",
		Short: "Confirm or reject an order received by your shop",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := enums.ParseOrderStatus(args[1])
			if err != nil {
				return err
			}
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			order, err := a.api.UpdateOrderStatus(cmd.Context(), args[0], status)
			if err != nil {
				return err
			}
			return c.printOrders(cmd, []backend.Order{*order})
		},
	}

	return []*cobra.Command{placeOrders, orders, shopOrders, orderStatus}
}

func (c *cli) printOrders(cmd *cobra.Command, orders []backend.Order) error {
	if c.jsonOutput {
		return writeJSON(cmd.OutOrStdout(), orders)
	}
	rows := make([][]string, 0, len(orders))
	for _, o := range orders {
		created := ""
		if !o.CreatedAt.IsZero() {
			created = o.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{o.OrderID, o.Status, strings.Join(o.ShopNames, ", "), o.TotalSum.StringFixed(2), created})
	}
	return table(cmd.OutOrStdout(), []string{"ORDER", "STATUS", "SHOPS", "TOTAL", "CREATED"}, rows)
}
