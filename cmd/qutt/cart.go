package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/thequtt/qutt-client/internal/cart"
	pkgerrors "github.com/thequtt/qutt-client/pkg/errors"
	"github.com/thequtt/qutt-client/pkg/validators"
)

type cartView struct {
	Shops []cartShopView `json:"shops"`
	Items int            `json:"items"`
	Total string         `json:"total"`
}

type cartShopView struct {
	ShopID   int64           `json:"shop_id"`
	ShopName string          `json:"shop_name"`
	Subtotal string          `json:"subtotal"`
	Items    []cart.LineItem `json:"items"`
}

func cartCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "cart",
		Short: "Inspect and edit the local cart",
	}

	add := &cobra.Command{
		Use:   "add <shop-id> <product-id> [quantity]",
		Short: "Add a product to the cart",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			shopID, productID, err := parseLineKey(args)
			if err != nil {
				return err
			}
			quantity := 1
			if len(args) == 3 {
				if quantity, err = validators.ParseQuantity(args[2]); err != nil {
					return err
				}
			}
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			detail, err := a.api.ShopWithProducts(cmd.Context(), shopID)
			if err != nil {
				return err
			}
			for _, p := range detail.Products {
				if p.ID != productID {
					continue
				}
				if err := a.cart.AddItem(cart.LineItem{
					ProductID:  p.ID,
					ShopID:     shopID,
					Name:       p.Name,
					UnitPrice:  p.Price,
					Quantity:   quantity,
					ShopName:   detail.Name,
					PictureRef: p.Picture,
				}); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %d x %s\n", quantity, p.Name)
				return nil
			}
			return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %d not found in shop %d", productID, shopID))
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Show the cart grouped by shop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			return c.printCart(cmd, a.cart)
		},
	}

	update := &cobra.Command{
		Use:   "update <shop-id> <product-id> <quantity>",
		Short: "Set the quantity of a line; zero removes it",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			shopID, productID, err := parseLineKey(args)
			if err != nil {
				return err
			}
			quantity, err := validators.ParseQuantity(args[2])
			if err != nil {
				return err
			}
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			a.cart.UpdateQuantity(productID, shopID, quantity)
			return c.printCart(cmd, a.cart)
		},
	}

	remove := &cobra.Command{
		Use:   "remove <shop-id> <product-id>",
		Short: "Remove a line from the cart",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			shopID, productID, err := parseLineKey(args)
			if err != nil {
				return err
			}
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			a.cart.RemoveItem(productID, shopID)
			return c.printCart(cmd, a.cart)
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			a.cart.Clear()
			fmt.Fprintln(cmd.OutOrStdout(), "cart cleared")
			return nil
		},
	}

	root.AddCommand(add, list, update, remove, clearCmd)
	return root
}

func parseLineKey(args []string) (shopID, productID int64, err error) {
	if shopID, err = validators.ParseID("shop_id", args[0]); err != nil {
		return 0, 0, err
	}
	if productID, err = validators.ParseID("product_id", args[1]); err != nil {
		return 0, 0, err
	}
	return shopID, productID, nil
}

func buildCartView(crt *cart.Cart) cartView {
	groups := crt.GroupByShop()
	view := cartView{
		Shops: make([]cartShopView, 0, len(groups)),
		Items: crt.ItemCount(),
		Total: crt.Total().StringFixed(2),
	}
	for _, shopID := range cart.ShopIDs(groups) {
		group := groups[shopID]
		view.Shops = append(view.Shops, cartShopView{
			ShopID:   group.ShopID,
			ShopName: group.ShopName,
			Subtotal: group.Subtotal().StringFixed(2),
			Items:    group.Items,
		})
	}
	return view
}

func (c *cli) printCart(cmd *cobra.Command, crt *cart.Cart) error {
	view := buildCartView(crt)
	if c.jsonOutput {
		return writeJSON(cmd.OutOrStdout(), view)
	}
	if len(view.Shops) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "cart is empty")
		return nil
	}
	var rows [][]string
	for _, shop := range view.Shops {
		for _, item := range shop.Items {
			rows = append(rows, []string{
				shop.ShopName,
				strconv.FormatInt(item.ProductID, 10),
				item.Name,
				strconv.Itoa(item.Quantity),
				item.Subtotal().StringFixed(2),
			})
		}
	}
	if err := table(cmd.OutOrStdout(), []string{"SHOP", "PRODUCT", "NAME", "QTY", "SUBTOTAL"}, rows); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "total: %s\n", view.Total)
	return nil
}
