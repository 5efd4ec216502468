package main

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/thequtt/qutt-client/internal/backend"
	"github.com/thequtt/qutt-client/pkg/validators"
)

func catalogCommands(c *cli) []*cobra.Command {
	var near []float64
	shops := &cobra.Command{
		Use:   "shops",
		Short: "List shops",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(near) != 0 && len(near) != 2 {
				return fmt.Errorf("--near takes latitude,longitude")
			}
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			list, err := a.api.Shops(cmd.Context())
			if err != nil {
				return err
			}
			if len(near) == 2 {
				return c.printNearest(cmd, backend.NearestShops(list, near[0], near[1]))
			}
			return c.printShops(cmd, list)
		},
	}
	shops.Flags().Float64SliceVar(&near, "near", nil, "Sort by distance from latitude,longitude")

	locations := &cobra.Command{
		Use:   "locations",
		Short: "List map locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			list, err := a.api.Locations(cmd.Context())
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), list)
			}
			rows := make([][]string, 0, len(list))
			for _, l := range list {
				rows = append(rows, []string{strconv.FormatInt(l.ID, 10), l.Name, l.Latitude.String(), l.Longitude.String()})
			}
			return table(cmd.OutOrStdout(), []string{"ID", "NAME", "LATITUDE", "LONGITUDE"}, rows)
		},
	}

	shop := &cobra.Command{
		Use:   "shop <shop-id>",
		Short: "Show a shop and its products",
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
			detail, err := a.api.ShopWithProducts(cmd.Context(), shopID)
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), detail)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (#%d)\n", detail.Name, detail.ID)
			return printProducts(cmd, detail.Products)
		},
	}

	myShops := &cobra.Command{
		Use:   "my-shops",
		Short: "List the shops owned by the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			owner, list, err := a.api.IsShopOwner(cmd.Context())
			if err != nil {
				return err
			}
			if !owner {
				fmt.Fprintln(cmd.OutOrStdout(), "no shops owned by this account")
				return nil
			}
			return c.printShops(cmd, list)
		},
	}

	var (
		product  backend.NewProduct
		rawPrice string
		picture  string
	)
	createProduct := &cobra.Command{
		Use:   "product-create <shop-id>",
		Short: "Add a product to one of your shops",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shopID, err := validators.ParseID("shop_id", args[0])
			if err != nil {
				return err
			}
			price, err := decimal.NewFromString(rawPrice)
			if err != nil {
				return fmt.Errorf("invalid price %q: %w", rawPrice, err)
			}
			product.ShopID = shopID
			product.Price = price
			if picture != "" {
				product.Picture = &picture
			}
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			created, err := a.api.CreateProduct(cmd.Context(), product)
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), created)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created product %d\n", created.ID)
			return nil
		},
	}
	createProduct.Flags().StringVar(&product.Name, "name", "", "Product name")
	createProduct.Flags().StringVar(&product.Description, "description", "", "Product description")
	createProduct.Flags().StringVar(&rawPrice, "price", "0", "Unit price")
	createProduct.Flags().IntVar(&product.Quantity, "quantity", 0, "Stock quantity")
	createProduct.Flags().StringVar(&product.Category, "category", "", "Product category")
	createProduct.Flags().StringVar(&picture, "picture", "", "Picture URL")

	return []*cobra.Command{shops, locations, shop, myShops, createProduct}
}

func (c *cli) printShops(cmd *cobra.Command, shops []backend.Shop) error {
	if c.jsonOutput {
		return writeJSON(cmd.OutOrStdout(), shops)
	}
	rows := make([][]string, 0, len(shops))
	for _, s := range shops {
		rows = append(rows, []string{strconv.FormatInt(s.ID, 10), s.Name, s.Category.String(), s.Address})
	}
	return table(cmd.OutOrStdout(), []string{"ID", "NAME", "CATEGORY", "ADDRESS"}, rows)
}

func printProducts(cmd *cobra.Command, products []backend.Product) error {
	rows := make([][]string, 0, len(products))
	for _, p := range products {
		rows = append(rows, []string{strconv.FormatInt(p.ID, 10), p.Name, p.Price.StringFixed(2), strconv.Itoa(p.Quantity)})
	}
	return table(cmd.OutOrStdout(), []string{"ID", "NAME", "PRICE", "STOCK"}, rows)
}

func (c *cli) printNearest(cmd *cobra.Command, ranked []backend.ShopDistance) error {
	if c.jsonOutput {
		return writeJSON(cmd.OutOrStdout(), ranked)
	}
	rows := make([][]string, 0, len(ranked))
	for _, r := range ranked {
		rows = append(rows, []string{strconv.FormatInt(r.Shop.ID, 10), r.Shop.Name, strconv.FormatFloat(r.DistanceKm, 'f', 1, 64) + " km"})
	}
	return table(cmd.OutOrStdout(), []string{"ID", "NAME", "DISTANCE"}, rows)
}
