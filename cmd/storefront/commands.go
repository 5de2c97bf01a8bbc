package main

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/gateway"
	"github.com/spf13/cobra"
)

func (c *cli) loginCmd() *cobra.Command {
	var creds domain.Credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and keep the session for later commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if creds.Password == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return apperr.Validationf("password is required")
				}
				creds.Password = strings.TrimSpace(line)
			}
			if err := c.app.Auth.Login(cmd.Context(), creds); err != nil {
				return err
			}
			s, _ := c.app.Auth.Session()
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", displayName(s.User))
			renderCartSummary(cmd.OutOrStdout(), c.app.CartView())
			return nil
		},
	}
	cmd.Flags().StringVar(&creds.Email, "email", "", "account email")
	cmd.Flags().StringVar(&creds.Password, "password", "", "account password (prompted when empty)")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c.app.Auth.Logout()
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func (c *cli) registerCmd() *cobra.Command {
	var reg domain.Registration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := c.app.Auth.Register(cmd.Context(), reg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account created for %s. Run `storefront login` to sign in.\n", displayName(*user))
			return nil
		},
	}
	cmd.Flags().StringVar(&reg.Username, "username", "", "username")
	cmd.Flags().StringVar(&reg.Email, "email", "", "email")
	cmd.Flags().StringVar(&reg.Password, "password", "", "password, at least 6 characters")
	cmd.Flags().StringVar(&reg.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&reg.LastName, "last-name", "", "last name")
	return cmd
}

func (c *cli) productsCmd() *cobra.Command {
	var (
		filter   gateway.ProductFilter
		featured bool
	)
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				products []domain.Product
				err      error
			)
			if featured {
				products, err = c.app.Catalog.Featured(cmd.Context())
			} else {
				products, err = c.app.Catalog.Search(cmd.Context(), filter)
			}
			if err != nil {
				return err
			}
			renderProducts(cmd.OutOrStdout(), products)
			return nil
		},
	}
	cmd.Flags().StringVar(&filter.Category, "category", "", "only this category")
	cmd.Flags().StringVar(&filter.Search, "search", "", "match name or description")
	cmd.Flags().BoolVar(&featured, "featured", false, "show featured products only")
	return cmd
}

func (c *cli) productCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "product <id>",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("product id", args[0])
			if err != nil {
				return err
			}
			p, err := c.app.Catalog.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			renderProduct(cmd.OutOrStdout(), p)
			return nil
		},
	}
}

func (c *cli) cartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cart",
		Short: "Show the cart with its price breakdown",
		Long:  "Show the cart with its price breakdown. The cart is loaded when the stored session is restored.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			view := c.app.CartView()
			if view.State.Err != nil && !view.State.Loaded {
				return view.State.Err
			}
			renderCart(cmd.OutOrStdout(), view)
			return nil
		},
	}
}

func (c *cli) addCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <product-id> [quantity]",
		Short: "Add a product to the cart",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			productID, err := parseID("product id", args[0])
			if err != nil {
				return err
			}
			quantity := 1
			if len(args) == 2 {
				if quantity, err = parseQuantity(args[1]); err != nil {
					return err
				}
			}
			if err := c.app.Cart.AddItem(cmd.Context(), productID, quantity); err != nil {
				return err
			}
			renderCartSummary(cmd.OutOrStdout(), c.app.CartView())
			return nil
		},
	}
}

func (c *cli) updateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update <item-id> <quantity>",
		Short: "Change the quantity of a cart item; 0 removes it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := parseID("item id", args[0])
			if err != nil {
				return err
			}
			quantity, err := parseQuantity(args[1])
			if err != nil {
				return err
			}
			if err := c.app.Cart.UpdateItem(cmd.Context(), itemID, quantity); err != nil {
				return err
			}
			renderCart(cmd.OutOrStdout(), c.app.CartView())
			return nil
		},
	}
}

func (c *cli) removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <item-id>",
		Short: "Remove an item from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := parseID("item id", args[0])
			if err != nil {
				return err
			}
			if err := c.app.Cart.RemoveItem(cmd.Context(), itemID); err != nil {
				return err
			}
			renderCart(cmd.OutOrStdout(), c.app.CartView())
			return nil
		},
	}
}

func (c *cli) clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.app.Cart.ClearCart(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cart cleared")
			return nil
		},
	}
}

func (c *cli) checkoutCmd() *cobra.Command {
	form := checkout.NewForm("")
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for the current cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if form.Email == "" {
				if s, ok := c.app.Auth.Session(); ok {
					form.Email = s.User.Email
				}
			}
			renderPricing(cmd.OutOrStdout(), c.app.CartView().Pricing)
			order, err := c.app.Checkout.Checkout(cmd.Context(), form)
			if err != nil {
				return err
			}
			renderConfirmation(cmd.OutOrStdout(), *order)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&form.FirstName, "first-name", "", "first name")
	f.StringVar(&form.LastName, "last-name", "", "last name")
	f.StringVar(&form.Email, "email", "", "contact email (defaults to the account email)")
	f.StringVar(&form.Address, "address", "", "street address")
	f.StringVar(&form.City, "city", "", "city")
	f.StringVar(&form.State, "state", "", "state")
	f.StringVar(&form.ZipCode, "zip", "", "ZIP code")
	f.StringVar(&form.Country, "country", checkout.DefaultCountry, "country")
	f.StringVar(&form.CardNumber, "card", "", "card number, 16 digits")
	f.StringVar(&form.ExpiryDate, "expiry", "", "card expiry, MM/YY")
	f.StringVar(&form.CVV, "cvv", "", "card security code")
	f.StringVar(&form.NameOnCard, "name-on-card", "", "name printed on the card")
	return cmd
}

func (c *cli) ordersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "orders [id]",
		Short: "List your orders, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				id, err := parseID("order id", args[0])
				if err != nil {
					return err
				}
				order, err := c.app.Checkout.Order(cmd.Context(), id)
				if err != nil {
					return err
				}
				renderOrder(cmd.OutOrStdout(), *order)
				return nil
			}

			orders, err := c.app.Checkout.Orders(cmd.Context())
			if err != nil {
				return err
			}
			renderOrders(cmd.OutOrStdout(), orders)
			return nil
		},
	}
}

func (c *cli) cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <order-id>",
		Short: "Cancel one of your pending or processing orders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("order id", args[0])
			if err != nil {
				return err
			}
			order, err := c.app.Checkout.CancelOrder(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Order #%d cancelled\n", order.ID)
			return nil
		},
	}
}

func parseID(name, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validationf("%s must be a positive integer", name)
	}
	return id, nil
}

func parseQuantity(raw string) (int, error) {
	q, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validationf("quantity must be a whole number")
	}
	return q, nil
}

func displayName(u domain.User) string {
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}
