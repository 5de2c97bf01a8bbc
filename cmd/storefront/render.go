package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/storefront"
	"github.com/shopspring/decimal"
)

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

func renderProducts(w io.Writer, products []domain.Product) {
	if len(products) == 0 {
		fmt.Fprintln(w, "No products found")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE\tSTOCK")
	for _, p := range products {
		stock := fmt.Sprint(p.Stock)
		if p.Stock == 0 {
			stock = "out of stock"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Category, money(p.Price), stock)
	}
	_ = tw.Flush()
}

func renderProduct(w io.Writer, p domain.Product) {
	fmt.Fprintf(w, "#%d %s\n", p.ID, p.Name)
	if p.Description != "" {
		fmt.Fprintln(w, p.Description)
	}
	fmt.Fprintf(w, "Price: %s\n", money(p.Price))
	fmt.Fprintf(w, "In stock: %d\n", p.Stock)
	if p.Category != "" {
		fmt.Fprintf(w, "Category: %s\n", p.Category)
	}
}

func renderCart(w io.Writer, v storefront.CartView) {
	if !v.State.SignedIn {
		fmt.Fprintln(w, "You are signed out. Run `storefront login` to see your cart.")
		return
	}
	if v.State.Cart.IsEmpty() {
		fmt.Fprintln(w, "Your cart is empty")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tPRODUCT\tQTY\tSUBTOTAL")
	for _, item := range v.State.Cart.Items {
		name := fmt.Sprintf("product %d", item.ProductRef())
		if item.Product != nil {
			name = item.Product.Name
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", item.ID, name, item.Quantity, money(item.Subtotal))
	}
	_ = tw.Flush()
	renderPricing(w, v.Pricing)
}

func renderCartSummary(w io.Writer, v storefront.CartView) {
	fmt.Fprintf(w, "Cart: %d item(s), %s\n", v.State.ItemCount(), money(v.Pricing.Subtotal))
}

// renderPricing is shared by the cart and checkout views.
func renderPricing(w io.Writer, b checkout.Breakdown) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Subtotal\t%s\t\n", money(b.Subtotal))
	if b.FreeShipping() {
		fmt.Fprintf(tw, "Shipping\tFree\t\n")
	} else {
		fmt.Fprintf(tw, "Shipping\t%s\t\n", money(b.Shipping))
	}
	fmt.Fprintf(tw, "Tax\t%s\t\n", money(b.Tax))
	fmt.Fprintf(tw, "Total\t%s\t\n", money(b.Total))
	_ = tw.Flush()
	if b.AmountToFreeShipping.IsPositive() {
		fmt.Fprintf(w, "Add %s more for free shipping\n", money(b.AmountToFreeShipping))
	}
}

func renderConfirmation(w io.Writer, o domain.Order) {
	fmt.Fprintln(w, "Order confirmed!")
	fmt.Fprintf(w, "Order number: #%d\n", o.ID)
	fmt.Fprintf(w, "Total amount: %s\n", money(o.TotalAmount))
	fmt.Fprintf(w, "Status: %s\n", o.Status)
}

func renderOrders(w io.Writer, orders []domain.Order) {
	if len(orders) == 0 {
		fmt.Fprintln(w, "No orders yet")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tSTATUS\tITEMS\tTOTAL\tPLACED")
	for _, o := range orders {
		placed := ""
		if !o.CreatedAt.IsZero() {
			placed = o.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "#%d\t%s\t%d\t%s\t%s\n", o.ID, o.Status, len(o.Items), money(o.TotalAmount), placed)
	}
	_ = tw.Flush()
}

func renderOrder(w io.Writer, o domain.Order) {
	fmt.Fprintf(w, "Order #%d (%s)\n", o.ID, o.Status)
	fmt.Fprintf(w, "Ship to: %s\n", o.ShippingAddress)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, item := range o.Items {
		name := item.ProductName
		if name == "" {
			name = fmt.Sprintf("product %d", item.ProductID)
		}
		fmt.Fprintf(tw, "  %s\tx%d\t%s\n", name, item.Quantity, money(item.Subtotal))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "Total: %s\n", money(o.TotalAmount))
}
