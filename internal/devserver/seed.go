package devserver

import (
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	DemoEmail     = "demo@example.com"
	DemoPassword  = "demo123"
	AdminEmail    = "admin@example.com"
	AdminPassword = "admin123"
)

var demoProducts = []domain.Product{
	{ID: 1, Name: "Wireless Headphones", Description: "Over-ear, noise cancelling", Price: decimal.RequireFromString("89.99"), Stock: 25, Category: "Electronics"},
	{ID: 2, Name: "Coffee Mug", Description: "Ceramic, 350ml", Price: decimal.RequireFromString("12.50"), Stock: 100, Category: "Home"},
	{ID: 3, Name: "Running Shoes", Description: "Lightweight trail runners", Price: decimal.RequireFromString("64.00"), Stock: 10, Category: "Sports"},
	{ID: 4, Name: "Notebook", Description: "A5 dotted, 120 pages", Price: decimal.RequireFromString("7.25"), Stock: 200, Category: "Stationery"},
	{ID: 5, Name: "Desk Lamp", Description: "LED with dimmer", Price: decimal.RequireFromString("34.90"), Stock: 15, Category: "Home"},
	{ID: 6, Name: "Yoga Mat", Description: "6mm non-slip", Price: decimal.RequireFromString("20.00"), Stock: 30, Category: "Sports"},
	{ID: 7, Name: "USB-C Charger", Description: "65W fast charging", Price: decimal.RequireFromString("29.99"), Stock: 40, Category: "Electronics"},
	{ID: 8, Name: "Water Bottle", Description: "Insulated steel, 750ml", Price: decimal.RequireFromString("18.00"), Stock: 60, Category: "Sports"},
	{ID: 9, Name: "Fountain Pen", Description: "Medium nib", Price: decimal.RequireFromString("45.00"), Stock: 0, Category: "Stationery"},
	{ID: 10, Name: "Bluetooth Speaker", Description: "Portable, waterproof", Price: decimal.RequireFromString("55.00"), Stock: 12, Category: "Electronics"},
}

// Seed loads the demo catalog, a demo shopper and an admin.
func Seed(s *MemoryStore) error {
	for _, p := range demoProducts {
		s.AddProduct(p)
	}
	if _, err := s.CreateUser(domain.Registration{Username: "demo", Email: DemoEmail, Password: DemoPassword}, false); err != nil {
		return err
	}
	if _, err := s.CreateUser(domain.Registration{Username: "admin", Email: AdminEmail, Password: AdminPassword}, true); err != nil {
		return err
	}
	return nil
}
