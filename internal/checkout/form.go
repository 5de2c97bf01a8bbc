package checkout

import (
	"fmt"
	"strings"
)

const DefaultCountry = "United States"

// Form is the checkout form. Payment fields are validated locally and never
// leave the process; payment is handled by an external processor.
type Form struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Address   string `json:"address" validate:"required"`
	City      string `json:"city" validate:"required"`
	State     string `json:"state" validate:"required"`
	ZipCode   string `json:"zip_code" validate:"required"`
	Country   string `json:"country" validate:"required"`

	CardNumber string `json:"card_number" validate:"required,len=16,numeric"`
	ExpiryDate string `json:"expiry_date" validate:"required,mmyy"`
	CVV        string `json:"cvv" validate:"required,numeric,min=3,max=4"`
	NameOnCard string `json:"name_on_card" validate:"required"`
}

// NewForm returns a form prefilled the way the checkout page starts.
func NewForm(email string) Form {
	return Form{Email: email, Country: DefaultCountry}
}

// ShippingAddress renders the single-line address sent with the order.
func (f Form) ShippingAddress() string {
	return fmt.Sprintf("%s, %s, %s %s, %s", f.Address, f.City, f.State, f.ZipCode, f.Country)
}

func (f Form) normalized() Form {
	trim := strings.TrimSpace
	f.FirstName = trim(f.FirstName)
	f.LastName = trim(f.LastName)
	f.Email = trim(f.Email)
	f.Address = trim(f.Address)
	f.City = trim(f.City)
	f.State = trim(f.State)
	f.ZipCode = trim(f.ZipCode)
	f.Country = trim(f.Country)
	if f.Country == "" {
		f.Country = DefaultCountry
	}
	f.CardNumber = strings.NewReplacer(" ", "", "-", "").Replace(f.CardNumber)
	f.ExpiryDate = trim(f.ExpiryDate)
	f.CVV = trim(f.CVV)
	f.NameOnCard = trim(f.NameOnCard)
	return f
}
