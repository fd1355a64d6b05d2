package domain

import (
	"strings"
	"time"
)

// DateLayout is the ISO calendar date format used on the wire.
const DateLayout = "2006-01-02"

// Date is a calendar date without a time component.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate reads an ISO calendar date.
func ParseDate(raw string) (Date, error) {
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Address is a postal address.
type Address struct {
	Street      string `json:"street"`
	BuildingNo  string `json:"buildingNo"`
	FlatNo      string `json:"flatNo,omitempty"`
	PostalCode  string `json:"postalCode"`
	City        string `json:"city"`
	CountryCode string `json:"countryCode,omitempty"`
}

// Person is natural-person data for any policy party.
type Person struct {
	FirstName  string  `json:"firstName"`
	LastName   string  `json:"lastName"`
	NationalID string  `json:"nationalId"`
	Email      string  `json:"email"`
	Phone      string  `json:"phone"`
	Address    Address `json:"address"`
}

// FullName joins first and last name.
func (p Person) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// VehicleSnapshot holds vehicle data as entered by the applicant. Amounts are major currency units.
type VehicleSnapshot struct {
	VIN                   string     `json:"vin"`
	RegistrationMark      string     `json:"registrationMark"`
	Make                  string     `json:"make"`
	Model                 string     `json:"model"`
	Mileage               int        `json:"mileage"`
	PurchasePrice         float64    `json:"purchasePrice"`
	PurchasePriceNet      *float64   `json:"purchasePriceNet,omitempty"`
	PurchasePriceInput    string     `json:"purchasePriceInputType"`
	VATReclaimableCode    string     `json:"vatReclaimableCode"`
	FirstRegistrationDate Date       `json:"firstRegistrationDate"`
	PurchaseDate          Date       `json:"purchaseDate"`
	Category              string     `json:"category"`
	Usage                 string     `json:"usage"`
	PerformedOn           *time.Time `json:"performedOn,omitempty"`
}

// ClientSnapshot holds the policy holder and the related parties.
type ClientSnapshot struct {
	PolicyHolder Person `json:"policyHolder"`
	Insured      Party  `json:"insured"`
	Beneficiary  Party  `json:"beneficiary"`
	VehicleOwner Party  `json:"vehicleOwner"`
}

// OptionSelection is the chosen option per option type.
type OptionSelection struct {
	Term          string `json:"term"`
	ClaimLimit    string `json:"claimLimit"`
	PaymentTerm   string `json:"paymentTerm"`
	PaymentMethod string `json:"paymentMethod"`
}

// Codes lists the selected option codes, skipping empty ones.
func (o OptionSelection) Codes() []string {
	codes := make([]string, 0, 4)
	for _, code := range []string{o.Term, o.ClaimLimit, o.PaymentTerm, o.PaymentMethod} {
		if code != "" {
			codes = append(codes, code)
		}
	}
	return codes
}

// PolicyApplication is everything the applicant supplies before a policy is locked.
type PolicyApplication struct {
	SellerNodeCode string          `json:"sellerNodeCode"`
	ProductCode    string          `json:"productCode"`
	Vehicle        VehicleSnapshot `json:"vehicle"`
	Client         ClientSnapshot  `json:"client"`
	Options        OptionSelection `json:"options"`
}
