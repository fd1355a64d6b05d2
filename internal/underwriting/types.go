package underwriting

import "time"

// MinorUnits is an integer amount of the smallest currency unit, as sent on the wire.
type MinorUnits int64

// VehicleSnapshot is the wire form of the vehicle block.
type VehicleSnapshot struct {
	VIN                    string     `json:"vin"`
	RegistrationMark       string     `json:"registrationMark"`
	Make                   string     `json:"make"`
	Model                  string     `json:"model"`
	Mileage                int        `json:"mileage"`
	PurchasePrice          MinorUnits `json:"purchasePrice"`
	PurchasePriceNet       MinorUnits `json:"purchasePriceNet"`
	PurchasePriceInputType string     `json:"purchasePriceInputType"`
	VATReclaimableCode     string     `json:"vatReclaimableCode"`
	FirstRegistrationDate  string     `json:"firstRegistrationDate"`
	PurchaseDate           string     `json:"purchaseDate"`
	Category               string     `json:"category"`
	Usage                  string     `json:"usage"`
	PerformedOn            string     `json:"performedOn"`
}

// Address is the wire address block.
type Address struct {
	Street      string `json:"street"`
	BuildingNo  string `json:"buildingNo"`
	FlatNo      string `json:"flatNo,omitempty"`
	PostalCode  string `json:"postalCode"`
	City        string `json:"city"`
	CountryCode string `json:"countryCode"`
}

// Person is the wire block of natural-person data.
type Person struct {
	FirstName  string  `json:"firstName"`
	LastName   string  `json:"lastName"`
	NationalID string  `json:"pesel"`
	Email      string  `json:"email"`
	Phone      string  `json:"phone"`
	Address    Address `json:"address"`
}

// PartyBlock carries either person data or a reference to another role.
type PartyBlock struct {
	SameAs string  `json:"sameAs,omitempty"`
	Person *Person `json:"person,omitempty"`
}

// Customer groups the policy parties.
type Customer struct {
	PolicyHolder Person     `json:"policyHolder"`
	Insured      PartyBlock `json:"insured"`
	Beneficiary  PartyBlock `json:"beneficiary"`
	VehicleOwner PartyBlock `json:"vehicleOwner"`
}

// Options is the selected option set.
type Options struct {
	Term          string `json:"term"`
	ClaimLimit    string `json:"claimLimit"`
	PaymentTerm   string `json:"paymentTerm"`
	PaymentMethod string `json:"paymentMethod"`
}

// CalculateRequest asks for an offer.
type CalculateRequest struct {
	VehicleSnapshot VehicleSnapshot `json:"vehicleSnapshot"`
	ProductCode     string          `json:"productCode"`
	SellerNodeCode  string          `json:"sellerNodeCode"`
	Options         Options         `json:"options"`
}

// CalculateResponse is the priced offer.
type CalculateResponse struct {
	Premium MinorUnits `json:"premium"`
	Details struct {
		CoverageMonths int        `json:"coveragePeriod"`
		MaxCoverage    MinorUnits `json:"maxCoverage"`
		VehicleValue   MinorUnits `json:"vehicleValue"`
	} `json:"details"`
}

// LockRequest reserves a policy at the accepted premium.
type LockRequest struct {
	VehicleSnapshot   VehicleSnapshot `json:"vehicleSnapshot"`
	Customer          Customer        `json:"customer"`
	ProductCode       string          `json:"productCode"`
	SellerNodeCode    string          `json:"sellerNodeCode"`
	SignatureTypeCode string          `json:"signatureTypeCode"`
	Premium           MinorUnits      `json:"premium"`
	Options           Options         `json:"options"`
}

// LockResponse carries the identifiers assigned by the service.
type LockResponse struct {
	PolicyID     string `json:"policyId"`
	PolicyNumber string `json:"policyNumber"`
}

// SignatureRequest starts a signature session.
type SignatureRequest struct {
	PolicyID string `json:"policyId"`
	Type     string `json:"type"`
}

// SignatureResponse describes the started session.
type SignatureResponse struct {
	SignatureID string     `json:"signatureId"`
	Status      string     `json:"status"`
	ValidUntil  *time.Time `json:"validUntil,omitempty"`
}

// ConfirmSignatureRequest submits the SMS code.
type ConfirmSignatureRequest struct {
	PolicyID         string `json:"policyId"`
	ConfirmationCode string `json:"confirmationCode"`
}

// ConfirmSignatureResponse is the confirmation outcome.
type ConfirmSignatureResponse struct {
	Status       string `json:"status"`
	PolicyNumber string `json:"policyNumber"`
}

// Document is one generated policy document.
type Document struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	MimeType  string    `json:"mimeType"`
	CreatedAt time.Time `json:"createdAt"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type errorBody struct {
	Message    string      `json:"message"`
	Detail     string      `json:"detail"`
	Title      string      `json:"title"`
	Violations []Violation `json:"violations"`
}
