// Package normalizer converts applicant-facing values into the underwriting wire representation.
// It is the single conversion point for every monetary field.
package normalizer

import (
	"math"
	"time"

	"github.com/spec-kit/gap-pos/internal/domain"
	"github.com/spec-kit/gap-pos/internal/underwriting"
)

// ToWireMoney converts major units to minor units, rounding to the nearest unit.
func ToWireMoney(amount float64) underwriting.MinorUnits {
	return underwriting.MinorUnits(math.Round(amount * 100))
}

// FromWireMoney converts minor units back to major units.
func FromWireMoney(units underwriting.MinorUnits) float64 {
	return float64(units) / 100
}

// ToWireVehicleSnapshot builds the vehicle block. now is used when no performed-on timestamp was captured.
func ToWireVehicleSnapshot(app domain.PolicyApplication, now time.Time) underwriting.VehicleSnapshot {
	v := app.Vehicle

	net := v.PurchasePrice
	if v.PurchasePriceNet != nil {
		net = *v.PurchasePriceNet
	}
	performedOn := now
	if v.PerformedOn != nil && !v.PerformedOn.IsZero() {
		performedOn = *v.PerformedOn
	}

	return underwriting.VehicleSnapshot{
		VIN:                    v.VIN,
		RegistrationMark:       v.RegistrationMark,
		Make:                   v.Make,
		Model:                  v.Model,
		Mileage:                v.Mileage,
		PurchasePrice:          ToWireMoney(v.PurchasePrice),
		PurchasePriceNet:       ToWireMoney(net),
		PurchasePriceInputType: v.PurchasePriceInput,
		VATReclaimableCode:     v.VATReclaimableCode,
		FirstRegistrationDate:  v.FirstRegistrationDate.String(),
		PurchaseDate:           v.PurchaseDate.String(),
		Category:               v.Category,
		Usage:                  v.Usage,
		PerformedOn:            performedOn.UTC().Format(time.RFC3339),
	}
}

// ToWireCustomer builds the party blocks. Parties without their own data are sent as references.
func ToWireCustomer(client domain.ClientSnapshot) underwriting.Customer {
	return underwriting.Customer{
		PolicyHolder: toWirePerson(client.PolicyHolder),
		Insured:      toWireParty(client.Insured),
		Beneficiary:  toWireParty(client.Beneficiary),
		VehicleOwner: toWireParty(client.VehicleOwner),
	}
}

// ToWireOptions copies the option codes unchanged.
func ToWireOptions(o domain.OptionSelection) underwriting.Options {
	return underwriting.Options{
		Term:          o.Term,
		ClaimLimit:    o.ClaimLimit,
		PaymentTerm:   o.PaymentTerm,
		PaymentMethod: o.PaymentMethod,
	}
}

// CalculateRequest assembles the calculate-offer payload.
func CalculateRequest(app domain.PolicyApplication, now time.Time) underwriting.CalculateRequest {
	return underwriting.CalculateRequest{
		VehicleSnapshot: ToWireVehicleSnapshot(app, now),
		ProductCode:     app.ProductCode,
		SellerNodeCode:  app.SellerNodeCode,
		Options:         ToWireOptions(app.Options),
	}
}

// LockRequest assembles the lock payload. premium is the accepted quote in major units.
func LockRequest(app domain.PolicyApplication, premium float64, sigType domain.SignatureType, now time.Time) underwriting.LockRequest {
	return underwriting.LockRequest{
		VehicleSnapshot:   ToWireVehicleSnapshot(app, now),
		Customer:          ToWireCustomer(app.Client),
		ProductCode:       app.ProductCode,
		SellerNodeCode:    app.SellerNodeCode,
		SignatureTypeCode: string(sigType),
		Premium:           ToWireMoney(premium),
		Options:           ToWireOptions(app.Options),
	}
}

// CalculationResult maps the priced offer back to major units.
func CalculationResult(resp underwriting.CalculateResponse, quoteID string, now time.Time) domain.CalculationResult {
	return domain.CalculationResult{
		QuoteID:        quoteID,
		Premium:        FromWireMoney(resp.Premium),
		CoverageMonths: resp.Details.CoverageMonths,
		MaxCoverage:    FromWireMoney(resp.Details.MaxCoverage),
		VehicleValue:   FromWireMoney(resp.Details.VehicleValue),
		CalculatedAt:   now,
	}
}

// Documents maps wire documents onto the domain set.
func Documents(policyID string, docs []underwriting.Document) domain.DocumentSet {
	set := domain.DocumentSet{PolicyID: policyID, Documents: make([]domain.Document, 0, len(docs))}
	for _, d := range docs {
		set.Documents = append(set.Documents, domain.Document{
			Code:      d.Code,
			Name:      d.Name,
			URL:       d.URL,
			MimeType:  d.MimeType,
			CreatedAt: d.CreatedAt,
		})
	}
	return set
}

func toWireParty(p domain.Party) underwriting.PartyBlock {
	r := p.Resolved()
	if r.Kind == domain.PartyExplicit {
		person := toWirePerson(*r.Person)
		return underwriting.PartyBlock{Person: &person}
	}
	return underwriting.PartyBlock{SameAs: string(r.InheritFrom)}
}

func toWirePerson(p domain.Person) underwriting.Person {
	return underwriting.Person{
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		NationalID: p.NationalID,
		Email:      p.Email,
		Phone:      p.Phone,
		Address: underwriting.Address{
			Street:      p.Address.Street,
			BuildingNo:  p.Address.BuildingNo,
			FlatNo:      p.Address.FlatNo,
			PostalCode:  p.Address.PostalCode,
			City:        p.Address.City,
			CountryCode: p.Address.CountryCode,
		},
	}
}
