package normalizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/gap-pos/internal/domain"
	"github.com/spec-kit/gap-pos/internal/underwriting"
)

func TestToWireMoney(t *testing.T) {
	cases := []struct {
		in   float64
		want underwriting.MinorUnits
	}{
		{150000.00, 15000000},
		{1890.00, 189000},
		{0.1 + 0.2, 30},
		{19.999, 2000},
		{0, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ToWireMoney(tc.in), "amount %v", tc.in)
	}
}

func TestMoneyRoundTripRecoversCents(t *testing.T) {
	for _, m := range []float64{0.01, 12.34, 1890.00, 150000.00, 99999.99} {
		assert.InDelta(t, m, FromWireMoney(ToWireMoney(m)), 0.001)
	}
}

func TestToWireVehicleSnapshot_Defaults(t *testing.T) {
	now := time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)
	app := domain.PolicyApplication{
		Vehicle: domain.VehicleSnapshot{
			VIN:                   "WVWZZZ1JZXW000001",
			PurchasePrice:         150000.00,
			VATReclaimableCode:    "NO",
			FirstRegistrationDate: domain.NewDate(2024, time.May, 2),
			PurchaseDate:          domain.NewDate(2026, time.March, 1),
			Category:              "PC",
			Usage:                 "STANDARD",
		},
	}

	snap := ToWireVehicleSnapshot(app, now)

	assert.Equal(t, underwriting.MinorUnits(15000000), snap.PurchasePrice)
	assert.Equal(t, snap.PurchasePrice, snap.PurchasePriceNet)
	assert.Equal(t, "2024-05-02", snap.FirstRegistrationDate)
	assert.Equal(t, "2026-03-01", snap.PurchaseDate)
	assert.Equal(t, "2026-03-04T10:30:00Z", snap.PerformedOn)
	assert.Equal(t, "PC", snap.Category)
	assert.Equal(t, "STANDARD", snap.Usage)
	assert.Equal(t, "NO", snap.VATReclaimableCode)
}

func TestToWireVehicleSnapshot_ExplicitNetAndPerformedOn(t *testing.T) {
	net := 121951.22
	performed := time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC)
	app := domain.PolicyApplication{Vehicle: domain.VehicleSnapshot{
		PurchasePrice:    150000.00,
		PurchasePriceNet: &net,
		PerformedOn:      &performed,
	}}

	snap := ToWireVehicleSnapshot(app, time.Now())

	assert.Equal(t, underwriting.MinorUnits(12195122), snap.PurchasePriceNet)
	assert.Equal(t, "2026-01-02T08:00:00Z", snap.PerformedOn)
}

func TestToWireCustomer_InheritsAbsentParties(t *testing.T) {
	owner := domain.Person{FirstName: "Jan", LastName: "Nowak"}
	customer := ToWireCustomer(domain.ClientSnapshot{
		PolicyHolder: domain.Person{FirstName: "Anna", LastName: "Kowalska"},
		Beneficiary:  domain.InheritParty(domain.RoleInsured),
		VehicleOwner: domain.ExplicitParty(owner),
	})

	assert.Equal(t, "POLICY_HOLDER", customer.Insured.SameAs)
	assert.Nil(t, customer.Insured.Person)
	assert.Equal(t, "INSURED", customer.Beneficiary.SameAs)
	if assert.NotNil(t, customer.VehicleOwner.Person) {
		assert.Equal(t, "Nowak", customer.VehicleOwner.Person.LastName)
	}
	assert.Empty(t, customer.VehicleOwner.SameAs)
}

func TestLockRequest_ConvertsAcceptedPremiumOnce(t *testing.T) {
	app := domain.PolicyApplication{ProductCode: "GAP", SellerNodeCode: "NODE-1"}
	req := LockRequest(app, 1890.00, domain.SignatureAuthorizedBySMS, time.Now())

	assert.Equal(t, underwriting.MinorUnits(189000), req.Premium)
	assert.Equal(t, "AUTHORIZED_BY_SMS", req.SignatureTypeCode)
}

func TestCalculationResult(t *testing.T) {
	var resp underwriting.CalculateResponse
	resp.Premium = 189000
	resp.Details.CoverageMonths = 36
	resp.Details.MaxCoverage = 5000000

	got := CalculationResult(resp, "q-1", time.Now())
	assert.Equal(t, 1890.00, got.Premium)
	assert.Equal(t, 50000.00, got.MaxCoverage)
	assert.Equal(t, "q-1", got.QuoteID)
}
