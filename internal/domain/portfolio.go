package domain

// UsageLimitation restricts a usage code to some categories. Nil OnlyForCategories means all categories.
type UsageLimitation struct {
	Code              string   `json:"code"`
	OnlyForCategories []string `json:"onlyForCategories"`
}

// AllowsCategory reports whether the usage is permitted for category.
func (u UsageLimitation) AllowsCategory(category string) bool {
	if u.OnlyForCategories == nil {
		return true
	}
	for _, c := range u.OnlyForCategories {
		if c == category {
			return true
		}
	}
	return false
}

// Option is one selectable value of an option type.
type Option struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// OptionType groups options, e.g. term or claim limit.
type OptionType struct {
	Code    string   `json:"code"`
	Name    string   `json:"name"`
	Options []Option `json:"options"`
}

// PortfolioDescriptor describes what a product allows.
type PortfolioDescriptor struct {
	ProductCode                string            `json:"productCode"`
	ProductName                string            `json:"productName"`
	VehicleCategories          []string          `json:"vehicleCategories"`
	UsageLimitations           []UsageLimitation `json:"usageLimitations"`
	OptionTypes                []OptionType      `json:"optionTypes"`
	DisabledOptionCombinations [][]string        `json:"disabledOptionCombinations"`
	RequiredFields             []string          `json:"requiredFields"`
}

// HasCategory reports whether category is listed for the product.
func (p PortfolioDescriptor) HasCategory(category string) bool {
	for _, c := range p.VehicleCategories {
		if c == category {
			return true
		}
	}
	return false
}

// UsageAllowed reports whether usage code may be sold for category. A code may be
// listed several times; any entry permitting the category is enough.
func (p PortfolioDescriptor) UsageAllowed(code, category string) bool {
	for _, u := range p.UsageLimitations {
		if u.Code == code && u.AllowsCategory(category) {
			return true
		}
	}
	return false
}

// Product is a sellable product as listed by the underwriting service.
type Product struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// VehicleMake is reference data for make selection.
type VehicleMake struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// VehicleModel is reference data for model selection.
type VehicleModel struct {
	ID     string `json:"id"`
	MakeID string `json:"makeId"`
	Name   string `json:"name"`
}
