// Package eligibility checks an application against a product portfolio before anything is sent upstream.
package eligibility

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/spec-kit/gap-pos/internal/domain"
)

// Violation codes.
const (
	CodeInvalidSellerNode         = "INVALID_SELLER_NODE"
	CodeInvalidCategory           = "INVALID_CATEGORY"
	CodeInvalidUsage              = "INVALID_USAGE"
	CodeDisabledOptionCombination = "DISABLED_OPTION_COMBINATION"
	CodeMissingRequiredField      = "MISSING_REQUIRED_FIELD"
)

// ValidationError is one eligibility violation.
type ValidationError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return e.Message
}

// ValidationErrors is the complete list of violations of one application.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

func (v ValidationErrors) DomainCode() string { return "VALIDATION_FAILED" }
func (v ValidationErrors) DomainStatus() int  { return http.StatusBadRequest }

func (v ValidationErrors) DomainDetails() map[string]any {
	return map[string]any{"violations": []ValidationError(v)}
}

// Has reports whether a violation with code is present.
func (v ValidationErrors) Has(code string) bool {
	for _, e := range v {
		if e.Code == code {
			return true
		}
	}
	return false
}

// Validator runs the eligibility checks. It never fetches portfolios itself.
type Validator struct{}

// NewValidator returns a validator.
func NewValidator() *Validator {
	return &Validator{}
}

// CheckSellerNode is the environment check, usable before a portfolio is available.
func (v *Validator) CheckSellerNode(app domain.PolicyApplication, expected string) *ValidationError {
	if app.SellerNodeCode == expected {
		return nil
	}
	return &ValidationError{
		Code:    CodeInvalidSellerNode,
		Field:   "sellerNodeCode",
		Message: fmt.Sprintf("seller node %q does not belong to the active environment", app.SellerNodeCode),
	}
}

// Validate collects every violation of app. A nil result means the application is eligible.
func (v *Validator) Validate(app domain.PolicyApplication, expectedSellerNode string, portfolio domain.PortfolioDescriptor) ValidationErrors {
	var errs ValidationErrors

	if e := v.CheckSellerNode(app, expectedSellerNode); e != nil {
		errs = append(errs, *e)
	}

	category := app.Vehicle.Category
	if !portfolio.HasCategory(category) {
		errs = append(errs, ValidationError{
			Code:    CodeInvalidCategory,
			Field:   "vehicle.category",
			Message: fmt.Sprintf("vehicle category %q is not offered by product %s", category, portfolio.ProductCode),
		})
	}

	if !portfolio.UsageAllowed(app.Vehicle.Usage, category) {
		errs = append(errs, ValidationError{
			Code:    CodeInvalidUsage,
			Field:   "vehicle.usage",
			Message: fmt.Sprintf("usage %q is not permitted for category %q", app.Vehicle.Usage, category),
		})
	}

	selected := make(map[string]bool)
	for _, code := range app.Options.Codes() {
		selected[code] = true
	}
	for _, combination := range portfolio.DisabledOptionCombinations {
		for i, a := range combination {
			for _, b := range combination[i+1:] {
				if a == b || !selected[a] || !selected[b] {
					continue
				}
				errs = append(errs, ValidationError{
					Code:    CodeDisabledOptionCombination,
					Field:   "options",
					Message: fmt.Sprintf("options %s and %s cannot be combined", a, b),
				})
			}
		}
	}

	for _, field := range portfolio.RequiredFields {
		if isBlank(app, field) {
			errs = append(errs, ValidationError{
				Code:    CodeMissingRequiredField,
				Field:   field,
				Message: fmt.Sprintf("%s is required", field),
			})
		}
	}

	return errs
}

// isBlank resolves a dotted json path such as "vehicle.vin" against app.
// Unknown paths are not reported.
func isBlank(app domain.PolicyApplication, path string) bool {
	val := reflect.ValueOf(app)
	for _, part := range strings.Split(path, ".") {
		for val.Kind() == reflect.Pointer {
			if val.IsNil() {
				return true
			}
			val = val.Elem()
		}
		if val.Kind() != reflect.Struct {
			return false
		}
		next, ok := fieldByJSONName(val, part)
		if !ok {
			return false
		}
		val = next
	}
	if val.Kind() == reflect.Pointer && val.IsNil() {
		return true
	}
	return val.IsZero()
}

func fieldByJSONName(val reflect.Value, name string) (reflect.Value, bool) {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		tag := strings.Split(typ.Field(i).Tag.Get("json"), ",")[0]
		if tag == name {
			return val.Field(i), true
		}
	}
	return reflect.Value{}, false
}
