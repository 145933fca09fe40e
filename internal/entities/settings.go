package entities

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// PaymentMethod is one channel users may pay through, rendered as a choice on
// the recharge form.
type PaymentMethod struct {
	Name    string          `json:"name"`
	Type    PaymentProvider `json:"type"`
	Number  string          `json:"number"`
	LogoURL *string         `json:"logoUrl,omitempty"`
}

// Settings is the global, admin-managed configuration.
type Settings struct {
	PaymentMethods  []PaymentMethod `json:"paymentMethods"`
	BiometricPrice  decimal.Decimal `json:"biometricPrice"`
	CallListPrice   decimal.Decimal `json:"callListPrice"`
	EmailAddonPrice decimal.Decimal `json:"emailAddonPrice"`
	Notice          string          `json:"notice"`
}

var ErrPaymentMethodUnknown = errors.New("payment method is not available")

// Validate checks payment methods and prices.
func (s *Settings) Validate() error {
	seen := make(map[string]bool, len(s.PaymentMethods))
	for i, pm := range s.PaymentMethods {
		name := strings.TrimSpace(pm.Name)
		if name == "" {
			return fmt.Errorf("payment method %d: name is required", i+1)
		}
		key := strings.ToLower(name)
		if seen[key] {
			return fmt.Errorf("payment method %q is listed twice", name)
		}
		seen[key] = true
		if _, ok := ParsePaymentProvider(string(pm.Type)); !ok {
			return fmt.Errorf("payment method %q: type must be Bkash, Nagad or Rocket", name)
		}
		if strings.TrimSpace(pm.Number) == "" {
			return fmt.Errorf("payment method %q: number is required", name)
		}
	}
	for label, price := range map[string]decimal.Decimal{
		"biometric price":   s.BiometricPrice,
		"call list price":   s.CallListPrice,
		"email addon price": s.EmailAddonPrice,
	} {
		if price.IsNegative() {
			return fmt.Errorf("%s must not be negative", label)
		}
	}
	return nil
}

// FindPaymentMethod looks a method up by name, case-insensitively.
func (s *Settings) FindPaymentMethod(name string) (PaymentMethod, bool) {
	name = strings.TrimSpace(name)
	for _, pm := range s.PaymentMethods {
		if strings.EqualFold(pm.Name, name) {
			return pm, true
		}
	}
	return PaymentMethod{}, false
}

// DefaultSettings is used until an admin saves settings for the first time.
func DefaultSettings() Settings {
	return Settings{
		PaymentMethods:  []PaymentMethod{},
		BiometricPrice:  decimal.NewFromInt(150),
		CallListPrice:   decimal.NewFromInt(300),
		EmailAddonPrice: decimal.NewFromInt(20),
	}
}
