package domain

import "strings"

type PaymentMethod string

const (
	PaymentCash        PaymentMethod = "Cash"
	PaymentCreditCard  PaymentMethod = "Credit Card"
	PaymentDebitCard   PaymentMethod = "Debit Card"
	PaymentPayPal      PaymentMethod = "PayPal"
	PaymentApplePay    PaymentMethod = "ApplePay"
	PaymentNotSelected PaymentMethod = "Not selected"
)

var paymentMethods = []PaymentMethod{
	PaymentCash,
	PaymentCreditCard,
	PaymentDebitCard,
	PaymentPayPal,
	PaymentApplePay,
	PaymentNotSelected,
}

func PaymentMethods() []PaymentMethod {
	out := make([]PaymentMethod, len(paymentMethods))
	copy(out, paymentMethods)
	return out
}

// ParsePaymentMethod accepts the enumeration values exactly, ignoring surrounding whitespace.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	s = strings.TrimSpace(s)
	for _, m := range paymentMethods {
		if string(m) == s {
			return m, true
		}
	}
	return "", false
}

func (m PaymentMethod) Valid() bool {
	_, ok := ParsePaymentMethod(string(m))
	return ok
}
