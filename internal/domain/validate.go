package domain

// Precondition checks shared by the inventory and purchase engines.
// Each is a total, side-effect-free function over its inputs.

// ValidateName rejects empty item and merchant names.
func ValidateName(name string) error {
	if name == "" {
		return ErrInvalidName
	}
	return nil
}

// ValidatePrice rejects a zero unit price.
func ValidatePrice(price uint64) error {
	if price == 0 {
		return ErrInvalidPrice
	}
	return nil
}

// ValidateQuantity rejects a zero quantity.
func ValidateQuantity(quantity uint64) error {
	if quantity == 0 {
		return ErrInvalidQuantity
	}
	return nil
}

// ValidateStock rejects a request for more units than are on hand.
func ValidateStock(requested, available uint64) error {
	if requested > available {
		return ErrInsufficientStock
	}
	return nil
}

// ValidatePayment rejects a tendered amount below the required total.
func ValidatePayment(tendered, required uint64) error {
	if tendered < required {
		return ErrInsufficientPayment
	}
	return nil
}
