package order

// StockRule computes a product's stock after quantity units are ordered.
// clamped is true when the request exceeded what was on hand.
type StockRule func(stock, quantity int) (next int, clamped bool)

// ClampToZero subtracts quantity from stock and never goes below zero.
// Orders for more than is on hand are accepted.
func ClampToZero(stock, quantity int) (int, bool) {
	if quantity > stock {
		return 0, true
	}
	return stock - quantity, false
}
