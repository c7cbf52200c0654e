package domain

// UpdateFlags carries one dirty bit per product. The pipeline sets a bit
// after every non-empty merge; clearing is the consumer's responsibility.
type UpdateFlags struct {
	Updates map[string]int `json:"updates"`
}

// Set marks the product dirty.
func (f *UpdateFlags) Set(product string) {
	if f.Updates == nil {
		f.Updates = make(map[string]int)
	}
	f.Updates[product] = 1
}
