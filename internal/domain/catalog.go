package domain

import "errors"

// ErrProductNotInCatalog is returned when a count update targets a product
// family the catalog does not list. The step fails; any merge already
// performed stands.
var ErrProductNotInCatalog = errors.New("catalog: product not listed")

// CodeOption is one selectable Level 3 product code with display fields and
// the number of files currently carrying that code.
type CodeOption struct {
	Value string `json:"value"`
	Label string `json:"label,omitempty"`
	Count int    `json:"count"`
}

// ProductCodeCatalog maps product families to their selectable code options.
type ProductCodeCatalog map[string][]CodeOption

// CodeCounts tallies the trailing code token of every key in the list.
func CodeCounts(list FileList) map[string]int {
	counts := make(map[string]int)
	for key := range list {
		if code, ok := KeyCode(key); ok {
			counts[code]++
		}
	}
	return counts
}

// SetCounts rewrites every option count for the product family from the
// current file list. Codes with no occurrences are set to 0, not omitted.
func (c ProductCodeCatalog) SetCounts(product string, list FileList) error {
	options, ok := c[product]
	if !ok {
		return ErrProductNotInCatalog
	}
	counts := CodeCounts(list)
	for i := range options {
		options[i].Count = counts[options[i].Value]
	}
	return nil
}
