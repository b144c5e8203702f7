package model

import "strings"

// Token captures ERC20 metadata needed to size and display amounts.
type Token struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name,omitempty"`
	Decimals uint8  `json:"decimals"`
}

// Is reports whether the token lives at address. Hex case is ignored.
func (t Token) Is(address string) bool {
	return address != "" && strings.EqualFold(t.Address, address)
}

// Label returns the symbol, falling back to the address.
func (t Token) Label() string {
	if t.Symbol != "" {
		return t.Symbol
	}
	return t.Address
}
