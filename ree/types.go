package ree

const (
	DefaultURL = "https://apidatos.ree.es/es/datos/mercados/precios-mercados-tiempo-real"

	// PVPC series id inside the included array.
	pvpcIndicator = "1001"
)

type reeResponse struct {
	Included []included `json:"included"`
}

type included struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Attributes attributes `json:"attributes"`
}

type attributes struct {
	Title      string       `json:"title"`
	LastUpdate string       `json:"last-update"`
	Values     []priceValue `json:"values"`
}

type priceValue struct {
	Value      float64 `json:"value"`
	Percentage float64 `json:"percentage"`
	Datetime   string  `json:"datetime"`
}
