package domain

// LedgerLine is one LineItem/Amount row of a budget or draw sheet.
type LedgerLine struct {
	LineItem string
	Amount   float64
}

type Overrun struct {
	LineItem string  `json:"line_item"`
	Budget   float64 `json:"budget"`
	Draw     float64 `json:"draw"`
	Variance float64 `json:"variance"`
}

type DrawVariance struct {
	Overruns []Overrun `json:"overruns"`
	Summary  string    `json:"result"`
}
