package models

// Tick is one live last-price update from the market stream.
type Tick struct {
	Symbol    string
	Price     float64
	Volume    float64
	Timestamp int64 // unix milliseconds
}
