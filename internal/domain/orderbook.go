package domain

// PriceLevel is one side entry of an order book.
type PriceLevel struct {
	Price    float64
	Quantity float64
}

// OrderBook is the external order-book collaborator's view of a symbol.
type OrderBook struct {
	Symbol   string
	Bids     []PriceLevel
	Asks     []PriceLevel
	Spread   float64
	BestBid  float64
	BestAsk  float64
	MidPrice float64
}
