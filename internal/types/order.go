package types

type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

type OrderStatus string

const (
	OrderStatusFilled   OrderStatus = "FILLED"
	OrderStatusPartial  OrderStatus = "PARTIAL"
	OrderStatusRejected OrderStatus = "REJECTED"
)

// Order records one execution attempt. Created once and never mutated;
// a FILLED/PARTIAL order is referenced by exactly one Trade.
type Order struct {
	ID          string         `json:"id"`
	Symbol      string         `json:"symbol"`
	Side        Action         `json:"side"`
	Type        OrderType      `json:"type"`
	LimitPrice  float64        `json:"limit_price,omitempty"`
	Quantity    float64        `json:"quantity"`
	Status      OrderStatus    `json:"status"`
	FillPrice   float64        `json:"fill_price,omitempty"`
	FilledQty   float64        `json:"filled_qty"`
	SlippageBps float64        `json:"slippage_bps,omitempty"`
	Timeframe   string         `json:"timeframe,omitempty"`
	Notes       map[string]any `json:"notes,omitempty"`
	At          int64          `json:"at"`
}

// Trade is the realized fill produced by an order. Append-only.
type Trade struct {
	OrderID  string  `json:"order_id"`
	Symbol   string  `json:"symbol"`
	Side     Action  `json:"side"`
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
	At       int64   `json:"at"`
}
