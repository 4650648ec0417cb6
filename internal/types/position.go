package types

// Position is the single running exposure for one instrument.
// Quantity is signed: >0 long, <0 short, 0 flat. Quantity and RealizedPnL
// only change through the ledger's apply-fill operation.
type Position struct {
	Symbol        string  `json:"symbol"`
	Quantity      float64 `json:"quantity"`
	AvgPrice      float64 `json:"avg_price"`
	RealizedPnL   float64 `json:"realized_pnl"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	// Timeframe that opened the current exposure; governs which signal
	// timeframes may modify it.
	Timeframe string `json:"timeframe,omitempty"`
	UpdatedAt int64  `json:"updated_at"`
}

// Flat reports whether there is no exposure.
func (p Position) Flat() bool { return p.Quantity == 0 }

// Instrument is tradable-symbol metadata from the symbols table.
type Instrument struct {
	Ticker   string  `json:"ticker"`
	Exchange string  `json:"exchange"`
	Sector   string  `json:"sector,omitempty"`
	LotSize  float64 `json:"lot_size"`
	Active   bool    `json:"active"`
	// FeedSymbol maps the instrument onto a remote candle feed when the
	// local store has no history (optional).
	FeedSymbol string `json:"feed_symbol,omitempty"`
}
