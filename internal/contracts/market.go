package contracts

import "time"

// PriceBar represents one daily OHLCV bar for a symbol
// ⭐ SSOT: 가격 데이터의 기준은 이 레코드
// Immutable once recorded; ordered by date per symbol.
type PriceBar struct {
	Symbol   string    `json:"symbol"`
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   int64     `json:"volume"`
	AdjClose *float64  `json:"adj_close,omitempty"`
}

// EffectiveClose returns the adjusted close when available, raw close otherwise.
// 수익률/변동성 계산은 반드시 이 값을 사용
func (b *PriceBar) EffectiveClose() float64 {
	if b.AdjClose != nil && *b.AdjClose > 0 {
		return *b.AdjClose
	}
	return b.Close
}

// OptionExpiry holds the median implied volatility for one expiry bucket.
type OptionExpiry struct {
	DaysToExpiry int     `json:"days_to_expiry"`
	MedianIV     float64 `json:"median_iv"`
}

// OptionsSnapshot represents one day's aggregated options data for a symbol.
// At most one per (symbol, date); optional — features degrade gracefully
// when a date has no snapshot.
type OptionsSnapshot struct {
	Symbol           string         `json:"symbol"`
	Date             time.Time      `json:"date"`
	Expiries         []OptionExpiry `json:"expiries"`
	CallVolume       int64          `json:"call_volume"`
	PutVolume        int64          `json:"put_volume"`
	CallOpenInterest int64          `json:"call_open_interest"`
	PutOpenInterest  int64          `json:"put_open_interest"`
	UnusualCount     int            `json:"unusual_count"`
}
