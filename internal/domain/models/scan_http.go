package models

// Requests for the scan HTTP endpoints. Defined in domain for consistency and reuse.

type ScanRequest struct {
	Symbols      []string `json:"symbols" validate:"required,min=1,dive,required"`
	Degree       int      `json:"degree" default:"2" validate:"gte=1,lte=10"`
	KStd         float64  `json:"kstd" default:"2.0" validate:"gt=0"`
	LookbackDays int      `json:"lookback_days" default:"90" validate:"gte=1,lte=1825"`
	Interval     string   `json:"interval" default:"1d" validate:"oneof=1m 5m 15m 1h 4h 1d"`
}

type SignalsRequest struct {
	Symbol string `query:"symbol" json:"symbol"`
	Limit  int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
}

type BacktestRequest struct {
	Symbols       []string `json:"symbols" validate:"required,min=1,dive,required"`
	Degree        int      `json:"degree" default:"2" validate:"gte=1,lte=10"`
	KStd          float64  `json:"kstd" default:"2.0" validate:"gt=0"`
	LookbackDays  int      `json:"lookback_days" default:"365" validate:"gte=2,lte=1825"`
	Interval      string   `json:"interval" default:"1d" validate:"oneof=1m 5m 15m 1h 4h 1d"`
	Capital       float64  `json:"capital" default:"10000" validate:"gt=0"`
	CommissionPct float64  `json:"commission_pct" default:"0.1" validate:"gte=0,lte=5"`
}
