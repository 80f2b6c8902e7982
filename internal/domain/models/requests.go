package models

// AssetRequest selects one tracked instrument.
type AssetRequest struct {
	Symbol string `param:"symbol" validate:"required,min=3,max=20"`
}

// SignalsRequest filters the flattened list of active signals. Since accepts
// RFC3339 or unix seconds/millis; an unparseable value disables that filter.
type SignalsRequest struct {
	Name   string `query:"name" validate:"omitempty,oneof=PB VCN MMX ACC MACD"`
	TF     string `query:"tf" validate:"omitempty,oneof=M1 M5 M15 H1 H4 D1"`
	MinAbs int    `query:"min_abs" default:"1" validate:"gte=1,lte=4"`
	Since  string `query:"since"`
}

// SignalRow is one entry of the flattened signal list.
type SignalRow struct {
	Symbol string `json:"symbol"`
	Signal
}
