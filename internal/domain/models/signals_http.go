package models

// Requests for the read-only HTTP endpoints. Defined in domain for consistency and reuse.

type SignalsQueryRequest struct {
	Symbol string `query:"symbol" json:"symbol"`
	Status string `query:"status" json:"status" validate:"omitempty,oneof=OPEN HIT_TP1 HIT_TP2 HIT_SL EARLY_EXIT CLOSED_EOD"`
	Limit  int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
}

type TodaySignalsRequest struct {
	Limit int `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=500"`
}
