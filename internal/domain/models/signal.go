package models

import "time"

// Direction of a trade opportunity.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Tier is the rule-gate configuration a candidate passed.
type Tier string

const (
	TierStrict  Tier = "STRICT"
	TierRelaxed Tier = "RELAXED"
)

// Regime is the coarse market-behaviour classification of the macro timeframe.
type Regime string

const (
	RegimeTrendingUp   Regime = "TRENDING_UP"
	RegimeTrendingDown Regime = "TRENDING_DOWN"
	RegimeRanging      Regime = "RANGING"
	RegimeChoppy       Regime = "CHOPPY"
)

// SignalStatus is the lifecycle state of a persisted signal.
type SignalStatus string

const (
	StatusOpen      SignalStatus = "OPEN"
	StatusHitTP1    SignalStatus = "HIT_TP1"
	StatusHitTP2    SignalStatus = "HIT_TP2"
	StatusHitSL     SignalStatus = "HIT_SL"
	StatusEarlyExit SignalStatus = "EARLY_EXIT"
	StatusClosedEOD SignalStatus = "CLOSED_EOD"
)

// Terminal reports whether a status permits no further transitions.
func (s SignalStatus) Terminal() bool {
	switch s {
	case StatusHitTP2, StatusHitSL, StatusEarlyExit, StatusClosedEOD:
		return true
	}
	return false
}

// TechContext records the snapshot values that justified a candidate, kept
// on the persisted signal for audit.
type TechContext struct {
	Regime        Regime  `json:"regime"`
	TrendStrength float64 `json:"trend_strength"`
	RSI           float64 `json:"rsi"`
	ATR           float64 `json:"atr"`
	VWAP          float64 `json:"vwap"`
	VolumeRatio   float64 `json:"volume_ratio"`
	FlowDelta     float64 `json:"flow_delta"`
}

// Candidate is the ephemeral result of one evaluation pass. It has no
// identity until the coordinator accepts it.
type Candidate struct {
	Symbol     string
	Direction  Direction
	Tier       Tier
	Entry      float64
	StopLoss   float64
	TakeProfit float64
	TakeProfit2 float64
	Context    TechContext
}

// Signal is the durable record created once a candidate passes the scoring
// and cooldown gates. Mutated only by the lifecycle monitor (status/exit
// fields) or the end-of-session force close.
type Signal struct {
	ID          string
	Symbol      string
	Direction   Direction
	Tier        Tier
	Entry       float64
	StopLoss    float64
	TakeProfit  float64
	TakeProfit2 float64
	Score       float64
	Rationale   string
	Status      SignalStatus
	CreatedAt   time.Time
	ExitPrice   float64
	ExitReason  string
	PnLPercent  float64
	PnLAbsolute float64
	ClosedAt    time.Time
	Context     TechContext
}

// LevelsValid checks the direction invariant: stop behind entry, targets
// ahead of entry.
func (s *Signal) LevelsValid() bool {
	switch s.Direction {
	case Long:
		ok := s.StopLoss < s.Entry && s.TakeProfit > s.Entry
		if s.TakeProfit2 != 0 {
			ok = ok && s.TakeProfit2 > s.TakeProfit
		}
		return ok
	case Short:
		ok := s.StopLoss > s.Entry && s.TakeProfit < s.Entry
		if s.TakeProfit2 != 0 {
			ok = ok && s.TakeProfit2 < s.TakeProfit
		}
		return ok
	}
	return false
}

// PnLAt returns the signed percentage move from entry to price for the
// signal's direction.
func (s *Signal) PnLAt(price float64) float64 {
	if s.Entry == 0 {
		return 0
	}
	pct := (price - s.Entry) / s.Entry * 100
	if s.Direction == Short {
		pct = -pct
	}
	return pct
}

// Transition is one lifecycle state change produced by the monitor.
type Transition struct {
	SignalID   string
	Symbol     string
	From       SignalStatus
	To         SignalStatus
	ExitPrice  float64
	ExitReason string
	PnLPercent float64
	At         time.Time
}

// RiskWarning is emitted when an open signal approaches its stop.
type RiskWarning struct {
	SignalID     string
	Symbol       string
	Price        float64
	RiskFraction float64 // distance travelled toward the stop, 0-1
	PnLPercent   float64
	At           time.Time
}

// DailyDigest summarises one session's outcomes.
type DailyDigest struct {
	Date        time.Time
	Opened      int
	HitTP       int
	HitSL       int
	ForceClosed int
	NetPnL      float64
}
