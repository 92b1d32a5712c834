package wyckoff

import "time"

// Event identifies a Wyckoff structural event
type Event string

const (
	PS           Event = "PS"            // preliminary support
	SC           Event = "SC"            // selling climax
	AR           Event = "AR"            // automatic rally
	ST           Event = "ST"            // secondary test
	Spring       Event = "SPRING"        // false break below support
	Test         Event = "TEST"          // low-volume retest of a spring low
	SOS          Event = "SOS"           // sign of strength
	LPS          Event = "LPS"           // last point of support
	UT           Event = "UT"            // upthrust
	UTAD         Event = "UTAD"          // upthrust after distribution
	BC           Event = "BC"            // buying climax
	SOW          Event = "SOW"           // sign of weakness
	LPSY         Event = "LPSY"          // last point of supply
	JAC          Event = "JAC"           // jump across the creek
	AutoReaction Event = "AUTO_REACTION" // automatic reaction after a BC
)

// Phase is a Wyckoff phase of the active trading range
type Phase string

const (
	PhaseA       Phase = "A" // stopping action
	PhaseB       Phase = "B" // building cause
	PhaseC       Phase = "C" // test
	PhaseD       Phase = "D" // markup / markdown
	PhaseE       Phase = "E" // trend
	PhaseUnknown Phase = "UNKNOWN"
)

// MarketContext is the running directional context of the market
type MarketContext string

const (
	ContextUndetermined MarketContext = "UNDETERMINED"
	ContextDowntrend    MarketContext = "DOWNTREND"
	ContextAccumulation MarketContext = "ACCUMULATION"
	ContextUptrend      MarketContext = "UPTREND"
	ContextDistribution MarketContext = "DISTRIBUTION"
)

// RangeKind distinguishes accumulation from distribution trading ranges
type RangeKind string

const (
	RangeAccumulation RangeKind = "ACCUMULATION"
	RangeDistribution RangeKind = "DISTRIBUTION"
)

// DetectedEvent is a single Wyckoff event detection
type DetectedEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Event     Event     `json:"event"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
	Details   string    `json:"details,omitempty"`
}

// TradingRange is a bounded corridor opened by a climax/reaction pair.
// End is zero while the range is ongoing.
type TradingRange struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end,omitempty"`
	Kind       RangeKind `json:"kind"`
	Support    float64   `json:"support"`
	Resistance float64   `json:"resistance"`
}

// Ongoing reports whether the range has been closed by a SOS/SOW
func (tr TradingRange) Ongoing() bool {
	return tr.End.IsZero()
}

// PhaseSpan marks a contiguous stretch of bars classified into one phase
type PhaseSpan struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Phase Phase     `json:"phase"`
}

// ResultSet is the full output of one Wyckoff run against one timeframe
type ResultSet struct {
	Events        []DetectedEvent `json:"events"`
	TradingRanges []TradingRange  `json:"trading_ranges"`
	Phases        []PhaseSpan     `json:"phases"`
	Context       MarketContext   `json:"context"`
}
