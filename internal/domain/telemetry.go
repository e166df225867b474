package domain

import (
	"encoding/json"
	"time"
)

// Parameters is the hull design vector fed to the surrogate model.
type Parameters struct {
	LC  float64 `json:"lc"`
	PC  float64 `json:"pc"`
	LD  float64 `json:"ld"`
	BDr float64 `json:"bdr"`
	LB  float64 `json:"lb"`
	Fr  float64 `json:"fr"`
}

func DefaultParameters() Parameters {
	return Parameters{
		LC:  -2.3,
		PC:  0.55,
		LD:  4.5,
		BDr: 3.2,
		LB:  2.8,
		Fr:  0.30,
	}
}

// ParameterUpdate is a partial change to Parameters. Nil fields are left as they are.
type ParameterUpdate struct {
	LC  *float64 `json:"lc,omitempty"`
	PC  *float64 `json:"pc,omitempty"`
	LD  *float64 `json:"ld,omitempty"`
	BDr *float64 `json:"bdr,omitempty"`
	LB  *float64 `json:"lb,omitempty"`
	Fr  *float64 `json:"fr,omitempty"`
}

func (u ParameterUpdate) Empty() bool {
	return u.LC == nil && u.PC == nil && u.LD == nil &&
		u.BDr == nil && u.LB == nil && u.Fr == nil
}

// Merge returns p with every field present in u overwritten.
func (p Parameters) Merge(u ParameterUpdate) Parameters {
	if u.LC != nil {
		p.LC = *u.LC
	}
	if u.PC != nil {
		p.PC = *u.PC
	}
	if u.LD != nil {
		p.LD = *u.LD
	}
	if u.BDr != nil {
		p.BDr = *u.BDr
	}
	if u.LB != nil {
		p.LB = *u.LB
	}
	if u.Fr != nil {
		p.Fr = *u.Fr
	}
	return p
}

type Tier string

const (
	TierCritical Tier = "CRITICAL"
	TierCaution  Tier = "CAUTION"
	TierOptimal  Tier = "OPTIMAL"
	TierStable   Tier = "STABLE"
)

var tierMessages = map[Tier]string{
	TierCritical: "CRITICAL: High carbon intensity. Immediate speed reduction required.",
	TierCaution:  "CAUTION: Efficiency declining. Monitor fuel consumption and vibrations.",
	TierOptimal:  "OPTIMAL: System operating at peak efficiency. Low ESG impact.",
	TierStable:   "STABLE: Propulsion parameters within standard operating range.",
}

func (t Tier) Message() string {
	return tierMessages[t]
}

type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "INFO"
	SeverityWarning  AlertSeverity = "WARNING"
	SeverityCritical AlertSeverity = "CRITICAL"
)

// Severity maps a tier onto the alert table's severity scale.
func (t Tier) Severity() AlertSeverity {
	switch t {
	case TierCritical:
		return SeverityCritical
	case TierCaution:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// Alerting reports whether a tier should raise an operator alert.
func (t Tier) Alerting() bool {
	return t == TierCritical || t == TierCaution
}

type DecisionRule struct {
	Tier    Tier
	Matches func(rr, carbon, fr float64) bool
}

// DefaultDecisionRules are evaluated in order; the first match wins.
// Anything left unmatched is TierStable.
var DefaultDecisionRules = []DecisionRule{
	{
		Tier: TierCritical,
		Matches: func(rr, carbon, fr float64) bool {
			return carbon > 30 || rr > 28
		},
	},
	{
		Tier: TierCaution,
		Matches: func(rr, carbon, fr float64) bool {
			return carbon > 22 || rr > 23
		},
	},
	{
		Tier: TierOptimal,
		Matches: func(rr, carbon, fr float64) bool {
			return carbon < 12 && fr < 0.22
		},
	},
}

func Classify(rr, carbon, fr float64) Tier {
	for _, rule := range DefaultDecisionRules {
		if rule.Matches(rr, carbon, fr) {
			return rule.Tier
		}
	}
	return TierStable
}

// HistoryPoint is one telemetry tick as shown on the dashboard.
type HistoryPoint struct {
	Timestamp      time.Time
	Resistance     float64
	Carbon         float64
	Tier           Tier
	Recommendation string
	Speed          float64
}

type historyPointJSON struct {
	Time           string  `json:"time"`
	Timestamp      string  `json:"timestamp"`
	Resistance     float64 `json:"rr"`
	Carbon         float64 `json:"carbon"`
	Tier           Tier    `json:"tier"`
	Recommendation string  `json:"recommendation"`
	Speed          float64 `json:"fr_val"`
}

func (h HistoryPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(historyPointJSON{
		Time:           h.Timestamp.Format("15:04:05"),
		Timestamp:      h.Timestamp.Format(time.RFC3339Nano),
		Resistance:     h.Resistance,
		Carbon:         h.Carbon,
		Tier:           h.Tier,
		Recommendation: h.Recommendation,
		Speed:          h.Speed,
	})
}

func (h *HistoryPoint) UnmarshalJSON(data []byte) error {
	var raw historyPointJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ts, err := time.Parse(time.RFC3339Nano, raw.Timestamp)
	if err != nil {
		return err
	}
	*h = HistoryPoint{
		Timestamp:      ts,
		Resistance:     raw.Resistance,
		Carbon:         raw.Carbon,
		Tier:           raw.Tier,
		Recommendation: raw.Recommendation,
		Speed:          raw.Speed,
	}
	return nil
}

// TelemetrySample is what the loop hands to the persistence pipeline:
// the point itself plus the full parameter vector that produced it.
type TelemetrySample struct {
	SessionID string
	Point     HistoryPoint
	Params    Parameters
	TargetFr  float64
}
