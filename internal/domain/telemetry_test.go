package domain

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_PriorityOrder(t *testing.T) {
	tests := []struct {
		name   string
		rr     float64
		carbon float64
		fr     float64
		want   Tier
	}{
		{"carbon alone triggers critical", 10, 35, 0.3, TierCritical},
		{"resistance alone triggers critical even when optimal", 29, 5, 0.1, TierCritical},
		{"carbon triggers caution", 10, 25, 0.3, TierCaution},
		{"resistance triggers caution", 24, 5, 0.1, TierCaution},
		{"optimal", 5, 10, 0.2, TierOptimal},
		{"low carbon but fast is stable", 5, 10, 0.25, TierStable},
		{"stable", 15, 15, 0.3, TierStable},
		{"boundaries are exclusive", 28, 30, 0.3, TierCaution},
		{"caution boundaries are exclusive", 23, 22, 0.3, TierStable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.rr, tt.carbon, tt.fr))
		})
	}
}

func TestClassify_TotalOverSpecialValues(t *testing.T) {
	assert.Equal(t, TierStable, Classify(math.NaN(), math.NaN(), math.NaN()))
	assert.Equal(t, TierCritical, Classify(math.Inf(1), 0, 0))
	assert.Equal(t, TierOptimal, Classify(math.Inf(-1), math.Inf(-1), math.Inf(-1)))
}

func TestTier_Message(t *testing.T) {
	for _, tier := range []Tier{TierCritical, TierCaution, TierOptimal, TierStable} {
		msg := tier.Message()
		require.NotEmpty(t, msg)
		assert.Contains(t, msg, string(tier))
	}
}

func TestTier_Severity(t *testing.T) {
	assert.Equal(t, SeverityCritical, TierCritical.Severity())
	assert.Equal(t, SeverityWarning, TierCaution.Severity())
	assert.Equal(t, SeverityInfo, TierStable.Severity())
	assert.True(t, TierCaution.Alerting())
	assert.False(t, TierOptimal.Alerting())
}

func TestParameters_MergeKeepsUnsetFields(t *testing.T) {
	base := DefaultParameters()
	fr := 0.42

	got := base.Merge(ParameterUpdate{Fr: &fr})

	assert.Equal(t, 0.42, got.Fr)
	assert.Equal(t, base.LC, got.LC)
	assert.Equal(t, base.PC, got.PC)
	assert.Equal(t, base.LD, got.LD)
	assert.Equal(t, base.BDr, got.BDr)
	assert.Equal(t, base.LB, got.LB)
}

func TestParameterUpdate_DecodePartial(t *testing.T) {
	var u ParameterUpdate
	require.NoError(t, json.Unmarshal([]byte(`{"pc":0.6,"unknown":1}`), &u))

	require.NotNil(t, u.PC)
	assert.Equal(t, 0.6, *u.PC)
	assert.Nil(t, u.Fr)
	assert.False(t, u.Empty())
	assert.True(t, ParameterUpdate{}.Empty())
}

func TestHistoryPoint_JSON(t *testing.T) {
	ts := time.Date(2026, 3, 1, 14, 5, 9, 0, time.UTC)
	p := HistoryPoint{
		Timestamp:      ts,
		Resistance:     12.3456,
		Carbon:         9.259,
		Tier:           TierStable,
		Recommendation: TierStable.Message(),
		Speed:          0.3,
	}

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "14:05:09", fields["time"])
	assert.Equal(t, 12.3456, fields["rr"])
	assert.Equal(t, 9.259, fields["carbon"])
	assert.Equal(t, 0.3, fields["fr_val"])
	assert.Equal(t, "STABLE", fields["tier"])

	var back HistoryPoint
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, ts.Equal(back.Timestamp))
	assert.Equal(t, p.Recommendation, back.Recommendation)
}
