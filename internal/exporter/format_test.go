package exporter

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected string
	}{
		{"whole", 12, "12.00"},
		{"one decimal", 13.4, "13.40"},
		{"rounds half up", 1.005, "1.01"},
		{"negative", -3800, "-3800.00"},
		{"infinite", math.Inf(1), Inf},
		{"nan", math.NaN(), Inf},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatMoney(tt.input))
		})
	}
}

func TestRounding(t *testing.T) {
	assert.Equal(t, 0.1, roundCents(0.1000000001))
	assert.Equal(t, 262.57, roundCents(262.5666))
	assert.Equal(t, 1.8868, roundTo(1.886792, 4))
	assert.True(t, math.IsInf(roundCents(math.Inf(1)), 1))
}

func TestRatio(t *testing.T) {
	t.Run("finite", func(t *testing.T) {
		r := Ratio(3800.0 / 1200.0)
		assert.True(t, r.IsFinite())
		assert.Equal(t, "3.1667", r.String())

		s, err := r.MarshalCSV()
		require.NoError(t, err)
		assert.Equal(t, "3.1667", s)

		b, err := json.Marshal(r)
		require.NoError(t, err)
		assert.JSONEq(t, "3.1667", string(b))
		assert.Equal(t, 3.1667, r.cellValue())
	})

	t.Run("infinite", func(t *testing.T) {
		r := Ratio(math.Inf(1))
		assert.False(t, r.IsFinite())
		assert.Equal(t, "inf", r.String())

		s, err := r.MarshalCSV()
		require.NoError(t, err)
		assert.Equal(t, "inf", s)

		b, err := json.Marshal(struct {
			RR Ratio `json:"rr"`
		}{r})
		require.NoError(t, err)
		assert.JSONEq(t, `{"rr":null}`, string(b))
		assert.Equal(t, "inf", r.cellValue())
	})
}
