package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawLift_LooseScalars(t *testing.T) {
	cases := []struct {
		name     string
		in       string
		wantID   LiftID
		wantTop  FlexInt
		wantFail bool
	}{
		{name: "numbers", in: `{"id":7,"max_level":12}`, wantID: "7", wantTop: 12},
		{name: "strings", in: `{"id":"7","max_level":"12"}`, wantID: "7", wantTop: 12},
		{name: "empty and null", in: `{"id":null,"max_level":""}`, wantID: "", wantTop: 0},
		{name: "integral float", in: `{"id":7,"max_level":12.0}`, wantID: "7", wantTop: 12},
		{name: "integral float string", in: `{"id":"7","max_level":"1.2e1"}`, wantID: "7", wantTop: 12},
		{name: "fractional level", in: `{"id":"7","max_level":12.5}`, wantFail: true},
		{name: "bad level", in: `{"id":"7","max_level":"twelve"}`, wantFail: true},
		{name: "object id", in: `{"id":{"n":7}}`, wantFail: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var raw RawLift
			err := json.Unmarshal([]byte(tc.in), &raw)
			if tc.wantFail {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantID, raw.ID)
			assert.Equal(t, tc.wantTop, raw.MaxLevel)
		})
	}
}

func TestDirection_JSON(t *testing.T) {
	b, err := json.Marshal(struct {
		D Direction `json:"d"`
	}{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":null}`, string(b))

	var d Direction
	require.NoError(t, json.Unmarshal([]byte(`"UP"`), &d))
	assert.Equal(t, DirectionUp, d)
	require.NoError(t, json.Unmarshal([]byte(`null`), &d))
	assert.Equal(t, DirectionNone, d)
}

func TestParseMode(t *testing.T) {
	m, ok := ParseMode(" insp ")
	assert.True(t, ok)
	assert.Equal(t, ModeINSP, m)

	m, ok = ParseMode("BYPASS")
	assert.True(t, ok)
	assert.Equal(t, ModeBypass, m)

	_, ok = ParseMode("Error")
	assert.False(t, ok)
	_, ok = ParseMode("")
	assert.False(t, ok)
}
