package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoicemailDecodesBackendPayload(t *testing.T) {
	t.Parallel()

	payload := `[
		{"id":"a","status":"PROCESSING","file_path":"a.wav","created_at":"2025-03-01 09:15:02.123456","transcript":null,"urgency":null,"category":null},
		{"id":"b","status":"COMPLETED","urgency":"RED","category":"Emergency","transcript":"chest pain",
		 "file_path":"b.wav","created_at":"2025-03-01T10:00:00Z",
		 "analysis":{"summary":"Chest pain","referral_plan":true,"missing_info":["Appointment Time"],"booking_url":"https://cal.example/x"}}
	]`

	var records []Voicemail
	require.NoError(t, json.Unmarshal([]byte(payload), &records))
	require.Len(t, records, 2)

	assert.True(t, records[0].Processing())
	assert.False(t, records[0].Trusted())
	assert.Equal(t, Urgency(""), records[0].Urgency)
	assert.Nil(t, records[0].Analysis)
	assert.Equal(t, time.Date(2025, 3, 1, 9, 15, 2, 123456000, time.UTC), records[0].CreatedAt.Time)

	assert.True(t, records[1].Trusted())
	require.NotNil(t, records[1].Analysis)
	assert.True(t, bool(records[1].Analysis.ReferralPlan))
	assert.Equal(t, []string{"Appointment Time"}, records[1].Analysis.MissingInfo)
	assert.True(t, AnyProcessing(records))
	assert.False(t, AnyProcessing(records[1:]))
}

func TestTimestampKeepsRawAndToleratesGarbage(t *testing.T) {
	t.Parallel()

	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`"yesterday-ish"`), &ts))
	assert.True(t, ts.IsZero())
	assert.Equal(t, "yesterday-ish", ts.Raw)

	out, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"yesterday-ish"`, string(out))

	require.NoError(t, json.Unmarshal([]byte(`null`), &ts))
	assert.True(t, ts.IsZero())
}

func TestFlagDecoding(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		`true`:          true,
		`false`:         false,
		`null`:          false,
		`"yes, letter"`: true,
		`""`:            false,
		`"no"`:          false,
		`3`:             false,
	}
	for input, want := range cases {
		var f Flag
		require.NoError(t, json.Unmarshal([]byte(input), &f), input)
		assert.Equal(t, want, bool(f), input)
	}
}

func TestUrgencyRank(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, UrgencyRed.Rank())
	assert.Equal(t, 1, UrgencyNeedValidation.Rank())
	assert.Equal(t, 2, UrgencyYellow.Rank())
	assert.Equal(t, 3, UrgencyGreen.Rank())
	assert.Equal(t, 4, Urgency("").Rank())
	assert.Equal(t, 4, Urgency("PURPLE").Rank())
}

func TestStatusTerminal(t *testing.T) {
	t.Parallel()

	assert.False(t, StatusProcessing.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.True(t, VoicemailStatus("ARCHIVED").IsTerminal())
}

func TestErrorKinds(t *testing.T) {
	t.Parallel()

	cause := errors.New("permission denied")
	err := fmt.Errorf("start: %w", NewError(KindCapture, "open microphone", cause))

	assert.True(t, IsKind(err, KindCapture))
	assert.False(t, IsKind(err, KindUpload))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "capture: open microphone: permission denied")
	assert.False(t, IsKind(cause, KindCapture))
}
