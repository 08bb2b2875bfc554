package services

import (
	"encoding/json"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/tournament-timer/models"
)

func strPtr(s string) *string { return &s }

func decodeSource(t *testing.T, body string) Source {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var src Source
	require.NoError(t, dec.Decode(&src))
	return src
}

func TestExtractTimerRecord_Body(t *testing.T) {
	body := decodeSource(t, `{
		"tournament": "Spring Open",
		"round": "Round #3",
		"finish_time": "2024-08-15T12:00:00Z",
		"time_remaining": 300,
		"metadata": "paused <for lunch>"
	}`)

	record, err := ExtractTimerRecord(body, nil)
	require.NoError(t, err)

	assert.Equal(t, &models.TimerRecord{
		Tournament:    strPtr("SpringOpen"),
		Round:         strPtr("Round3"),
		FinishTime:    strPtr("2024-08-15T12:00:00"),
		TimeRemaining: strPtr("300"),
		Metadata:      strPtr("paused <for lunch>"),
	}, record)
}

func TestExtractTimerRecord_DefaultRound(t *testing.T) {
	record, err := ExtractTimerRecord(Source{"tournament": "abc"})
	require.NoError(t, err)

	require.NotNil(t, record.Round)
	assert.Equal(t, models.DefaultRound, *record.Round)
	assert.Nil(t, record.FinishTime)
	assert.Nil(t, record.TimeRemaining)
	assert.Nil(t, record.Metadata)
}

func TestExtractTimerRecord_QueryOverridesBody(t *testing.T) {
	body := Source{"tournament": "fromBody", "round": "bodyRound", "metadata": "body"}
	query := SourceFromQuery(url.Values{
		"tournament": {"fromQuery", "ignored"},
		"round":      {"queryRound"},
	})

	record, err := ExtractTimerRecord(body, query)
	require.NoError(t, err)

	assert.Equal(t, "fromQuery", *record.Tournament)
	assert.Equal(t, "queryRound", *record.Round)
	assert.Equal(t, "body", *record.Metadata)
}

func TestExtractTimerRecord_MissingTournament(t *testing.T) {
	tests := []struct {
		name    string
		sources []Source
	}{
		{"no sources", nil},
		{"empty sources", []Source{{}, nil}},
		{"other fields only", []Source{{"round": "final"}}},
		{"tournament sanitised away", []Source{{"tournament": "!!! ???"}}},
		{"tournament null", []Source{{"tournament": nil}}},
		{"query clears body value", []Source{{"tournament": "abc"}, {"tournament": "***"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, err := ExtractTimerRecord(tt.sources...)
			require.ErrorIs(t, err, ErrTournamentRequired)
			assert.Nil(t, record)
			assert.Equal(t, "You need to tell me what you are doing!", err.Error())
		})
	}
}

func TestExtractTimerRecord_InvalidFinishTime(t *testing.T) {
	_, err := ExtractTimerRecord(Source{
		"tournament":  "abc",
		"finish_time": "2024/08/15 12:00:00",
	})
	require.ErrorIs(t, err, ErrInvalidFinishTime)
	assert.True(t, IsValidationError(err))
}

func TestExtractTimerRecord_InvalidFinishTimeWithoutTournament(t *testing.T) {
	// ошибка finish_time возникает раньше проверки обязательного поля
	_, err := ExtractTimerRecord(Source{"finish_time": "yesterday"})
	require.ErrorIs(t, err, ErrInvalidFinishTime)
}

func TestExtractTimerRecord_UnsetFields(t *testing.T) {
	record, err := ExtractTimerRecord(Source{
		"tournament":     "abc",
		"round":          "---",
		"time_remaining": "soon",
	})
	require.NoError(t, err)
	assert.Nil(t, record.Round)
	assert.Nil(t, record.TimeRemaining)
}

func TestExtractTimerRecord_NonStringValues(t *testing.T) {
	body := decodeSource(t, `{
		"tournament": 2024,
		"time_remaining": 12.5,
		"metadata": {"b": 1, "a": "<x>"},
		"round": true
	}`)

	record, err := ExtractTimerRecord(body)
	require.NoError(t, err)

	assert.Equal(t, "2024", *record.Tournament)
	assert.Equal(t, "125", *record.TimeRemaining)
	assert.Equal(t, `{"a":"<x>","b":1}`, *record.Metadata)
	assert.Equal(t, "true", *record.Round)
}

func TestExtractTimerRecord_MetadataTruncated(t *testing.T) {
	record, err := ExtractTimerRecord(
		Source{"tournament": "abc"},
		SourceFromQuery(url.Values{"metadata": {strings.Repeat("m", 2100)}}),
	)
	require.NoError(t, err)
	assert.Len(t, *record.Metadata, 2000)
}

func TestExtractTimerRecord_IgnoresUnknownFields(t *testing.T) {
	record, err := ExtractTimerRecord(Source{"tournament": "abc", "admin": "true"})
	require.NoError(t, err)
	assert.Equal(t, "abc", record.Key())
}

func TestSourceFromQuery_Empty(t *testing.T) {
	assert.Nil(t, SourceFromQuery(nil))
	assert.Nil(t, SourceFromQuery(url.Values{}))
}
