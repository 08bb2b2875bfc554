package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/Dosada05/tournament-timer/models"
)

// Source - набор входных параметров запроса (JSON-тело или query).
// Значения - как после json.Decoder с UseNumber: string, json.Number,
// bool, nil, map[string]any, []any.
type Source map[string]any

// SourceFromQuery превращает query-параметры в Source.
// Для повторяющихся параметров берётся первое значение.
func SourceFromQuery(values url.Values) Source {
	if len(values) == 0 {
		return nil
	}
	src := make(Source, len(values))
	for key := range values {
		src[key] = values.Get(key)
	}
	return src
}

type fieldRule struct {
	name     string
	sanitise func(string) (*string, error)
	assign   func(*models.TimerRecord, *string)
}

// timerFields - таблица известных полей: имя → санитайзер → поле записи.
var timerFields = []fieldRule{
	{
		name:     models.FieldTournament,
		sanitise: optional(SanitiseName),
		assign:   func(t *models.TimerRecord, v *string) { t.Tournament = v },
	},
	{
		name:     models.FieldRound,
		sanitise: optional(SanitiseName),
		assign:   func(t *models.TimerRecord, v *string) { t.Round = v },
	},
	{
		name: models.FieldFinishTime,
		sanitise: func(text string) (*string, error) {
			v, err := SanitiseTime(text)
			if err != nil {
				return nil, err
			}
			return &v, nil
		},
		assign: func(t *models.TimerRecord, v *string) { t.FinishTime = v },
	},
	{
		name:     models.FieldTimeRemaining,
		sanitise: optional(SanitiseNumber),
		assign:   func(t *models.TimerRecord, v *string) { t.TimeRemaining = v },
	},
	{
		name: models.FieldMetadata,
		sanitise: func(text string) (*string, error) {
			v := TruncateMetadata(text)
			return &v, nil
		},
		assign: func(t *models.TimerRecord, v *string) { t.Metadata = v },
	},
}

// ExtractTimerRecord собирает каноническую запись из источников.
// Источники применяются по порядку, более поздний перезаписывает поле:
// обработчики передают сначала JSON-тело, затем query-параметры.
func ExtractTimerRecord(sources ...Source) (*models.TimerRecord, error) {
	record := models.NewTimerRecord()

	for _, src := range sources {
		if len(src) == 0 {
			continue
		}
		for _, field := range timerFields {
			raw, ok := src[field.name]
			if !ok {
				continue
			}
			if raw == nil {
				field.assign(record, nil)
				continue
			}
			value, err := field.sanitise(stringify(raw))
			if err != nil {
				return nil, err
			}
			field.assign(record, value)
		}
	}

	if record.Tournament == nil {
		return nil, ErrTournamentRequired
	}
	return record, nil
}

func optional(sanitise func(string) (string, bool)) func(string) (*string, error) {
	return func(text string) (*string, error) {
		v, ok := sanitise(text)
		if !ok {
			return nil, nil
		}
		return &v, nil
	}
}

// stringify приводит значение из JSON к тексту. Числа сохраняют исходную
// запись, объекты и массивы превращаются в компактный JSON.
func stringify(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v); err != nil {
			return fmt.Sprint(v)
		}
		return string(bytes.TrimRight(buf.Bytes(), "\n"))
	}
}
