package models

import "encoding/json"

// Имена полей запроса и ключи сохраняемого JSON-документа.
const (
	FieldTournament    = "tournament"
	FieldRound         = "round"
	FieldFinishTime    = "finish_time"
	FieldTimeRemaining = "time_remaining"
	FieldMetadata      = "metadata"
)

// DefaultRound используется, когда клиент не передал название раунда.
const DefaultRound = "CurrentRound"

// TimerContentType - content type сохраняемого документа.
const TimerContentType = "application/json"

// TimerRecord представляет состояние таймера турнира.
// nil означает, что поле не задано (сериализуется как null).
type TimerRecord struct {
	Tournament    *string `json:"tournament"`
	Round         *string `json:"round"`
	FinishTime    *string `json:"finish_time"`
	TimeRemaining *string `json:"time_remaining"`
	Metadata      *string `json:"metadata"`
}

// NewTimerRecord возвращает запись со значениями по умолчанию.
func NewTimerRecord() *TimerRecord {
	round := DefaultRound
	return &TimerRecord{Round: &round}
}

// Key возвращает ключ объекта в хранилище ("" если турнир не задан).
func (t *TimerRecord) Key() string {
	if t == nil || t.Tournament == nil {
		return ""
	}
	return *t.Tournament
}

// Marshal сериализует запись в канонический JSON. Порядок ключей
// фиксирован порядком полей структуры.
func (t *TimerRecord) Marshal() ([]byte, error) {
	return json.Marshal(t)
}
