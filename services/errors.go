package services

import (
	"errors"
	"fmt"
)

// Ошибки сервиса таймеров, используемые при маппинге в HTTP.
var (
	// ErrTournamentRequired - не передан (или полностью отфильтрован) tournament.
	ErrTournamentRequired = errors.New("You need to tell me what you are doing!")

	// ErrInvalidFinishTime - finish_time не является корректной датой ISO 8601.
	ErrInvalidFinishTime = errors.New("invalid isoformat string")

	// ErrTimerNotFound - для турнира нет сохранённого состояния.
	ErrTimerNotFound = errors.New("This is not the tournament you are looking for")
)

// FinishTimeError несёт исходное значение finish_time, которое не удалось разобрать.
type FinishTimeError struct {
	Value string
}

func (e *FinishTimeError) Error() string {
	return fmt.Sprintf("Invalid isoformat string: '%s'", e.Value)
}

func (e *FinishTimeError) Unwrap() error {
	return ErrInvalidFinishTime
}

// IsValidationError сообщает, относится ли ошибка к валидации входных данных.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrTournamentRequired) || errors.Is(err, ErrInvalidFinishTime)
}

// StoreError оборачивает ошибку хранилища. Текст ошибки совпадает с исходным,
// чтобы клиент получил его в конверте {"error": ...}.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
