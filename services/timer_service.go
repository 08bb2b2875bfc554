package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Dosada05/tournament-timer/models"
	"github.com/Dosada05/tournament-timer/storage"
)

// TimerNotifier получает сохранённый документ после успешной записи.
// Ошибки уведомлений не влияют на ответ клиенту.
type TimerNotifier interface {
	TimerUpdated(ctx context.Context, tournament string, document []byte) error
}

type TimerService interface {
	// SetRemainingTime сохраняет запись и возвращает ровно те байты, что были записаны.
	SetRemainingTime(ctx context.Context, record *models.TimerRecord) ([]byte, error)

	// GetRemainingTime возвращает сохранённый документ турнира без перекодирования.
	GetRemainingTime(ctx context.Context, tournament string) ([]byte, error)
}

type timerService struct {
	store     storage.BlobStore
	notifiers []TimerNotifier
	logger    *slog.Logger
}

func NewTimerService(store storage.BlobStore, logger *slog.Logger, notifiers ...TimerNotifier) TimerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &timerService{
		store:     store,
		notifiers: notifiers,
		logger:    logger,
	}
}

func (s *timerService) SetRemainingTime(ctx context.Context, record *models.TimerRecord) ([]byte, error) {
	key := record.Key()
	if key == "" {
		return nil, ErrTournamentRequired
	}

	document, err := record.Marshal()
	if err != nil {
		return nil, &StoreError{Op: "marshal", Err: err}
	}

	if err := s.store.Put(ctx, key, document, models.TimerContentType); err != nil {
		s.logger.ErrorContext(ctx, "Error writing data to storage bucket",
			slog.String("tournament", key), slog.Any("error", err))
		return nil, &StoreError{Op: "put", Err: err}
	}

	for _, n := range s.notifiers {
		if err := n.TimerUpdated(ctx, key, document); err != nil {
			s.logger.WarnContext(ctx, "Failed to notify timer update",
				slog.String("tournament", key), slog.Any("error", err))
		}
	}

	return document, nil
}

func (s *timerService) GetRemainingTime(ctx context.Context, tournament string) ([]byte, error) {
	if tournament == "" {
		return nil, ErrTournamentRequired
	}

	keys, err := s.store.Match(ctx, tournament, 1)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error accessing data from storage bucket",
			slog.String("tournament", tournament), slog.Any("error", err))
		return nil, &StoreError{Op: "match", Err: err}
	}
	if len(keys) == 0 {
		return nil, ErrTimerNotFound
	}

	document, err := s.store.Get(ctx, keys[0])
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrTimerNotFound
		}
		s.logger.ErrorContext(ctx, "Error accessing data from storage bucket",
			slog.String("tournament", tournament), slog.Any("error", err))
		return nil, &StoreError{Op: "get", Err: err}
	}

	return document, nil
}
