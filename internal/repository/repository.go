package repository

import (
	"context"

	"fairytale-server/shared/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// DBTX - общий интерфейс *pgxpool.Pool и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// SegmentGateway - граница хранилища историй, сегментов и персонажей.
type SegmentGateway interface {
	// FetchStory возвращает историю или models.ErrStoryNotFound.
	FetchStory(ctx context.Context, storyID string) (*models.Story, error)
	// FetchLatestSegment возвращает последний сегмент истории или nil, если сегментов нет.
	FetchLatestSegment(ctx context.Context, storyID string) (*models.Segment, error)
	// FetchCharacters возвращает персонажей истории и глобальных персонажей пользователя.
	FetchCharacters(ctx context.Context, storyID, userID string) ([]models.Character, error)
	// NextPosition возвращает следующую позицию сегмента (начиная с 1).
	NextPosition(ctx context.Context, storyID string) (int, error)
	// InsertSegment записывает новый сегмент. Конфликт позиции - models.ErrDuplicate.
	InsertSegment(ctx context.Context, segment *models.Segment) (*models.Segment, error)
	// AttachImageURL - единственное изменение сегмента после создания.
	AttachImageURL(ctx context.Context, segmentID, imageURL string) error
}

// checkChoicesInvariant логирует сегменты с числом вариантов, отличным от 0 и 3.
func checkChoicesInvariant(logger *zap.Logger, seg *models.Segment) {
	if seg == nil {
		return
	}
	if n := len(seg.Choices); n != 0 && n != 3 {
		logger.Warn("Stored segment violates the three-choices invariant",
			zap.String("segment_id", seg.ID),
			zap.String("story_id", seg.StoryID),
			zap.Int("choices_count", n))
	}
}
