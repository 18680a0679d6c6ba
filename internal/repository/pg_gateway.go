package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fairytale-server/shared/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Compile-time check
var _ SegmentGateway = (*pgSegmentGateway)(nil)

const (
	pgUniqueViolation = "23505"

	getStoryQuery = `
        SELECT id::text AS id, user_id, title, description, story_mode, age_group,
               theme, setting, conflict, quest, moral_lesson, atmosphere,
               template_level, story_length, created_at
        FROM stories WHERE id = $1`
	getLatestSegmentQuery = `
        SELECT id::text AS id, story_id::text AS story_id, content, position, choices,
               image_prompt, image_url, parent_segment_id::text AS parent_segment_id, created_at
        FROM story_segments WHERE story_id = $1
        ORDER BY position DESC LIMIT 1`
	getCharactersQuery = `
        SELECT id::text AS id, user_id, story_id::text AS story_id, name, description, role,
               personality, appearance
        FROM characters
        WHERE user_id = $1 AND (story_id = $2 OR story_id IS NULL) AND role = ANY($3::text[])
        ORDER BY created_at`
	nextPositionQuery = `SELECT COALESCE(MAX(position), 0) + 1 FROM story_segments WHERE story_id = $1`
	insertSegmentQuery = `
        INSERT INTO story_segments
            (id, story_id, content, position, choices, image_prompt, parent_segment_id)
        VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)
        RETURNING created_at`
	attachImageURLQuery = `UPDATE story_segments SET image_url = $2 WHERE id = $1`
)

// segmentRow - строка story_segments; choices хранятся в JSONB.
type segmentRow struct {
	ID              string    `db:"id"`
	StoryID         string    `db:"story_id"`
	Content         string    `db:"content"`
	Position        int       `db:"position"`
	Choices         []byte    `db:"choices"`
	ImagePrompt     *string   `db:"image_prompt"`
	ImageURL        *string   `db:"image_url"`
	ParentSegmentID *string   `db:"parent_segment_id"`
	CreatedAt       time.Time `db:"created_at"`
}

type pgSegmentGateway struct {
	db     DBTX
	logger *zap.Logger
}

// NewPgSegmentGateway создает gateway поверх PostgreSQL.
func NewPgSegmentGateway(db DBTX, logger *zap.Logger) SegmentGateway {
	return &pgSegmentGateway{db: db, logger: logger.Named("PgSegmentGateway")}
}

func (r *pgSegmentGateway) FetchStory(ctx context.Context, storyID string) (*models.Story, error) {
	// Невалидный UUID не может существовать в таблице
	if _, err := uuid.Parse(storyID); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrStoryNotFound, storyID)
	}
	var story models.Story
	if err := pgxscan.Get(ctx, r.db, &story, getStoryQuery, storyID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", models.ErrStoryNotFound, storyID)
		}
		r.logger.Error("Error getting story", zap.String("story_id", storyID), zap.Error(err))
		return nil, fmt.Errorf("failed to get story %s: %w", storyID, err)
	}
	return &story, nil
}

func (r *pgSegmentGateway) FetchLatestSegment(ctx context.Context, storyID string) (*models.Segment, error) {
	var row segmentRow
	if err := pgxscan.Get(ctx, r.db, &row, getLatestSegmentQuery, storyID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest segment of story %s: %w", storyID, err)
	}
	seg, err := row.toModel()
	if err != nil {
		return nil, err
	}
	checkChoicesInvariant(r.logger, seg)
	return seg, nil
}

func (r *pgSegmentGateway) FetchCharacters(ctx context.Context, storyID, userID string) ([]models.Character, error) {
	var characters []models.Character
	err := pgxscan.Select(ctx, r.db, &characters, getCharactersQuery, userID, storyID, pq.Array(models.NarrativeRoles))
	if err != nil {
		return nil, fmt.Errorf("failed to get characters of story %s: %w", storyID, err)
	}
	return characters, nil
}

func (r *pgSegmentGateway) NextPosition(ctx context.Context, storyID string) (int, error) {
	var next int
	if err := r.db.QueryRow(ctx, nextPositionQuery, storyID).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to compute next position for story %s: %w", storyID, err)
	}
	return next, nil
}

func (r *pgSegmentGateway) InsertSegment(ctx context.Context, segment *models.Segment) (*models.Segment, error) {
	choicesJSON, err := json.Marshal(segment.Choices)
	if err != nil {
		return nil, fmt.Errorf("failed to encode choices: %w", err)
	}
	if segment.Choices == nil {
		choicesJSON = []byte("[]")
	}

	err = r.db.QueryRow(ctx, insertSegmentQuery,
		segment.ID,
		segment.StoryID,
		segment.Content,
		segment.Position,
		string(choicesJSON),
		segment.ImagePrompt,
		segment.ParentSegmentID,
	).Scan(&segment.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, fmt.Errorf("%w: segment position %d of story %s", models.ErrDuplicate, segment.Position, segment.StoryID)
		}
		r.logger.Error("Error inserting segment",
			zap.String("story_id", segment.StoryID), zap.Int("position", segment.Position), zap.Error(err))
		return nil, fmt.Errorf("failed to insert segment: %w", err)
	}
	r.logger.Debug("Segment inserted", zap.String("segment_id", segment.ID), zap.Int("position", segment.Position))
	return segment, nil
}

func (r *pgSegmentGateway) AttachImageURL(ctx context.Context, segmentID, imageURL string) error {
	if _, err := uuid.Parse(segmentID); err != nil {
		return fmt.Errorf("%w: segment %s", models.ErrNotFound, segmentID)
	}
	tag, err := r.db.Exec(ctx, attachImageURLQuery, segmentID, imageURL)
	if err != nil {
		return fmt.Errorf("failed to attach image url to segment %s: %w", segmentID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: segment %s", models.ErrNotFound, segmentID)
	}
	return nil
}

func (row segmentRow) toModel() (*models.Segment, error) {
	seg := &models.Segment{
		ID:              row.ID,
		StoryID:         row.StoryID,
		Content:         row.Content,
		Position:        row.Position,
		ImagePrompt:     row.ImagePrompt,
		ImageURL:        row.ImageURL,
		ParentSegmentID: row.ParentSegmentID,
		CreatedAt:       row.CreatedAt,
	}
	if len(row.Choices) > 0 {
		if err := json.Unmarshal(row.Choices, &seg.Choices); err != nil {
			return nil, fmt.Errorf("failed to decode choices of segment %s: %w", row.ID, err)
		}
	}
	return seg, nil
}
