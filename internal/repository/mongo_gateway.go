package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fairytale-server/shared/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Коллекции Mongo.
const (
	storiesCollection    = "stories"
	segmentsCollection   = "story_segments"
	charactersCollection = "characters"
)

var _ SegmentGateway = (*mongoSegmentGateway)(nil)

type mongoSegmentGateway struct {
	stories    *mongo.Collection
	segments   *mongo.Collection
	characters *mongo.Collection
	logger     *zap.Logger
}

// NewMongoSegmentGateway создает gateway поверх MongoDB (STORE_DRIVER=mongo).
func NewMongoSegmentGateway(db *mongo.Database, logger *zap.Logger) SegmentGateway {
	return &mongoSegmentGateway{
		stories:    db.Collection(storiesCollection),
		segments:   db.Collection(segmentsCollection),
		characters: db.Collection(charactersCollection),
		logger:     logger.Named("MongoSegmentGateway"),
	}
}

// EnsureMongoIndexes создает уникальный индекс позиции сегмента внутри истории.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(segmentsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "story_id", Value: 1}, {Key: "position", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uq_story_segments_position"),
	})
	if err != nil {
		return fmt.Errorf("failed to create segment position index: %w", err)
	}
	return nil
}

func (r *mongoSegmentGateway) FetchStory(ctx context.Context, storyID string) (*models.Story, error) {
	var story models.Story
	err := r.stories.FindOne(ctx, bson.M{"_id": storyID}).Decode(&story)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", models.ErrStoryNotFound, storyID)
		}
		r.logger.Error("Error getting story", zap.String("story_id", storyID), zap.Error(err))
		return nil, fmt.Errorf("failed to get story %s: %w", storyID, err)
	}
	return &story, nil
}

func (r *mongoSegmentGateway) FetchLatestSegment(ctx context.Context, storyID string) (*models.Segment, error) {
	var seg models.Segment
	opts := options.FindOne().SetSort(bson.D{{Key: "position", Value: -1}})
	err := r.segments.FindOne(ctx, bson.M{"story_id": storyID}, opts).Decode(&seg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest segment of story %s: %w", storyID, err)
	}
	checkChoicesInvariant(r.logger, &seg)
	return &seg, nil
}

func (r *mongoSegmentGateway) FetchCharacters(ctx context.Context, storyID, userID string) ([]models.Character, error) {
	filter := bson.M{
		"user_id": userID,
		"role":    bson.M{"$in": models.NarrativeRoles},
		// story_id == nil совпадает и с отсутствующим полем
		"$or": bson.A{bson.M{"story_id": storyID}, bson.M{"story_id": nil}},
	}
	cursor, err := r.characters.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to get characters of story %s: %w", storyID, err)
	}
	var characters []models.Character
	if err := cursor.All(ctx, &characters); err != nil {
		return nil, fmt.Errorf("failed to decode characters of story %s: %w", storyID, err)
	}
	return characters, nil
}

func (r *mongoSegmentGateway) NextPosition(ctx context.Context, storyID string) (int, error) {
	latest, err := r.FetchLatestSegment(ctx, storyID)
	if err != nil {
		return 0, err
	}
	if latest == nil {
		return 1, nil
	}
	return latest.Position + 1, nil
}

func (r *mongoSegmentGateway) InsertSegment(ctx context.Context, segment *models.Segment) (*models.Segment, error) {
	if segment.CreatedAt.IsZero() {
		segment.CreatedAt = time.Now().UTC()
	}
	if segment.Choices == nil {
		segment.Choices = []models.Choice{}
	}
	if _, err := r.segments.InsertOne(ctx, segment); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: segment position %d of story %s", models.ErrDuplicate, segment.Position, segment.StoryID)
		}
		r.logger.Error("Error inserting segment", zap.String("story_id", segment.StoryID), zap.Error(err))
		return nil, fmt.Errorf("failed to insert segment: %w", err)
	}
	return segment, nil
}

func (r *mongoSegmentGateway) AttachImageURL(ctx context.Context, segmentID, imageURL string) error {
	res, err := r.segments.UpdateOne(ctx, bson.M{"_id": segmentID}, bson.M{"$set": bson.M{"image_url": imageURL}})
	if err != nil {
		return fmt.Errorf("failed to attach image url to segment %s: %w", segmentID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: segment %s", models.ErrNotFound, segmentID)
	}
	return nil
}
