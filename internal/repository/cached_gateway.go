package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"fairytale-server/shared/models"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const storyCacheKeyPrefix = "fairytale:story:"

// StoryCache хранит истории: для пайплайна они неизменяемы.
type StoryCache interface {
	Get(ctx context.Context, storyID string) (*models.Story, bool)
	Set(ctx context.Context, story *models.Story)
}

// redisStoryCache - общий кеш для всех инстансов.
type redisStoryCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStoryCache создает кеш историй в Redis.
func NewRedisStoryCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) StoryCache {
	return &redisStoryCache{client: client, ttl: ttl, logger: logger.Named("RedisStoryCache")}
}

func (c *redisStoryCache) Get(ctx context.Context, storyID string) (*models.Story, bool) {
	data, err := c.client.Get(ctx, storyCacheKeyPrefix+storyID).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Story cache read failed", zap.String("story_id", storyID), zap.Error(err))
		}
		return nil, false
	}
	var story models.Story
	if err := json.Unmarshal(data, &story); err != nil {
		c.logger.Warn("Corrupted story cache entry", zap.String("story_id", storyID), zap.Error(err))
		return nil, false
	}
	return &story, true
}

func (c *redisStoryCache) Set(ctx context.Context, story *models.Story) {
	data, err := json.Marshal(story)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, storyCacheKeyPrefix+story.ID, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Story cache write failed", zap.String("story_id", story.ID), zap.Error(err))
	}
}

// memoryStoryCache - кеш процесса, когда Redis не настроен.
type memoryStoryCache struct {
	cache *gocache.Cache
}

// NewMemoryStoryCache создает in-process кеш историй.
func NewMemoryStoryCache(ttl time.Duration) StoryCache {
	return &memoryStoryCache{cache: gocache.New(ttl, 2*ttl)}
}

func (c *memoryStoryCache) Get(_ context.Context, storyID string) (*models.Story, bool) {
	v, ok := c.cache.Get(storyID)
	if !ok {
		return nil, false
	}
	story := *v.(*models.Story)
	return &story, true
}

func (c *memoryStoryCache) Set(_ context.Context, story *models.Story) {
	copied := *story
	c.cache.SetDefault(story.ID, &copied)
}

// cachedGateway добавляет кеш историй к любому SegmentGateway.
type cachedGateway struct {
	SegmentGateway
	cache StoryCache
}

// NewCachedGateway оборачивает gateway кешем историй.
func NewCachedGateway(inner SegmentGateway, cache StoryCache) SegmentGateway {
	return &cachedGateway{SegmentGateway: inner, cache: cache}
}

func (g *cachedGateway) FetchStory(ctx context.Context, storyID string) (*models.Story, error) {
	if story, ok := g.cache.Get(ctx, storyID); ok {
		return story, nil
	}
	story, err := g.SegmentGateway.FetchStory(ctx, storyID)
	if err != nil {
		return nil, err
	}
	g.cache.Set(ctx, story)
	return story, nil
}
