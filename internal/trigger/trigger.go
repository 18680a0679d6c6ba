package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"fairytale-server/shared/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var imageTriggersTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "story_segment_image_triggers_total",
		Help: "Image generation triggers, partitioned by transport and status.",
	},
	[]string{"transport", "status"},
)

// ImageTrigger запускает генерацию изображения сегмента и не ждет результата.
// Ошибки только логируются.
type ImageTrigger interface {
	Fire(task models.ImageTask)
}

// NoopTrigger используется, когда генерация изображений отключена.
type NoopTrigger struct{}

func (NoopTrigger) Fire(models.ImageTask) {}

// HTTPImageTrigger делает POST в соседнюю функцию генерации изображений.
type HTTPImageTrigger struct {
	url     string
	client  *http.Client
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewHTTPImageTrigger создает HTTP trigger.
func NewHTTPImageTrigger(url string, timeout time.Duration, logger *zap.Logger) *HTTPImageTrigger {
	return &HTTPImageTrigger{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		logger:  logger.Named("HTTPImageTrigger"),
	}
}

type imageRequest struct {
	SegmentID           string `json:"segmentId"`
	ImagePrompt         string `json:"imagePrompt"`
	StoryID             string `json:"storyId,omitempty"`
	ConsistentCharacter bool   `json:"consistentCharacter,omitempty"`
	CharacterName       string `json:"characterName,omitempty"`
}

// Fire отправляет запрос в отдельной горутине с собственным таймаутом:
// ответ клиенту не должен зависеть от генерации изображения.
func (t *HTTPImageTrigger) Fire(task models.ImageTask) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()
		if err := t.send(ctx, task); err != nil {
			imageTriggersTotal.WithLabelValues("http", "error").Inc()
			t.logger.Warn("Image generation trigger failed", zap.String("segment_id", task.SegmentID), zap.Error(err))
			return
		}
		imageTriggersTotal.WithLabelValues("http", "success").Inc()
		t.logger.Debug("Image generation triggered", zap.String("segment_id", task.SegmentID))
	}()
}

func (t *HTTPImageTrigger) send(ctx context.Context, task models.ImageTask) error {
	body, err := json.Marshal(imageRequest{
		SegmentID:           task.SegmentID,
		ImagePrompt:         task.ImagePrompt,
		StoryID:             task.StoryID,
		ConsistentCharacter: task.ConsistentCharacter,
		CharacterName:       task.CharacterName,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal image request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create image request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if task.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+task.AuthToken)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("image endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Wait дожидается завершения запущенных запросов (graceful shutdown, тесты).
func (t *HTTPImageTrigger) Wait() {
	t.wg.Wait()
}
