package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"fairytale-server/internal/choices"
	"fairytale-server/internal/imageprompt"
	"fairytale-server/internal/prompt"
	"fairytale-server/internal/repository"
	"fairytale-server/internal/trigger"
	"fairytale-server/internal/validation"
	"fairytale-server/shared/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PipelineState - шаг обработки запроса генерации.
type PipelineState string

const (
	StateValidating                PipelineState = "validating"
	StateFetchingContext           PipelineState = "fetching_context"
	StateBuildingPrompt            PipelineState = "building_prompt"
	StateGeneratingText            PipelineState = "generating_text"
	StateParsingChoices            PipelineState = "parsing_choices"
	StateBuildingImagePrompt       PipelineState = "building_image_prompt"
	StatePersisting                PipelineState = "persisting"
	StateTriggeringImageGeneration PipelineState = "triggering_image_generation"
	StateResponding                PipelineState = "responding"
	StateFailed                    PipelineState = "failed"
)

// SuccessMessage - текст поля message успешного ответа.
const SuccessMessage = "Story segment generated successfully"

// PipelineError - типизированная ошибка пайплайна с HTTP статусом.
type PipelineError struct {
	State  PipelineState
	Status int
	Code   string
	Errors []string
	Err    error
}

func (e *PipelineError) Error() string {
	if len(e.Errors) > 0 {
		return strings.Join(e.Errors, "; ")
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.Status)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// TokenVerifier проверяет bearer токен пользователя.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, tokenString string) (*models.Claims, error)
}

// RequestValidator - Validation Gate.
type RequestValidator interface {
	ValidateAllRequirements(r *http.Request) validation.Result
}

// SegmentGenerator - AI Provider Orchestrator.
type SegmentGenerator interface {
	GenerateStorySegment(ctx context.Context, prompt string, rc RequestConfig) (*AIResponse, error)
}

// SegmentPipeline проводит запрос через все шаги строго последовательно.
// Параллельны только три чтения контекста; запуск генерации изображения не ожидается.
type SegmentPipeline struct {
	validator RequestValidator
	verifier  TokenVerifier
	gateway   repository.SegmentGateway
	generator SegmentGenerator
	images    trigger.ImageTrigger
	logger    *zap.Logger
}

// NewSegmentPipeline создает пайплайн. Все зависимости передаются явно.
func NewSegmentPipeline(
	validator RequestValidator,
	verifier TokenVerifier,
	gateway repository.SegmentGateway,
	generator SegmentGenerator,
	images trigger.ImageTrigger,
	logger *zap.Logger,
) *SegmentPipeline {
	return &SegmentPipeline{
		validator: validator,
		verifier:  verifier,
		gateway:   gateway,
		generator: generator,
		images:    images,
		logger:    logger.Named("SegmentPipeline"),
	}
}

// segmentContext - результат шага FetchingContext.
type segmentContext struct {
	story       *models.Story
	previous    *models.Segment
	previousErr error
	characters  []models.Character
}

// GenerateSegment обрабатывает один запрос генерации сегмента.
func (p *SegmentPipeline) GenerateSegment(ctx context.Context, r *http.Request) (*models.GenerateSegmentResponse, error) {
	resp, err := p.run(ctx, r)
	if err != nil {
		var pe *PipelineError
		state := StateFailed
		if errors.As(err, &pe) {
			state = pe.State
		}
		pipelineRequestsTotal.WithLabelValues("failed", string(state)).Inc()
		return nil, err
	}
	pipelineRequestsTotal.WithLabelValues("success", string(StateResponding)).Inc()
	return resp, nil
}

func (p *SegmentPipeline) run(ctx context.Context, r *http.Request) (*models.GenerateSegmentResponse, error) {
	// Validating
	check := p.validator.ValidateAllRequirements(r)
	if !check.Valid {
		return nil, &PipelineError{
			State:  StateValidating,
			Status: check.StatusCode,
			Code:   check.Code,
			Errors: check.Errors,
			Err:    validationSentinel(check.StatusCode, check.Code),
		}
	}
	req := check.Request
	claims, err := p.verifier.VerifyToken(ctx, check.AuthToken)
	if err != nil {
		return nil, &PipelineError{State: StateValidating, Status: http.StatusUnauthorized,
			Code: models.CodeUnauthorized, Err: err}
	}
	userID := claims.UserID()
	log := p.logger.With(zap.String("story_id", req.StoryID), zap.String("user_id", userID))

	// FetchingContext
	sc, err := p.fetchContext(ctx, req, userID, log)
	if err != nil {
		return nil, err
	}

	userChoice := ""
	if req.ChoiceIndex != nil && sc.previousErr == nil {
		idx := *req.ChoiceIndex
		if sc.previous == nil || idx >= len(sc.previous.Choices) {
			return nil, &PipelineError{
				State:  StateFetchingContext,
				Status: http.StatusBadRequest,
				Code:   models.CodeInvalidRequest,
				Errors: []string{validation.MsgInvalidChoiceIndex},
				Err:    models.ErrInvalidChoiceIndex,
			}
		}
		userChoice = sc.previous.Choices[idx].Text
	}

	// BuildingPrompt
	userPrompt, err := prompt.BuildPrompt(sc.story, sc.previous, userChoice, sc.characters, req.TemplateContext)
	if err != nil {
		log.Error("Failed to build prompt", zap.Error(err))
		return nil, &PipelineError{State: StateBuildingPrompt, Status: http.StatusInternalServerError,
			Code: models.CodePromptInvalid, Err: err}
	}

	// GeneratingText
	aiResp, err := p.generator.GenerateStorySegment(ctx, userPrompt, RequestConfig{AgeGroup: sc.story.AgeGroup})
	if err != nil {
		log.Error("Story generation failed", zap.Error(err))
		code := models.CodeAIGenerationFailed
		if errors.Is(err, models.ErrNoProviderAvailable) {
			code = models.CodeNoAIProvider
		}
		return nil, &PipelineError{State: StateGeneratingText, Status: http.StatusInternalServerError,
			Code: code, Errors: []string{"Failed to generate story segment"}, Err: err}
	}

	// ParsingChoices
	parsed := choices.Parse(aiResp.ChoicesText, aiResp.SegmentText)
	if parsed.FallbackCount > 0 {
		choiceFallbackFills.WithLabelValues(parsed.FallbackRule).Add(float64(parsed.FallbackCount))
		log.Info("Choices padded from fallback table",
			zap.Int("parsed", parsed.ParsedCount),
			zap.String("rule", parsed.FallbackRule),
			zap.Int("filled", parsed.FallbackCount))
	}

	// BuildingImagePrompt
	var history []models.Segment
	if sc.previous != nil {
		history = append(history, *sc.previous)
	}
	imagePrompt := imageprompt.BuildImagePrompt(sc.story, aiResp.SegmentText, history, sc.characters)

	// Persisting
	position, err := p.gateway.NextPosition(ctx, sc.story.ID)
	if err != nil {
		return nil, persistenceError(err)
	}
	segment := &models.Segment{
		ID:          uuid.NewString(),
		StoryID:     sc.story.ID,
		Content:     aiResp.SegmentText,
		Position:    position,
		Choices:     parsed.Choices,
		ImagePrompt: &imagePrompt,
	}
	if sc.previous != nil {
		parentID := sc.previous.ID
		segment.ParentSegmentID = &parentID
	}
	saved, err := p.gateway.InsertSegment(ctx, segment)
	if err != nil {
		log.Error("Failed to persist segment", zap.Int("position", position), zap.Error(err))
		return nil, persistenceError(err)
	}

	// TriggeringImageGeneration
	task := models.ImageTask{
		SegmentID:   saved.ID,
		StoryID:     saved.StoryID,
		ImagePrompt: imagePrompt,
		AuthToken:   check.AuthToken,
	}
	if imageprompt.NeedsCharacterConsistency(aiResp.SegmentText, imagePrompt) {
		task.ConsistentCharacter = true
		task.CharacterName = imageprompt.ExtractMainCharacter(aiResp.SegmentText)
	}
	p.images.Fire(task)

	// Responding
	log.Info("Segment generated",
		zap.String("segment_id", saved.ID),
		zap.Int("position", saved.Position),
		zap.String("provider", aiResp.Provider),
		zap.Bool("fallback_triggered", aiResp.FallbackTriggered))

	return &models.GenerateSegmentResponse{
		Success:     true,
		Segment:     saved,
		ImagePrompt: imagePrompt,
		Message:     SuccessMessage,
		AIMetrics: models.AIMetrics{
			Provider:          aiResp.Provider,
			Method:            aiResp.Method,
			APICallsMade:      aiResp.APICalls,
			FallbackTriggered: aiResp.FallbackTriggered,
			StoryLength:       len(aiResp.SegmentText),
			ChoicesCount:      len(saved.Choices),
		},
	}, nil
}

// fetchContext читает историю, предыдущий сегмент и персонажей параллельно.
// Фатальна только ошибка чтения истории.
func (p *SegmentPipeline) fetchContext(ctx context.Context, req *models.GenerateSegmentRequest,
	userID string, log *zap.Logger) (*segmentContext, error) {
	sc := &segmentContext{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		story, err := p.gateway.FetchStory(gctx, req.StoryID)
		if err != nil {
			return err
		}
		sc.story = story
		return nil
	})
	if req.ChoiceIndex != nil {
		g.Go(func() error {
			prev, err := p.gateway.FetchLatestSegment(gctx, req.StoryID)
			if err != nil {
				log.Warn("Previous segment unavailable, continuing without it", zap.Error(err))
				sc.previousErr = err
				return nil
			}
			sc.previous = prev
			return nil
		})
	}
	g.Go(func() error {
		chars, err := p.gateway.FetchCharacters(gctx, req.StoryID, userID)
		if err != nil {
			log.Warn("Characters unavailable, continuing without them", zap.Error(err))
			return nil
		}
		sc.characters = chars
		return nil
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, models.ErrStoryNotFound) || errors.Is(err, models.ErrNotFound) {
			return nil, &PipelineError{State: StateFetchingContext, Status: http.StatusNotFound,
				Code: models.CodeStoryNotFound, Errors: []string{"Story not found"}, Err: err}
		}
		log.Error("Failed to fetch story", zap.Error(err))
		return nil, &PipelineError{State: StateFetchingContext, Status: http.StatusInternalServerError,
			Code: models.CodeInternalError, Err: fmt.Errorf("%w: %v", models.ErrInternalServer, err)}
	}
	// Чужая история для пользователя не существует
	if sc.story.UserID != "" && sc.story.UserID != userID {
		log.Warn("Story belongs to another user")
		return nil, &PipelineError{State: StateFetchingContext, Status: http.StatusNotFound,
			Code: models.CodeStoryNotFound, Errors: []string{"Story not found"}, Err: models.ErrStoryNotFound}
	}
	return sc, nil
}

func persistenceError(err error) *PipelineError {
	return &PipelineError{
		State:  StatePersisting,
		Status: http.StatusInternalServerError,
		Code:   models.CodePersistenceFailed,
		Errors: []string{"Failed to save story segment"},
		Err:    err,
	}
}

func validationSentinel(status int, code string) error {
	switch {
	case status == http.StatusUnauthorized:
		return models.ErrUnauthorized
	case code == models.CodeNoAIProvider:
		return models.ErrNoProviderAvailable
	case status >= http.StatusInternalServerError:
		return models.ErrConfiguration
	default:
		return models.ErrBadRequest
	}
}
