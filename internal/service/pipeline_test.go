package service_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"fairytale-server/internal/mocks"
	"fairytale-server/internal/service"
	"fairytale-server/internal/validation"
	"fairytale-server/shared/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubValidator struct {
	result validation.Result
}

func (s stubValidator) ValidateAllRequirements(*http.Request) validation.Result { return s.result }

type stubVerifier struct {
	userID string
	err    error
}

func (s stubVerifier) VerifyToken(context.Context, string) (*models.Claims, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: s.userID}}, nil
}

type stubGenerator struct {
	resp  *service.AIResponse
	err   error
	calls int
}

func (s *stubGenerator) GenerateStorySegment(context.Context, string, service.RequestConfig) (*service.AIResponse, error) {
	s.calls++
	return s.resp, s.err
}

func validResult(req *models.GenerateSegmentRequest) validation.Result {
	return validation.Result{Valid: true, StatusCode: http.StatusOK, Request: req, AuthToken: "user-token"}
}

func okGenerator() *stubGenerator {
	return &stubGenerator{resp: &service.AIResponse{
		SegmentText: "Max the brave fox crossed the bridge.",
		ChoicesText: "Wave to the ducks\nRun across quickly\nSit and rest",
		Provider:    "openai",
		Method:      service.MethodChatCompletions,
		APICalls:    1,
	}}
}

func ownStory() *models.Story {
	return &models.Story{ID: "story-1", UserID: "user-1", Title: "Fox Tales", StoryMode: "adventure", AgeGroup: "4-6"}
}

type pipelineFixture struct {
	gateway   *mocks.MockSegmentGateway
	images    *mocks.MockImageTrigger
	generator *stubGenerator
	pipeline  *service.SegmentPipeline
}

func newPipelineFixture(t *testing.T, result validation.Result, generator *stubGenerator) *pipelineFixture {
	f := &pipelineFixture{
		gateway:   mocks.NewMockSegmentGateway(t),
		images:    mocks.NewMockImageTrigger(t),
		generator: generator,
	}
	f.pipeline = service.NewSegmentPipeline(stubValidator{result: result}, stubVerifier{userID: "user-1"},
		f.gateway, generator, f.images, zap.NewNop())
	return f
}

func run(t *testing.T, f *pipelineFixture) (*models.GenerateSegmentResponse, *service.PipelineError) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/generate-story-segment", nil)
	resp, err := f.pipeline.GenerateSegment(context.Background(), req)
	if err == nil {
		return resp, nil
	}
	var pe *service.PipelineError
	require.ErrorAs(t, err, &pe)
	return nil, pe
}

func TestSegmentPipeline_Success(t *testing.T) {
	f := newPipelineFixture(t, validResult(&models.GenerateSegmentRequest{StoryID: "story-1"}), okGenerator())
	f.gateway.On("FetchStory", mock.Anything, "story-1").Return(ownStory(), nil).Once()
	f.gateway.On("FetchCharacters", mock.Anything, "story-1", "user-1").Return(nil, nil).Once()
	f.gateway.On("NextPosition", mock.Anything, "story-1").Return(4, nil).Once()
	f.gateway.On("InsertSegment", mock.Anything, mock.Anything).
		Return(func(_ context.Context, s *models.Segment) *models.Segment { return s }, nil).Once()
	f.images.On("Fire", mock.MatchedBy(func(task models.ImageTask) bool {
		return task.AuthToken == "user-token" && task.StoryID == "story-1" && task.SegmentID != ""
	})).Once()

	resp, pe := run(t, f)
	require.Nil(t, pe)
	assert.Equal(t, 4, resp.Segment.Position)
	require.Len(t, resp.Segment.Choices, 3)
	assert.Equal(t, "Wave to the ducks", resp.Segment.Choices[0].Text)
	require.NotNil(t, resp.Segment.ImagePrompt)
	assert.Equal(t, resp.ImagePrompt, *resp.Segment.ImagePrompt)
	assert.Equal(t, 3, resp.AIMetrics.ChoicesCount)
}

func TestSegmentPipeline_ValidationFailureStopsEarly(t *testing.T) {
	result := validation.Result{
		StatusCode: http.StatusBadRequest,
		Code:       models.CodeInvalidRequest,
		Errors:     []string{validation.MsgInvalidStoryID},
	}
	f := newPipelineFixture(t, result, okGenerator())

	_, pe := run(t, f)
	require.NotNil(t, pe)
	assert.Equal(t, http.StatusBadRequest, pe.Status)
	assert.Equal(t, service.StateValidating, pe.State)
	assert.ErrorIs(t, pe, models.ErrBadRequest)
	assert.Equal(t, validation.MsgInvalidStoryID, pe.Error())
	assert.Zero(t, f.generator.calls)
}

func TestSegmentPipeline_StoryOfAnotherUser(t *testing.T) {
	f := newPipelineFixture(t, validResult(&models.GenerateSegmentRequest{StoryID: "story-1"}), okGenerator())
	story := ownStory()
	story.UserID = "someone-else"
	f.gateway.On("FetchStory", mock.Anything, "story-1").Return(story, nil).Once()
	f.gateway.On("FetchCharacters", mock.Anything, "story-1", "user-1").Return(nil, nil).Once()

	_, pe := run(t, f)
	require.NotNil(t, pe)
	assert.Equal(t, http.StatusNotFound, pe.Status)
	assert.ErrorIs(t, pe, models.ErrStoryNotFound)
	assert.Zero(t, f.generator.calls)
}

func TestSegmentPipeline_StoryFetchFailure(t *testing.T) {
	f := newPipelineFixture(t, validResult(&models.GenerateSegmentRequest{StoryID: "story-1"}), okGenerator())
	f.gateway.On("FetchStory", mock.Anything, "story-1").Return(nil, errors.New("connection refused")).Once()
	f.gateway.On("FetchCharacters", mock.Anything, "story-1", "user-1").Return(nil, nil).Maybe()

	_, pe := run(t, f)
	require.NotNil(t, pe)
	assert.Equal(t, http.StatusInternalServerError, pe.Status)
	assert.Equal(t, models.CodeInternalError, pe.Code)
	assert.Zero(t, f.generator.calls)
}

func TestSegmentPipeline_ChoiceIndexWithoutPreviousSegment(t *testing.T) {
	idx := 0
	f := newPipelineFixture(t, validResult(&models.GenerateSegmentRequest{StoryID: "story-1", ChoiceIndex: &idx}), okGenerator())
	f.gateway.On("FetchStory", mock.Anything, "story-1").Return(ownStory(), nil).Once()
	f.gateway.On("FetchLatestSegment", mock.Anything, "story-1").Return(nil, nil).Once()
	f.gateway.On("FetchCharacters", mock.Anything, "story-1", "user-1").Return(nil, nil).Once()

	_, pe := run(t, f)
	require.NotNil(t, pe)
	assert.Equal(t, http.StatusBadRequest, pe.Status)
	assert.ErrorIs(t, pe, models.ErrInvalidChoiceIndex)
	assert.Equal(t, []string{validation.MsgInvalidChoiceIndex}, pe.Errors)
}

func TestSegmentPipeline_PreviousSegmentFetchFailureIsBestEffort(t *testing.T) {
	idx := 1
	f := newPipelineFixture(t, validResult(&models.GenerateSegmentRequest{StoryID: "story-1", ChoiceIndex: &idx}), okGenerator())
	f.gateway.On("FetchStory", mock.Anything, "story-1").Return(ownStory(), nil).Once()
	f.gateway.On("FetchLatestSegment", mock.Anything, "story-1").Return(nil, errors.New("timeout")).Once()
	f.gateway.On("FetchCharacters", mock.Anything, "story-1", "user-1").Return(nil, errors.New("timeout")).Once()
	f.gateway.On("NextPosition", mock.Anything, "story-1").Return(1, nil).Once()
	f.gateway.On("InsertSegment", mock.Anything, mock.MatchedBy(func(s *models.Segment) bool {
		return s.ParentSegmentID == nil
	})).Return(func(_ context.Context, s *models.Segment) *models.Segment { return s }, nil).Once()
	f.images.On("Fire", mock.Anything).Once()

	resp, pe := run(t, f)
	require.Nil(t, pe)
	assert.True(t, resp.Success)
}

func TestSegmentPipeline_GenerationFailureWritesNothing(t *testing.T) {
	cases := map[string]struct {
		err  error
		code string
	}{
		"all providers failed": {err: models.ErrAllProvidersFailed, code: models.CodeAIGenerationFailed},
		"no provider":          {err: models.ErrNoProviderAvailable, code: models.CodeNoAIProvider},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := newPipelineFixture(t, validResult(&models.GenerateSegmentRequest{StoryID: "story-1"}),
				&stubGenerator{err: tc.err})
			f.gateway.On("FetchStory", mock.Anything, "story-1").Return(ownStory(), nil).Once()
			f.gateway.On("FetchCharacters", mock.Anything, "story-1", "user-1").Return(nil, nil).Once()

			_, pe := run(t, f)
			require.NotNil(t, pe)
			assert.Equal(t, http.StatusInternalServerError, pe.Status)
			assert.Equal(t, tc.code, pe.Code)
			assert.Equal(t, service.StateGeneratingText, pe.State)
			assert.ErrorIs(t, pe, tc.err)
			f.gateway.AssertNotCalled(t, "NextPosition", mock.Anything, mock.Anything)
			f.gateway.AssertNotCalled(t, "InsertSegment", mock.Anything, mock.Anything)
			f.images.AssertNotCalled(t, "Fire", mock.Anything)
		})
	}
}

func TestSegmentPipeline_PersistenceFailure(t *testing.T) {
	f := newPipelineFixture(t, validResult(&models.GenerateSegmentRequest{StoryID: "story-1"}), okGenerator())
	f.gateway.On("FetchStory", mock.Anything, "story-1").Return(ownStory(), nil).Once()
	f.gateway.On("FetchCharacters", mock.Anything, "story-1", "user-1").Return(nil, nil).Once()
	f.gateway.On("NextPosition", mock.Anything, "story-1").Return(2, nil).Once()
	f.gateway.On("InsertSegment", mock.Anything, mock.Anything).Return(nil, models.ErrDuplicate).Once()

	_, pe := run(t, f)
	require.NotNil(t, pe)
	assert.Equal(t, http.StatusInternalServerError, pe.Status)
	assert.Equal(t, models.CodePersistenceFailed, pe.Code)
	assert.Equal(t, "Failed to save story segment", pe.Error())
	assert.ErrorIs(t, pe, models.ErrDuplicate)
	f.images.AssertNotCalled(t, "Fire", mock.Anything)
}

func TestSegmentPipeline_TokenRejected(t *testing.T) {
	f := &pipelineFixture{gateway: mocks.NewMockSegmentGateway(t), images: mocks.NewMockImageTrigger(t), generator: okGenerator()}
	f.pipeline = service.NewSegmentPipeline(
		stubValidator{result: validResult(&models.GenerateSegmentRequest{StoryID: "story-1"})},
		stubVerifier{err: models.ErrTokenExpired},
		f.gateway, f.generator, f.images, zap.NewNop())

	_, pe := run(t, f)
	require.NotNil(t, pe)
	assert.Equal(t, http.StatusUnauthorized, pe.Status)
	assert.ErrorIs(t, pe, models.ErrTokenExpired)
}
