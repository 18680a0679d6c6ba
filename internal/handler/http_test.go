package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"fairytale-server/internal/config"
	"fairytale-server/internal/handler"
	"fairytale-server/internal/mocks"
	"fairytale-server/internal/service"
	"fairytale-server/internal/validation"
	"fairytale-server/shared/authutils"
	"fairytale-server/shared/middleware"
	"fairytale-server/shared/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testJWTSecret = "handler-test-secret"
	testUserID    = "user-1"
	testStoryID   = "s1"
)

// fakeProvider - OpenAI-совместимый /chat/completions.
type fakeProvider struct {
	server *httptest.Server
	calls  int32
}

func newFakeProvider(t *testing.T, status int, content string) *fakeProvider {
	fp := &fakeProvider{}
	fp.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fp.calls, 1)
		if r.URL.Path != "/chat/completions" || r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error": {"message": "provider is down", "type": "server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   "test-model",
			"choices": []map[string]interface{}{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
			"usage": map[string]int{"prompt_tokens": 100, "completion_tokens": 50, "total_tokens": 150},
		})
	}))
	t.Cleanup(fp.server.Close)
	return fp
}

func (fp *fakeProvider) Calls() int { return int(atomic.LoadInt32(&fp.calls)) }

func providerJSON(storyText string, choices ...string) string {
	data, _ := json.Marshal(map[string]interface{}{"story_text": storyText, "choices": choices})
	return string(data)
}

func testConfig(primaryURL, fallbackURL string) *config.Config {
	return &config.Config{
		StoreDriver: config.StoreDriverPostgres,
		DBHost:      "localhost",
		DBPort:      "5432",
		DBUser:      "postgres",
		DBName:      "fairytale_test",
		DBPassword:  "secret",
		JWTSecret:   testJWTSecret,

		PrimaryBackend:     "openai",
		PrimaryName:        "openai",
		PrimaryBaseURL:     primaryURL,
		PrimaryModel:       "test-model",
		PrimaryMaxTokens:   1500,
		PrimaryTemperature: 0.8,
		PrimaryTimeout:     5 * time.Second,
		PrimaryAPIKey:      "sk-primary-test",

		FallbackBackend:     "openai",
		FallbackName:        "ovh",
		FallbackBaseURL:     fallbackURL,
		FallbackModel:       "test-model",
		FallbackMaxTokens:   1500,
		FallbackTemperature: 0.8,
		FallbackTimeout:     5 * time.Second,
		FallbackAPIKey:      "ovh-fallback-test",
	}
}

type testEnv struct {
	router  *gin.Engine
	gateway *mocks.MockSegmentGateway
	images  *mocks.MockImageTrigger
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()
	ctx := context.Background()

	primaryClient, err := service.NewChatClient(ctx, cfg.PrimaryProvider(), log)
	require.NoError(t, err)
	fallbackClient, err := service.NewChatClient(ctx, cfg.FallbackProvider(), log)
	require.NoError(t, err)
	orchestrator := service.NewOrchestrator(
		&service.Provider{Config: cfg.PrimaryProvider(), Client: primaryClient},
		&service.Provider{Config: cfg.FallbackProvider(), Client: fallbackClient},
		log,
	)

	verifier, err := authutils.NewJWTVerifier(cfg.JWTSecret, log)
	require.NoError(t, err)

	gateway := mocks.NewMockSegmentGateway(t)
	images := mocks.NewMockImageTrigger(t)
	pipeline := service.NewSegmentPipeline(validation.NewGate(cfg, log), verifier, gateway, orchestrator, images, log)

	router := gin.New()
	handler.NewSegmentHandler(pipeline, gateway, verifier.VerifyToken, log).RegisterRoutes(router)
	return &testEnv{router: router, gateway: gateway, images: images}
}

func signedToken(t *testing.T, subject, role string) string {
	t.Helper()
	claims := models.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

func (e *testEnv) generate(t *testing.T, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/generate-story-segment", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+signedToken(t, testUserID, ""))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func fantasyStory() *models.Story {
	return &models.Story{
		ID:          testStoryID,
		UserID:      testUserID,
		Title:       "The Moon Garden",
		Description: "A girl discovers a garden that only blooms at night",
		StoryMode:   "fantasy",
		AgeGroup:    "7-9",
		StoryLength: models.StoryLengthMedium,
	}
}

// expectPersist настраивает чтения контекста и запись сегмента.
func (e *testEnv) expectPersist(story *models.Story) {
	e.gateway.On("FetchStory", mock.Anything, story.ID).Return(story, nil).Once()
	e.gateway.On("FetchCharacters", mock.Anything, story.ID, testUserID).Return([]models.Character{}, nil).Once()
	e.gateway.On("NextPosition", mock.Anything, story.ID).Return(1, nil).Once()
	e.gateway.On("InsertSegment", mock.Anything, mock.AnythingOfType("*models.Segment")).
		Return(func(_ context.Context, s *models.Segment) *models.Segment { return s }, nil).Once()
	e.images.On("Fire", mock.AnythingOfType("models.ImageTask")).Once()
}

func decodeSuccess(t *testing.T, w *httptest.ResponseRecorder) models.GenerateSegmentResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp models.GenerateSegmentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func choiceTexts(seg *models.Segment) []string {
	out := make([]string, 0, len(seg.Choices))
	for _, c := range seg.Choices {
		out = append(out, c.Text)
	}
	return out
}

func TestGenerateStorySegment_PrimarySucceeds(t *testing.T) {
	primary := newFakeProvider(t, http.StatusOK,
		providerJSON("Luna tiptoed into the moonlit garden.", "Smell the silver roses", "Follow the glowing moth", "Wake up her brother"))
	fallback := newFakeProvider(t, http.StatusOK, providerJSON("unused", "a", "b", "c"))
	env := newTestEnv(t, testConfig(primary.server.URL, fallback.server.URL))
	env.expectPersist(fantasyStory())

	resp := decodeSuccess(t, env.generate(t, `{"storyId": "s1"}`))

	assert.True(t, resp.Success)
	require.NotNil(t, resp.Segment)
	assert.NotEmpty(t, resp.Segment.Content)
	assert.Equal(t, []string{"Smell the silver roses", "Follow the glowing moth", "Wake up her brother"}, choiceTexts(resp.Segment))
	for _, c := range resp.Segment.Choices {
		assert.NotEmpty(t, c.ID)
		assert.Nil(t, c.NextSegmentID)
	}
	assert.Equal(t, 1, resp.Segment.Position)
	assert.Nil(t, resp.Segment.ParentSegmentID)
	assert.NotEmpty(t, resp.ImagePrompt)
	assert.Equal(t, service.SuccessMessage, resp.Message)
	assert.False(t, resp.AIMetrics.FallbackTriggered)
	assert.Equal(t, "openai", resp.AIMetrics.Provider)
	assert.Equal(t, 1, resp.AIMetrics.APICallsMade)
	assert.Equal(t, 3, resp.AIMetrics.ChoicesCount)
	assert.Equal(t, len(resp.Segment.Content), resp.AIMetrics.StoryLength)
	assert.Equal(t, 1, primary.Calls())
	assert.Equal(t, 0, fallback.Calls())
	env.gateway.AssertNotCalled(t, "FetchLatestSegment", mock.Anything, mock.Anything)
}

func TestGenerateStorySegment_FallbackAfterPrimary500(t *testing.T) {
	primary := newFakeProvider(t, http.StatusInternalServerError, "")
	fallback := newFakeProvider(t, http.StatusOK,
		providerJSON("Luna met a talking owl.", "Ask the owl a riddle", "Offer the owl a berry", "Wave goodbye politely"))
	env := newTestEnv(t, testConfig(primary.server.URL, fallback.server.URL))
	env.expectPersist(fantasyStory())

	resp := decodeSuccess(t, env.generate(t, `{"storyId": "s1"}`))

	assert.True(t, resp.AIMetrics.FallbackTriggered)
	assert.Equal(t, "ovh", resp.AIMetrics.Provider)
	assert.Equal(t, 2, resp.AIMetrics.APICallsMade)
	assert.Equal(t, 1, primary.Calls())
	assert.Equal(t, 1, fallback.Calls())
}

func TestGenerateStorySegment_BothProvidersFail(t *testing.T) {
	primary := newFakeProvider(t, http.StatusInternalServerError, "")
	fallback := newFakeProvider(t, http.StatusOK, "this is not JSON")
	env := newTestEnv(t, testConfig(primary.server.URL, fallback.server.URL))
	story := fantasyStory()
	env.gateway.On("FetchStory", mock.Anything, story.ID).Return(story, nil).Once()
	env.gateway.On("FetchCharacters", mock.Anything, story.ID, testUserID).Return(nil, nil).Once()

	w := env.generate(t, `{"storyId": "s1"}`)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var errResp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.NotEmpty(t, errResp.Error)
	assert.Equal(t, models.CodeAIGenerationFailed, errResp.Code)
	env.gateway.AssertNotCalled(t, "InsertSegment", mock.Anything, mock.Anything)
	env.gateway.AssertNumberOfCalls(t, "InsertSegment", 0)
	env.images.AssertNotCalled(t, "Fire", mock.Anything)
	assert.Equal(t, 1, primary.Calls())
	assert.Equal(t, 1, fallback.Calls())
}

func TestGenerateStorySegment_MissingStoryID(t *testing.T) {
	primary := newFakeProvider(t, http.StatusOK, "")
	fallback := newFakeProvider(t, http.StatusOK, "")
	env := newTestEnv(t, testConfig(primary.server.URL, fallback.server.URL))

	w := env.generate(t, `{"choiceIndex": 1}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var errResp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "Missing or invalid storyId in request body", errResp.Error)
	assert.Equal(t, models.CodeInvalidRequest, errResp.Code)
	assert.Equal(t, 0, primary.Calls())
	env.gateway.AssertNotCalled(t, "FetchStory", mock.Anything, mock.Anything)
}

func TestGenerateStorySegment_PadsShortChoicesFromTreasureTable(t *testing.T) {
	primary := newFakeProvider(t, http.StatusOK,
		providerJSON("Sam dug in the sand and found a heavy treasure chest.", "Go left", "Go right"))
	fallback := newFakeProvider(t, http.StatusOK, "")
	env := newTestEnv(t, testConfig(primary.server.URL, fallback.server.URL))
	env.expectPersist(fantasyStory())

	resp := decodeSuccess(t, env.generate(t, `{"storyId": "s1"}`))

	texts := choiceTexts(resp.Segment)
	require.Len(t, texts, 3)
	assert.Equal(t, "Go left", texts[0])
	assert.Equal(t, "Go right", texts[1])
	assert.Contains(t, []string{"Open the treasure chest", "Count the shiny treasure", "Share the treasure with friends"}, texts[2])
	assert.Equal(t, 3, resp.AIMetrics.ChoicesCount)
}

func TestGenerateStorySegment_ContinuesFromChoice(t *testing.T) {
	primary := newFakeProvider(t, http.StatusOK,
		providerJSON("Luna followed the moth to a hidden pond.", "Dip a toe in", "Count the frogs", "Call the moth back"))
	fallback := newFakeProvider(t, http.StatusOK, "")
	env := newTestEnv(t, testConfig(primary.server.URL, fallback.server.URL))
	story := fantasyStory()
	previous := &models.Segment{
		ID: "prev-seg", StoryID: story.ID, Content: "Luna stood in the garden.", Position: 1,
		Choices: []models.Choice{{ID: "c1", Text: "Smell the roses"}, {ID: "c2", Text: "Follow the moth"}, {ID: "c3", Text: "Go home"}},
	}
	env.gateway.On("FetchStory", mock.Anything, story.ID).Return(story, nil).Once()
	env.gateway.On("FetchLatestSegment", mock.Anything, story.ID).Return(previous, nil).Once()
	env.gateway.On("FetchCharacters", mock.Anything, story.ID, testUserID).Return(nil, fmt.Errorf("db down")).Once()
	env.gateway.On("NextPosition", mock.Anything, story.ID).Return(2, nil).Once()
	env.gateway.On("InsertSegment", mock.Anything, mock.MatchedBy(func(s *models.Segment) bool {
		return s.ParentSegmentID != nil && *s.ParentSegmentID == "prev-seg" && s.Position == 2
	})).Return(func(_ context.Context, s *models.Segment) *models.Segment { return s }, nil).Once()
	env.images.On("Fire", mock.MatchedBy(func(task models.ImageTask) bool {
		return task.ImagePrompt != "" && task.StoryID == story.ID
	})).Once()

	resp := decodeSuccess(t, env.generate(t, `{"storyId": "s1", "choiceIndex": 1}`))
	assert.Equal(t, 2, resp.Segment.Position)
}

func TestGenerateStorySegment_ChoiceIndexOutOfRange(t *testing.T) {
	primary := newFakeProvider(t, http.StatusOK, "")
	fallback := newFakeProvider(t, http.StatusOK, "")
	env := newTestEnv(t, testConfig(primary.server.URL, fallback.server.URL))
	story := fantasyStory()
	env.gateway.On("FetchStory", mock.Anything, story.ID).Return(story, nil).Once()
	env.gateway.On("FetchLatestSegment", mock.Anything, story.ID).Return(&models.Segment{
		ID: "prev", StoryID: story.ID, Choices: []models.Choice{{Text: "Only choice"}},
	}, nil).Once()
	env.gateway.On("FetchCharacters", mock.Anything, story.ID, testUserID).Return(nil, nil).Once()

	w := env.generate(t, `{"storyId": "s1", "choiceIndex": 2}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, primary.Calls())
}

func TestGenerateStorySegment_StoryNotFound(t *testing.T) {
	primary := newFakeProvider(t, http.StatusOK, "")
	fallback := newFakeProvider(t, http.StatusOK, "")
	env := newTestEnv(t, testConfig(primary.server.URL, fallback.server.URL))
	env.gateway.On("FetchStory", mock.Anything, "missing").Return(nil, models.ErrStoryNotFound).Once()
	env.gateway.On("FetchCharacters", mock.Anything, "missing", testUserID).Return(nil, nil).Maybe()

	w := env.generate(t, `{"storyId": "missing"}`)

	require.Equal(t, http.StatusNotFound, w.Code)
	var errResp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, models.CodeStoryNotFound, errResp.Code)
	assert.Equal(t, 0, primary.Calls())
}

func TestGenerateStorySegment_MissingCredentials(t *testing.T) {
	cfg := testConfig("http://primary.invalid", "http://fallback.invalid")
	cfg.PrimaryAPIKey = ""
	cfg.FallbackAPIKey = "your-api-key"
	env := newTestEnv(t, cfg)

	w := env.generate(t, `{"storyId": "s1"}`)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var errResp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, models.CodeConfigMissing, errResp.Code)
}

func TestGenerateStorySegment_MissingAuthorization(t *testing.T) {
	env := newTestEnv(t, testConfig("http://primary.invalid", "http://fallback.invalid"))

	req := httptest.NewRequest(http.MethodPost, "/generate-story-segment", bytes.NewBufferString(`{"storyId": "s1"}`))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPreflight(t *testing.T) {
	env := newTestEnv(t, testConfig("http://primary.invalid", "http://fallback.invalid"))

	req := httptest.NewRequest(http.MethodOptions, "/generate-story-segment", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "authorization")
	assert.Empty(t, w.Body.String())
}

func TestAttachImage(t *testing.T) {
	env := newTestEnv(t, testConfig("http://primary.invalid", "http://fallback.invalid"))
	env.gateway.On("AttachImageURL", mock.Anything, "seg-1", "https://cdn.example.com/seg-1.png").Return(nil).Once()
	env.gateway.On("AttachImageURL", mock.Anything, "seg-404", mock.Anything).Return(models.ErrNotFound).Once()

	send := func(segmentID, role, body string) int {
		req := httptest.NewRequest(http.MethodPost, "/internal/segments/"+segmentID+"/image", bytes.NewBufferString(body))
		req.Header.Set(middleware.InterServiceTokenHeader, signedToken(t, "image-generator", role))
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusNoContent, send("seg-1", middleware.ServiceRole, `{"imageUrl": "https://cdn.example.com/seg-1.png"}`))
	assert.Equal(t, http.StatusNotFound, send("seg-404", middleware.ServiceRole, `{"imageUrl": "https://cdn.example.com/x.png"}`))
	assert.Equal(t, http.StatusBadRequest, send("seg-1", middleware.ServiceRole, `{"imageUrl": "not a url"}`))
	assert.Equal(t, http.StatusForbidden, send("seg-1", "user", `{"imageUrl": "https://cdn.example.com/seg-1.png"}`))
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, testConfig("http://primary.invalid", "http://fallback.invalid"))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
