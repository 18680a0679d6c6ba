package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"fairytale-server/internal/config"
	"fairytale-server/shared/authutils"
	"fairytale-server/shared/models"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Сообщения об ошибках запроса. Клиенты сверяют их дословно.
const (
	MsgMissingAuthHeader  = "Missing authorization header"
	MsgInvalidAuthHeader  = "Invalid authorization header: expected Bearer token"
	MsgInvalidStoryID     = "Missing or invalid storyId in request body"
	MsgInvalidChoiceIndex = "Invalid choiceIndex: must be a non-negative integer"
	MsgInvalidTemplateCtx = "Invalid templateContext: must be an object"
	MsgBodyNotObject      = "Request body must be a JSON object"
)

const maxBodyBytes = 1 << 20

// EnvironmentStatus - готовность окружения.
type EnvironmentStatus struct {
	Valid                 bool
	PersistenceConfigured bool
	AuthConfigured        bool
	AnyProviderCredential bool
	Errors                []string
}

// RequestValidation - результат разбора входящего запроса.
type RequestValidation struct {
	Valid     bool
	Errors    []string
	Request   *models.GenerateSegmentRequest
	AuthToken string
}

// ProviderStatus - какие провайдеры пригодны и какой из них основной.
type ProviderStatus struct {
	Valid          bool
	PrimaryUsable  bool
	FallbackUsable bool
	Active         config.ProviderKind // пусто, если нет ни одного
	ActiveName     string
	Errors         []string
}

// Result - итог ValidateAllRequirements.
type Result struct {
	Valid      bool
	StatusCode int
	Code       string
	Errors     []string
	Request    *models.GenerateSegmentRequest
	AuthToken  string
	Providers  ProviderStatus
}

// Gate проверяет окружение, провайдеров и запрос до любых вызовов AI и записи в БД.
type Gate struct {
	cfg      *config.Config
	validate *validator.Validate
	logger   *zap.Logger
}

// NewGate создает Gate.
func NewGate(cfg *config.Config, logger *zap.Logger) *Gate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// В сообщениях используем имена полей из JSON
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return &Gate{cfg: cfg, validate: v, logger: logger.Named("ValidationGate")}
}

// ValidateEnvironment проверяет настройки хранилища, секрет JWT и наличие хотя бы одного ключа AI
// (уровень на Ollama ключа не требует).
// Отсутствующие значения считаются ошибкой, дефолты для секретов не подставляются.
func (g *Gate) ValidateEnvironment() EnvironmentStatus {
	status := EnvironmentStatus{
		PersistenceConfigured: g.cfg.PersistenceConfigured(),
		AuthConfigured:        g.cfg.JWTSecret != "",
		AnyProviderCredential: g.cfg.PrimaryProvider().HasCredential() ||
			g.cfg.FallbackProvider().HasCredential(),
	}
	if !status.PersistenceConfigured {
		status.Errors = append(status.Errors,
			fmt.Sprintf("Persistence connection settings are missing for store driver %q", g.cfg.StoreDriver))
	}
	if !status.AuthConfigured {
		status.Errors = append(status.Errors, "JWT secret is not configured")
	}
	if !status.AnyProviderCredential {
		status.Errors = append(status.Errors, "No AI provider API key configured")
	}
	status.Valid = len(status.Errors) == 0
	return status
}

// ValidateAPIKeys заново проверяет пригодность провайдеров. Основной имеет приоритет.
func (g *Gate) ValidateAPIKeys() ProviderStatus {
	primary := g.cfg.PrimaryProvider()
	fallback := g.cfg.FallbackProvider()

	status := ProviderStatus{PrimaryUsable: primary.IsUsable(), FallbackUsable: fallback.IsUsable()}
	switch {
	case status.PrimaryUsable:
		status.Active, status.ActiveName = primary.Kind, primary.Name
	case status.FallbackUsable:
		status.Active, status.ActiveName = fallback.Kind, fallback.Name
	default:
		status.Errors = append(status.Errors, primary.Problems()...)
		status.Errors = append(status.Errors, fallback.Problems()...)
	}
	status.Valid = status.PrimaryUsable || status.FallbackUsable
	return status
}

// ValidateRequest проверяет заголовок авторизации и тело запроса.
// Собирает все нарушения, а не только первое.
func (g *Gate) ValidateRequest(r *http.Request) RequestValidation {
	var result RequestValidation

	authHeader := r.Header.Get("Authorization")
	if strings.TrimSpace(authHeader) == "" {
		result.Errors = append(result.Errors, MsgMissingAuthHeader)
	} else if token, ok := authutils.BearerToken(authHeader); ok {
		result.AuthToken = token
	} else {
		result.Errors = append(result.Errors, MsgInvalidAuthHeader)
	}

	req, bodyErrs := g.parseBody(r)
	result.Errors = append(result.Errors, bodyErrs...)
	result.Request = req
	result.Valid = len(result.Errors) == 0
	return result
}

func (g *Gate) parseBody(r *http.Request) (*models.GenerateSegmentRequest, []string) {
	if r.Body == nil {
		return nil, []string{MsgInvalidStoryID}
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, []string{fmt.Sprintf("Failed to read request body: %v", err)}
	}
	if len(body) > maxBodyBytes {
		return nil, []string{"Request body is too large"}
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		body = []byte("{}")
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, []string{MsgBodyNotObject}
		}
		return nil, []string{fmt.Sprintf("Invalid JSON in request body: %v", err)}
	}
	if raw == nil {
		return nil, []string{MsgBodyNotObject}
	}

	var errs []string
	req := &models.GenerateSegmentRequest{}

	if v, ok := raw["storyId"]; !ok || json.Unmarshal(v, &req.StoryID) != nil || strings.TrimSpace(req.StoryID) == "" {
		errs = append(errs, MsgInvalidStoryID)
	} else {
		req.StoryID = strings.TrimSpace(req.StoryID)
	}

	if v, ok := raw["choiceIndex"]; ok && !isJSONNull(v) {
		idx, ok := parseNonNegativeInt(v)
		if ok {
			req.ChoiceIndex = &idx
		} else {
			errs = append(errs, MsgInvalidChoiceIndex)
		}
	}

	if v, ok := raw["templateContext"]; ok && !isJSONNull(v) {
		tc := &models.TemplateContext{}
		if !bytes.HasPrefix(bytes.TrimSpace(v), []byte("{")) {
			errs = append(errs, MsgInvalidTemplateCtx)
		} else if err := json.Unmarshal(v, tc); err != nil {
			errs = append(errs, fmt.Sprintf("Invalid templateContext: %v", err))
		} else {
			req.TemplateContext = tc
		}
	}

	// Ограничения длины и допустимые роли проверяет validator
	if err := g.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				if fe.Field() == "storyId" && fe.Tag() == "required" {
					continue // уже учтено выше
				}
				errs = append(errs, fieldErrorMessage(fe))
			}
		} else {
			g.logger.Warn("Unexpected validator error", zap.Error(err))
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return req, nil
}

// ValidateAllRequirements объединяет три проверки. Ошибки конфигурации дают 500,
// ошибки запроса 400 (401, если не хватает только авторизации).
func (g *Gate) ValidateAllRequirements(r *http.Request) Result {
	env := g.ValidateEnvironment()
	if !env.Valid {
		g.logger.Error("Environment validation failed", zap.Strings("errors", env.Errors))
		return Result{StatusCode: http.StatusInternalServerError, Code: models.CodeConfigMissing, Errors: env.Errors}
	}

	providers := g.ValidateAPIKeys()
	if !providers.Valid {
		g.logger.Error("No usable AI provider", zap.Strings("errors", providers.Errors))
		return Result{StatusCode: http.StatusInternalServerError, Code: models.CodeNoAIProvider,
			Errors: providers.Errors, Providers: providers}
	}

	req := g.ValidateRequest(r)
	if !req.Valid {
		g.logger.Warn("Request validation failed", zap.Strings("errors", req.Errors))
		status, code := http.StatusBadRequest, models.CodeInvalidRequest
		if onlyAuthErrors(req.Errors) {
			status, code = http.StatusUnauthorized, models.CodeUnauthorized
		}
		return Result{StatusCode: status, Code: code, Errors: req.Errors, Providers: providers}
	}

	return Result{
		Valid:      true,
		StatusCode: http.StatusOK,
		Request:    req.Request,
		AuthToken:  req.AuthToken,
		Providers:  providers,
	}
}

func onlyAuthErrors(errs []string) bool {
	for _, e := range errs {
		if e != MsgMissingAuthHeader && e != MsgInvalidAuthHeader {
			return false
		}
	}
	return len(errs) > 0
}

func isJSONNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// parseNonNegativeInt принимает только целые числа JSON (2, 2.0), но не строки.
func parseNonNegativeInt(v json.RawMessage) (int, bool) {
	v = bytes.TrimSpace(v)
	if len(v) == 0 || v[0] == '"' {
		return 0, false
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(v))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return 0, false
	}
	if i, err := n.Int64(); err == nil {
		return int(i), i >= 0
	}
	f, err := n.Float64()
	if err != nil || f < 0 || f != float64(int64(f)) {
		return 0, false
	}
	return int(f), true
}

func fieldErrorMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:] // отрезаем имя корневой структуры
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("Invalid %s: is required", field)
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("Invalid %s: must have at most %s items", field, fe.Param())
		}
		return fmt.Sprintf("Invalid %s: must be at most %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("Invalid %s: must be at least %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("Invalid %s: must be one of %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	}
	return fmt.Sprintf("Invalid %s: failed %s check", field, fe.Tag())
}
