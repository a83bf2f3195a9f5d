package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"kthgpt/internal/cache"
	"kthgpt/internal/config"
	"kthgpt/internal/language"
	"kthgpt/internal/logging"
	"kthgpt/internal/prompts"
	"kthgpt/internal/services"
	"kthgpt/internal/services/llm"
	"kthgpt/internal/store"
)

// Generator is the AI backend surface the service needs.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts llm.Options) (string, error)
}

// LectureFinder resolves lectures for AnswerRequest.
type LectureFinder interface {
	FindLecture(ctx context.Context, publicID, language string) (*store.Lecture, error)
}

// Request is an incoming question addressed by public lecture id.
type Request struct {
	PublicID string `validate:"required,max=128"`
	Language string `validate:"required,max=32"`
	Query    string `validate:"required,max=4000"`
	Override bool
}

// Answer is the outcome of a question.
type Answer struct {
	Response string
	Cached   bool
	QueryID  int64
}

// Service answers lecture questions.
type Service struct {
	cache    *cache.Cache
	lectures LectureFinder
	backend  Generator
	policy   config.RetryPolicy
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService wires a query service.
func NewService(c *cache.Cache, lectures LectureFinder, backend Generator, policy config.RetryPolicy, logger *slog.Logger) *Service {
	return &Service{
		cache:    c,
		lectures: lectures,
		backend:  backend,
		policy:   policy,
		validate: validator.New(),
		logger:   logging.NewComponentLogger(logger, "query"),
	}
}

// AnswerRequest validates req, resolves its lecture, and answers it.
func (s *Service) AnswerRequest(ctx context.Context, req Request) (Answer, error) {
	req.PublicID = strings.TrimSpace(req.PublicID)
	req.Language = strings.TrimSpace(req.Language)
	if err := s.validate.Struct(req); err != nil {
		return Answer{}, fmt.Errorf("%w: %s", services.ErrValidation, describeValidation(err))
	}
	lang, err := language.Parse(req.Language)
	if err != nil {
		return Answer{}, err
	}
	lecture, err := s.lectures.FindLecture(ctx, req.PublicID, lang.String())
	if err != nil {
		return Answer{}, fmt.Errorf("find lecture: %w", err)
	}
	if lecture == nil {
		return Answer{}, fmt.Errorf("%w: lecture %s (%s)", services.ErrNotFound, req.PublicID, lang)
	}
	return s.Answer(ctx, lecture, req.Query, req.Override)
}

// Answer returns the response to text for lecture. A previous answer to the
// same text is returned with Cached set unless override is true.
func (s *Service) Answer(ctx context.Context, lecture *store.Lecture, text string, override bool) (Answer, error) {
	if lecture == nil {
		return Answer{}, fmt.Errorf("%w: lecture is required", services.ErrValidation)
	}
	if strings.TrimSpace(text) == "" {
		return Answer{}, fmt.Errorf("%w: query text is required", services.ErrValidation)
	}
	lang, err := language.Parse(lecture.Language)
	if err != nil {
		return Answer{}, err
	}
	set, err := prompts.For(lang)
	if err != nil {
		return Answer{}, err
	}

	ctx = services.WithLectureID(ctx, lecture.PublicID)
	logger := logging.WithContext(ctx, s.logger)

	result, err := s.cache.Resolve(ctx, lecture.ID, text, override, func(ctx context.Context, entry *store.Query) (string, error) {
		prompt := set.Query(lecture.SummaryText, text)
		response, genErr := s.backend.Generate(ctx, prompt, llm.Options{
			TimeToLive:     s.policy.TimeToLive,
			MaxRetries:     s.policy.MaxRetries,
			RetryIntervals: s.policy.Intervals,
			CorrelationID:  strconv.FormatInt(entry.ID, 10),
		})
		if genErr != nil {
			return "", &BackendFailure{Cause: genErr}
		}
		return response, nil
	})
	if err != nil {
		var failure *BackendFailure
		if errors.As(err, &failure) {
			logging.ErrorWithContext(logger, "query backend failure", "query_failed",
				logging.String(logging.FieldErrorHint, "check ai backend availability and credentials"),
				logging.Error(failure.Cause),
			)
		}
		return Answer{}, err
	}

	logger.Debug("query answered",
		logging.Bool("cached", result.Cached),
		logging.Int64("query_id", result.Entry.ID),
	)
	return Answer{Response: result.Output, Cached: result.Cached, QueryID: result.Entry.ID}, nil
}

func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, strings.ToLower(fe.Field())+" is required")
		case "max":
			parts = append(parts, fmt.Sprintf("%s exceeds %s characters", strings.ToLower(fe.Field()), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
