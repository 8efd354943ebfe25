package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"support-router/logger"
	"support-router/models"
)

// TextGenerator is a single-prompt text completion backend.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Intelligence wraps a TextGenerator with rate limiting, per-call
// timeouts and JSON handling. None of its methods return errors: a
// failed call reports ok=false and the caller uses its fallback.
type Intelligence struct {
	generator TextGenerator
	limiter   *RateLimiter
	timeout   time.Duration
}

// NewIntelligence creates the capability. A nil generator makes every
// call unavailable.
func NewIntelligence(generator TextGenerator, limiter *RateLimiter, timeout time.Duration) *Intelligence {
	return &Intelligence{generator: generator, limiter: limiter, timeout: timeout}
}

// Available reports whether a backend is wired at all.
func (i *Intelligence) Available() bool {
	return i != nil && i.generator != nil
}

// TryGenerate returns generated text, or ok=false.
func (i *Intelligence) TryGenerate(ctx context.Context, prompt string) (string, bool) {
	text, err := i.generate(ctx, "generate", prompt)
	if err != nil {
		return "", false
	}
	return text, true
}

// TryClassify asks for a JSON answer and decodes it into out, which must
// be a pointer to a struct. Validation tags on out are enforced.
func (i *Intelligence) TryClassify(ctx context.Context, prompt string, out interface{}) bool {
	text, err := i.generate(ctx, "classify", prompt)
	if err != nil {
		return false
	}
	if err := decodeJSON(text, out); err != nil {
		logger.FromContext(ctx).Warn("AI classification unusable", zap.Error(err), zap.String("raw", text))
		AIFallbacksTotal.WithLabelValues("classify").Inc()
		return false
	}
	return true
}

const extractPromptTemplate = `Extract the customer's contact details from the message below.

Message: "%s"

Return ONLY a JSON object with this exact shape:
{"name": "full name or null", "phone": "phone number or null", "email": "email address or null", "inquiry": "short summary of what they want or null"}

Use null for anything that is not clearly stated. Do not guess.`

type extractedPayload struct {
	Name    *string `json:"name"`
	Phone   *string `json:"phone"`
	Email   *string `json:"email"`
	Inquiry *string `json:"inquiry"`
}

// TryExtract pulls contact fields out of free text. Fields that fail
// validation are dropped rather than failing the whole extraction.
func (i *Intelligence) TryExtract(ctx context.Context, text string) (models.ExtractedFields, bool) {
	raw, err := i.generate(ctx, "extract", fmt.Sprintf(extractPromptTemplate, text))
	if err != nil {
		return models.ExtractedFields{}, false
	}

	var payload extractedPayload
	if err := json.Unmarshal([]byte(StripCodeFence(raw)), &payload); err != nil {
		logger.FromContext(ctx).Warn("AI extraction unusable", zap.Error(err), zap.String("raw", raw))
		AIFallbacksTotal.WithLabelValues("extract").Inc()
		return models.ExtractedFields{}, false
	}

	fields := models.ExtractedFields{
		Name:    cleanField(payload.Name),
		Phone:   cleanField(payload.Phone),
		Email:   cleanField(payload.Email),
		Inquiry: cleanField(payload.Inquiry),
	}
	return SanitizeExtracted(fields), true
}

// SanitizeExtracted clears every field that fails validation.
func SanitizeExtracted(fields models.ExtractedFields) models.ExtractedFields {
	err := Validator().Struct(fields)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fields
	}
	for _, fe := range verrs {
		switch fe.StructField() {
		case "Name":
			fields.Name = ""
		case "Phone":
			fields.Phone = ""
		case "Email":
			fields.Email = ""
		case "Inquiry":
			fields.Inquiry = ""
		}
	}
	return fields
}

func cleanField(v *string) string {
	if v == nil {
		return ""
	}
	s := strings.TrimSpace(*v)
	if strings.EqualFold(s, "null") || strings.EqualFold(s, "none") || strings.EqualFold(s, "n/a") {
		return ""
	}
	return s
}

func (i *Intelligence) generate(ctx context.Context, op, prompt string) (string, error) {
	if !i.Available() {
		AIFallbacksTotal.WithLabelValues(op).Inc()
		return "", ErrUnavailable
	}

	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	if err := i.limiter.Wait(ctx); err != nil {
		AIFallbacksTotal.WithLabelValues(op).Inc()
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	text, err := i.generator.Generate(ctx, prompt)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("empty response")
	}
	if err != nil {
		logger.FromContext(ctx).Warn("AI call failed, using fallback",
			zap.String("operation", op),
			zap.Error(err))
		AIFallbacksTotal.WithLabelValues(op).Inc()
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return strings.TrimSpace(text), nil
}

var codeFenceRegex = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

// StripCodeFence removes a surrounding markdown code fence, if any.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFenceRegex.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

// decodeJSON parses the first JSON object found in text into out and
// validates it.
func decodeJSON(text string, out interface{}) error {
	body := StripCodeFence(text)
	if start, end := strings.Index(body, "{"), strings.LastIndex(body, "}"); start >= 0 && end > start {
		body = body[start : end+1]
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if err := Validator().Struct(out); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	return nil
}
