package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fpang/minipaint/internal/metrics"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// ValidationErrorType categorizes validation failures.
type ValidationErrorType int

const (
	ErrTypeInvalidKey ValidationErrorType = iota
	ErrTypeNetworkError
	ErrTypeQuotaExceeded
	ErrTypeUnknown
)

func (t ValidationErrorType) String() string {
	switch t {
	case ErrTypeInvalidKey:
		return "invalid"
	case ErrTypeNetworkError:
		return "network_error"
	case ErrTypeQuotaExceeded:
		return "quota"
	default:
		return "unknown"
	}
}

// ValidationError is a failed key check. Message is shown to the user.
type ValidationError struct {
	Type    ValidationErrorType
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Generator is the part of the genai client ValidateAPIKey needs;
// genai.Client.Models satisfies it.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// ValidateAPIKey makes a minimal call with model and reports whether the
// key works.
func ValidateAPIKey(ctx context.Context, models Generator, model string) error {
	log.Debug().Str("model", model).Msg("Validating API key with Gemini API")

	start := time.Now()
	resp, err := models.GenerateContent(ctx, model, genai.Text("oi"), &genai.GenerateContentConfig{MaxOutputTokens: 1})
	elapsed := time.Since(start)

	result := "success"
	switch {
	case err != nil:
		valErr := classifyError(err)
		result = valErr.Type.String()
		err = valErr
	case resp == nil || len(resp.Candidates) == 0:
		log.Warn().Msg("API key validation returned empty response")
		result = "empty_response"
		err = &ValidationError{Type: ErrTypeUnknown, Message: "A API retornou uma resposta vazia"}
	}

	metrics.New(metrics.Namespace).
		Dimension("Result", result).
		Metric("ApiKeyValidationMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Count("ApiKeyValidationResult").
		Flush()

	if err != nil {
		return err
	}
	log.Info().Dur("duration", elapsed).Msg("API key validated successfully")
	return nil
}

func classifyError(err error) *ValidationError {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyAPIError(apiErr, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return classifyAPIError(*apiErrPtr, err)
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "api key not valid"),
		strings.Contains(lower, "invalid api key"),
		strings.Contains(lower, "api_key_invalid"),
		strings.Contains(lower, "permission denied"):
		log.Error().Err(err).Msg("Invalid API key")
		return &ValidationError{Type: ErrTypeInvalidKey, Message: "Chave de API inválida ou revogada", Err: err}

	case strings.Contains(lower, "quota"),
		strings.Contains(lower, "resource exhausted"),
		strings.Contains(lower, "rate limit"):
		log.Error().Err(err).Msg("API quota exceeded")
		return &ValidationError{Type: ErrTypeQuotaExceeded, Message: "Cota da API excedida", Err: err}

	case strings.Contains(lower, "connection"),
		strings.Contains(lower, "network"),
		strings.Contains(lower, "timeout"),
		strings.Contains(lower, "dial"),
		strings.Contains(lower, "no such host"):
		log.Error().Err(err).Msg("Network error during API validation")
		return &ValidationError{Type: ErrTypeNetworkError, Message: "Erro de rede: verifique sua conexão", Err: err}

	default:
		log.Error().Err(err).Msg("Unknown error during API validation")
		return &ValidationError{Type: ErrTypeUnknown, Message: "Falha ao validar a chave de API", Err: err}
	}
}

func classifyAPIError(apiErr genai.APIError, err error) *ValidationError {
	log.Error().Int("code", apiErr.Code).Str("status", apiErr.Status).Msg("Gemini API error during validation")
	switch {
	case apiErr.Code == 400, apiErr.Code == 401, apiErr.Code == 403:
		return &ValidationError{Type: ErrTypeInvalidKey, Message: "Chave de API inválida, expirada ou sem permissão", Err: err}
	case apiErr.Code == 429:
		return &ValidationError{Type: ErrTypeQuotaExceeded, Message: "Limite de requisições da API excedido", Err: err}
	case apiErr.Code >= 500:
		return &ValidationError{Type: ErrTypeNetworkError, Message: "Erro no servidor da API Gemini", Err: err}
	default:
		return &ValidationError{Type: ErrTypeUnknown, Message: apiErr.Message, Err: err}
	}
}
