package chat

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// Kind categorizes model-call failures.
type Kind int

const (
	// KindRateLimited is a 429 / RESOURCE_EXHAUSTED response. It is retried
	// and never returned once the retry budget runs out.
	KindRateLimited Kind = iota
	// KindQuotaExceeded is a rate limit that outlived the retry budget.
	KindQuotaExceeded
	// KindBackendUnreachable means the local server refused the connection.
	KindBackendUnreachable
	// KindMalformedResponse means no usable JSON could be recovered.
	KindMalformedResponse
	// KindCommunicationFailure covers everything else.
	KindCommunicationFailure
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindBackendUnreachable:
		return "backend_unreachable"
	case KindMalformedResponse:
		return "malformed_response"
	default:
		return "communication_failure"
	}
}

// User-facing messages.
const (
	msgQuotaExceeded = "Você atingiu o limite de requisições da API. Por favor, aguarde um minuto e tente novamente."
	msgUnreachable   = "Não foi possível conectar ao servidor de IA local. Verifique se o servidor está em execução e o endpoint está correto."
	msgMalformed     = "A IA retornou uma resposta que não pôde ser interpretada durante a operação '%s'."
	msgCommunication = "Ocorreu uma falha na comunicação com a IA durante a operação '%s'."
)

// Error is a classified model-call failure. Message is safe to show to users.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Malformed returns a KindMalformedResponse error for op.
func Malformed(op string, err error) *Error {
	return &Error{Kind: KindMalformedResponse, Op: op, Message: fmt.Sprintf(msgMalformed, op), Err: err}
}

// KindOf returns the kind of a classified error, or KindCommunicationFailure.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindCommunicationFailure
}

// IsRateLimit reports whether err carries a rate-limit signature: a
// classified rate-limit error, a genai API error with code 429 or status
// RESOURCE_EXHAUSTED, or an error whose text mentions either.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == KindRateLimited
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Status == "RESOURCE_EXHAUSTED"
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code == 429 || apiErrPtr.Status == "RESOURCE_EXHAUSTED"
	}
	if IsUnreachable(err) {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

// IsUnreachable reports whether err is a refused or failed connection to
// the backend.
func IsUnreachable(err error) bool {
	if err == nil {
		return false
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == KindBackendUnreachable
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host")
}

// Classify converts a failed call of op into a terminal *Error. A rate
// limit at this point means the retry budget is spent, so it becomes
// KindQuotaExceeded. Already-classified errors pass through unchanged
// (except that a rate limit is escalated the same way).
func Classify(op string, err error) *Error {
	if err == nil {
		return nil
	}

	var ce *Error
	if errors.As(err, &ce) && ce.Kind != KindRateLimited {
		return ce
	}

	switch {
	case IsUnreachable(err):
		log.Error().Err(err).Str("op", op).Msg("Local model server unreachable")
		return &Error{Kind: KindBackendUnreachable, Op: op, Message: msgUnreachable, Err: err}

	case IsRateLimit(err):
		log.Error().Err(err).Str("op", op).Msg("Rate limit persisted after retries")
		return &Error{Kind: KindQuotaExceeded, Op: op, Message: msgQuotaExceeded, Err: err}

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindCommunicationFailure, Op: op, Message: fmt.Sprintf(msgCommunication, op), Err: err}

	default:
		log.Error().Err(err).Str("op", op).Msg("Model call failed")
		return &Error{Kind: KindCommunicationFailure, Op: op, Message: fmt.Sprintf(msgCommunication, op), Err: err}
	}
}
