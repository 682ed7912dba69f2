package freight

import "errors"

// Sentinel failures for rate quoting. Callers branch with errors.Is; the
// user-facing message travels on QuoteError, never the internal cause.
var (
	ErrInvalidDestination   = errors.New("freight: invalid destination postal code")
	ErrAuthenticationFailed = errors.New("freight: carrier authentication failed")
	ErrInvalidRequest       = errors.New("freight: carrier rejected the rate request")
	ErrRateLimited          = errors.New("freight: carrier rate limited")
	ErrTimeout              = errors.New("freight: carrier request timed out")
	ErrNoOptionsAvailable   = errors.New("freight: no shipping options available")
	ErrUnknown              = errors.New("freight: carrier request failed")
)

// QuoteError wraps a sentinel with a user-safe message and the internal
// cause. The cause is for logs only.
type QuoteError struct {
	Sentinel    error
	UserMessage string
	Cause       error
}

// Error implements the error interface.
func (e *QuoteError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return e.Sentinel.Error() + ": " + e.Cause.Error()
	}
	return e.Sentinel.Error()
}

// Unwrap exposes both the sentinel and the cause to errors.Is/As.
func (e *QuoteError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Sentinel, e.Cause}
	}
	return []error{e.Sentinel}
}

func newQuoteError(sentinel error, cause error) *QuoteError {
	return &QuoteError{Sentinel: sentinel, UserMessage: userMessageFor(sentinel), Cause: cause}
}

func userMessageFor(sentinel error) string {
	switch sentinel {
	case ErrInvalidDestination:
		return "CEP de destino inválido. Verifique e tente novamente."
	case ErrInvalidRequest:
		return "Não foi possível calcular o frete para este endereço."
	case ErrRateLimited:
		return "Muitas consultas de frete. Aguarde alguns instantes e tente novamente."
	case ErrTimeout:
		return "A consulta de frete demorou demais. Tente novamente."
	case ErrNoOptionsAvailable:
		return "Nenhuma opção de frete disponível para este CEP. Verifique o endereço ou fale com o suporte."
	case ErrAuthenticationFailed:
		// config/credential problem; the real cause goes to operators via logs
		return "Cálculo de frete temporariamente indisponível."
	default:
		return "Cálculo de frete indisponível no momento. Tente novamente."
	}
}

// UserMessage extracts the user-safe message from a quote failure.
func UserMessage(err error) string {
	var qe *QuoteError
	if errors.As(err, &qe) && qe.UserMessage != "" {
		return qe.UserMessage
	}
	return userMessageFor(ErrUnknown)
}
