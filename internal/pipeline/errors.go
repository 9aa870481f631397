package pipeline

import "fmt"

// ErrorKind identifies which pipeline step failed. Handlers map kinds
// to HTTP statuses; everything downstream of generation logs the kind
// for reconciliation.
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindQuotaExhausted ErrorKind = "quota_exhausted"
	KindGeneration     ErrorKind = "generation"
	KindComposition    ErrorKind = "composition"
	KindStorage        ErrorKind = "storage"
	KindPersistence    ErrorKind = "persistence"
	KindLedger         ErrorKind = "ledger"
)

// Error wraps a step failure with the step's kind so callers can branch
// without string matching.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrapErr(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func errf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}
