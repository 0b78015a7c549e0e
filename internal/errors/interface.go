package errors

// ErrorCode identifies a failure class. Codes are stable strings so they can
// be logged as the error_code field and returned by the HTTP API.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Error is a coded error. Message and data are optional; a wrapped cause is
// reachable through Unwrap.
type Error interface {
	error
	Code() ErrorCode
	WithMessage(msg string) Error
	WithData(data any) Error
	GetData() any
	Unwrap() error
}

// Factory creates coded errors. Packages take a local
// errFactory := errors.New() and build every error through it.
type Factory interface {
	New(code ErrorCode) Error
	Wrap(code ErrorCode, err error) Error
	WithMessage(code ErrorCode, msg string) Error
	WithData(code ErrorCode, data any) Error
}
