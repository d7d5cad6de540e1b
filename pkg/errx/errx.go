package errx

import (
	"fmt"
	"net/http"
)

// Type clasifica un error para decidir su tratamiento (HTTP status, retry, logging)
type Type string

const (
	TypeValidation    Type = "VALIDATION"
	TypeNotFound      Type = "NOT_FOUND"
	TypeConflict      Type = "CONFLICT"
	TypeAuthorization Type = "AUTHORIZATION"
	TypeBusiness      Type = "BUSINESS"
	TypeExternal      Type = "EXTERNAL"
	TypeUnavailable   Type = "UNAVAILABLE"
	TypeTimeout       Type = "TIMEOUT"
	TypeInternal      Type = "INTERNAL"
)

// Error es el error estructurado que viaja por toda la aplicación
type Error struct {
	Code       string         `json:"code"`
	Type       Type           `json:"type"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"status"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail agrega contexto al error; retorna el mismo error para encadenar
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithError adjunta el error subyacente
func (e *Error) WithError(err error) *Error {
	e.Err = err
	return e
}

// Is permite comparar por código con errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// IsType reporta si err es un *Error del tipo dado
func IsType(err error, t Type) bool {
	e, ok := err.(*Error)
	return ok && e.Type == t
}

// IsCode reporta si err es un *Error con el código dado
func IsCode(err error, code ErrorCode) bool {
	e, ok := err.(*Error)
	return ok && e.Code == string(code)
}

// New crea un error ad-hoc sin registro
func New(message string, errType Type) *Error {
	return &Error{
		Code:       string(errType),
		Type:       errType,
		Message:    message,
		HTTPStatus: defaultStatus(errType),
	}
}

// Wrap envuelve un error externo (driver, SDK) en el taxonomy de la aplicación
func Wrap(err error, message string, errType Type) *Error {
	return &Error{
		Code:       string(errType),
		Type:       errType,
		Message:    message,
		HTTPStatus: defaultStatus(errType),
		Err:        err,
	}
}

func defaultStatus(t Type) int {
	switch t {
	case TypeValidation:
		return http.StatusBadRequest
	case TypeNotFound:
		return http.StatusNotFound
	case TypeConflict:
		return http.StatusConflict
	case TypeAuthorization:
		return http.StatusUnauthorized
	case TypeBusiness:
		return http.StatusUnprocessableEntity
	case TypeExternal, TypeUnavailable:
		return http.StatusServiceUnavailable
	case TypeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ============================================================================
// Registry - errores registrados por módulo
// ============================================================================

// ErrorCode identifica un error registrado (ej. "MEMORY:NOT_CONNECTED")
type ErrorCode string

type registration struct {
	errType    Type
	httpStatus int
	message    string
}

// Registry agrupa los errores de un módulo bajo un prefijo común
type Registry struct {
	prefix string
	codes  map[ErrorCode]registration
}

// NewRegistry crea un registro de errores para un módulo
func NewRegistry(prefix string) *Registry {
	return &Registry{
		prefix: prefix,
		codes:  make(map[ErrorCode]registration),
	}
}

// Register registra un código de error y retorna su identificador
func (r *Registry) Register(code string, errType Type, httpStatus int, message string) ErrorCode {
	full := ErrorCode(r.prefix + ":" + code)
	r.codes[full] = registration{
		errType:    errType,
		httpStatus: httpStatus,
		message:    message,
	}
	return full
}

// New instancia un error registrado
func (r *Registry) New(code ErrorCode) *Error {
	reg, ok := r.codes[code]
	if !ok {
		return &Error{
			Code:       string(code),
			Type:       TypeInternal,
			Message:    "unregistered error code",
			HTTPStatus: http.StatusInternalServerError,
		}
	}
	return &Error{
		Code:       string(code),
		Type:       reg.errType,
		Message:    reg.message,
		HTTPStatus: reg.httpStatus,
	}
}

// NewWithMessage instancia un error registrado con un mensaje específico
func (r *Registry) NewWithMessage(code ErrorCode, message string) *Error {
	e := r.New(code)
	e.Message = message
	return e
}
