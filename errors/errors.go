package errors

import (
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/gofiber/fiber/v3"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

/* ========================================================================
 * Compia error taxonomy
 * ========================================================================
 * Business error codes, wrapping helpers and transport conversions.
 * Codes are matched with errors.Is; transports never see causes.
 * ======================================================================== */

// ErrorCode is a business error code.
type ErrorCode int

const (
	// generic (1xxx)
	ErrCodeUnknown          ErrorCode = 1000
	ErrCodeInvalidArgument  ErrorCode = 1001
	ErrCodeNotFound         ErrorCode = 1002
	ErrCodeAlreadyExists    ErrorCode = 1003
	ErrCodePermissionDenied ErrorCode = 1004
	ErrCodeUnauthenticated  ErrorCode = 1005
	ErrCodeInternal         ErrorCode = 1006
	ErrCodeUnavailable      ErrorCode = 1007
	ErrCodeTimeout          ErrorCode = 1008
	ErrCodeCanceled         ErrorCode = 1009

	// tenancy and authorization (2xxx)
	ErrCodeAuthorizationDenied    ErrorCode = 2001
	ErrCodeTenantInjection        ErrorCode = 2002
	ErrCodeHierarchyIntegrity     ErrorCode = 2003
	ErrCodeStoreUnavailable       ErrorCode = 2004
	ErrCodeOrganizationUnassigned ErrorCode = 2005
)

// kinds are the stable, client-facing names of each code.
var kinds = map[ErrorCode]string{
	ErrCodeUnknown:                "Unknown",
	ErrCodeInvalidArgument:        "InvalidArgument",
	ErrCodeNotFound:               "NotFound",
	ErrCodeAlreadyExists:          "AlreadyExists",
	ErrCodePermissionDenied:       "AuthorizationDenied",
	ErrCodeUnauthenticated:        "AuthenticationRequired",
	ErrCodeInternal:               "Internal",
	ErrCodeUnavailable:            "Unavailable",
	ErrCodeTimeout:                "Timeout",
	ErrCodeCanceled:               "Canceled",
	ErrCodeAuthorizationDenied:    "AuthorizationDenied",
	ErrCodeTenantInjection:        "TenantInjectionAttempt",
	ErrCodeHierarchyIntegrity:     "HierarchyIntegrityFault",
	ErrCodeStoreUnavailable:       "StoreUnavailable",
	ErrCodeOrganizationUnassigned: "OrganizationUnassigned",
}

// Kind returns the client-facing name of the code.
func (c ErrorCode) Kind() string {
	if k, ok := kinds[c]; ok {
		return k
	}
	return kinds[ErrCodeUnknown]
}

// ========================================================================
// BizError
// ========================================================================

// BizError is a business error. Details are rendered to clients and must
// never carry tenant data or store messages.
type BizError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Details map[string]any
}

func (e *BizError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Is matches by business code.
func (e *BizError) Is(target error) bool {
	t, ok := target.(*BizError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func (e *BizError) Unwrap() error {
	return e.Cause
}

// WithDetail returns a copy of e carrying an extra client-facing detail.
func (e *BizError) WithDetail(key string, value any) *BizError {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	maps.Copy(cp.Details, e.Details)
	cp.Details[key] = value
	return &cp
}

// ========================================================================
// Constructors
// ========================================================================

func New(code ErrorCode, message string) *BizError {
	return &BizError{Code: code, Message: message}
}

func Wrap(code ErrorCode, message string, cause error) *BizError {
	return &BizError{Code: code, Message: message, Cause: cause}
}

func Wrapf(code ErrorCode, cause error, format string, args ...any) *BizError {
	return &BizError{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// AuthorizationDenied builds a 403 that lists the roles that would have passed.
func AuthorizationDenied(message string, requiredRoles []string) *BizError {
	err := New(ErrCodeAuthorizationDenied, message)
	if len(requiredRoles) > 0 {
		err = err.WithDetail("required_roles", append([]string(nil), requiredRoles...))
	}
	return err
}

// ========================================================================
// Sentinels
// ========================================================================

var (
	ErrInvalidArgument  = New(ErrCodeInvalidArgument, "invalid argument")
	ErrNotFound         = New(ErrCodeNotFound, "resource not found")
	ErrAlreadyExists    = New(ErrCodeAlreadyExists, "resource already exists")
	ErrPermissionDenied = New(ErrCodePermissionDenied, "permission denied")
	ErrUnauthenticated  = New(ErrCodeUnauthenticated, "authentication required")
	ErrInternal         = New(ErrCodeInternal, "internal error")
	ErrUnavailable      = New(ErrCodeUnavailable, "service unavailable")
	ErrTimeout          = New(ErrCodeTimeout, "timeout")
	ErrCanceled         = New(ErrCodeCanceled, "canceled")

	ErrAuthenticationRequired = ErrUnauthenticated
	ErrAuthorizationDenied    = New(ErrCodeAuthorizationDenied, "authorization denied")
	ErrTenantInjection        = New(ErrCodeTenantInjection, "organization outside caller scope")
	ErrHierarchyIntegrity     = New(ErrCodeHierarchyIntegrity, "organization hierarchy integrity fault")
	ErrStoreUnavailable       = New(ErrCodeStoreUnavailable, "store unavailable")
	ErrOrganizationUnassigned = New(ErrCodeOrganizationUnassigned, "organization assignment required")
)

// ========================================================================
// Helpers
// ========================================================================

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

// Code returns the outermost business code, or ErrCodeUnknown.
func Code(err error) ErrorCode {
	var bizErr *BizError
	if errors.As(err, &bizErr) {
		return bizErr.Code
	}
	return ErrCodeUnknown
}

func IsNotFound(err error) bool {
	return Code(err) == ErrCodeNotFound
}

func AsBizError(err error) (*BizError, bool) {
	if err == nil {
		return nil, false
	}
	var bizErr *BizError
	if errors.As(err, &bizErr) {
		return bizErr, true
	}
	return nil, false
}

// ========================================================================
// gRPC
// ========================================================================

var errorCodeToGRPCCode = map[ErrorCode]codes.Code{
	ErrCodeUnknown:                codes.Unknown,
	ErrCodeInvalidArgument:        codes.InvalidArgument,
	ErrCodeNotFound:               codes.NotFound,
	ErrCodeAlreadyExists:          codes.AlreadyExists,
	ErrCodePermissionDenied:       codes.PermissionDenied,
	ErrCodeUnauthenticated:        codes.Unauthenticated,
	ErrCodeInternal:               codes.Internal,
	ErrCodeUnavailable:            codes.Unavailable,
	ErrCodeTimeout:                codes.DeadlineExceeded,
	ErrCodeCanceled:               codes.Canceled,
	ErrCodeAuthorizationDenied:    codes.PermissionDenied,
	ErrCodeTenantInjection:        codes.PermissionDenied,
	ErrCodeHierarchyIntegrity:     codes.Internal,
	ErrCodeStoreUnavailable:       codes.Unavailable,
	ErrCodeOrganizationUnassigned: codes.FailedPrecondition,
}

// ToGRPCError converts err for downstream gRPC callers.
func ToGRPCError(err error) error {
	if err == nil {
		return nil
	}

	var bizErr *BizError
	if errors.As(err, &bizErr) {
		grpcCode, ok := errorCodeToGRPCCode[bizErr.Code]
		if !ok {
			grpcCode = codes.Unknown
		}
		return status.Error(grpcCode, bizErr.Message)
	}

	return status.Error(codes.Internal, "internal error")
}

func FromGRPCError(err error) *BizError {
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok {
		return Wrap(ErrCodeUnknown, "unknown error", err)
	}

	var code ErrorCode
	switch st.Code() {
	case codes.InvalidArgument:
		code = ErrCodeInvalidArgument
	case codes.NotFound:
		code = ErrCodeNotFound
	case codes.AlreadyExists:
		code = ErrCodeAlreadyExists
	case codes.PermissionDenied:
		code = ErrCodeAuthorizationDenied
	case codes.Unauthenticated:
		code = ErrCodeUnauthenticated
	case codes.FailedPrecondition:
		code = ErrCodeOrganizationUnassigned
	case codes.Unavailable:
		code = ErrCodeUnavailable
	case codes.DeadlineExceeded:
		code = ErrCodeTimeout
	case codes.Canceled:
		code = ErrCodeCanceled
	default:
		code = ErrCodeInternal
	}

	return New(code, st.Message())
}

// ========================================================================
// HTTP
// ========================================================================

var httpStatusCode = map[ErrorCode]int{
	ErrCodeUnknown:                500,
	ErrCodeInvalidArgument:        400,
	ErrCodeNotFound:               404,
	ErrCodeAlreadyExists:          409,
	ErrCodePermissionDenied:       403,
	ErrCodeUnauthenticated:        401,
	ErrCodeInternal:               500,
	ErrCodeUnavailable:            503,
	ErrCodeTimeout:                504,
	ErrCodeCanceled:               499,
	ErrCodeAuthorizationDenied:    403,
	ErrCodeTenantInjection:        403,
	ErrCodeHierarchyIntegrity:     500,
	ErrCodeStoreUnavailable:       503,
	ErrCodeOrganizationUnassigned: 403,
}

var (
	httpStatusMu         sync.RWMutex
	httpStatusOverrides  = make(map[ErrorCode]int)
	httpStatusResolverFn func(ErrorCode) (int, bool)
)

// RegisterHTTPStatus overrides the HTTP status of a code.
func RegisterHTTPStatus(code ErrorCode, status int) {
	httpStatusMu.Lock()
	defer httpStatusMu.Unlock()
	httpStatusOverrides[code] = status
}

// SetHTTPStatusResolver installs a resolver consulted after overrides.
// Returning (status, true) wins; otherwise the default table applies.
func SetHTTPStatusResolver(resolver func(ErrorCode) (int, bool)) {
	httpStatusMu.Lock()
	defer httpStatusMu.Unlock()
	httpStatusResolverFn = resolver
}

func resolveHTTPStatus(code ErrorCode) (int, bool) {
	httpStatusMu.RLock()
	if status, ok := httpStatusOverrides[code]; ok {
		httpStatusMu.RUnlock()
		return status, true
	}
	resolver := httpStatusResolverFn
	httpStatusMu.RUnlock()

	if resolver != nil {
		if status, ok := resolver(code); ok {
			return status, true
		}
	}
	return 0, false
}

// HTTPStatus returns the HTTP status for a code.
func HTTPStatus(code ErrorCode) int {
	if status, ok := resolveHTTPStatus(code); ok {
		return status
	}
	if status, ok := httpStatusCode[code]; ok {
		return status
	}
	return 500
}

// StatusOf is the HTTP status err will be rendered with. A plain
// *fiber.Error keeps its own status.
func StatusOf(err error) int {
	if err == nil {
		return fiber.StatusOK
	}
	if bizErr, ok := AsBizError(err); ok {
		return HTTPStatus(bizErr.Code)
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}

// ToHTTPResponse renders err as a status and a JSON body of
// {code, kind, msg, details?}. Non-business errors become an opaque 500.
func ToHTTPResponse(err error) (int, fiber.Map) {
	if err == nil {
		return 200, fiber.Map{"code": 0, "msg": "success"}
	}

	var bizErr *BizError
	if errors.As(err, &bizErr) {
		body := fiber.Map{
			"code": int(bizErr.Code),
			"kind": bizErr.Code.Kind(),
			"msg":  bizErr.Message,
		}
		if len(bizErr.Details) > 0 {
			body["details"] = bizErr.Details
		}
		return HTTPStatus(bizErr.Code), body
	}

	return 500, fiber.Map{
		"code": 500,
		"kind": ErrCodeInternal.Kind(),
		"msg":  "internal server error",
	}
}
