package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	approvaldomain "github.com/smallbiznis/creatorpay/internal/approval/domain"
	auditdomain "github.com/smallbiznis/creatorpay/internal/audit/domain"
	authdomain "github.com/smallbiznis/creatorpay/internal/auth/domain"
	"github.com/smallbiznis/creatorpay/internal/authorization"
	frauddomain "github.com/smallbiznis/creatorpay/internal/fraud/domain"
	ledgerdomain "github.com/smallbiznis/creatorpay/internal/ledger/domain"
	payoutdomain "github.com/smallbiznis/creatorpay/internal/payout/domain"
	submissiondomain "github.com/smallbiznis/creatorpay/internal/submission/domain"
	"github.com/smallbiznis/creatorpay/pkg/db/pagination"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, body := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, body)
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

// badRequestCodes are domain rejections reported as 400 with their own code.
var badRequestCodes = []struct {
	err     error
	message string
}{
	{payoutdomain.ErrNoPendingBalance, "no pending balance to pay out"},
	{payoutdomain.ErrInvalidState, "payout request is not in a valid state for this action"},
	{payoutdomain.ErrInvalidEvidence, "invalid evidence"},
	{payoutdomain.ErrInvalidRequest, "invalid request"},
	{frauddomain.ErrInvalidEvidence, "invalid evidence"},
	{approvaldomain.ErrDuplicateApproval, "an approval or vote already exists"},
	{approvaldomain.ErrInvalidVote, "vote must be approve or reject"},
	{submissiondomain.ErrMissingPostedURL, "posted url is required"},
	{submissiondomain.ErrInvalidTransition, "status transition is not allowed"},
	{submissiondomain.ErrInvalidStatus, "invalid status"},
	{submissiondomain.ErrInvalidState, "submission can no longer be edited"},
	{submissiondomain.ErrInvalidCaption, "invalid caption"},
	{pagination.ErrInvalidPageToken, "invalid page token"},
	{auditdomain.ErrInvalidPageToken, "invalid page token"},
	{auditdomain.ErrInvalidRange, "until must be after since"},
	{auditdomain.ErrInvalidTarget, "target is required"},
	{ErrInvalidRequest, "invalid request"},
}

func mapError(err error) (int, errorResponse) {
	if err == nil {
		return http.StatusInternalServerError, errorResponse{
			Error:   "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorResponse{
			Error:   "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	for _, candidate := range badRequestCodes {
		if errors.Is(err, candidate.err) {
			return http.StatusBadRequest, errorResponse{
				Error:   candidate.err.Error(),
				Message: candidate.message,
			}
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidToken),
		errors.Is(err, authdomain.ErrTokenExpired):
		return http.StatusUnauthorized, errorResponse{
			Error:   "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, authorization.ErrInvalidActor),
		errors.Is(err, payoutdomain.ErrForbidden),
		errors.Is(err, submissiondomain.ErrForbidden):
		return http.StatusForbidden, errorResponse{
			Error:   "forbidden",
			Message: "forbidden",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorResponse{
			Error:   "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, payoutdomain.ErrConflict),
		errors.Is(err, ledgerdomain.ErrEntriesConflict):
		return http.StatusConflict, errorResponse{
			Error:   "conflict",
			Message: "another payout request is in progress",
		}
	case errors.Is(err, payoutdomain.ErrRateLimited):
		return http.StatusTooManyRequests, errorResponse{
			Error:   "rate_limited",
			Message: "too many payout requests",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorResponse{
			Error:   "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorResponse{
			Error:   "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, payoutdomain.ErrNotFound),
		errors.Is(err, submissiondomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

// classifyErrorForLog feeds the request logger's error_type/error_code fields.
func classifyErrorForLog(err error) (string, string) {
	status, body := mapError(err)
	switch {
	case status >= http.StatusInternalServerError:
		return "internal", body.Error
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "auth", body.Error
	default:
		return "client", body.Error
	}
}
