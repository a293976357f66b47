// Package bedrock adapts the AWS Bedrock control-plane and runtime APIs to
// the catalog.ControlPlane and model.Invoker contracts.
package bedrock

import (
	"context"
	"errors"

	"github.com/aws/smithy-go"

	apperrors "github.com/Bestehorn/LLMManager-sub002/internal/errors"
)

// AWS error codes with a known failure class.
const (
	codeThrottling         = "ThrottlingException"
	codeServiceUnavailable = "ServiceUnavailableException"
	codeInternalServer     = "InternalServerException"
	codeModelNotReady      = "ModelNotReadyException"
	codeModelTimeout       = "ModelTimeoutException"
	codeValidation         = "ValidationException"
	codeAccessDenied       = "AccessDeniedException"
	codeResourceNotFound   = "ResourceNotFoundException"
	codeModelError         = "ModelErrorException"
	codeQuotaExceeded      = "ServiceQuotaExceededException"
)

// mapError converts an SDK error into an AppError carrying the category the
// classifier and the fetch retry policy act on. Validation errors become
// non-retryable User errors; their message decides the finer outcome.
// Transport errors without an API code are treated as temporary.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return apperrors.NewBuilder(apperrors.CodeInvokeFailed, op+" failed").
			Category(apperrors.CategoryTemporary).
			Wrap(err).
			Build()
	}

	msg := apiErr.ErrorMessage()
	if msg == "" {
		msg = apiErr.Error()
	}

	switch apiErr.ErrorCode() {
	case codeThrottling, codeQuotaExceeded:
		return apperrors.NewBuilder(apperrors.CodeThrottled, msg).
			Category(apperrors.CategoryRateLimit).
			Wrap(err).
			Build()
	case codeServiceUnavailable, codeInternalServer:
		return apperrors.NewBuilder(apperrors.CodeServiceUnavailable, msg).
			Category(apperrors.CategoryTemporary).
			Wrap(err).
			Build()
	case codeModelNotReady:
		return apperrors.NewBuilder(apperrors.CodeModelNotReady, msg).
			Category(apperrors.CategoryTemporary).
			Wrap(err).
			Build()
	case codeModelTimeout:
		return apperrors.NewBuilder(apperrors.CodeModelTimeout, msg).
			Category(apperrors.CategoryTemporary).
			Wrap(err).
			Build()
	case codeAccessDenied:
		return apperrors.NewBuilder(apperrors.CodeAccessDenied, msg).
			Category(apperrors.CategoryPermanent).
			WithSuggestion("Request model access in the Bedrock console for this region").
			Wrap(err).
			Build()
	case codeResourceNotFound:
		return apperrors.NewBuilder(apperrors.CodeModelNotFound, msg).
			Category(apperrors.CategoryPermanent).
			Wrap(err).
			Build()
	case codeValidation, codeModelError:
		return apperrors.NewBuilder(apperrors.CodeValidation, msg).
			Category(apperrors.CategoryUser).
			Wrap(err).
			Build()
	}

	return apperrors.NewBuilder(apperrors.CodeInvokeFailed, op+": "+msg).
		Category(apperrors.CategoryPermanent).
		Wrap(err).
		Build()
}
