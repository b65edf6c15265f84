package evaluation

import (
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"

	"github.com/de-tools/compliance-engine/pkg/models/domain"
)

const (
	unexpectedMessageType = "Unexpected message type"
	unexpectedAPIError    = "Unexpected error while completing API request"
	customerAPIError      = "Customer error while making API request"
	unexpectedError       = "Unexpected error during the evaluation"
)

// Classify turns an invocation failure into the response reported to the
// scheduler. Internal errors carry the InternalError code and are retried;
// customer errors keep their code and a message safe to show the operator.
func Classify(err error) *domain.ErrorResponse {
	var ruleErr *domain.RuleError
	if errors.As(err, &ruleErr) {
		if ruleErr.Kind == domain.KindCustomer {
			return &domain.ErrorResponse{
				InternalErrorMessage: ruleErr.InternalMessage,
				InternalErrorDetails: err.Error(),
				CustomerErrorCode:    ruleErr.Code,
				CustomerErrorMessage: ruleErr.CustomerMessage,
			}
		}
		return domain.NewInternalErrorResponse(ruleErr.InternalMessage, err.Error())
	}

	if errors.Is(err, domain.ErrUnsupportedMessageType) {
		return domain.NewInternalErrorResponse(unexpectedMessageType, err.Error())
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if isInternal(err, apiErr) {
			return domain.NewInternalErrorResponse(unexpectedAPIError, err.Error())
		}
		return &domain.ErrorResponse{
			InternalErrorMessage: customerAPIError,
			InternalErrorDetails: err.Error(),
			CustomerErrorCode:    apiErr.ErrorCode(),
			CustomerErrorMessage: apiErr.ErrorMessage(),
		}
	}

	return domain.NewInternalErrorResponse(unexpectedError, err.Error())
}

func isInternal(err error, apiErr smithy.APIError) bool {
	code := apiErr.ErrorCode()
	if strings.HasPrefix(code, "5") ||
		strings.Contains(code, "InternalError") ||
		strings.Contains(code, "ServiceError") {
		return true
	}
	if apiErr.ErrorFault() == smithy.FaultServer {
		return true
	}
	if retry.IsErrorThrottles(retry.DefaultThrottles).IsErrorThrottle(err) == aws.TrueTernary {
		return true
	}
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() >= 500
}
