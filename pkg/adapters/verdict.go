package adapters

import (
	"github.com/de-tools/compliance-engine/pkg/models/api"
	"github.com/de-tools/compliance-engine/pkg/models/domain"
)

func MapVerdictDomainToApi(v domain.Verdict) api.Evaluation {
	return api.Evaluation{
		ComplianceResourceType: v.ResourceType,
		ComplianceResourceId:   v.ResourceID,
		ComplianceType:         string(v.ComplianceType),
		Annotation:             v.Annotation,
		OrderingTimestamp:      v.OrderingTimestamp,
	}
}

func MapVerdictsDomainToApi(verdicts []domain.Verdict) []api.Evaluation {
	res := make([]api.Evaluation, 0, len(verdicts))
	for _, v := range verdicts {
		res = append(res, MapVerdictDomainToApi(v))
	}
	return res
}

func MapErrorResponseDomainToApi(r *domain.ErrorResponse) *api.ErrorResponse {
	if r == nil {
		return nil
	}
	return &api.ErrorResponse{
		InternalErrorMessage: r.InternalErrorMessage,
		InternalErrorDetails: r.InternalErrorDetails,
		CustomerErrorCode:    r.CustomerErrorCode,
		CustomerErrorMessage: r.CustomerErrorMessage,
	}
}
