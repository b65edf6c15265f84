package adapters

import (
	"github.com/de-tools/compliance-engine/pkg/models/api"
	"github.com/de-tools/compliance-engine/pkg/models/store"
)

func MapMirrorStoreToApi(m *store.Mirror) api.Mirror {
	return api.Mirror{
		AccountId:    m.AccountID,
		RoleArn:      m.RoleARN,
		Region:       m.Region,
		CreatedAt:    m.CreatedAt,
		LastSyncedAt: m.LastSyncedAt,
		Records:      m.Records,
		Error:        m.Error,
	}
}

func MapMirrorsStoreToApi(mirrors []*store.Mirror) []api.Mirror {
	result := make([]api.Mirror, 0, len(mirrors))
	for _, m := range mirrors {
		result = append(result, MapMirrorStoreToApi(m))
	}
	return result
}
