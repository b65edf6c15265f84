package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/de-tools/compliance-engine/pkg/models/api"
	"github.com/de-tools/compliance-engine/pkg/models/store"
)

type mockEvents struct {
	mock.Mock
}

func (m *mockEvents) List(ctx context.Context, filter store.RecordFilter) ([]store.ComplianceRecord, error) {
	args := m.Called(ctx, filter)
	records, _ := args.Get(0).([]store.ComplianceRecord)
	return records, args.Error(1)
}

func (m *mockEvents) Stats(ctx context.Context, filter store.RecordFilter) (*store.RecordStats, error) {
	args := m.Called(ctx, filter)
	stats, _ := args.Get(0).(*store.RecordStats)
	return stats, args.Error(1)
}

type mockAudits struct {
	mock.Mock
}

func (m *mockAudits) ListRuns(ctx context.Context, accounts []string, limit int) ([]store.AuditRun, error) {
	args := m.Called(ctx, accounts, limit)
	runs, _ := args.Get(0).([]store.AuditRun)
	return runs, args.Error(1)
}

func TestListEvents(t *testing.T) {
	since := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name           string
		query          string
		setupMock      func(*mockEvents)
		expectedStatus int
		expectedBody   []api.ComplianceEvent
	}{
		{
			name:  "filtered listing",
			query: "?rule=ROOT_MFA_ENABLED&account=123456789012&since=2025-06-01T00:00:00Z&limit=5",
			setupMock: func(m *mockEvents) {
				m.On("List", mock.Anything, store.RecordFilter{
					RuleName:  "ROOT_MFA_ENABLED",
					AccountID: "123456789012",
					Since:     &since,
					Limit:     5,
				}).Return([]store.ComplianceRecord{{
					ConfigRuleName: "ROOT_MFA_ENABLED",
					AccountID:      "123456789012",
					ResourceType:   "AWS::::Account",
					ResourceID:     "123456789012",
					ComplianceType: "COMPLIANT",
					Annotation:     "None",
				}}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody: []api.ComplianceEvent{{
				ConfigRuleName: "ROOT_MFA_ENABLED",
				AccountId:      "123456789012",
				ResourceType:   "AWS::::Account",
				ResourceId:     "123456789012",
				ComplianceType: "COMPLIANT",
				Annotation:     "None",
			}},
		},
		{
			name:  "empty store",
			query: "",
			setupMock: func(m *mockEvents) {
				m.On("List", mock.Anything, store.RecordFilter{Limit: defaultLimit}).
					Return([]store.ComplianceRecord{}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   []api.ComplianceEvent{},
		},
		{
			name:           "invalid limit",
			query:          "?limit=ten",
			setupMock:      func(*mockEvents) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:  "store failure",
			query: "",
			setupMock: func(m *mockEvents) {
				m.On("List", mock.Anything, mock.Anything).Return(nil, errors.New("db closed"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := new(mockEvents)
			tt.setupMock(events)
			h := NewHandler(events, new(mockAudits))

			rec := httptest.NewRecorder()
			h.ListEvents(rec, httptest.NewRequest(http.MethodGet, "/events"+tt.query, nil))

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedBody != nil {
				var response []api.ComplianceEvent
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
				assert.Equal(t, tt.expectedBody, response)
			}
			events.AssertExpectations(t)
		})
	}
}

func TestEventStats(t *testing.T) {
	// Given
	last := time.Date(2025, 6, 2, 3, 4, 5, 0, time.UTC)
	events := new(mockEvents)
	events.On("Stats", mock.Anything, store.RecordFilter{RuleName: "r", Limit: defaultLimit}).
		Return(&store.RecordStats{RecordsCount: 42, LastRecordedTime: &last}, nil)
	h := NewHandler(events, new(mockAudits))

	// When
	rec := httptest.NewRecorder()
	h.EventStats(rec, httptest.NewRequest(http.MethodGet, "/events/stats?rule=r", nil))

	// Then
	assert.Equal(t, http.StatusOK, rec.Code)
	var response api.EventStats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, int64(42), response.Records)
	require.NotNil(t, response.LastRecordedTime)
	assert.True(t, last.Equal(*response.LastRecordedTime))
}

func TestListAudits(t *testing.T) {
	// Given
	started := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	audits := new(mockAudits)
	audits.On("ListRuns", mock.Anything, []string{"111111111111", "222222222222"}, 10).
		Return([]store.AuditRun{{
			AccountID:      "111111111111",
			ComplianceType: "NON_COMPLIANT",
			Annotation:     "drift",
			RulesAudited:   3,
			Records:        12,
			StartedAt:      started,
			FinishedAt:     started.Add(1500 * time.Millisecond),
		}}, nil)
	h := NewHandler(new(mockEvents), audits)

	// When
	rec := httptest.NewRecorder()
	h.ListAudits(rec, httptest.NewRequest(http.MethodGet, "/audits?accounts=111111111111,222222222222&limit=10", nil))

	// Then
	assert.Equal(t, http.StatusOK, rec.Code)
	var response []api.AuditRun
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	require.Len(t, response, 1)
	assert.Equal(t, "111111111111", response[0].AccountId)
	assert.Equal(t, int64(1500), response[0].DurationMs)
	assert.Equal(t, 12, response[0].Records)
	audits.AssertExpectations(t)
}
