package terminal

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/de-tools/compliance-engine/pkg/models/domain"
	"github.com/de-tools/compliance-engine/pkg/runtime/terminal/commands"
	"github.com/de-tools/compliance-engine/pkg/services/evaluation"
	"github.com/de-tools/compliance-engine/pkg/services/mirror"
	"github.com/de-tools/compliance-engine/pkg/services/submit"
	"github.com/de-tools/compliance-engine/pkg/store/duckdb"
	"github.com/de-tools/compliance-engine/pkg/store/duckdb/audit"
	"github.com/de-tools/compliance-engine/pkg/store/duckdb/events"
)

type mockInvoker struct {
	mock.Mock
}

func (m *mockInvoker) Invoke(ctx context.Context, ruleName string, event domain.TriggerEvent) (*evaluation.Response, error) {
	args := m.Called(ctx, ruleName, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*evaluation.Response), args.Error(1)
}

func (m *mockInvoker) Rules() []string {
	return m.Called().Get(0).([]string)
}

// newCLI opens a fresh connection to a database file shared by every command
// of the test.
func newCLI(t *testing.T, invoker *mockInvoker) (*CLI, *bytes.Buffer) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "compliance.db")
	var out bytes.Buffer
	cli := NewCLI(Options{
		Output: &out,
		Open: func(ctx context.Context, configPath string) (*commands.Runtime, error) {
			db, err := duckdb.NewDB(duckdb.Settings{DbPath: dbPath})
			if err != nil {
				return nil, err
			}
			eventStore, err := events.NewStore(db)
			if err != nil {
				return nil, err
			}
			auditStore, err := audit.NewStore(db)
			if err != nil {
				return nil, err
			}
			return &commands.Runtime{Engine: invoker, Events: eventStore, Audits: auditStore, DB: db}, nil
		},
	})
	return cli, &out
}

func TestCLI_Rules(t *testing.T) {
	// Given
	invoker := new(mockInvoker)
	invoker.On("Rules").Return([]string{"GUARDDUTY_ENABLED_CENTRALIZED", "ROOT_MFA_ENABLED"})
	cli, out := newCLI(t, invoker)

	// When
	err := cli.ExecuteContext(context.Background(), "rules")

	// Then
	require.NoError(t, err)
	assert.Equal(t, "Registered rules:\nGUARDDUTY_ENABLED_CENTRALIZED\nROOT_MFA_ENABLED\n", out.String())
}

func TestCLI_EvaluateInTestMode(t *testing.T) {
	// Given
	eventPath := filepath.Join(t.TempDir(), "event.json")
	require.NoError(t, os.WriteFile(eventPath, []byte(`{
		"invokingEvent": "{\"messageType\":\"ScheduledNotification\"}",
		"resultToken": "real-token",
		"accountId": "123456789012"
	}`), 0o600))

	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	invoker := new(mockInvoker)
	invoker.On("Invoke", mock.Anything, "ROOT_MFA_ENABLED", mock.MatchedBy(func(e domain.TriggerEvent) bool {
		return e.ResultToken == submit.TestModeToken && e.AccountID == "123456789012"
	})).Return(&evaluation.Response{
		TestMode: true,
		Verdicts: []domain.Verdict{
			domain.AccountVerdict("123456789012", domain.NonCompliant, at, "Root MFA is not enabled."),
		},
	}, nil)
	cli, out := newCLI(t, invoker)

	// When
	err := cli.ExecuteContext(context.Background(), "evaluate", "--rule", "ROOT_MFA_ENABLED", "--event", eventPath, "--test-mode")

	// Then
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Evaluation of ROOT_MFA_ENABLED [test mode, nothing submitted]")
	assert.Contains(t, out.String(), "=== NON_COMPLIANT ===")
	assert.Contains(t, out.String(), "Root MFA is not enabled.")
	invoker.AssertExpectations(t)
}

func TestCLI_EvaluateReportsErrorResponse(t *testing.T) {
	// Given
	eventPath := filepath.Join(t.TempDir(), "event.json")
	require.NoError(t, os.WriteFile(eventPath, []byte(`{"invokingEvent":"{}","accountId":"123456789012"}`), 0o600))
	invoker := new(mockInvoker)
	invoker.On("Invoke", mock.Anything, "ROOT_MFA_ENABLED", mock.Anything).Return(&evaluation.Response{
		Error: domain.NewInternalErrorResponse("Unexpected error during the evaluation", "boom"),
	}, nil)
	cli, out := newCLI(t, invoker)

	// When
	err := cli.ExecuteContext(context.Background(), "evaluate", "--rule", "ROOT_MFA_ENABLED", "--event", eventPath)

	// Then
	require.Error(t, err)
	assert.Contains(t, err.Error(), domain.InternalErrorCode)
	assert.Contains(t, out.String(), "=== Error ===")
}

func TestCLI_EvaluateUnknownRule(t *testing.T) {
	eventPath := filepath.Join(t.TempDir(), "event.json")
	require.NoError(t, os.WriteFile(eventPath, []byte(`{}`), 0o600))
	invoker := new(mockInvoker)
	invoker.On("Invoke", mock.Anything, "NOPE", mock.Anything).Return(nil, domain.ErrRuleNotFound)
	cli, _ := newCLI(t, invoker)

	err := cli.ExecuteContext(context.Background(), "evaluate", "--rule", "NOPE", "--event", eventPath)

	assert.True(t, errors.Is(err, domain.ErrRuleNotFound))
}

func TestCLI_EventsImportListStats(t *testing.T) {
	// Given a stream capture with one duplicated record
	capture := filepath.Join(t.TempDir(), "stream.jsonl")
	line := `{"ConfigRuleArn":"arn:aws:config:eu-west-1:123456789012:config-rule/config-rule-a","ConfigRuleName":"ROOT_MFA_ENABLED","AccountId":"123456789012","AwsRegion":"eu-west-1","ResourceType":"AWS::::Account","ResourceId":"123456789012","ComplianceType":"COMPLIANT","WhitelistedComplianceType":"False","Annotation":"None","OrderingTimestamp":"2025-06-01 00:00:00","ResultRecordedTime":"2025-06-01 00:00:01","ConfigRuleInvokedTime":"2025-06-01 00:00:00","EngineRecordedTime":"2025-06-02 00:00:00"}`
	require.NoError(t, os.WriteFile(capture, []byte(line+"\n\n"+line+"\n"), 0o600))
	cli, out := newCLI(t, new(mockInvoker))

	// When
	require.NoError(t, cli.ExecuteContext(context.Background(), "events", "import", capture))

	// Then
	assert.Equal(t, "Imported 1 of 2 records\n", out.String())

	out.Reset()
	require.NoError(t, cli.ExecuteContext(context.Background(), "events", "list", "--rule", "ROOT_MFA_ENABLED"))
	assert.Contains(t, out.String(), "ROOT_MFA_ENABLED  AWS::::Account/123456789012  COMPLIANT (False)")

	out.Reset()
	require.NoError(t, cli.ExecuteContext(context.Background(), "events", "stats", "--account", "123456789012"))
	assert.Equal(t, "Records: 1\nLast recorded: 2025-06-02 00:00:00\n", out.String())
}

func TestCLI_EventsImportRejectsMalformedLine(t *testing.T) {
	capture := filepath.Join(t.TempDir(), "stream.jsonl")
	require.NoError(t, os.WriteFile(capture, []byte("{not json}\n"), 0o600))
	cli, _ := newCLI(t, new(mockInvoker))

	err := cli.ExecuteContext(context.Background(), "events", "import", capture)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream.jsonl:1")
}

func TestCLI_AuditsEmpty(t *testing.T) {
	cli, out := newCLI(t, new(mockInvoker))

	require.NoError(t, cli.ExecuteContext(context.Background(), "audits", "--account", "123456789012"))

	assert.Equal(t, "No audit runs found.\n", out.String())
}

func TestCLI_MirrorSync(t *testing.T) {
	// Given
	var got mirror.Target
	var out bytes.Buffer
	cli := NewCLI(Options{
		Output: &out,
		Open: func(context.Context, string) (*commands.Runtime, error) {
			return &commands.Runtime{
				Mirror: func(_ context.Context, target mirror.Target) (mirror.RunnerProgress, error) {
					got = target
					return mirror.RunnerProgress{Rules: 4, Records: 12, Inserted: 9}, nil
				},
			}, nil
		},
	})

	// When
	err := cli.ExecuteContext(context.Background(), "mirror", "sync",
		"--account", "111111111111",
		"--role", "arn:aws:iam::111111111111:role/compliance-reader",
		"--region", "eu-west-1")

	// Then
	require.NoError(t, err)
	assert.Equal(t, mirror.Target{
		AccountID: "111111111111",
		RoleARN:   "arn:aws:iam::111111111111:role/compliance-reader",
		Region:    "eu-west-1",
	}, got)
	assert.Equal(t, "Mirrored 4 rules: 12 records, 9 new\n", out.String())
}

func TestCLI_MirrorSyncRequiresFlags(t *testing.T) {
	cli := NewCLI(Options{
		Output: &bytes.Buffer{},
		Open: func(context.Context, string) (*commands.Runtime, error) {
			t.Fatal("runtime must not be opened")
			return nil, nil
		},
	})

	err := cli.ExecuteContext(context.Background(), "mirror", "sync", "--account", "111111111111")

	require.Error(t, err)
}
