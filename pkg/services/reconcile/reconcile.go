package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/de-tools/compliance-engine/pkg/models/domain"
)

// LiveTypes are the compliance types that can still be retired.
var LiveTypes = []domain.ComplianceType{domain.Compliant, domain.NonCompliant}

// HistorySource pages through the results a rule has already reported.
type HistorySource interface {
	ComplianceHistory(ctx context.Context, ruleName string, filter []domain.ComplianceType, pageToken *string) (*domain.HistoryPage, error)
}

// Run identifies one invocation of one rule.
type Run struct {
	RuleName            string
	AccountID           string
	DefaultResourceType string
	// Item is the resolved subject; nil for scheduled invocations.
	Item *domain.ConfigurationItem
	// OrderingTimestamp stamps verdicts the engine creates on the predicate's
	// behalf, including retirements.
	OrderingTimestamp time.Time
}

// Outcome is the list to submit plus how many of its entries are retirements.
type Outcome struct {
	Verdicts    []domain.Verdict
	Retirements int
}

type Reconciler struct {
	history HistorySource
}

func NewReconciler(history HistorySource) *Reconciler {
	return &Reconciler{history: history}
}

// Reconcile turns a predicate result into the complete list to submit. List
// and shadow results are merged with every page of prior history so that
// resources no longer reported are retired as NOT_APPLICABLE. Single-subject
// results only describe the subject of the change and are returned as is.
func (r *Reconciler) Reconcile(ctx context.Context, run Run, result domain.Result) (*Outcome, error) {
	logger := zerolog.Ctx(ctx)

	switch result.Kind() {
	case domain.ResultSingle:
		v, ok := single(run, result)
		if !ok {
			return &Outcome{Verdicts: []domain.Verdict{}}, nil
		}
		if err := v.Validate(); err != nil {
			logger.Warn().Err(err).Str("rule", run.RuleName).Msg("dropping malformed verdict")
			return &Outcome{Verdicts: []domain.Verdict{}}, nil
		}
		return &Outcome{Verdicts: []domain.Verdict{v}}, nil

	case domain.ResultShadow, domain.ResultList:
		latest := make([]domain.Verdict, 0, len(result.Verdicts()))
		for _, v := range result.Verdicts() {
			if err := v.Validate(); err != nil {
				logger.Warn().Err(err).
					Str("rule", run.RuleName).
					Str("resource_id", v.ResourceID).
					Msg("dropping malformed verdict")
				continue
			}
			latest = append(latest, v)
		}
		if len(latest) == 0 {
			latest = append(latest, shadow(run))
		}

		entries, err := DrainHistory(ctx, r.history, run.RuleName, LiveTypes)
		if err != nil {
			return nil, err
		}

		retirements := Retire(entries, latest, run.OrderingTimestamp)
		if len(retirements) > 0 {
			logger.Info().
				Str("rule", run.RuleName).
				Int("retired", len(retirements)).
				Msg("retiring resources absent from the latest evaluation")
		}
		return &Outcome{
			Verdicts:    append(retirements, latest...),
			Retirements: len(retirements),
		}, nil

	default:
		return nil, fmt.Errorf("unknown result kind %d", result.Kind())
	}
}

// Retire returns one NOT_APPLICABLE verdict for every resource in history
// that the latest evaluation no longer reports. Repeated resources are
// retired once, using the resource type of their most recently recorded
// entry; later entries win ties. Retirements keep the order in which
// resources first appear in history.
func Retire(history []domain.HistoryEntry, latest []domain.Verdict, orderedAt time.Time) []domain.Verdict {
	current := make(map[string]struct{}, len(latest))
	for _, v := range latest {
		current[v.ResourceID] = struct{}{}
	}

	var order []string
	newest := make(map[string]domain.HistoryEntry)
	for _, entry := range history {
		if !entry.Live() {
			continue
		}
		if _, ok := current[entry.ResourceID]; ok {
			continue
		}
		prev, seen := newest[entry.ResourceID]
		if !seen {
			order = append(order, entry.ResourceID)
			newest[entry.ResourceID] = entry
			continue
		}
		if !entry.ResultRecordedTime.Before(prev.ResultRecordedTime) {
			newest[entry.ResourceID] = entry
		}
	}

	retirements := make([]domain.Verdict, 0, len(order))
	for _, id := range order {
		entry := newest[id]
		retirements = append(retirements, domain.NewVerdict(entry.ResourceType, id, domain.NotApplicable, orderedAt, ""))
	}
	return retirements
}

// DrainHistory reads every page of a rule's history. Errors from the source
// are returned unmodified.
func DrainHistory(ctx context.Context, src HistorySource, ruleName string, filter []domain.ComplianceType) ([]domain.HistoryEntry, error) {
	var entries []domain.HistoryEntry
	var token *string
	for {
		page, err := src.ComplianceHistory(ctx, ruleName, filter, token)
		if err != nil {
			return nil, err
		}
		entries = append(entries, page.Entries...)
		if page.NextToken == nil || *page.NextToken == "" {
			return entries, nil
		}
		token = page.NextToken
	}
}

func single(run Run, result domain.Result) (domain.Verdict, bool) {
	if v, ok := result.Verdict(); ok {
		return v, true
	}
	ct, ok := result.Bare()
	if !ok {
		return domain.Verdict{}, false
	}
	if run.DefaultResourceType == domain.AccountResourceType || run.Item == nil {
		return domain.AccountVerdict(run.AccountID, ct, run.OrderingTimestamp, ""), true
	}
	return domain.ItemVerdict(run.Item, ct, ""), true
}

// shadow proves the run executed without asserting anything about a resource.
func shadow(run Run) domain.Verdict {
	v, _ := single(run, domain.Bare(domain.NotApplicable))
	return v
}
