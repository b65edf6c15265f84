package drift

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/de-tools/compliance-engine/pkg/adapters"
	"github.com/de-tools/compliance-engine/pkg/models/domain"
	"github.com/de-tools/compliance-engine/pkg/services/reconcile"
	"github.com/de-tools/compliance-engine/pkg/services/whitelist"
)

var errNoSink = errors.New("no stream sink configured")

// republish copies the full evaluation history of every matched rule into
// the stream sinks, one record per entry, with the whitelist applied.
func (a *Auditor) republish(ctx context.Context, req Request, clients Clients, rules []domain.LiveRule, run *domain.AuditRun) error {
	logger := zerolog.Ctx(ctx)
	if len(clients.Sinks) == 0 {
		return errNoSink
	}

	overrides := whitelist.NewOverrides(nil, domain.DateOf(a.now().UTC()))
	if clients.Whitelist != nil {
		overrides = clients.Whitelist.Load(ctx)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if a.settings.RuleInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(a.settings.RuleInterval), 1)
	}

	for _, rule := range rules {
		if rule.Name == req.RuleName || (req.RuleARN != "" && rule.ARN == req.RuleARN) {
			continue
		}
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("waiting to republish %s: %w", rule.Name, err)
		}

		entries, err := reconcile.DrainHistory(ctx, clients.Rules, rule.Name, nil)
		if err != nil {
			return fmt.Errorf("load history of %s: %w", rule.Name, err)
		}
		for _, entry := range entries {
			ct, state := overrides.Decide(rule.ARN, rule.Name, entry.ResourceID, entry.ComplianceType)
			record := adapters.MapHistoryEntryToStore(rule, req.AccountID, entry, ct, state, a.now())
			payload, err := json.Marshal(record)
			if err != nil {
				return fmt.Errorf("encode record: %w", err)
			}
			for _, sink := range clients.Sinks {
				if err := sink.PutRecord(ctx, a.settings.Stream, payload); err != nil {
					return fmt.Errorf("publish %s/%s: %w", rule.Name, entry.ResourceID, err)
				}
			}
			a.recorder.Streamed(state)
			run.Records++
		}
		logger.Debug().Str("rule", rule.Name).Int("entries", len(entries)).Msg("history republished")
	}
	return nil
}
