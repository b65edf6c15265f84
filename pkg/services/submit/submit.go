package submit

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/de-tools/compliance-engine/pkg/models/domain"
)

const (
	// TestModeToken is the result token that skips the remote call.
	TestModeToken = "TESTMODE"
	// DefaultMaxBatch is the largest batch the rule-state service accepts.
	DefaultMaxBatch = 100
)

// Committer performs the single remote write of a batch and returns the
// entries the service rejected.
type Committer interface {
	PutEvaluations(ctx context.Context, resultToken string, verdicts []domain.Verdict) ([]domain.Verdict, error)
}

// Ack reports what was committed.
type Ack struct {
	Verdicts []domain.Verdict
	Dropped  int
	TestMode bool
}

type Submitter struct {
	committer Committer
	maxBatch  int
}

func NewSubmitter(committer Committer, maxBatch int) *Submitter {
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatch
	}
	return &Submitter{committer: committer, maxBatch: maxBatch}
}

func (s *Submitter) Submit(ctx context.Context, verdicts []domain.Verdict, resultToken string) (*Ack, error) {
	logger := zerolog.Ctx(ctx)

	if resultToken == TestModeToken {
		return &Ack{Verdicts: verdicts, TestMode: true}, nil
	}

	valid := make([]domain.Verdict, 0, len(verdicts))
	for _, v := range verdicts {
		if err := v.Validate(); err != nil {
			logger.Warn().Err(err).Str("resource_id", v.ResourceID).Msg("dropping verdict before submission")
			continue
		}
		valid = append(valid, v)
	}
	dropped := len(verdicts) - len(valid)

	if len(valid) > s.maxBatch {
		return nil, fmt.Errorf("%w: %d verdicts, limit %d", domain.ErrBatchTooLarge, len(valid), s.maxBatch)
	}

	failed, err := s.committer.PutEvaluations(ctx, resultToken, valid)
	if err != nil {
		return nil, err
	}
	if len(failed) > 0 {
		for _, f := range failed {
			logger.Error().
				Str("resource_type", f.ResourceType).
				Str("resource_id", f.ResourceID).
				Msg("evaluation rejected")
		}
		return nil, &domain.RuleError{
			Kind:            domain.KindInternal,
			Code:            domain.InternalErrorCode,
			InternalMessage: fmt.Sprintf("%d of %d evaluations were rejected", len(failed), len(valid)),
			Err:             domain.ErrSubmissionFailed,
		}
	}

	logger.Info().Int("submitted", len(valid)).Int("dropped", dropped).Msg("evaluations submitted")
	return &Ack{Verdicts: valid, Dropped: dropped}, nil
}
