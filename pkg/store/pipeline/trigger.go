package pipeline

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
	"github.com/rs/zerolog"
)

type API interface {
	StartPipelineExecution(ctx context.Context, params *codepipeline.StartPipelineExecutionInput, optFns ...func(*codepipeline.Options)) (*codepipeline.StartPipelineExecutionOutput, error)
}

// Trigger starts the deployment pipeline that installs the rule set in an account.
type Trigger interface {
	Start(ctx context.Context, name string) (string, error)
}

type trigger struct {
	api API
}

func NewTrigger(api API) Trigger {
	return &trigger{api: api}
}

func NewFromConfig(cfg aws.Config) Trigger {
	return NewTrigger(codepipeline.NewFromConfig(cfg))
}

func (t *trigger) Start(ctx context.Context, name string) (string, error) {
	out, err := t.api.StartPipelineExecution(ctx, &codepipeline.StartPipelineExecutionInput{
		Name: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("start pipeline %s: %w", name, err)
	}

	id := aws.ToString(out.PipelineExecutionId)
	zerolog.Ctx(ctx).Info().
		Str("pipeline", name).
		Str("execution_id", id).
		Msg("deployment pipeline started")
	return id, nil
}
