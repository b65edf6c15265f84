package firehose

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/firehose"
	"github.com/aws/aws-sdk-go-v2/service/firehose/types"
)

type API interface {
	PutRecord(ctx context.Context, params *firehose.PutRecordInput, optFns ...func(*firehose.Options)) (*firehose.PutRecordOutput, error)
}

// Sink delivers one serialized record to a named delivery stream.
type Sink interface {
	PutRecord(ctx context.Context, stream string, payload []byte) error
}

type sink struct {
	api API
}

func NewSink(api API) Sink {
	return &sink{api: api}
}

func NewFromConfig(cfg aws.Config) Sink {
	return NewSink(firehose.NewFromConfig(cfg))
}

func (s *sink) PutRecord(ctx context.Context, stream string, payload []byte) error {
	if bytes.ContainsAny(payload, "\r\n") {
		return fmt.Errorf("record for %s contains a line break", stream)
	}
	_, err := s.api.PutRecord(ctx, &firehose.PutRecordInput{
		DeliveryStreamName: aws.String(stream),
		Record:             &types.Record{Data: payload},
	})
	if err != nil {
		return fmt.Errorf("put record to %s: %w", stream, err)
	}
	return nil
}
