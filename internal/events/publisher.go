// Package events publishes upload lifecycle messages to SQS for downstream
// consumers (dashboards, campaign dispatch).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/ignite/campaign-ingest/internal/service/ingest"
)

// EventUploadCompleted is the event_type attribute of upload messages.
const EventUploadCompleted = "campaign.upload.completed"

const sendTimeout = 5 * time.Second

type sqsAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Publisher sends one JSON message per finished upload.
type Publisher struct {
	client   sqsAPI
	queueURL string
}

// NewPublisher wraps an existing client.
func NewPublisher(client sqsAPI, queueURL string) *Publisher {
	return &Publisher{client: client, queueURL: queueURL}
}

// NewSQSPublisher loads the default AWS credential chain for region.
func NewSQSPublisher(ctx context.Context, queueURL, region string) (*Publisher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for upload events: %w", err)
	}
	return NewPublisher(sqs.NewFromConfig(cfg), queueURL), nil
}

// UploadCompleted publishes ev. The send is bounded by its own timeout.
func (p *Publisher) UploadCompleted(ctx context.Context, ev ingest.UploadEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal upload event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(EventUploadCompleted)},
			"kind":       {DataType: aws.String("String"), StringValue: aws.String(string(ev.Kind))},
		},
	})
	if err != nil {
		return fmt.Errorf("publish upload event %s: %w", ev.ReportID, err)
	}
	return nil
}
