package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	awstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"points-miner/internal/types"
)

// SQSAPI is the subset of the SQS client the consumer uses.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Sink accepts decoded platform events. engine.Engine satisfies it.
type Sink interface {
	Submit(ctx context.Context, ev types.PlatformEvent) error
}

// errMalformed marks a message that can never be processed and should be dropped.
var errMalformed = errors.New("malformed platform event")

type SQSConsumer struct {
	sqsClient SQSAPI
	queueURL  string
	sink      Sink
	logger    *zap.Logger

	// ErrorBackoff is the pause after a failed receive.
	ErrorBackoff time.Duration
}

func NewSQSConsumer(client SQSAPI, queueURL string, sink Sink, logger *zap.Logger) *SQSConsumer {
	return &SQSConsumer{
		sqsClient:    client,
		queueURL:     queueURL,
		sink:         sink,
		logger:       logger,
		ErrorBackoff: 5 * time.Second,
	}
}

func (c *SQSConsumer) Start(ctx context.Context) error {
	c.logger.Info("Starting SQS consumer", zap.String("queue_url", c.queueURL))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("SQS consumer stopping")
			return nil
		default:
			if err := c.pollMessages(ctx); err != nil {
				if ctx.Err() != nil {
					continue
				}
				c.logger.Error("Error polling messages", zap.Error(err))
				select {
				case <-time.After(c.ErrorBackoff):
				case <-ctx.Done():
				}
			}
		}
	}
}

func (c *SQSConsumer) pollMessages(ctx context.Context) error {
	result, err := c.sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     20,
	})
	if err != nil {
		return fmt.Errorf("failed to receive messages: %w", err)
	}

	for _, message := range result.Messages {
		id := aws.ToString(message.MessageId)
		if err := c.processMessage(ctx, message); err != nil {
			if !errors.Is(err, errMalformed) {
				c.logger.Error("Failed to process message", zap.Error(err), zap.String("message_id", id))
				continue
			}
			c.logger.Warn("Dropping malformed message", zap.Error(err), zap.String("message_id", id))
		}

		_, err := c.sqsClient.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      aws.String(c.queueURL),
			ReceiptHandle: message.ReceiptHandle,
		})
		if err != nil {
			c.logger.Error("Failed to delete message", zap.Error(err), zap.String("message_id", id))
		}
	}

	return nil
}

func (c *SQSConsumer) processMessage(ctx context.Context, message awstypes.Message) error {
	event, err := Decode([]byte(aws.ToString(message.Body)))
	if err != nil {
		return err
	}

	c.logger.Debug("Processing platform event",
		zap.String("event_type", event.Type),
		zap.String("streamer", event.Streamer))

	if err := c.sink.Submit(ctx, event); err != nil {
		return fmt.Errorf("failed to submit event: %w", err)
	}
	return nil
}

// Decode parses one platform event message body.
func Decode(body []byte) (types.PlatformEvent, error) {
	var event types.PlatformEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return event, fmt.Errorf("%w: %v", errMalformed, err)
	}
	if event.Type == "" || event.Streamer == "" {
		return event, fmt.Errorf("%w: event_type and streamer are required", errMalformed)
	}
	return event, nil
}
