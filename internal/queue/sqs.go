package queue

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"quality-backend/internal/shared/metrics"
	"quality-backend/internal/shared/telemetry"
)

const (
	sqsMaxDelaySeconds       = 900
	sqsWaitSeconds           = 20
	sqsMaxMessages           = 10
	defaultVisibilitySeconds = 1200
	receiveCountAttr         = "ApproximateReceiveCount"
)

// SQSAPI is the subset of the SQS client used by SQSQueue.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSQueue is the durable queue backend on AWS SQS.
//
// Retries are re-sent as new messages with DelaySeconds (capped at 15 minutes)
// and the original delivery is deleted. Exhausted jobs go to the failed queue
// when one is configured; otherwise they are left for the queue's redrive policy.
type SQSQueue struct {
	client            SQSAPI
	queueURL          string
	failedQueueURL    string
	policy            RetryPolicy
	visibilitySeconds int32
	now               func() time.Time
}

// NewSQSQueue loads AWS configuration and constructs an SQS-backed queue.
func NewSQSQueue(ctx context.Context, region, queueURL, failedQueueURL string, policy RetryPolicy) (*SQSQueue, error) {
	if strings.TrimSpace(queueURL) == "" {
		return nil, fmt.Errorf("SQS_QUEUE_URL is required")
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSQSQueueWithClient(sqs.NewFromConfig(cfg), queueURL, failedQueueURL, policy), nil
}

// NewSQSQueueWithClient constructs an SQSQueue over an existing client.
func NewSQSQueueWithClient(client SQSAPI, queueURL, failedQueueURL string, policy RetryPolicy) *SQSQueue {
	return &SQSQueue{
		client:            client,
		queueURL:          strings.TrimSpace(queueURL),
		failedQueueURL:    strings.TrimSpace(failedQueueURL),
		policy:            policy.Normalize(),
		visibilitySeconds: defaultVisibilitySeconds,
		now:               time.Now,
	}
}

// HasFailedQueue reports whether exhausted jobs are moved to a dedicated queue.
func (q *SQSQueue) HasFailedQueue() bool {
	return q.failedQueueURL != ""
}

// Enqueue sends a new job message. Connectivity errors are returned to the caller.
func (q *SQSQueue) Enqueue(ctx context.Context, kind Kind, payload any) (Handle, error) {
	job, err := newJob(kind, payload, q.policy, q.now())
	if err != nil {
		return Handle{}, err
	}
	if err := q.send(ctx, q.queueURL, job, 0); err != nil {
		return Handle{}, err
	}
	return Handle{JobID: job.ID, Kind: job.Kind}, nil
}

// Receive long-polls for up to ten messages.
func (q *SQSQueue) Receive(ctx context.Context) ([]Job, error) {
	resp, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: sqsMaxMessages,
		WaitTimeSeconds:     sqsWaitSeconds,
		VisibilityTimeout:   q.visibilitySeconds,
		AttributeNames:      []sqstypes.QueueAttributeName{sqstypes.QueueAttributeName(receiveCountAttr)},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("sqs receive message: %w", err)
	}

	jobs := make([]Job, 0, len(resp.Messages))
	for _, msg := range resp.Messages {
		body := aws.ToString(msg.Body)
		job, err := DecodeJob([]byte(body))
		if err != nil || job.ID == "" || job.Kind == "" {
			// Unrecoverable: a malformed body will never decode on redelivery.
			telemetry.Error("queue.sqs.decode_failed", map[string]any{
				"message_id": aws.ToString(msg.MessageId),
				"body_len":   len(body),
				"error":      fmt.Sprint(err),
			})
			q.delete(ctx, aws.ToString(msg.ReceiptHandle))
			continue
		}
		job.Attempt = AttemptsFromReceiveCount(job.Attempt, msg.Attributes[receiveCountAttr])
		job.Receipt = aws.ToString(msg.ReceiptHandle)
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Complete deletes the delivered message.
func (q *SQSQueue) Complete(ctx context.Context, job Job) error {
	return q.delete(ctx, job.Receipt)
}

// Retry re-sends the job with a delivery delay and deletes the original delivery.
func (q *SQSQueue) Retry(ctx context.Context, job Job, delay time.Duration) error {
	receipt := job.Receipt
	job.Receipt = ""
	if err := q.send(ctx, q.queueURL, job, delaySeconds(delay)); err != nil {
		return err
	}
	return q.delete(ctx, receipt)
}

// Fail moves the job to the failed queue, or leaves it for redrive when none is configured.
func (q *SQSQueue) Fail(ctx context.Context, job Job, cause error) error {
	receipt := job.Receipt
	job.Receipt = ""
	failedAt := q.now().UTC()
	job.FailedAt = &failedAt
	if cause != nil {
		job.LastError = cause.Error()
	}
	if q.failedQueueURL == "" {
		telemetry.Error("queue.sqs.exhausted_no_failed_queue", map[string]any{
			"job_id": job.ID,
			"kind":   string(job.Kind),
		})
		return nil
	}
	if err := q.send(ctx, q.failedQueueURL, job, 0); err != nil {
		return err
	}
	return q.delete(ctx, receipt)
}

func (q *SQSQueue) send(ctx context.Context, queueURL string, job Job, delay int32) error {
	defer metrics.ObserveDependency(metrics.DependencyQueue, "send", time.Now())
	body, err := EncodeJob(job)
	if err != nil {
		return fmt.Errorf("encode sqs message: %w", err)
	}
	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:     aws.String(queueURL),
		MessageBody:  aws.String(string(body)),
		DelaySeconds: delay,
	})
	if err != nil {
		return fmt.Errorf("sqs send message: %w", err)
	}
	return nil
}

func (q *SQSQueue) delete(ctx context.Context, receipt string) error {
	if receipt == "" {
		return nil
	}
	defer metrics.ObserveDependency(metrics.DependencyQueue, "delete", time.Now())
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(receipt),
	})
	if err != nil {
		return fmt.Errorf("sqs delete message: %w", err)
	}
	return nil
}

// AttemptsFromReceiveCount adds redeliveries the job body does not know about,
// such as a worker crash before acknowledging.
func AttemptsFromReceiveCount(bodyAttempts int, receiveCount string) int {
	n, err := strconv.Atoi(strings.TrimSpace(receiveCount))
	if err != nil || n <= 1 {
		return bodyAttempts
	}
	return bodyAttempts + n - 1
}

func delaySeconds(d time.Duration) int32 {
	if d <= 0 {
		return 0
	}
	secs := int64(math.Ceil(d.Seconds()))
	if secs > sqsMaxDelaySeconds {
		secs = sqsMaxDelaySeconds
	}
	return int32(secs)
}

var (
	_ Client = (*SQSQueue)(nil)
	_ Source = (*SQSQueue)(nil)
)
