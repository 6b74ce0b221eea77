package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"quality-backend/internal/queue"
	"quality-backend/internal/remediation"
	"quality-backend/internal/shared/telemetry"
)

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{BodyLen: 0, BodySHA: ""}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a body that is not a job envelope.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

func (e ErrDecode) Unwrap() error { return e.Err }

// ErrMissingID indicates a job payload without the entity it targets.
type ErrMissingID struct {
	Kind      queue.Kind
	RequestID string
}

func (e ErrMissingID) Error() string { return "missing id in " + string(e.Kind) + " payload" }

// ParseMessage decodes a raw queue body into a job. receiveCount is the
// broker's delivery counter and may be empty.
func ParseMessage(body, receiveCount string) (queue.Job, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Job{}, meta, ErrEmptyBody{Meta: meta}
	}
	job, err := queue.DecodeJob([]byte(body))
	if err != nil {
		return queue.Job{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if job.ID == "" || job.Kind == "" {
		return queue.Job{}, meta, ErrDecode{Meta: meta, Err: errors.New("job id and kind are required")}
	}
	job.Attempt = queue.AttemptsFromReceiveCount(job.Attempt, receiveCount)
	return job, meta, nil
}

// AnalysisProcessor runs analysis jobs.
type AnalysisProcessor interface {
	ProcessAnalysis(ctx context.Context, analysisID string) error
	MarkFailed(ctx context.Context, analysisID string, cause error) error
}

// IssueResolver runs LLM remediation jobs.
type IssueResolver interface {
	Resolve(ctx context.Context, issueID string) (remediation.Record, error)
}

// Register wires job kinds to their processors. A nil resolver leaves
// remediation jobs unhandled so they fail as unknown kinds.
func Register(runner *queue.Runner, analyses AnalysisProcessor, resolver IssueResolver) {
	runner.Register(queue.KindAnalysis, analysisHandler(analyses), analysisExhausted(analyses))
	if resolver != nil {
		runner.Register(queue.KindResolveIssue, resolveHandler(resolver), nil)
	}
}

func analysisHandler(p AnalysisProcessor) queue.HandlerFunc {
	return func(ctx context.Context, job queue.Job) error {
		payload, err := decodeAnalysis(job)
		if err != nil {
			return err
		}
		ctx = telemetry.WithRequestID(ctx, payload.RequestID)
		return p.ProcessAnalysis(ctx, payload.AnalysisID)
	}
}

// analysisExhausted marks the analysis FAILED once the queue gives up on it.
func analysisExhausted(p AnalysisProcessor) queue.ExhaustedFunc {
	return func(ctx context.Context, job queue.Job, cause error) {
		payload, err := decodeAnalysis(job)
		if err != nil {
			telemetry.Error("worker.exhausted.undecodable", map[string]any{
				"job_id": job.ID,
				"error":  err.Error(),
			})
			return
		}
		ctx = telemetry.WithRequestID(telemetry.Detach(ctx), payload.RequestID)
		if err := p.MarkFailed(ctx, payload.AnalysisID, cause); err != nil {
			telemetry.Error("analysis.mark_failed.failed", map[string]any{
				"request_id":  payload.RequestID,
				"job_id":      job.ID,
				"analysis_id": payload.AnalysisID,
				"error":       err.Error(),
			})
		}
	}
}

func resolveHandler(r IssueResolver) queue.HandlerFunc {
	return func(ctx context.Context, job queue.Job) error {
		var payload queue.ResolveIssuePayload
		if err := job.DecodePayload(&payload); err != nil {
			return err
		}
		if strings.TrimSpace(payload.IssueID) == "" {
			return queue.Permanent(ErrMissingID{Kind: job.Kind, RequestID: payload.RequestID})
		}
		ctx = telemetry.WithRequestID(ctx, payload.RequestID)
		_, err := r.Resolve(ctx, payload.IssueID)
		return err
	}
}

func decodeAnalysis(job queue.Job) (queue.AnalysisPayload, error) {
	var payload queue.AnalysisPayload
	if err := job.DecodePayload(&payload); err != nil {
		return payload, err
	}
	if strings.TrimSpace(payload.AnalysisID) == "" {
		return payload, queue.Permanent(ErrMissingID{Kind: job.Kind, RequestID: payload.RequestID})
	}
	return payload, nil
}

// HandleMessage parses one pushed delivery and runs a single attempt. It
// reports whether the broker should redeliver the message.
func HandleMessage(ctx context.Context, runner *queue.Runner, body, receiveCount string, hasFailedQueue bool) (redeliver bool, err error) {
	job, meta, err := ParseMessage(body, receiveCount)
	if err != nil {
		// A body that does not decode never will; drop it.
		telemetry.Error("worker.message.invalid", map[string]any{
			"body_len": meta.BodyLen,
			"body_sha": meta.BodySHA,
			"error":    err.Error(),
		})
		return false, err
	}
	job.Receipt = ""
	outcome, err := runner.Process(ctx, job)
	if err != nil {
		return true, err
	}
	if outcome == queue.OutcomeFailed && !hasFailedQueue {
		return true, nil
	}
	return false, nil
}
