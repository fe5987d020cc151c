package statement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/redshiftdata"
	"github.com/aws/aws-sdk-go-v2/service/redshiftdata/types"
	"github.com/rs/zerolog"

	sdk "github.com/shiftgate-project/sdk"
)

const (
	// DefaultMaxAttempts is the number of status polls performed before a
	// wait gives up.
	DefaultMaxAttempts = 10

	// DefaultInterval is the pause between status polls.
	DefaultInterval = time.Second
)

var (
	// ErrAPINil is returned when no Data API handle is provided.
	ErrAPINil = errors.New("data api handle cannot be nil")

	// ErrEmptySQL indicates an empty SQL statement.
	ErrEmptySQL = errors.New("sql statement is empty")

	// ErrSubmit wraps failures while submitting a statement for execution.
	ErrSubmit = errors.New("failed to submit statement")

	// ErrNoStatementID signals that the service accepted a statement but
	// returned no identifier for it.
	ErrNoStatementID = errors.New("service returned no statement id")

	// ErrTimeout is returned when a statement reaches no terminal state
	// within the poll budget. The statement may still complete server-side.
	ErrTimeout = errors.New("timed out waiting for statement to complete")

	// ErrNotReady is returned when results are requested for a statement
	// that has not finished.
	ErrNotReady = errors.New("statement results are not ready")
)

// FailureError reports a statement the service executed and marked FAILED or
// ABORTED. It carries the service-supplied message when one exists.
type FailureError struct {
	// ID is the statement identifier.
	ID string

	// Message is the failure reason reported by the service.
	Message string
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("statement %s failed: %s", e.ID, e.Message)
}

// DataAPI is the subset of the Redshift Data API used by the Client. It is
// satisfied by *redshiftdata.Client.
type DataAPI interface {
	ExecuteStatement(ctx context.Context, in *redshiftdata.ExecuteStatementInput, opts ...func(*redshiftdata.Options)) (*redshiftdata.ExecuteStatementOutput, error)
	DescribeStatement(ctx context.Context, in *redshiftdata.DescribeStatementInput, opts ...func(*redshiftdata.Options)) (*redshiftdata.DescribeStatementOutput, error)
	GetStatementResult(ctx context.Context, in *redshiftdata.GetStatementResultInput, opts ...func(*redshiftdata.Options)) (*redshiftdata.GetStatementResultOutput, error)
}

// Client submits SQL statements for asynchronous execution and tracks them
// to a terminal state.
type Client interface {
	// Submit sends sql for asynchronous execution and returns the
	// statement identifier assigned by the service.
	Submit(ctx context.Context, target sdk.Target, sql string) (string, error)

	// Wait polls the statement until it reaches a terminal state and
	// returns its result row count on FINISHED.
	Wait(ctx context.Context, id string) (int64, error)

	// Execute combines Submit and Wait.
	Execute(ctx context.Context, target sdk.Target, sql string) (int64, error)

	// Query combines Submit and Wait and returns the decoded result rows.
	Query(ctx context.Context, target sdk.Target, sql string) ([]Row, error)

	// Results returns the decoded result set of a finished statement.
	Results(ctx context.Context, id string) ([]Row, error)
}

// PollPolicy controls how Wait checks for statement completion. The zero
// value polls DefaultMaxAttempts times at DefaultInterval.
type PollPolicy struct {
	// MaxAttempts bounds the number of status polls.
	MaxAttempts int

	// Interval is the pause between polls.
	Interval time.Duration

	// Sleep overrides the pause implementation. Tests substitute an
	// instant clock here.
	Sleep func(context.Context, time.Duration) error
}

func (p PollPolicy) pause(ctx context.Context) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, p.Interval)
	}

	timer := time.NewTimer(p.Interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Config controls how a Client instance reaches the Data API.
type Config struct {
	// API is the Redshift Data API handle. Required.
	API DataAPI

	// Poll is the completion-polling policy applied by Wait.
	Poll PollPolicy

	// Logger receives statement lifecycle events.
	Logger zerolog.Logger
}

// dataClient implements Client against the configured Data API handle.
type dataClient struct {
	api  DataAPI
	poll PollPolicy
	log  zerolog.Logger
}

// New creates a statement Client.
func New(cfg Config) (Client, error) {
	if cfg.API == nil {
		return nil, ErrAPINil
	}

	poll := cfg.Poll
	if poll.MaxAttempts <= 0 {
		poll.MaxAttempts = DefaultMaxAttempts
	}
	if poll.Interval <= 0 {
		poll.Interval = DefaultInterval
	}

	return &dataClient{api: cfg.API, poll: poll, log: cfg.Logger}, nil
}

// Submit sends sql for asynchronous execution.
func (c *dataClient) Submit(ctx context.Context, target sdk.Target, sql string) (string, error) {
	if sql == "" {
		return "", ErrEmptySQL
	}

	out, err := c.api.ExecuteStatement(ctx, &redshiftdata.ExecuteStatementInput{
		Database:      aws.String(target.Database),
		Sql:           aws.String(sql),
		WorkgroupName: aws.String(target.Workgroup),
	})
	if err != nil {
		return "", errors.Join(ErrSubmit, err)
	}
	if out.Id == nil || *out.Id == "" {
		return "", errors.Join(ErrSubmit, ErrNoStatementID)
	}

	c.log.Debug().
		Str("statement_id", *out.Id).
		Str("database", target.Database).
		Str("workgroup", target.Workgroup).
		Msg("submitted statement")

	return *out.Id, nil
}

// Wait polls the statement until terminal. Intermediate states (SUBMITTED,
// PICKED, STARTED) are treated as a single pending bucket; poll failures are
// not retried.
func (c *dataClient) Wait(ctx context.Context, id string) (int64, error) {
	for attempt := 0; attempt < c.poll.MaxAttempts; attempt++ {
		out, err := c.api.DescribeStatement(ctx, &redshiftdata.DescribeStatementInput{
			Id: aws.String(id),
		})
		if err != nil {
			return 0, fmt.Errorf("failed to describe statement %s: %w", id, err)
		}

		switch out.Status {
		case types.StatusStringFinished:
			c.log.Debug().
				Str("statement_id", id).
				Int64("result_rows", out.ResultRows).
				Msg("statement finished")
			return out.ResultRows, nil
		case types.StatusStringFailed:
			return 0, &FailureError{ID: id, Message: failureMessage(out.Error, "statement failed")}
		case types.StatusStringAborted:
			return 0, &FailureError{ID: id, Message: failureMessage(out.Error, "statement aborted")}
		}

		if err := c.poll.pause(ctx); err != nil {
			return 0, err
		}
	}

	return 0, fmt.Errorf("statement %s: %w", id, ErrTimeout)
}

// Execute submits sql and waits for completion.
func (c *dataClient) Execute(ctx context.Context, target sdk.Target, sql string) (int64, error) {
	id, err := c.Submit(ctx, target, sql)
	if err != nil {
		return 0, err
	}

	return c.Wait(ctx, id)
}

// Query submits sql, waits for completion, and returns the decoded rows.
func (c *dataClient) Query(ctx context.Context, target sdk.Target, sql string) ([]Row, error) {
	id, err := c.Submit(ctx, target, sql)
	if err != nil {
		return nil, err
	}

	if _, err := c.Wait(ctx, id); err != nil {
		return nil, err
	}

	return c.fetch(ctx, id)
}

// Results returns the decoded result set of a statement already observed
// FINISHED.
func (c *dataClient) Results(ctx context.Context, id string) ([]Row, error) {
	out, err := c.api.DescribeStatement(ctx, &redshiftdata.DescribeStatementInput{
		Id: aws.String(id),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe statement %s: %w", id, err)
	}
	if out.Status != types.StatusStringFinished {
		return nil, fmt.Errorf("statement %s is %s: %w", id, out.Status, ErrNotReady)
	}

	return c.fetch(ctx, id)
}

// fetch retrieves and decodes every result page in order.
func (c *dataClient) fetch(ctx context.Context, id string) ([]Row, error) {
	var rows []Row
	var token *string

	for {
		out, err := c.api.GetStatementResult(ctx, &redshiftdata.GetStatementResultInput{
			Id:        aws.String(id),
			NextToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch results for statement %s: %w", id, err)
		}

		rows = append(rows, DecodeRecords(out.Records)...)

		if out.NextToken == nil || *out.NextToken == "" {
			return rows, nil
		}
		token = out.NextToken
	}
}

func failureMessage(reported *string, fallback string) string {
	if reported != nil && *reported != "" {
		return *reported
	}

	return fallback
}
