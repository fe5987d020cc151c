package apimock

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/redshiftdata"
	datatypes "github.com/aws/aws-sdk-go-v2/service/redshiftdata/types"
	"github.com/aws/aws-sdk-go-v2/service/redshiftserverless"
	serverlesstypes "github.com/aws/aws-sdk-go-v2/service/redshiftserverless/types"
)

var (
	// ErrUnexpectedDatabase is returned when a statement targets a database
	// other than the expected one.
	ErrUnexpectedDatabase = errors.New("unexpected database")

	// ErrUnexpectedWorkgroup is returned when a statement targets a
	// workgroup other than the expected one.
	ErrUnexpectedWorkgroup = errors.New("unexpected workgroup")

	// ErrUnknownStatement is returned when an operation references a
	// statement identifier the mock never issued.
	ErrUnknownStatement = errors.New("unknown statement id")

	// ErrOperationFailed is returned when Fail is set without a custom error.
	ErrOperationFailed = errors.New("operation failed")
)

// Script describes the lifecycle the Data mock plays back for one submitted
// statement: the status observed on each successive describe call (the last
// entry repeats once the script is exhausted), the failure message for
// FAILED/ABORTED scripts, and the result payload served once FINISHED.
type Script struct {
	// Statuses are the successive describe observations. Empty means
	// immediately FINISHED.
	Statuses []datatypes.StatusString

	// Error is the service-reported failure message, when any.
	Error string

	// ResultRows is the row count reported on FINISHED.
	ResultRows int64

	// Records is the tabular result payload.
	Records [][]datatypes.Field

	// PageSize splits Records across paginated result calls when > 0.
	PageSize int
}

// DataConfig represents the configuration for creating a Data mock.
type DataConfig struct {
	// ExpectedDatabase defines the database expected on every submission.
	ExpectedDatabase string

	// ExpectedWorkgroup defines the workgroup expected on every submission.
	ExpectedWorkgroup string

	// SQLValidator validates each submitted SQL statement.
	SQLValidator func(sql string) error

	// ScriptFor selects the lifecycle script for a submitted statement.
	// Nil scripts every statement as immediately FINISHED with no rows.
	ScriptFor func(sql string) Script

	// OmitID makes submissions succeed without returning an identifier.
	OmitID bool

	// Error is the error to return if the mock is configured to fail.
	Error error

	// Fail indicates whether submissions should return an error.
	Fail bool
}

// statementState tracks one issued statement across describe/result calls.
type statementState struct {
	script    Script
	describes int
}

// Data simulates the Redshift Data API with validation, scripted statement
// lifecycles, and recorded submissions.
type Data struct {
	cfg DataConfig

	submitted  []string
	statements map[string]*statementState
	describeN  int
}

// NewData creates a new Data mock based on the provided DataConfig.
func NewData(cfg DataConfig) (*Data, error) {
	return &Data{
		cfg:        cfg,
		statements: make(map[string]*statementState),
	}, nil
}

// Submitted returns every SQL statement submitted, in order.
func (d *Data) Submitted() []string { return d.submitted }

// DescribeCalls returns the total number of describe calls observed.
func (d *Data) DescribeCalls() int { return d.describeN }

// ExecuteStatement simulates statement submission.
func (d *Data) ExecuteStatement(_ context.Context, in *redshiftdata.ExecuteStatementInput, _ ...func(*redshiftdata.Options)) (*redshiftdata.ExecuteStatementOutput, error) {
	if d.cfg.Fail {
		if d.cfg.Error != nil {
			return nil, d.cfg.Error
		}
		return nil, ErrOperationFailed
	}

	if d.cfg.ExpectedDatabase != "" && aws.ToString(in.Database) != d.cfg.ExpectedDatabase {
		return nil, fmt.Errorf("%w: expected database %s, got %s",
			ErrUnexpectedDatabase, d.cfg.ExpectedDatabase, aws.ToString(in.Database))
	}

	if d.cfg.ExpectedWorkgroup != "" && aws.ToString(in.WorkgroupName) != d.cfg.ExpectedWorkgroup {
		return nil, fmt.Errorf("%w: expected workgroup %s, got %s",
			ErrUnexpectedWorkgroup, d.cfg.ExpectedWorkgroup, aws.ToString(in.WorkgroupName))
	}

	sql := aws.ToString(in.Sql)
	if d.cfg.SQLValidator != nil {
		if err := d.cfg.SQLValidator(sql); err != nil {
			return nil, err
		}
	}

	script := Script{}
	if d.cfg.ScriptFor != nil {
		script = d.cfg.ScriptFor(sql)
	}

	d.submitted = append(d.submitted, sql)

	if d.cfg.OmitID {
		return &redshiftdata.ExecuteStatementOutput{}, nil
	}

	id := fmt.Sprintf("statement-%d", len(d.submitted))
	d.statements[id] = &statementState{script: script}

	return &redshiftdata.ExecuteStatementOutput{Id: aws.String(id)}, nil
}

// DescribeStatement simulates a status poll, walking the statement's script.
func (d *Data) DescribeStatement(_ context.Context, in *redshiftdata.DescribeStatementInput, _ ...func(*redshiftdata.Options)) (*redshiftdata.DescribeStatementOutput, error) {
	id := aws.ToString(in.Id)
	state, ok := d.statements[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStatement, id)
	}

	d.describeN++

	status := datatypes.StatusStringFinished
	if n := len(state.script.Statuses); n > 0 {
		idx := state.describes
		if idx >= n {
			idx = n - 1
		}
		status = state.script.Statuses[idx]
	}
	state.describes++

	out := &redshiftdata.DescribeStatementOutput{
		Id:     aws.String(id),
		Status: status,
	}

	switch status {
	case datatypes.StatusStringFinished:
		out.ResultRows = state.script.ResultRows
	case datatypes.StatusStringFailed, datatypes.StatusStringAborted:
		if state.script.Error != "" {
			out.Error = aws.String(state.script.Error)
		}
	}

	return out, nil
}

// GetStatementResult serves the scripted result payload, paginated when the
// script sets a page size.
func (d *Data) GetStatementResult(_ context.Context, in *redshiftdata.GetStatementResultInput, _ ...func(*redshiftdata.Options)) (*redshiftdata.GetStatementResultOutput, error) {
	id := aws.ToString(in.Id)
	state, ok := d.statements[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStatement, id)
	}

	records := state.script.Records
	pageSize := state.script.PageSize
	if pageSize <= 0 || pageSize >= len(records) {
		return &redshiftdata.GetStatementResultOutput{Records: records}, nil
	}

	offset := 0
	if token := aws.ToString(in.NextToken); token != "" {
		if _, err := fmt.Sscanf(token, "page-%d", &offset); err != nil {
			return nil, fmt.Errorf("%w: bad token %q", ErrUnknownStatement, token)
		}
	}

	end := offset + pageSize
	if end > len(records) {
		end = len(records)
	}

	out := &redshiftdata.GetStatementResultOutput{Records: records[offset:end]}
	if end < len(records) {
		out.NextToken = aws.String(fmt.Sprintf("page-%d", end))
	}

	return out, nil
}

// ServerlessConfig represents the configuration for creating a Serverless
// mock.
type ServerlessConfig struct {
	// Endpoints maps workgroup names to endpoint addresses. An empty
	// address models a workgroup with no active endpoint; a missing key
	// models an unknown workgroup.
	Endpoints map[string]string

	// Port is the endpoint port reported alongside an address.
	Port int32

	// Error is the error to return if the mock is configured to fail.
	Error error

	// Fail indicates whether lookups should return an error.
	Fail bool
}

// Serverless simulates the workgroup administration API.
type Serverless struct {
	cfg ServerlessConfig
}

// NewServerless creates a new Serverless mock based on the provided
// ServerlessConfig.
func NewServerless(cfg ServerlessConfig) (*Serverless, error) {
	if cfg.Port == 0 {
		cfg.Port = 5439
	}

	return &Serverless{cfg: cfg}, nil
}

// GetWorkgroup simulates a workgroup lookup.
func (s *Serverless) GetWorkgroup(_ context.Context, in *redshiftserverless.GetWorkgroupInput, _ ...func(*redshiftserverless.Options)) (*redshiftserverless.GetWorkgroupOutput, error) {
	if s.cfg.Fail {
		if s.cfg.Error != nil {
			return nil, s.cfg.Error
		}
		return nil, ErrOperationFailed
	}

	name := aws.ToString(in.WorkgroupName)
	address, ok := s.cfg.Endpoints[name]
	if !ok {
		return nil, &serverlesstypes.ResourceNotFoundException{
			Message: aws.String(fmt.Sprintf("workgroup %s not found", name)),
		}
	}

	wg := &serverlesstypes.Workgroup{WorkgroupName: aws.String(name)}
	if address != "" {
		wg.Endpoint = &serverlesstypes.Endpoint{
			Address: aws.String(address),
			Port:    aws.Int32(s.cfg.Port),
		}
	}

	return &redshiftserverless.GetWorkgroupOutput{Workgroup: wg}, nil
}
