package workgroup

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/redshiftserverless"
	"github.com/rs/zerolog"
)

// ErrAPINil is returned when no administration API handle is provided.
var ErrAPINil = errors.New("serverless api handle cannot be nil")

// ServerlessAPI is the subset of the Redshift Serverless administration API
// used by the Verifier. It is satisfied by *redshiftserverless.Client.
type ServerlessAPI interface {
	GetWorkgroup(ctx context.Context, in *redshiftserverless.GetWorkgroupInput, opts ...func(*redshiftserverless.Options)) (*redshiftserverless.GetWorkgroupOutput, error)
}

// Endpoint is a point-in-time snapshot of a workgroup's reachability. It is
// never cached across calls.
type Endpoint struct {
	// Workgroup is the workgroup name the lookup was made for.
	Workgroup string

	// Address is the endpoint host address.
	Address string

	// Port is the endpoint port.
	Port int32
}

// Verifier resolves and validates workgroup endpoints.
type Verifier interface {
	// Verify looks up the named workgroup. The bool is false when the
	// workgroup has no active endpoint address, which is a diagnostic
	// outcome rather than an error; the error reports lookup failures only.
	Verify(ctx context.Context, name string) (Endpoint, bool, error)
}

// Config controls how a Verifier instance reaches the administration API.
type Config struct {
	// API is the Redshift Serverless administration handle. Required.
	API ServerlessAPI

	// Logger receives endpoint resolution diagnostics.
	Logger zerolog.Logger
}

// verifier implements Verifier against the configured administration API.
type verifier struct {
	api ServerlessAPI
	log zerolog.Logger
}

// New creates an endpoint Verifier.
func New(cfg Config) (Verifier, error) {
	if cfg.API == nil {
		return nil, ErrAPINil
	}

	return &verifier{api: cfg.API, log: cfg.Logger}, nil
}

// Verify looks up the named workgroup and reports whether it has a reachable
// endpoint.
func (v *verifier) Verify(ctx context.Context, name string) (Endpoint, bool, error) {
	out, err := v.api.GetWorkgroup(ctx, &redshiftserverless.GetWorkgroupInput{
		WorkgroupName: aws.String(name),
	})
	if err != nil {
		return Endpoint{}, false, fmt.Errorf("failed to get workgroup %s: %w", name, err)
	}

	if out.Workgroup == nil || out.Workgroup.Endpoint == nil || aws.ToString(out.Workgroup.Endpoint.Address) == "" {
		v.log.Error().Str("workgroup", name).Msg("could not retrieve endpoint for workgroup")
		return Endpoint{Workgroup: name}, false, nil
	}

	endpoint := Endpoint{
		Workgroup: name,
		Address:   aws.ToString(out.Workgroup.Endpoint.Address),
		Port:      aws.ToInt32(out.Workgroup.Endpoint.Port),
	}

	v.log.Debug().
		Str("workgroup", name).
		Str("address", endpoint.Address).
		Msg("resolved workgroup endpoint")

	return endpoint, true, nil
}
