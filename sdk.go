/*
Package sdk provides shared configuration and client construction for the
Redshift Serverless capability packages in this module.

The SDK owns the two remote API handles everything else depends on: the
Redshift Data API client (asynchronous statement execution) and the Redshift
Serverless client (workgroup administration). Both are built exactly once per
SDK instance and handed to the capability packages (statement, provision,
workgroup) by reference; there is no package-level client state.
*/
package sdk

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/redshiftdata"
	"github.com/aws/aws-sdk-go-v2/service/redshiftserverless"
)

// Config provides configuration options for SDK initialization.
type Config struct {
	// Region selects the AWS region both service clients target. Required.
	Region string

	// Production controls credential resolution. When true, the ambient
	// credential chain (instance role, environment, shared config) is used.
	// When false, AccessKeyID and SecretAccessKey are required.
	Production bool

	// AccessKeyID is the explicit access key for non-production use.
	AccessKeyID string

	// SecretAccessKey is the explicit secret key for non-production use.
	SecretAccessKey string
}

// Target identifies the database and workgroup a statement or provisioning
// call is addressed to.
type Target struct {
	// Database is the database name within the workgroup.
	Database string

	// Workgroup is the Redshift Serverless workgroup name.
	Workgroup string
}

// SDK holds the constructed service clients and a snapshot of the region
// they were built for.
type SDK struct {
	region     string
	data       *redshiftdata.Client
	serverless *redshiftserverless.Client
}

// New resolves credentials, builds both service clients, and returns the SDK.
// Construction happens once; callers share the returned value rather than
// rebuilding clients per call.
func New(ctx context.Context, cfg Config) (*SDK, error) {
	if cfg.Region == "" {
		return nil, ErrRegionMissing
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}

	if !cfg.Production {
		if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
			return nil, ErrCredentialsMissing
		}
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return &SDK{
		region:     cfg.Region,
		data:       redshiftdata.NewFromConfig(awsCfg),
		serverless: redshiftserverless.NewFromConfig(awsCfg),
	}, nil
}

// Region returns the region both clients were built for.
func (s *SDK) Region() string { return s.region }

// Data returns the Redshift Data API client.
func (s *SDK) Data() *redshiftdata.Client { return s.data }

// Serverless returns the Redshift Serverless administration client.
func (s *SDK) Serverless() *redshiftserverless.Client { return s.serverless }
