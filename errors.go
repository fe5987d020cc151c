package sdk

import "errors"

var (
	// ErrRegionMissing is returned when no AWS region is configured.
	ErrRegionMissing = errors.New("region is required")

	// ErrCredentialsMissing is returned when a non-production configuration
	// omits the explicit access key pair.
	ErrCredentialsMissing = errors.New("access key credentials are required outside production")
)
