/*
Package apimock simulates the two remote APIs this SDK depends on, the
Redshift Data API and the Redshift Serverless administration API, with
validation and configurable responses.

The Data mock validates the database/workgroup every submission targets,
records submitted SQL in order, and plays back a per-statement lifecycle
script across successive describe calls, so tests can drive a statement
through SUBMITTED → STARTED → FINISHED (or FAILED) without a real service or
a real clock. The Serverless mock answers workgroup lookups from a name to
endpoint-address table.
*/
package apimock
