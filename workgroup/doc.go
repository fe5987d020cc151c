/*
Package workgroup verifies that a named Redshift Serverless compute
workgroup has a reachable endpoint.

Verification is a diagnostic query against the administration API, typically
run before any statement is issued; a workgroup without an active endpoint
is reported as not-found rather than as an error.
*/
package workgroup
