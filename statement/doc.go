/*
Package statement provides a client for executing SQL statements through the
asynchronous Redshift Data API.

Statements are submitted, then polled to a terminal state rather than
returning a synchronous result set. The Client interface offers the
submit/wait primitives plus convenience composites (Execute, Query), and the
decode helpers convert the loosely-typed tabular payload into tagged Values.
Errors use sentinel values combined with the underlying cause and can be
checked with errors.Is; service-reported failures carry the reported message
in a FailureError checked with errors.As.
*/
package statement
