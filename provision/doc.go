/*
Package provision implements idempotent access-provisioning workflows on top
of the statement client: ensure a database user or group exists, add a user
to a group, and grant a group read access to a schema.

Every workflow re-derives catalog state from the service before mutating
(check-before-create); nothing is cached between calls. Each step carries an
explicit failure policy: group existence and creation fail fast because the
dependent grants are useless without them, while group membership and the
individual grant statements are best-effort: their failures are logged and
suppressed so a larger provisioning sequence keeps progressing.
*/
package provision
