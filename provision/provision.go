package provision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	sdk "github.com/shiftgate-project/sdk"
	"github.com/shiftgate-project/sdk/statement"
)

// userCatalogSQL lists every database user; existence checks scan the
// decoded rows rather than trusting the row count.
const userCatalogSQL = `SELECT u.usename AS username FROM pg_user u;`

var (
	// ErrStatementsNil is returned when no statement client is provided.
	ErrStatementsNil = errors.New("statement client cannot be nil")

	// ErrCredentialGeneration wraps failures while generating a placeholder
	// credential.
	ErrCredentialGeneration = errors.New("failed to generate placeholder credential")
)

// policy states how a workflow step reacts to a statement failure.
type policy int

const (
	// failFast propagates the failure to the caller.
	failFast policy = iota

	// bestEffort logs the failure and lets the workflow continue.
	bestEffort
)

// UserResult reports the outcome of EnsureUser.
type UserResult struct {
	// Created is true when the user was created by this call.
	Created bool

	// Password is the generated placeholder credential, set only when
	// Created is true. An existing user's credential is never observable
	// and never reset.
	Password string
}

// GroupResult reports the outcome of EnsureGroup.
type GroupResult struct {
	// Created is true when the group was created by this call.
	Created bool
}

// Client exposes the idempotent access-provisioning workflows.
type Client interface {
	// EnsureUser creates the database user unless it already exists.
	EnsureUser(ctx context.Context, target sdk.Target, user string) (UserResult, error)

	// EnsureGroup creates the database group unless it already exists.
	EnsureGroup(ctx context.Context, target sdk.Target, group string) (GroupResult, error)

	// AddUserToGroup adds the user to the group. Best-effort: failures are
	// logged and never abort a larger provisioning sequence.
	AddUserToGroup(ctx context.Context, target sdk.Target, user, group string) error

	// GrantSchemaUsage grants the group read access to the schema. Each of
	// the three grant statements is individually best-effort.
	GrantSchemaUsage(ctx context.Context, target sdk.Target, schema, group string) error

	// GroupRoles lists group/member pairs for the target workgroup.
	GroupRoles(ctx context.Context, target sdk.Target) ([]statement.Row, error)
}

// Config controls how a Client instance issues its statements.
type Config struct {
	// Statements executes the catalog checks and mutations. Required.
	Statements statement.Client

	// Logger receives workflow progress and best-effort failures.
	Logger zerolog.Logger
}

// client implements Client on top of the statement client.
type client struct {
	statements statement.Client
	log        zerolog.Logger
}

// New creates a provisioning Client.
func New(cfg Config) (Client, error) {
	if cfg.Statements == nil {
		return nil, ErrStatementsNil
	}

	return &client{statements: cfg.Statements, log: cfg.Logger}, nil
}

// EnsureUser checks the user catalog and creates the user with a generated
// placeholder credential when absent. A pre-existing user is a successful
// no-op. Check or create failures are logged and returned to the caller.
func (c *client) EnsureUser(ctx context.Context, target sdk.Target, user string) (UserResult, error) {
	rows, err := c.statements.Query(ctx, target, userCatalogSQL)
	if err != nil {
		c.log.Warn().Err(err).Str("user", user).Msg("user catalog check failed")
		return UserResult{}, err
	}

	if containsUser(rows, user) {
		c.log.Info().Str("user", user).Msg("user already exists")
		return UserResult{}, nil
	}

	password, err := placeholderPassword()
	if err != nil {
		return UserResult{}, err
	}

	createSQL := fmt.Sprintf("CREATE USER %s PASSWORD '%s';", user, password)
	if _, err := c.statements.Execute(ctx, target, createSQL); err != nil {
		c.log.Warn().Err(err).Str("user", user).Msg("create user failed")
		return UserResult{}, err
	}

	c.log.Info().Str("user", user).Msg("created user")

	return UserResult{Created: true, Password: password}, nil
}

// EnsureGroup checks pg_group and creates the group when absent. Failures
// propagate: a missing group breaks every dependent grant operation.
func (c *client) EnsureGroup(ctx context.Context, target sdk.Target, group string) (GroupResult, error) {
	checkSQL := fmt.Sprintf("SELECT 1 FROM pg_group WHERE groname = '%s';", group)
	count, err := c.statements.Execute(ctx, target, checkSQL)
	if err != nil {
		return GroupResult{}, fmt.Errorf("failed to check group %s: %w", group, err)
	}

	if count > 0 {
		c.log.Info().Str("group", group).Msg("group already exists")
		return GroupResult{}, nil
	}

	createSQL := fmt.Sprintf("CREATE GROUP %s;", group)
	if _, err := c.run(ctx, target, createSQL, failFast); err != nil {
		return GroupResult{}, fmt.Errorf("failed to create group %s: %w", group, err)
	}

	c.log.Info().Str("group", group).Msg("created group")

	return GroupResult{Created: true}, nil
}

// AddUserToGroup issues ALTER GROUP ... ADD USER. A failure (for example the
// user is already a member) is logged and suppressed.
func (c *client) AddUserToGroup(ctx context.Context, target sdk.Target, user, group string) error {
	sql := fmt.Sprintf("ALTER GROUP %s ADD USER \"%s\";", group, user)
	if done, _ := c.run(ctx, target, sql, bestEffort); done {
		c.log.Info().Str("user", user).Str("group", group).Msg("added user to group")
	}

	return nil
}

// GrantSchemaUsage issues the three grant statements in fixed order. Each
// failure is logged individually and never prevents the remaining grants;
// partial privileges are preferable to none.
func (c *client) GrantSchemaUsage(ctx context.Context, target sdk.Target, schema, group string) error {
	grants := []string{
		fmt.Sprintf("GRANT USAGE ON SCHEMA %s TO GROUP %s;", schema, group),
		fmt.Sprintf("GRANT SELECT ON ALL TABLES IN SCHEMA %s TO GROUP %s;", schema, group),
		fmt.Sprintf("ALTER DEFAULT PRIVILEGES IN SCHEMA %s GRANT SELECT ON TABLES TO GROUP %s;", schema, group),
	}

	for _, sql := range grants {
		_, _ = c.run(ctx, target, sql, bestEffort)
	}

	return nil
}

// GroupRoles lists every group with its members for the target workgroup,
// ordered by group then member name.
func (c *client) GroupRoles(ctx context.Context, target sdk.Target) ([]statement.Row, error) {
	rows, err := c.statements.Query(ctx, target, groupRolesSQL(target.Workgroup))
	if err != nil {
		return nil, fmt.Errorf("failed to list group roles: %w", err)
	}

	return rows, nil
}

// run executes one statement under the given failure policy. The bool
// reports whether the statement completed; the error is always nil under
// bestEffort.
func (c *client) run(ctx context.Context, target sdk.Target, sql string, pol policy) (bool, error) {
	if _, err := c.statements.Execute(ctx, target, sql); err != nil {
		if pol == bestEffort {
			c.log.Warn().Err(err).Str("sql", sql).Msg("statement failed, continuing")
			return false, nil
		}
		return false, err
	}

	c.log.Debug().Str("sql", sql).Msg("statement completed")

	return true, nil
}

func containsUser(rows []statement.Row, user string) bool {
	for _, row := range rows {
		if len(row) > 0 && row[0].Kind == statement.KindString && row[0].Str == user {
			return true
		}
	}

	return false
}

// placeholderPassword builds an unpredictable one-time credential. The user
// authenticates through IAM afterwards; the placeholder only satisfies the
// CREATE USER syntax.
func placeholderPassword() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", errors.Join(ErrCredentialGeneration, err)
	}

	return "IAM_" + strings.ReplaceAll(id.String(), "-", "_"), nil
}

func groupRolesSQL(workgroup string) string {
	return fmt.Sprintf(`SELECT
  g.groname AS role_name,
  u.usename AS member_name,
  g.grosysid AS role_id,
  g.groowner AS owner_id,
  CASE WHEN pg_has_role(u.usename, g.groname, 'MEMBER') THEN true ELSE false END AS is_member
FROM pg_group g
LEFT JOIN pg_user u ON u.usesysid = ANY(g.grolist)
WHERE EXISTS (
  SELECT 1
  FROM svv_redshift_databases d
  WHERE d.database_name = current_database()
  AND d.workgroup_name = '%s'
)
ORDER BY g.groname, u.usename;`, workgroup)
}
