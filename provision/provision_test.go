package provision

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	datatypes "github.com/aws/aws-sdk-go-v2/service/redshiftdata/types"
	"github.com/rs/zerolog"

	sdk "github.com/shiftgate-project/sdk"
	"github.com/shiftgate-project/sdk/apimock"
	"github.com/shiftgate-project/sdk/statement"
)

var target = sdk.Target{Database: "analytics", Workgroup: "reporting"}

func newClient(t *testing.T, mock *apimock.Data) Client {
	t.Helper()

	statements, err := statement.New(statement.Config{
		API: mock,
		Poll: statement.PollPolicy{
			MaxAttempts: 5,
			Interval:    time.Millisecond,
			Sleep:       func(context.Context, time.Duration) error { return nil },
		},
		Logger: zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("statement.New returned error: %v", err)
	}

	client, err := New(Config{Statements: statements, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	return client
}

func userRows(users ...string) [][]datatypes.Field {
	records := make([][]datatypes.Field, len(users))
	for i, user := range users {
		records[i] = []datatypes.Field{&datatypes.FieldMemberStringValue{Value: user}}
	}

	return records
}

func countPrefix(statements []string, prefix string) int {
	n := 0
	for _, sql := range statements {
		if strings.HasPrefix(sql, prefix) {
			n++
		}
	}

	return n
}

func TestNew(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}); !errors.Is(err, ErrStatementsNil) {
		t.Fatalf("expected ErrStatementsNil, got %v", err)
	}
}

func TestEnsureUser(t *testing.T) {
	t.Parallel()

	t.Run("Creates Missing User", func(t *testing.T) {
		t.Parallel()

		mock, _ := apimock.NewData(apimock.DataConfig{
			ScriptFor: func(sql string) apimock.Script {
				if strings.Contains(sql, "pg_user") {
					return apimock.Script{ResultRows: 2, Records: userRows("bob", "carol")}
				}
				return apimock.Script{}
			},
		})
		client := newClient(t, mock)

		result, err := client.EnsureUser(context.Background(), target, "alice")
		if err != nil {
			t.Fatalf("EnsureUser returned error: %v", err)
		}
		if !result.Created {
			t.Fatalf("expected user to be created")
		}
		if !strings.HasPrefix(result.Password, "IAM_") {
			t.Fatalf("expected IAM_ placeholder credential, got %q", result.Password)
		}
		if strings.Contains(result.Password, "-") {
			t.Fatalf("expected dashes mapped to underscores, got %q", result.Password)
		}

		submitted := mock.Submitted()
		if len(submitted) != 2 {
			t.Fatalf("expected catalog check plus create, got %d statements", len(submitted))
		}
		if !strings.HasPrefix(submitted[1], "CREATE USER alice PASSWORD 'IAM_") {
			t.Fatalf("unexpected create statement: %q", submitted[1])
		}
	})

	t.Run("Existing User Is A NoOp", func(t *testing.T) {
		t.Parallel()

		mock, _ := apimock.NewData(apimock.DataConfig{
			ScriptFor: func(sql string) apimock.Script {
				return apimock.Script{ResultRows: 1, Records: userRows("alice")}
			},
		})
		client := newClient(t, mock)

		result, err := client.EnsureUser(context.Background(), target, "alice")
		if err != nil {
			t.Fatalf("EnsureUser returned error: %v", err)
		}
		if result.Created {
			t.Fatalf("expected no creation for an existing user")
		}
		if result.Password != "" {
			t.Fatalf("expected no credential for an existing user, got %q", result.Password)
		}
		if len(mock.Submitted()) != 1 {
			t.Fatalf("expected only the catalog check, got %d statements", len(mock.Submitted()))
		}
	})

	t.Run("Idempotent Across Calls", func(t *testing.T) {
		t.Parallel()

		// The simulated catalog picks up the user once the create statement
		// lands, as the real catalog would.
		users := []string{"bob"}
		mock, _ := apimock.NewData(apimock.DataConfig{
			ScriptFor: func(sql string) apimock.Script {
				if strings.HasPrefix(sql, "CREATE USER alice") {
					users = append(users, "alice")
					return apimock.Script{}
				}
				return apimock.Script{ResultRows: int64(len(users)), Records: userRows(users...)}
			},
		})
		client := newClient(t, mock)

		first, err := client.EnsureUser(context.Background(), target, "alice")
		if err != nil {
			t.Fatalf("first EnsureUser returned error: %v", err)
		}
		second, err := client.EnsureUser(context.Background(), target, "alice")
		if err != nil {
			t.Fatalf("second EnsureUser returned error: %v", err)
		}

		if !first.Created || second.Created {
			t.Fatalf("expected created=true then created=false, got %v then %v", first.Created, second.Created)
		}
		if got := countPrefix(mock.Submitted(), "CREATE USER"); got != 1 {
			t.Fatalf("expected exactly one CREATE USER statement, got %d", got)
		}
	})

	t.Run("Catalog Check Failure Surfaces", func(t *testing.T) {
		t.Parallel()

		mock, _ := apimock.NewData(apimock.DataConfig{Fail: true})
		client := newClient(t, mock)

		if _, err := client.EnsureUser(context.Background(), target, "alice"); !errors.Is(err, statement.ErrSubmit) {
			t.Fatalf("expected submission error, got %v", err)
		}
	})

	t.Run("Create Failure Surfaces", func(t *testing.T) {
		t.Parallel()

		mock, _ := apimock.NewData(apimock.DataConfig{
			ScriptFor: func(sql string) apimock.Script {
				if strings.HasPrefix(sql, "CREATE USER") {
					return apimock.Script{
						Statuses: []datatypes.StatusString{datatypes.StatusStringFailed},
						Error:    "permission denied",
					}
				}
				return apimock.Script{Records: userRows("bob")}
			},
		})
		client := newClient(t, mock)

		_, err := client.EnsureUser(context.Background(), target, "alice")
		var failure *statement.FailureError
		if !errors.As(err, &failure) {
			t.Fatalf("expected FailureError, got %v", err)
		}
	})
}

func TestEnsureGroup(t *testing.T) {
	t.Parallel()

	t.Run("Creates Missing Group", func(t *testing.T) {
		t.Parallel()

		mock, _ := apimock.NewData(apimock.DataConfig{
			ScriptFor: func(sql string) apimock.Script {
				if strings.Contains(sql, "pg_group") {
					return apimock.Script{ResultRows: 0}
				}
				return apimock.Script{}
			},
		})
		client := newClient(t, mock)

		result, err := client.EnsureGroup(context.Background(), target, "readers")
		if err != nil {
			t.Fatalf("EnsureGroup returned error: %v", err)
		}
		if !result.Created {
			t.Fatalf("expected group to be created")
		}

		submitted := mock.Submitted()
		if len(submitted) != 2 || submitted[1] != "CREATE GROUP readers;" {
			t.Fatalf("unexpected statements: %+v", submitted)
		}
	})

	t.Run("Existing Group Issues No Mutation", func(t *testing.T) {
		t.Parallel()

		mock, _ := apimock.NewData(apimock.DataConfig{
			ScriptFor: func(string) apimock.Script {
				return apimock.Script{ResultRows: 1}
			},
		})
		client := newClient(t, mock)

		result, err := client.EnsureGroup(context.Background(), target, "readers")
		if err != nil {
			t.Fatalf("EnsureGroup returned error: %v", err)
		}
		if result.Created {
			t.Fatalf("expected no creation for an existing group")
		}
		if len(mock.Submitted()) != 1 {
			t.Fatalf("expected zero mutating statements, got %+v", mock.Submitted())
		}
	})

	t.Run("Check Failure Propagates", func(t *testing.T) {
		t.Parallel()

		mock, _ := apimock.NewData(apimock.DataConfig{Fail: true})
		client := newClient(t, mock)

		if _, err := client.EnsureGroup(context.Background(), target, "readers"); err == nil {
			t.Fatalf("expected check failure to propagate")
		}
	})

	t.Run("Create Failure Propagates", func(t *testing.T) {
		t.Parallel()

		mock, _ := apimock.NewData(apimock.DataConfig{
			ScriptFor: func(sql string) apimock.Script {
				if strings.HasPrefix(sql, "CREATE GROUP") {
					return apimock.Script{
						Statuses: []datatypes.StatusString{datatypes.StatusStringFailed},
						Error:    "group quota exceeded",
					}
				}
				return apimock.Script{ResultRows: 0}
			},
		})
		client := newClient(t, mock)

		_, err := client.EnsureGroup(context.Background(), target, "readers")
		var failure *statement.FailureError
		if !errors.As(err, &failure) {
			t.Fatalf("expected FailureError, got %v", err)
		}
	})
}

func TestAddUserToGroup(t *testing.T) {
	t.Parallel()

	t.Run("Issues Alter Group", func(t *testing.T) {
		t.Parallel()

		mock, _ := apimock.NewData(apimock.DataConfig{})
		client := newClient(t, mock)

		if err := client.AddUserToGroup(context.Background(), target, "alice", "readers"); err != nil {
			t.Fatalf("AddUserToGroup returned error: %v", err)
		}

		submitted := mock.Submitted()
		if len(submitted) != 1 || submitted[0] != `ALTER GROUP readers ADD USER "alice";` {
			t.Fatalf("unexpected statements: %+v", submitted)
		}
	})

	t.Run("Failure Is Suppressed", func(t *testing.T) {
		t.Parallel()

		mock, _ := apimock.NewData(apimock.DataConfig{
			ScriptFor: func(string) apimock.Script {
				return apimock.Script{
					Statuses: []datatypes.StatusString{datatypes.StatusStringFailed},
					Error:    "user is already a member",
				}
			},
		})
		client := newClient(t, mock)

		if err := client.AddUserToGroup(context.Background(), target, "alice", "readers"); err != nil {
			t.Fatalf("expected best-effort suppression, got %v", err)
		}
	})
}

func TestGrantSchemaUsage(t *testing.T) {
	t.Parallel()

	t.Run("Fixed Statement Order", func(t *testing.T) {
		t.Parallel()

		mock, _ := apimock.NewData(apimock.DataConfig{})
		client := newClient(t, mock)

		if err := client.GrantSchemaUsage(context.Background(), target, "sales", "readers"); err != nil {
			t.Fatalf("GrantSchemaUsage returned error: %v", err)
		}

		want := []string{
			"GRANT USAGE ON SCHEMA sales TO GROUP readers;",
			"GRANT SELECT ON ALL TABLES IN SCHEMA sales TO GROUP readers;",
			"ALTER DEFAULT PRIVILEGES IN SCHEMA sales GRANT SELECT ON TABLES TO GROUP readers;",
		}
		submitted := mock.Submitted()
		if len(submitted) != len(want) {
			t.Fatalf("expected %d statements, got %+v", len(want), submitted)
		}
		for i, sql := range want {
			if submitted[i] != sql {
				t.Fatalf("statement %d: expected %q, got %q", i, sql, submitted[i])
			}
		}
	})

	t.Run("First Failure Does Not Stop The Rest", func(t *testing.T) {
		t.Parallel()

		mock, _ := apimock.NewData(apimock.DataConfig{
			ScriptFor: func(sql string) apimock.Script {
				if strings.HasPrefix(sql, "GRANT USAGE") {
					return apimock.Script{
						Statuses: []datatypes.StatusString{datatypes.StatusStringFailed},
						Error:    "schema does not exist",
					}
				}
				return apimock.Script{}
			},
		})
		client := newClient(t, mock)

		if err := client.GrantSchemaUsage(context.Background(), target, "sales", "readers"); err != nil {
			t.Fatalf("expected per-statement suppression, got %v", err)
		}
		if len(mock.Submitted()) != 3 {
			t.Fatalf("expected all 3 grants issued, got %+v", mock.Submitted())
		}
	})
}

func TestGroupRoles(t *testing.T) {
	t.Parallel()

	t.Run("Returns Decoded Rows", func(t *testing.T) {
		t.Parallel()

		mock, _ := apimock.NewData(apimock.DataConfig{
			SQLValidator: func(sql string) error {
				if !strings.Contains(sql, "'reporting'") {
					return errors.New("expected the workgroup scope in the query")
				}
				return nil
			},
			ScriptFor: func(string) apimock.Script {
				return apimock.Script{
					ResultRows: 1,
					Records: [][]datatypes.Field{
						{
							&datatypes.FieldMemberStringValue{Value: "readers"},
							&datatypes.FieldMemberStringValue{Value: "alice"},
						},
					},
				}
			},
		})
		client := newClient(t, mock)

		rows, err := client.GroupRoles(context.Background(), target)
		if err != nil {
			t.Fatalf("GroupRoles returned error: %v", err)
		}
		if len(rows) != 1 || rows[0][0].Str != "readers" || rows[0][1].Str != "alice" {
			t.Fatalf("unexpected rows: %+v", rows)
		}
	})

	t.Run("Failure Propagates", func(t *testing.T) {
		t.Parallel()

		mock, _ := apimock.NewData(apimock.DataConfig{Fail: true})
		client := newClient(t, mock)

		if _, err := client.GroupRoles(context.Background(), target); err == nil {
			t.Fatalf("expected listing failure to propagate")
		}
	})
}
