package container

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/oa-approval/internal/application/workflow"
	"github.com/garyjia/oa-approval/internal/domain/entity"
)

const testUsers = `
users:
  - id: 1
    username: alice
    role: employee
    department: rd
    manager_id: 2
  - id: 2
    username: bob
    role: manager
    department: rd
  - id: 9
    username: root
    role: admin
    department: it
`

const testWorkflows = `
workflows:
  - key: expense_std
    request_type: expense
    is_default: true
    steps:
      - step_order: 1
        step_key: manager
        assignee_kind: manager
`

func seedFiles(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	users := filepath.Join(dir, "users.yaml")
	workflows := filepath.Join(dir, "workflows.yaml")
	require.NoError(t, os.WriteFile(users, []byte(testUsers), 0o644))
	require.NoError(t, os.WriteFile(workflows, []byte(testWorkflows), 0o644))
	return users, workflows
}

func testConfig(t *testing.T, driver string) *Config {
	users, workflows := seedFiles(t)
	cfg := DefaultConfig()
	cfg.Database.Driver = driver
	cfg.Database.Path = filepath.Join(t.TempDir(), "approval.db")
	cfg.Engine.SynchronousNotifications = true
	cfg.Catalog = CatalogConfig{UsersFile: users, WorkflowsFile: workflows, SeedOnStart: true}
	cfg.Server.Mode = "test"
	return cfg
}

func TestNewContainer_Validation(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(DefaultConfig(), nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Database.Driver = "oracle"
	_, err = NewContainer(cfg, zap.NewNop())
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.Lark.Enabled = true
	_, err = NewContainer(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestContainer_Lifecycle(t *testing.T) {
	for _, driver := range []string{DriverMemory, DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			c, err := NewContainer(testConfig(t, driver), zap.NewNop())
			require.NoError(t, err)

			require.NoError(t, c.Start(ctx))
			assert.True(t, c.Ready())
			assert.Error(t, c.Start(ctx))

			health := c.Health(ctx)
			assert.True(t, health.Overall, "%+v", health.Components)
			assert.Equal(t, 0, c.Workers().GetWorkerCount())

			def, err := c.Catalog().Get(ctx, "expense_std")
			require.NoError(t, err)
			assert.Equal(t, entity.ScopeGlobal, def.ScopeKind)

			req, err := c.Engine().CreateRequest(ctx, workflow.CreateRequestInput{
				OwnerID: 1,
				Type:    "expense",
				Payload: map[string]interface{}{"amount": 80},
			})
			require.NoError(t, err)
			assert.Equal(t, entity.RequestStatusPending, req.Status)

			inbox, err := c.Engine().ListInbox(ctx, 2)
			require.NoError(t, err)
			require.Len(t, inbox, 1)

			feed, err := c.Notifications().List(ctx, 2, true, 0)
			require.NoError(t, err)
			assert.Len(t, feed, 1)

			server, err := c.HTTPServer()
			require.NoError(t, err)
			rec := httptest.NewRecorder()
			server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), "approval_operations_total")

			require.NoError(t, c.Close())
			assert.False(t, c.Ready())
			assert.Error(t, c.Close())
			assert.Error(t, c.Start(ctx))
		})
	}
}

func TestContainer_OpenWithoutWorkers(t *testing.T) {
	cfg := testConfig(t, DriverMemory)
	cfg.Metrics.Enabled = false

	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Open(context.Background()))
	defer c.Close()

	assert.False(t, c.Ready())
	assert.Nil(t, c.Workers())
	assert.Nil(t, c.Metrics())

	server, err := c.HTTPServer()
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestContainer_SeedFailure(t *testing.T) {
	cfg := testConfig(t, DriverMemory)
	cfg.Catalog.WorkflowsFile = filepath.Join(t.TempDir(), "missing.yaml")

	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	err = c.Open(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seed")
}

func TestConvertToZapFields(t *testing.T) {
	fields := convertToZapFields("a", 1, 2, "skipped", "err", assert.AnError, "dangling")
	require.Len(t, fields, 2)
	assert.Equal(t, "a", fields[0].Key)
	assert.Equal(t, "err", fields[1].Key)
}
