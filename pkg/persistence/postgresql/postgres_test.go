package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/gonbaum/composite/pkg/models"
	"github.com/gonbaum/composite/pkg/persistence"
	"github.com/gonbaum/composite/pkg/persistence/postgresql"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"action_logs", "auth_credentials", "actions", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("actions_test"),
			postgres.WithUsername("actions"),
			postgres.WithPassword("actions"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	for _, table := range []string{"actions", "auth_credentials", "action_logs", "schema_migrations"} {
		var exists bool

		err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "%s table should exist", table)
	}
}

func TestNewPersistence_HealthCheck(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	assert.NoError(t, p.HealthCheck(ctx))
}

func TestActionRepository_RoundTrip(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.ActionRepository()

	body := `{"q":"{{q}}"}`
	action := models.NewAction("search", &models.APIConfig{Method: "POST", URLTemplate: "https://x/search", BodyTemplate: &body, TimeoutMS: 5000})
	action.Tags = []string{"search", "web"}
	action.Credential = "github"
	action.Parameters = []models.ParameterSpec{{Name: "q", Type: models.ParameterTypeString, Required: true}}

	require.NoError(t, repo.Save(ctx, action))

	got, err := repo.GetByName(ctx, "search", true)
	require.NoError(t, err)

	assert.Equal(t, action.ID, got.ID)
	assert.Equal(t, models.ActionTypeAPI, got.Type)
	assert.Equal(t, body, *got.APIConfig().BodyTemplate)
	assert.Equal(t, 5000, got.APIConfig().TimeoutMS)
	assert.Equal(t, "github", got.Credential)
	assert.Equal(t, []string{"search", "web"}, got.Tags)
	assert.NoError(t, got.Validate())

	got.Enabled = false
	require.NoError(t, repo.Save(ctx, got))

	_, err = repo.GetByName(ctx, "search", true)
	assert.True(t, persistence.IsActionNotFound(err))

	duplicate := models.NewAction("search", &models.BashConfig{CommandTemplate: "ls"})
	assert.ErrorIs(t, repo.Save(ctx, duplicate), persistence.ErrActionAlreadyExists)

	require.NoError(t, repo.Delete(ctx, got.ID))
	assert.True(t, persistence.IsActionNotFound(repo.Delete(ctx, got.ID)))
}

func TestActionRepository_List(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.ActionRepository()

	for _, name := range []string{"charlie", "alpha", "bravo"} {
		action := models.NewAction(name, &models.BashConfig{CommandTemplate: "echo " + name})
		action.Tags = []string{"echo"}
		require.NoError(t, repo.Save(ctx, action))
	}

	result, err := repo.List(ctx, persistence.ListActionsOptions{Tag: "echo", Limit: 2})
	require.NoError(t, err)

	assert.Equal(t, int64(3), result.TotalCount)
	assert.True(t, result.HasNextPage)
	require.Len(t, result.Actions, 2)
	assert.Equal(t, "alpha", result.Actions[0].Name)

	result, err = repo.List(ctx, persistence.ListActionsOptions{Query: "CHAR"})
	require.NoError(t, err)
	require.Len(t, result.Actions, 1)
	assert.Equal(t, "echo charlie", result.Actions[0].BashConfig().CommandTemplate)
}

func TestCredentialRepository_RoundTrip(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.CredentialRepository()

	credential := &models.AuthCredential{
		Name:          "keys",
		AuthType:      models.AuthTypeCustomHeaders,
		CustomHeaders: map[string]string{"X-Api-Key": "abc"},
	}
	require.NoError(t, repo.Save(ctx, credential))

	got, err := repo.GetByName(ctx, "keys")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"X-Api-Key": "abc"}, got.CustomHeaders)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, repo.Delete(ctx, credential.ID))

	_, err = repo.GetByID(ctx, credential.ID)
	assert.True(t, persistence.IsCredentialNotFound(err))
}

func TestActionLogRepository_AppendListPrune(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.ActionLogRepository()

	old := time.Now().UTC().Add(-48 * time.Hour)
	status := 200

	require.NoError(t, repo.Append(ctx, &models.ActionLog{
		ActionName: "get_weather",
		ActionType: models.ActionTypeAPI,
		Params:     map[string]any{"city": "Tokyo"},
		Response:   &models.Result{Success: true, Status: 200, Data: map[string]any{"ok": true}},
		Success:    true,
		StatusCode: &status,
		Source:     models.SourceMCP,
		CreatedAt:  old,
		ResolvedRequest: &models.ResolvedRequest{
			Method:  "GET",
			URL:     "https://wttr.in/Tokyo?format=j1",
			Headers: map[string]string{"Authorization": "Bearer ****"},
		},
	}))
	require.NoError(t, repo.Append(ctx, &models.ActionLog{
		ActionName:   "disk_usage",
		ActionType:   models.ActionTypeBash,
		Success:      false,
		ErrorMessage: "command timed out after 100ms",
		Source:       models.SourceDashboard,
	}))

	result, err := repo.List(ctx, persistence.ListActionLogsOptions{})
	require.NoError(t, err)
	require.Len(t, result.Logs, 2)
	assert.Equal(t, "disk_usage", result.Logs[0].ActionName)

	weather := result.Logs[1]
	assert.Equal(t, "Tokyo", weather.Params["city"])
	assert.Equal(t, 200, *weather.StatusCode)
	assert.Equal(t, "Bearer ****", weather.ResolvedRequest.Headers["Authorization"])

	success := false
	result, err = repo.List(ctx, persistence.ListActionLogsOptions{Success: &success, Source: models.SourceDashboard})
	require.NoError(t, err)
	assert.Len(t, result.Logs, 1)

	deleted, err := repo.DeleteBefore(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
