package seed_test

import (
	"log/slog"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gonbaum/composite/pkg/models"
	"github.com/gonbaum/composite/pkg/persistence/file"
	"github.com/gonbaum/composite/pkg/seed"
	"github.com/gonbaum/composite/pkg/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	actions, err := seed.Defaults()
	require.NoError(t, err)

	names := make([]string, 0, len(actions))
	for _, action := range actions {
		names = append(names, action.Name)
		require.NoError(t, action.Validate(), action.Name)
	}

	assert.Equal(t, []string{"get_weather", "get_dad_joke", "get_cat_fact", "get_random_image", "disk_usage"}, names)

	image := actions[3]
	require.Len(t, image.Parameters, 2)
	assert.Equal(t, models.ParameterTypeNumber, image.Parameters[0].Type)
	assert.False(t, image.Parameters[0].Required)
	assert.Equal(t, "400", *image.Parameters[0].DefaultValue)

	disk := actions[4]
	require.NotNil(t, disk.BashConfig())
	assert.Equal(t, []string{"du"}, disk.BashConfig().AllowedCommands)
	assert.Equal(t, 10000, disk.BashConfig().TimeoutMS)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not yaml", data: "actions: [\n"},
		{name: "empty", data: "actions: []\n"},
		{name: "missing name", data: "actions:\n  - action_type: api\n"},
		{name: "numeric default", data: "actions:\n  - name: a\n    action_type: api\n    parameters:\n      - name: w\n        default_value: 400\n"},
		{name: "bad method", data: "actions:\n  - name: a\n    action_type: api\n    api_config:\n      method: TRACE\n      url_template: x\n"},
		{name: "config for another type", data: "actions:\n  - name: a\n    action_type: bash\n    api_config:\n      url_template: x\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := seed.Parse([]byte(tt.data))

			assert.Error(t, err)
		})
	}
}

func TestSeeder_Seed(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	service := services.NewAction(store, validator.New(validator.WithRequiredStructEnabled()))
	seeder := seed.NewSeeder(slog.New(slog.DiscardHandler), store, service)

	actions, err := seed.Defaults()
	require.NoError(t, err)

	summary, err := seeder.Seed(t.Context(), actions, false)
	require.NoError(t, err)
	assert.Equal(t, seed.Summary{Created: 5}, *summary)

	weather, err := store.ActionRepository().GetByName(t.Context(), "get_weather", true)
	require.NoError(t, err)

	again, err := seed.Defaults()
	require.NoError(t, err)

	summary, err = seeder.Seed(t.Context(), again, false)
	require.NoError(t, err)
	assert.Equal(t, seed.Summary{Updated: 5}, *summary)

	reseeded, err := store.ActionRepository().GetByName(t.Context(), "get_weather", true)
	require.NoError(t, err)
	assert.Equal(t, weather.ID, reseeded.ID)

	require.NoError(t, store.CredentialRepository().Save(t.Context(), &models.AuthCredential{
		Name:        "github",
		AuthType:    models.AuthTypeBearer,
		BearerToken: "t",
	}))

	fresh, err := seed.Defaults()
	require.NoError(t, err)

	summary, err = seeder.Seed(t.Context(), fresh[:1], true)
	require.NoError(t, err)
	assert.Equal(t, seed.Summary{Created: 1, Deleted: 6}, *summary)

	_, err = store.ActionRepository().GetByName(t.Context(), "disk_usage", false)
	assert.Error(t, err)

	credentials, err := store.CredentialRepository().List(t.Context())
	require.NoError(t, err)
	assert.Empty(t, credentials)
}
