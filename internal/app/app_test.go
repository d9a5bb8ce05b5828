package app

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tasker/internal/common"
)

func testConfig(t *testing.T) *common.Config {
	cfg := common.NewDefaultConfig()
	cfg.Storage.Badger.Path = filepath.Join(t.TempDir(), "data")
	return cfg
}

func TestNew_WiresComponents(t *testing.T) {
	app, err := New(testConfig(t), arbor.NewLogger())
	require.NoError(t, err)

	assert.NotNil(t, app.StorageManager)
	assert.NotNil(t, app.TaskService)
	assert.NotNil(t, app.UserService)
	assert.NotNil(t, app.SessionService)
	assert.NotNil(t, app.TaskHandler)
	assert.NotNil(t, app.AuthHandler)
	assert.NotNil(t, app.WSHandler)
	assert.True(t, app.SchedulerService.IsRunning())

	require.NoError(t, app.Close())
	assert.False(t, app.SchedulerService.IsRunning())
}

func TestNew_SchedulerDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scheduler.Enabled = false

	app, err := New(cfg, arbor.NewLogger())
	require.NoError(t, err)
	defer app.Close()

	assert.False(t, app.SchedulerService.IsRunning())
}

func TestNew_StorageFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Type = "mongo"

	_, err := New(cfg, arbor.NewLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported storage type")
}
