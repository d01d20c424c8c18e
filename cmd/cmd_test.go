package cmd_test

import (
	"bytes"
	"testing"

	"github.com/mautops/bounty-gin/cmd"
	"github.com/mautops/bounty-gin/internal/authz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run 执行根命令并返回输出
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("APP_DATABASE_DRIVER", "sqlite")
	t.Setenv("APP_DATABASE_PATH", "file::memory:")
	t.Setenv("APP_AUTH_JWT_SECRET", "cmd-secret")
	t.Setenv("APP_LOG_LEVEL", "error")

	var out bytes.Buffer
	root := cmd.GetRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// TestRootCmd_Subcommands 测试子命令注册
func TestRootCmd_Subcommands(t *testing.T) {
	root := cmd.GetRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"server", "migrate", "sweep", "grants"} {
		assert.True(t, names[name], "missing subcommand %s", name)
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestGrantsDefaults(t *testing.T) {
	out, err := run(t, "grants", "defaults")
	require.NoError(t, err)

	policy, err := authz.ParsePolicy([]byte(out))
	require.NoError(t, err)
	assert.Len(t, policy.Flatten(), 12)
}

func TestSweepCmd(t *testing.T) {
	out, err := run(t, "sweep")
	require.NoError(t, err)
	assert.Contains(t, out, `"released_claims": 0`)
	assert.Contains(t, out, `"expired_tasks": 0`)
}

func TestMigrateCmd(t *testing.T) {
	_, err := run(t, "migrate")
	assert.NoError(t, err)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := cmd.LoadConfig("/nonexistent/config.yaml")
	assert.Error(t, err)
}
