package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

// 测试 ${VAR:default} 占位符替换
func TestExpandEnv(t *testing.T) {
	t.Setenv("PLAN_TEST_HOST", "db.internal")

	assert.Equal(t, "host: db.internal", expandEnv("host: ${PLAN_TEST_HOST:localhost}"))
	assert.Equal(t, "port: 5432", expandEnv("port: ${PLAN_TEST_UNSET_PORT:5432}"))
	assert.Equal(t, "key: ${PLAN_TEST_UNSET_KEY}", expandEnv("key: ${PLAN_TEST_UNSET_KEY}"), "无默认值时应保留原样")
}

// 测试默认值兜底与环境配置覆盖
func TestLoadFrom_DefaultsAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", `
app:
  name: plan-test
planning:
  default_chapters_per_part: ${PLAN_TEST_CPP:30}
`)
	writeConfig(t, dir, "config.testing.yaml", `
server:
  http:
    port: 9090
`)
	t.Setenv("APP_ENV", "testing")

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, "plan-test", cfg.App.Name)
	assert.Equal(t, 9090, cfg.Server.HTTP.Port)
	assert.Equal(t, 30, cfg.Planning.DefaultChaptersPerPart)
	assert.Equal(t, 3, cfg.Planning.MaxVersionCount)
	assert.Equal(t, 3*time.Second, cfg.Planning.ProgressPushInterval)
	assert.Equal(t, 10*time.Minute, cfg.Features.BlueprintCache)
}

// 测试非法规划配置被拒绝
func TestLoadFrom_InvalidPlanning(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", `
planning:
  default_version_count: 5
  max_version_count: 2
`)
	t.Setenv("APP_ENV", "testing")

	_, err := LoadFrom(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_version_count")
}

// 测试缺失默认配置文件
func TestLoadFrom_MissingFile(t *testing.T) {
	_, err := LoadFrom(t.TempDir())
	require.Error(t, err)
}
