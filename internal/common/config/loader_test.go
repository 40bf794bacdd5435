package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalYAML = `
database:
  postgres:
    host: localhost
    database: dibs
    user: dibs
llm:
  api_key: sk-test
`

func TestLoadFromFile_Defaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, "gpt-3.5-turbo", cfg.LLM.Model)
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 2000, cfg.LLM.MaxTokens)
	assert.Equal(t, SearchBackendPostgres, cfg.CRM.SearchBackend)
	assert.Equal(t, "clients", cfg.CRM.SearchIndex)
	assert.Equal(t, 5, cfg.CRM.MaxRecordsShow)
	assert.False(t, cfg.CRM.Debug)
	assert.Equal(t, "demo-user", cfg.Chat.DemoUserID)
	assert.Equal(t, 50, cfg.Chat.TitleMaxRunes)
	assert.True(t, cfg.Chat.Persist())
	assert.False(t, cfg.Camunda.Enabled())
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("DIBS_TEST_KEY", "sk-from-env")
	cfg, err := LoadFromFile(writeConfig(t, `
database:
  postgres:
    host: localhost
    database: dibs
    user: dibs
llm:
  api_key: ${DIBS_TEST_KEY}
chat:
  persistence_enabled: false
`))
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.LLM.APIKey)
	assert.False(t, cfg.Chat.Persist())
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing postgres host",
			yaml:    "llm:\n  api_key: k\n",
			wantErr: "database.postgres.host is required",
		},
		{
			name:    "elasticsearch backend without address",
			yaml:    minimalYAML + "crm:\n  search_backend: elasticsearch\n",
			wantErr: "elasticsearch",
		},
		{
			name:    "unknown backend",
			yaml:    minimalYAML + "crm:\n  search_backend: solr\n",
			wantErr: "crm.search_backend",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OPENAI_API_KEY", "")
			_, err := LoadFromFile(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestElasticsearchConfig_AllAddresses(t *testing.T) {
	e := ElasticsearchConfig{URL: "http://a:9200", Addresses: []string{"http://b:9200"}}
	assert.Equal(t, []string{"http://a:9200", "http://b:9200"}, e.AllAddresses())

	e = ElasticsearchConfig{URL: "http://a:9200", Addresses: []string{"http://a:9200"}}
	assert.Equal(t, []string{"http://a:9200"}, e.AllAddresses())
	assert.Equal(t, "http://a:9200", e.GetURL())
}

func TestWorkerHelpers(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{"crm-query": {Enabled: false, Timeout: 1000}}}
	assert.False(t, IsWorkerEnabled(cfg, "crm-query"))
	assert.True(t, IsWorkerEnabled(cfg, "other"))
	assert.Equal(t, 30000, GetWorkerConfig(cfg, "other").Timeout)
	assert.Equal(t, time.Second, GetDuration(GetWorkerConfig(cfg, "crm-query").Timeout))
}
