package cli

import (
	"bytes"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yubzen/ballpark/internal/statsdb"
	"github.com/yubzen/ballpark/internal/toolschema"
)

const testKeyEnv = "BALLPARK_TEST_API_KEY"

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func seedBattingDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "baseball_db.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`CREATE TABLE Batting (playerID TEXT, yearID INTEGER, teamID TEXT, HR INTEGER);
		INSERT INTO Batting VALUES ('jacksre01', 1977, 'NYA', 32), ('jacksre01', 1978, 'NYA', 27), ('jacksre01', 1979, 'NYA', 14);`)
	require.NoError(t, err)
	return path
}

func writeConfig(t *testing.T, baseURL, dbPath string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := fmt.Sprintf(`[provider]
name = "openai"
model = "gpt-4o"
base_url = %q
api_key_env = %q

[database]
path = %q
read_only = true

[retry]
max_attempts = 1

[log]
path = %q
level = "debug"
`, baseURL, testKeyEnv, dbPath, filepath.Join(dir, "ballpark.log"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func toolCallServer(t *testing.T, status int, query string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
			return
		}
		args := fmt.Sprintf(`{"query":%q}`, query)
		fmt.Fprintf(w, `{"choices":[{"finish_reason":"tool_calls","message":{"content":null,"tool_calls":[{"id":"call_1","type":"function","function":{"name":"ask_database","arguments":%q}}]}}]}`, args)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAskCmdPrintsQueryAndResult(t *testing.T) {
	t.Setenv(testKeyEnv, "sk-test-abcdefghijklmnopqrstuvwxyz")
	query := "SELECT SUM(HR) AS total_home_runs FROM Batting WHERE playerID = 'jacksre01' AND teamID = 'NYA'"
	srv := toolCallServer(t, http.StatusOK, query)
	opts := &GlobalOptions{ConfigPath: writeConfig(t, srv.URL, seedBattingDB(t))}

	out, err := execute(t, NewAskCmd(opts), "How many homers did Reggie Jackson hit as a Yankee?")
	require.NoError(t, err)
	assert.Contains(t, out, "SQL query:\n"+query)
	assert.Contains(t, out, "| total_home_runs |\n| --- |\n| 73 |")
}

func TestAskCmdFailsOnModelError(t *testing.T) {
	t.Setenv(testKeyEnv, "sk-test-abcdefghijklmnopqrstuvwxyz")
	srv := toolCallServer(t, http.StatusUnauthorized, "")
	opts := &GlobalOptions{ConfigPath: writeConfig(t, srv.URL, seedBattingDB(t))}

	out, err := execute(t, NewAskCmd(opts), "anything")
	require.ErrorIs(t, err, ErrModelFailed)
	assert.Contains(t, out, "The language model request failed")
}

func TestBootstrapRejectsMissingDatabase(t *testing.T) {
	t.Setenv(testKeyEnv, "sk-test-abcdefghijklmnopqrstuvwxyz")
	path := writeConfig(t, "http://127.0.0.1:1", filepath.Join(t.TempDir(), "missing.db"))

	_, err := Bootstrap(t.Context(), path)
	assert.ErrorIs(t, err, statsdb.ErrDatabaseMissing)
}

func TestBootstrapRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[provider]\nname = \"gemini\"\n"), 0o600))

	_, err := Bootstrap(t.Context(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider.name")
}

func TestSchemaCmd(t *testing.T) {
	opts := &GlobalOptions{ConfigPath: filepath.Join(t.TempDir(), "absent.toml")}
	schema, err := toolschema.Default()
	require.NoError(t, err)

	out, err := execute(t, NewSchemaCmd(opts))
	require.NoError(t, err)
	assert.Equal(t, schema.ParameterDescription()+"\n", out)

	out, err = execute(t, NewSchemaCmd(opts), "--examples")
	require.NoError(t, err)
	examples := schema.Examples()
	assert.Equal(t, len(examples)*2, strings.Count(out, "\n"))
	assert.Contains(t, out, examples[0].Question+"\n  "+examples[0].Query)
}

func TestConfigCmdRedactsKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test-abcdefghijklmnopqrstuvwxyz")
	opts := &GlobalOptions{ConfigPath: filepath.Join(t.TempDir(), "absent.toml")}

	out, err := execute(t, NewConfigCmd(opts))
	require.NoError(t, err)
	assert.Contains(t, out, "Ballpark Configuration")
	assert.Contains(t, out, "sk-t...wxyz")
	assert.NotContains(t, out, "sk-test-abcdefghijklmnopqrstuvwxyz")
}

func TestConfigInitWritesDefaultsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	opts := &GlobalOptions{ConfigPath: path}

	out, err := execute(t, NewConfigCmd(opts), "--init")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote default configuration to "+path)

	cfg, _, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", cfg.Provider.Model)
	assert.True(t, cfg.Database.ReadOnly)

	_, err = execute(t, NewConfigCmd(opts), "--init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestAuthStatusReportsSource(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("OPENAI_API_KEY", "sk-test-abcdefghijklmnopqrstuvwxyz")
	opts := &GlobalOptions{ConfigPath: filepath.Join(t.TempDir(), "absent.toml")}

	out, err := execute(t, NewAuthCmd(opts), "status", "--check")
	require.NoError(t, err)
	assert.Contains(t, out, "openai: sk-t...wxyz (from environment)")
	assert.Contains(t, out, "openai: ok")
}

func TestAuthProviderRejectsUnknownName(t *testing.T) {
	_, err := authProvider(&GlobalOptions{}, []string{"gemini"})
	assert.Error(t, err)

	name, err := authProvider(&GlobalOptions{}, []string{" Anthropic "})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", name)
}
