package toolschema

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSchema(t *testing.T) {
	t.Parallel()

	s, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "ask_database", s.Name)
	assert.Equal(t, "query", s.Parameter.Name)
	assert.Len(t, s.Examples(), 26)
	assert.Len(t, s.Tables, 27)
	assert.Len(t, s.tablesIn(GroupMain), 11)
	assert.Len(t, s.tablesIn(GroupSupplemental), 16)

	for _, ex := range s.Examples() {
		assert.Zero(t, strings.Count(ex.Query, "'")%2, "unbalanced quotes in %q", ex.Query)
	}
}

func TestParameterDescriptionCoversCatalog(t *testing.T) {
	t.Parallel()

	s, err := Default()
	require.NoError(t, err)
	desc := s.ParameterDescription()

	assert.True(t, strings.HasPrefix(desc, "SQL query extracting information from the database"))
	assert.Contains(t, desc, `("how many home runs did Reggie Jackson hit between 1975 and 1985?", `)
	assert.Contains(t, desc, "HAVING twenty_game_winners >= 4;\")")
	assert.Contains(t, desc, "The database is comprised of the following main tables:")
	assert.Contains(t, desc, "  People                 Player names and biographical information")
	assert.Contains(t, desc, "PEOPLE TABLE\n\nplayerID")
	assert.Contains(t, desc, "teamIDlahman45 Team ID used in Lahman database version 4.5")
	for _, table := range s.Tables {
		assert.Contains(t, desc, strings.ToUpper(table.Name)+" TABLE")
	}
}

func TestProviderTool(t *testing.T) {
	t.Parallel()

	s, err := Default()
	require.NoError(t, err)
	tool := s.ProviderTool()

	assert.Equal(t, "ask_database", tool.Name)
	assert.Contains(t, tool.Description, "fully formed SQL query")

	params, ok := tool.InputSchema.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "object", params["type"])
	assert.Equal(t, []string{"query"}, params["required"])
	props := params["properties"].(map[string]interface{})
	query := props["query"].(map[string]interface{})
	assert.Equal(t, "string", query["type"])
	assert.Equal(t, s.ParameterDescription(), query["description"])
}

func TestParseRejectsIncompleteSchemas(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "missing name",
			doc:  "parameter: {name: query}\ntables: [{name: People, columns: [[playerID, id]]}]\n",
			want: "name is required",
		},
		{
			name: "no tables",
			doc:  "name: ask_database\nparameter: {name: query}\n",
			want: "at least one table",
		},
		{
			name: "half example",
			doc:  "name: ask_database\nparameter: {name: query}\nexamples: [{question: hi}]\ntables: [{name: People}]\n",
			want: "examples[0]",
		},
		{
			name: "bad column",
			doc:  "name: ask_database\nparameter: {name: query}\ntables: [{name: People, columns: [[playerID]]}]\n",
			want: "column needs [name, description]",
		},
		{
			name: "not yaml",
			doc:  "name: [unterminated",
			want: "decode tool schema",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadOverride(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalSchema(3)), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Version)
	assert.Same(t, s, s.Current())
	assert.Contains(t, s.ParameterDescription(), "PEOPLE TABLE")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func minimalSchema(version int) string {
	return strings.Join([]string{
		"version: " + strconv.Itoa(version),
		"name: ask_database",
		"description: Query the stats database.",
		"parameter:",
		"  name: query",
		"  preamble: Write SQLite SQL.",
		"tables:",
		"  - name: People",
		"    group: main",
		"    summary: Player names",
		"    columns:",
		"      - [playerID, Player ID code]",
		"",
	}, "\n")
}

