package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lazysync/internal/testutil"
)

const testDataset = `name: cli
date_layout: "2006-01-02"
teams:
  - {id: 1, name: Core, description: Engine team}
  - {id: 2, name: Docs, description: Writers}
users:
  - {id: 10, name: Ada, email: ada@example.com, secret: s3cret, team: 1, joined: "2024-01-02"}
  - {id: 11, name: Brian, email: brian@example.com, team: 1}
  - {id: 12, name: Cleo, email: cleo@example.com, team: 2}
posts:
  - {id: 100, title: Hello, body: First post, author: 10, mentions: [11, 12], published: "2024-02-01T09:00:00Z"}
  - {id: 101, title: Again, author: 10}
`

// fetchEnv writes the test dataset and returns root options pointing at a
// fresh database.
func fetchEnv(t *testing.T, format string) (*RootOptions, string) {
	t.Helper()
	dir := t.TempDir()
	dataset := filepath.Join(dir, "dataset.yaml")
	require.NoError(t, os.WriteFile(dataset, []byte(testDataset), 0o644))
	return &RootOptions{Format: format, Database: filepath.Join(dir, "lazysync.db")}, dataset
}

func runFetchCmd(t *testing.T, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	cmd := NewFetchCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestFetchMissingDatasetFlag(t *testing.T) {
	opts, _ := fetchEnv(t, "text")
	_, err := runFetchCmd(t, opts, "user", "10")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestFetchUnknownType(t *testing.T) {
	opts, dataset := fetchEnv(t, "text")
	out, err := runFetchCmd(t, opts, "--dataset", dataset, "invoice", "1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E004]")
}

func TestFetchBadArguments(t *testing.T) {
	opts, dataset := fetchEnv(t, "json")

	tests := []struct {
		name string
		args []string
	}{
		{"policy", []string{"--policy", "eventually", "user", "10"}},
		{"purpose", []string{"--purpose", "audit", "user", "10"}},
		{"filter", []string{"--filter", "Team", "user"}},
		{"filter_with_id", []string{"--filter", "Team=1", "user", "10"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runFetchCmd(t, opts, append([]string{"--dataset", dataset}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, ErrCodeBadArgument, resp.Error.Code)
		})
	}
}

func TestFetchPostDoNotResolve(t *testing.T) {
	opts, dataset := fetchEnv(t, "text")
	out, err := runFetchCmd(t, opts, "--dataset", dataset, "--policy", "do-not-resolve", "post", "100")
	require.NoError(t, err)
	testutil.AssertGolden(t, "fetch_post_unresolved", []byte(out))
}

func TestFetchUserResolved(t *testing.T) {
	opts, dataset := fetchEnv(t, "json")
	out, err := runFetchCmd(t, opts, "--dataset", dataset, "User", "10")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.RunID)

	user := resp.Data.(map[string]any)
	assert.Equal(t, "Ada", user["Name"])
	assert.Equal(t, "2024-01-02", user["Joined"])
	assert.NotContains(t, user, "Secret", "display output hides credentials")

	team := user["Team"].(map[string]any)
	assert.Equal(t, "Core", team["Name"])

	posts := user["Posts"].([]any)
	require.Len(t, posts, 2)
	author := posts[0].(map[string]any)["Author"].(map[string]any)
	assert.Equal(t, "circular reference detected", author["@why"])
	assert.Equal(t, float64(10), author["@id"])
}

func TestFetchRegistryPurpose(t *testing.T) {
	opts, dataset := fetchEnv(t, "json")
	out, err := runFetchCmd(t, opts, "--dataset", dataset, "--purpose", "registry", "user", "10")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	user := resp.Data.(map[string]any)
	assert.Equal(t, float64(1), user["TeamId"])
	assert.NotContains(t, user, "Team")
	assert.NotContains(t, user, "Posts")
	assert.Equal(t, "s3cret", user["Secret"])
}

func TestFetchWithRulesFile(t *testing.T) {
	opts, dataset := fetchEnv(t, "json")
	rules := filepath.Join(t.TempDir(), "slim.rules")
	require.NoError(t, os.WriteFile(rules, []byte("# slim users\nremove Email from User\nremove Posts\n"), 0o644))

	out, err := runFetchCmd(t, opts, "--dataset", dataset, "--rules", rules, "user", "11")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	user := resp.Data.(map[string]any)
	assert.Equal(t, "Brian", user["Name"])
	assert.NotContains(t, user, "Email")
	assert.NotContains(t, user, "Posts")
}

func TestFetchBadRulesFile(t *testing.T) {
	opts, dataset := fetchEnv(t, "text")
	rules := filepath.Join(t.TempDir(), "bad.rules")
	require.NoError(t, os.WriteFile(rules, []byte("drop Email\n"), 0o644))

	out, err := runFetchCmd(t, opts, "--dataset", dataset, "--rules", rules, "user", "11")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E006]")
}

func TestFetchListWithFilter(t *testing.T) {
	opts, dataset := fetchEnv(t, "text")
	out, err := runFetchCmd(t, opts, "--dataset", dataset, "--filter", "Team=1", "users")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"Name":"Ada"`)
	assert.Contains(t, lines[1], `"Name":"Brian"`)
}

func TestFetchNotFoundRecordsFailedRun(t *testing.T) {
	opts, dataset := fetchEnv(t, "text")
	out, err := runFetchCmd(t, opts, "--dataset", dataset, "team", "99")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Team 99 not found")

	runs := listRuns(t, opts)
	require.Len(t, runs, 1)
	assert.Equal(t, float64(1), runs[0]["exit_status"])
}

func TestFetchRecordsRegistry(t *testing.T) {
	opts, dataset := fetchEnv(t, "text")
	_, err := runFetchCmd(t, opts, "--dataset", dataset, "post", "101")
	require.NoError(t, err)
	_, err = runFetchCmd(t, opts, "--dataset", dataset, "teams")
	require.NoError(t, err)

	runs := listRuns(t, opts)
	require.Len(t, runs, 2)
	assert.Equal(t, "fetch", runs[0]["command"])
	assert.Equal(t, []any{"teams"}, runs[0]["arguments"])
	assert.Equal(t, float64(0), runs[0]["exit_status"])
	assert.Equal(t, []any{"post", "101"}, runs[1]["arguments"])

	jsonOpts := &RootOptions{Format: "json", Database: opts.Database}

	buf := &bytes.Buffer{}
	cmd := NewProvidersCommand(jsonOpts)
	cmd.SetOut(buf)
	cmd.SetArgs(nil)
	require.NoError(t, cmd.Execute())
	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	providers := resp.Data.([]any)
	require.Len(t, providers, 1, "the same dataset registers one provider across runs")
	assert.Contains(t, providers[0].(map[string]any)["class"], "memory.Provider")

	buf.Reset()
	cmd = NewTypesCommand(jsonOpts)
	cmd.SetOut(buf)
	cmd.SetArgs(nil)
	require.NoError(t, cmd.Execute())
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	var classes []string
	for _, rec := range resp.Data.([]any) {
		classes = append(classes, rec.(map[string]any)["class"].(string))
	}
	assert.Len(t, classes, 3)
}

func listRuns(t *testing.T, opts *RootOptions) []map[string]any {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRunsCommand(&RootOptions{Format: "json", Database: opts.Database})
	cmd.SetOut(buf)
	cmd.SetArgs(nil)
	require.NoError(t, cmd.Execute())

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	var runs []map[string]any
	for _, r := range resp.Data.([]any) {
		runs = append(runs, r.(map[string]any))
	}
	return runs
}
