package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"s3keyfinder/config"
	"s3keyfinder/internal/models"
	"s3keyfinder/internal/testutil"
)

func baseConfig(dir string) *config.Config {
	return &config.Config{
		MinSize:   -1,
		MaxSize:   -1,
		OutputDir: dir,
		LogLevel:  "error",
		Action:    config.ActionConfig{BatchSize: 100},
	}
}

// resetFlags restores every flag to its default so runs do not leak into each other.
func resetFlags() {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	findCmd.Flags().VisitAll(reset)
	rootCmd.PersistentFlags().VisitAll(reset)
}

// stubStore makes the command use store instead of a real S3 client.
// A nil store fails the test if a client is requested.
func stubStore(t *testing.T, store *testutil.MockStore) {
	t.Helper()
	original := newStoreClient
	t.Cleanup(func() { newStoreClient = original })

	newStoreClient = func(context.Context, *config.Config) (storeClient, error) {
		if store == nil {
			t.Error("store client requested unexpectedly")
			return nil, errors.New("no store")
		}
		return store, nil
	}
}

func executeFind(t *testing.T, c *config.Config, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	t.Cleanup(resetFlags)

	var stderr bytes.Buffer
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append([]string{"find"}, args...))

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	err := Execute(c)

	w.Close()
	os.Stdout = oldStdout

	var buf bytes.Buffer
	buf.ReadFrom(r)
	return buf.String(), err
}

func decodeRunResult(t *testing.T, output string) models.RunResult {
	t.Helper()
	var result models.RunResult
	require.NoError(t, json.Unmarshal([]byte(output), &result), "output: %s", output)
	return result
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestFindCommand_SourceFileDryRunDelete(t *testing.T) {
	stubStore(t, nil)
	dir := t.TempDir()

	source := filepath.Join(dir, "keys.csv")
	require.NoError(t, os.WriteFile(source, []byte("key,size\nlogs/a.log,10\nlogs/b.log,20\ntmp/c,\n"), 0644))

	output, err := executeFind(t, baseConfig(dir), "",
		"--source-file", source,
		"--action", "delete",
		"--dry-run",
		"--batch-size", "2",
	)
	require.NoError(t, err)

	result := decodeRunResult(t, output)
	assert.Equal(t, "file", result.Source)
	assert.Equal(t, 3, result.MatchCount)
	assert.Equal(t, int64(30), result.TotalSizeBytes)
	assert.Empty(t, result.FindFile, "no find file is written for a source file")

	require.NotNil(t, result.Action)
	assert.Equal(t, "DELETE", result.Action.Action)
	assert.True(t, result.Action.DryRun)
	assert.Equal(t, filepath.Join(dir, result.RunID+"_delete.csv"), result.Action.AuditFile)
	assert.Equal(t, []string{"logs/a.log", "logs/b.log", "tmp/c"}, readLines(t, result.Action.AuditFile))
}

func TestFindCommand_BucketRenameWithDeleteSource(t *testing.T) {
	store := &testutil.MockStore{
		ListPageFunc: testutil.PagedListing(
			[]models.ObjectSummary{{Key: "old/1.txt", Size: 5}, {Key: "keep/2.txt", Size: 7}},
			[]models.ObjectSummary{{Key: "old/3.txt", Size: 0}},
		),
	}
	stubStore(t, store)
	dir := t.TempDir()

	output, err := executeFind(t, baseConfig(dir), "",
		"--bucket", "media",
		"--pattern", "^old/",
		"--action", "RENAME",
		"--set", "find=^old/",
		"--set", "replace=new/",
		"--set", "deleteSource=true",
		"--confirm",
	)
	require.NoError(t, err)

	result := decodeRunResult(t, output)
	assert.Equal(t, "s3", result.Source)
	assert.Equal(t, "media", result.BucketName)
	assert.Equal(t, 2, result.MatchCount)
	assert.Equal(t, []string{"key,size", "old/1.txt,5", "old/3.txt,0"}, readLines(t, result.FindFile))

	assert.ElementsMatch(t, []models.RenameMapping{
		{Source: "old/1.txt", Target: "new/1.txt"},
		{Source: "old/3.txt", Target: "new/3.txt"},
	}, store.CopyCalls)
	assert.Equal(t, [][]string{{"old/1.txt", "old/3.txt"}}, store.DeleteCalls)

	require.NotNil(t, result.Action)
	assert.Equal(t, []string{"old,new", "old/1.txt,new/1.txt", "old/3.txt,new/3.txt"}, readLines(t, result.Action.AuditFile))
	require.NotNil(t, result.Action.Chained)
	assert.Equal(t, []string{"old/1.txt", "old/3.txt"}, readLines(t, result.Action.Chained.AuditFile))
}

func TestFindCommand_NoMatchesSkipsAction(t *testing.T) {
	store := &testutil.MockStore{
		ListPageFunc: testutil.PagedListing([]models.ObjectSummary{{Key: "a", Size: 1}}),
	}
	stubStore(t, store)

	output, err := executeFind(t, baseConfig(t.TempDir()), "",
		"--bucket", "media",
		"--min-size", "100",
		"--action", "DELETE",
		"--confirm",
	)
	require.NoError(t, err)

	result := decodeRunResult(t, output)
	assert.Equal(t, 0, result.MatchCount)
	assert.Nil(t, result.Action)
	assert.Equal(t, 0, store.MutatingCalls())
}

func TestFindCommand_ConfirmationDeclined(t *testing.T) {
	stubStore(t, nil)

	output, err := executeFind(t, baseConfig(t.TempDir()), "no\n",
		"--bucket", "media",
		"--action", "DELETE",
	)
	require.NoError(t, err)
	assert.Empty(t, output)
}

func TestFindCommand_InvalidActionFailsBeforeStore(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"unknown action", []string{"--action", "ARCHIVE"}, "action not supported"},
		{"rename without find", []string{"--action", "RENAME", "--set", "replace=new/"}, `"find"`},
		{"malformed setting", []string{"--action", "RENAME", "--set", "find"}, "expected key=value"},
		{"inverted size range", []string{"--min-size", "10", "--max-size", "5"}, "greater than max size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubStore(t, nil)

			args := append([]string{"--bucket", "media", "--confirm"}, tt.args...)
			output, err := executeFind(t, baseConfig(t.TempDir()), "", args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Contains(t, output, `"command": "find"`)
		})
	}
}

func TestFindCommand_BucketRequired(t *testing.T) {
	stubStore(t, nil)

	_, err := executeFind(t, baseConfig(t.TempDir()), "", "--pattern", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket name is required")
}

func TestParseSettings(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]string
		wantErr bool
	}{
		{"empty", nil, map[string]string{}, false},
		{"simple", []string{"find=^a", "replace=b"}, map[string]string{"find": "^a", "replace": "b"}, false},
		{"value with equals", []string{"find=a=b"}, map[string]string{"find": "a=b"}, false},
		{"empty value", []string{"replace="}, map[string]string{"replace": ""}, false},
		{"later wins", []string{"replace=a", "replace=b"}, map[string]string{"replace": "b"}, false},
		{"missing equals", []string{"deleteSource"}, nil, true},
		{"empty key", []string{"=x"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSettings(tt.pairs)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfirmAction(t *testing.T) {
	for input, want := range map[string]bool{"yes\n": true, "y\n": true, "YES\n": true, "no\n": false, "\n": false} {
		var out bytes.Buffer
		assert.Equal(t, want, confirmAction(strings.NewReader(input), &out, "DELETE", "media"), "input %q", input)
		assert.Contains(t, out.String(), "bucket 'media'")
	}
}

// Integration tests for the find command.
// These tests require a real S3 connection and are skipped by default.
// To run these tests, set the environment variable S3_INTEGRATION_TEST=true

func TestFindCommandIntegration(t *testing.T) {
	if os.Getenv("S3_INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test; set S3_INTEGRATION_TEST=true to run")
	}

	c := baseConfig(t.TempDir())
	c.BucketName = os.Getenv("TEST_BUCKET_NAME")
	c.Region = os.Getenv("TEST_REGION")
	c.ApiURL = os.Getenv("TEST_API_URL")
	c.AccessKey = os.Getenv("TEST_ACCESS_KEY")
	c.SecretKey = os.Getenv("TEST_SECRET_KEY")

	output, err := executeFind(t, c, "", "--action", "DELETE", "--dry-run")
	if err != nil {
		t.Fatalf("Find command failed: %v", err)
	}

	result := decodeRunResult(t, output)
	if result.BucketName != c.BucketName {
		t.Errorf("Output doesn't contain bucket name: %s", output)
	}
	if _, err := os.Stat(result.FindFile); err != nil {
		t.Errorf("Find file not written: %v", err)
	}
}
