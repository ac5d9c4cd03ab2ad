package main

import (
	"flag"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/urfave/cli/v2"
)

func testContext(t *testing.T, args ...string) *cli.Context {
	t.Helper()
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	app := &cli.App{Flags: baseFlags}
	for _, f := range baseFlags {
		if err := f.Apply(set); err != nil {
			t.Fatalf("apply flag: %v", err)
		}
	}
	if err := set.Parse(args); err != nil {
		t.Fatalf("parse args: %v", err)
	}
	return cli.NewContext(app, set, nil)
}

func TestBuildOptionsFromContextDefaultsToWorkingTree(t *testing.T) {
	opts := buildOptionsFromContext(testContext(t))
	assert.Equal(t, "working", opts.diffSource)
	assert.Equal(t, defaultAPIURL, opts.apiURL)
	assert.Equal(t, defaultOutputFormat, opts.output)
	assert.Equal(t, defaultPollInterval, opts.pollInterval)
	assert.Equal(t, defaultTimeout, opts.timeout)
}

func TestBuildOptionsFromContextDiffFileTakesPrecedenceOverRange(t *testing.T) {
	opts := buildOptionsFromContext(testContext(t, "--diff-file", "x.diff", "--range", "HEAD~1..HEAD"))
	assert.Equal(t, "file", opts.diffSource)
}

func TestBuildOptionsFromContextStagedFlag(t *testing.T) {
	opts := buildOptionsFromContext(testContext(t, "--staged"))
	assert.Equal(t, "staged", opts.diffSource)
}

func TestBuildOptionsFromContextRangeFlag(t *testing.T) {
	opts := buildOptionsFromContext(testContext(t, "--range", "HEAD~1..HEAD"))
	assert.Equal(t, "range", opts.diffSource)
	assert.Equal(t, "HEAD~1..HEAD", opts.rangeVal)
}

func TestCollectDiffWithOptionsRequiresRangeValue(t *testing.T) {
	_, err := collectDiffWithOptions(reviewOptions{diffSource: "range"})
	assert.ErrorContains(t, err, "--range is required")
}

func TestCollectDiffWithOptionsRequiresDiffFileValue(t *testing.T) {
	_, err := collectDiffWithOptions(reviewOptions{diffSource: "file"})
	assert.ErrorContains(t, err, "--diff-file is required")
}

func TestCollectDiffWithOptionsRejectsUnknownSource(t *testing.T) {
	_, err := collectDiffWithOptions(reviewOptions{diffSource: "bogus"})
	assert.ErrorContains(t, err, "invalid diff source")
}

func TestCollectDiffWithOptionsReadsDiffFile(t *testing.T) {
	path := t.TempDir() + "/sample.diff"
	assert.NoError(t, os.WriteFile(path, []byte("diff --git a/x b/x\n"), 0o644))

	out, err := collectDiffWithOptions(reviewOptions{diffSource: "file", diffFile: path})
	assert.NoError(t, err)
	assert.Equal(t, "diff --git a/x b/x\n", string(out))
}

func TestRenderResultRejectsUnknownFormat(t *testing.T) {
	err := renderResult(&reviewResult{}, "xml")
	assert.ErrorContains(t, err, "invalid output format")
}

func TestRenderPrettyHandlesNoFindings(t *testing.T) {
	err := renderPretty(&reviewResult{Summary: reviewSummary{TotalFindings: 0}})
	assert.NoError(t, err)
}

func TestLoadConfigValuesDefaultsURLWithoutOverrideOrFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := loadConfigValues("", "", false)
	assert.NoError(t, err)
	assert.Equal(t, defaultAPIURL, cfg.APIURL)
	assert.Empty(t, cfg.APIKey)
}

func TestLoadConfigValuesPrefersOverrideOverDefaultURL(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := loadConfigValues("key123", "https://lr.example.com", false)
	assert.NoError(t, err)
	assert.Equal(t, "key123", cfg.APIKey)
	assert.Equal(t, "https://lr.example.com", cfg.APIURL)
}

func TestWaitForReviewFailsWithoutAReachableServer(t *testing.T) {
	err := waitForReview("http://127.0.0.1:1", "", uuid.New(), 10*time.Millisecond, 30*time.Millisecond, false)
	assert.Error(t, err)
}
