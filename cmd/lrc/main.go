// Command lrc is a thin HTTP client for the LiveReview server: it collects
// a local git diff, submits it to a running livereview-server, polls the
// review to completion, and renders the findings.
//
// Grounded on the teacher's cmd/lrc/main.go, which collects a diff the
// same way (working tree / staged / range / file via `git diff`), submits
// it, and polls for completion; this keeps that collect → submit → poll →
// render shape and the ~/.lrc.toml + flag/env override pattern for
// apiURL/apiKey, retargeted from the teacher's zip+base64 "diff bundle"
// wire format and /api/v1/diff-review endpoint onto spec.md §6's plain
// JSON /api/reviews endpoints. The teacher's pre-commit Git hook
// installation, HTML-serving HTTP server, and terminal raw-mode Ctrl-S
// decision flow have no counterpart in spec.md's scope and are dropped.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

var (
	version   = "development"
	gitCommit = "unknown"
)

const (
	defaultAPIURL       = "http://localhost:8080"
	defaultPollInterval = 2 * time.Second
	defaultTimeout      = 5 * time.Minute
	defaultOutputFormat = "pretty"
)

// triggerReviewRequest mirrors internal/api.TriggerReviewRequest.
type triggerReviewRequest struct {
	Repository        string   `json:"repository,omitempty"`
	PRNumber          int      `json:"pr_number,omitempty"`
	DiffText          string   `json:"diff_text,omitempty"`
	SeverityThreshold string   `json:"severity_threshold,omitempty"`
	Categories        []string `json:"categories,omitempty"`
}

type triggerReviewResponse struct {
	ReviewID uuid.UUID `json:"review_id"`
	Status   string    `json:"status"`
}

type statusResponse struct {
	ReviewID uuid.UUID `json:"review_id"`
	Status   string    `json:"status"`
	Detail   string    `json:"detail,omitempty"`
}

type finding struct {
	FilePath    string `json:"file_path"`
	LineNumber  int    `json:"line_number"`
	Severity    string `json:"severity"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Suggestion  string `json:"suggestion,omitempty"`
	AgentSource string `json:"agent_source"`
}

type reviewSummary struct {
	TotalFindings int            `json:"total_findings"`
	BySeverity    map[string]int `json:"by_severity"`
	ByCategory    map[string]int `json:"by_category"`
}

type analyzerFailure struct {
	Category string `json:"category"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
}

type reviewResult struct {
	ReviewID    uuid.UUID         `json:"review_id"`
	CommitSHA   string            `json:"commit_sha,omitempty"`
	Findings    []finding         `json:"findings"`
	Summary     reviewSummary     `json:"summary"`
	Diagnostics []analyzerFailure `json:"diagnostics"`
	Timestamp   time.Time         `json:"timestamp"`
}

var baseFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "repo-name",
		Usage:   "repository name (defaults to current directory basename)",
		EnvVars: []string{"LRC_REPO_NAME"},
	},
	&cli.BoolFlag{
		Name:    "staged",
		Usage:   "use staged changes instead of working tree",
		EnvVars: []string{"LRC_STAGED"},
	},
	&cli.StringFlag{
		Name:    "range",
		Usage:   "git range for staged/working diff override (e.g., HEAD~1..HEAD)",
		EnvVars: []string{"LRC_RANGE"},
	},
	&cli.StringFlag{
		Name:    "diff-file",
		Usage:   "path to a pre-generated diff file",
		EnvVars: []string{"LRC_DIFF_FILE"},
	},
	&cli.StringFlag{
		Name:    "api-url",
		Value:   defaultAPIURL,
		Usage:   "LiveReview API base URL",
		EnvVars: []string{"LRC_API_URL"},
	},
	&cli.StringFlag{
		Name:    "api-key",
		Usage:   "API key for authentication (can be set in ~/.lrc.toml or env var)",
		EnvVars: []string{"LRC_API_KEY"},
	},
	&cli.StringFlag{
		Name:    "output",
		Value:   defaultOutputFormat,
		Usage:   "output format: pretty or json",
		EnvVars: []string{"LRC_OUTPUT"},
	},
	&cli.StringFlag{
		Name:    "save-json",
		Usage:   "save the JSON response to this file after completion",
		EnvVars: []string{"LRC_SAVE_JSON"},
	},
	&cli.StringFlag{
		Name:    "severity",
		Usage:   "minimum severity to report: low, medium, high, critical",
		EnvVars: []string{"LRC_SEVERITY"},
	},
	&cli.DurationFlag{
		Name:    "poll-interval",
		Value:   defaultPollInterval,
		Usage:   "interval between status polls",
		EnvVars: []string{"LRC_POLL_INTERVAL"},
	},
	&cli.DurationFlag{
		Name:    "timeout",
		Value:   defaultTimeout,
		Usage:   "maximum time to wait for review completion",
		EnvVars: []string{"LRC_TIMEOUT"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "enable verbose output",
		EnvVars: []string{"LRC_VERBOSE"},
	},
}

func main() {
	app := &cli.App{
		Name:    "lrc",
		Usage:   "LiveReview CLI - submit local diffs for AI review",
		Version: version,
		Flags:   baseFlags,
		Commands: []*cli.Command{
			{
				Name:    "review",
				Aliases: []string{"r"},
				Usage:   "Run a review against the configured LiveReview server",
				Flags:   baseFlags,
				Action:  runReview,
			},
			{
				Name:  "version",
				Usage: "Show version information",
				Action: func(c *cli.Context) error {
					fmt.Printf("lrc version %s (commit %s)\n", version, gitCommit)
					return nil
				},
			},
		},
		Action: runReview,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

type reviewOptions struct {
	repoName     string
	diffSource   string
	rangeVal     string
	diffFile     string
	apiURL       string
	apiKey       string
	output       string
	saveJSON     string
	severity     string
	pollInterval time.Duration
	timeout      time.Duration
	verbose      bool
}

func runReview(c *cli.Context) error {
	opts := buildOptionsFromContext(c)
	return runReviewWithOptions(opts)
}

func buildOptionsFromContext(c *cli.Context) reviewOptions {
	opts := reviewOptions{
		repoName:     c.String("repo-name"),
		rangeVal:     c.String("range"),
		diffFile:     c.String("diff-file"),
		apiURL:       c.String("api-url"),
		apiKey:       c.String("api-key"),
		output:       c.String("output"),
		saveJSON:     c.String("save-json"),
		severity:     c.String("severity"),
		pollInterval: c.Duration("poll-interval"),
		timeout:      c.Duration("timeout"),
		verbose:      c.Bool("verbose"),
	}

	switch {
	case opts.diffFile != "":
		opts.diffSource = "file"
	case opts.rangeVal != "":
		opts.diffSource = "range"
	case c.Bool("staged"):
		opts.diffSource = "staged"
	default:
		opts.diffSource = "working"
	}

	if opts.apiURL == "" {
		opts.apiURL = defaultAPIURL
	}
	if opts.output == "" {
		opts.output = defaultOutputFormat
	}
	if opts.pollInterval <= 0 {
		opts.pollInterval = defaultPollInterval
	}
	if opts.timeout <= 0 {
		opts.timeout = defaultTimeout
	}

	return opts
}

func runReviewWithOptions(opts reviewOptions) error {
	cfg, err := loadConfigValues(opts.apiKey, opts.apiURL, opts.verbose)
	if err != nil {
		return err
	}
	opts.apiKey = cfg.APIKey
	opts.apiURL = cfg.APIURL

	diffContent, err := collectDiffWithOptions(opts)
	if err != nil {
		return fmt.Errorf("failed to collect diff: %w", err)
	}
	if len(strings.TrimSpace(string(diffContent))) == 0 {
		fmt.Println("No changes detected; nothing to review.")
		return nil
	}

	repoName := opts.repoName
	if repoName == "" {
		repoName = repoNameFromCwd()
	}

	reviewID, err := submitReview(opts.apiURL, opts.apiKey, string(diffContent), repoName, opts.severity, opts.verbose)
	if err != nil {
		return fmt.Errorf("failed to submit review: %w", err)
	}

	if err := waitForReview(opts.apiURL, opts.apiKey, reviewID, opts.pollInterval, opts.timeout, opts.verbose); err != nil {
		return err
	}

	result, err := fetchReview(opts.apiURL, opts.apiKey, reviewID)
	if err != nil {
		return fmt.Errorf("failed to fetch review result: %w", err)
	}

	if opts.saveJSON != "" {
		if err := saveJSONResult(opts.saveJSON, result, opts.verbose); err != nil {
			return err
		}
	}

	return renderResult(result, opts.output)
}

func collectDiffWithOptions(opts reviewOptions) ([]byte, error) {
	switch opts.diffSource {
	case "staged":
		if opts.verbose {
			log.Println("Collecting staged changes...")
		}
		return runGitCommand("git", "diff", "--staged")

	case "working":
		if opts.verbose {
			log.Println("Collecting working tree changes...")
		}
		return runGitCommand("git", "diff")

	case "range":
		if opts.rangeVal == "" {
			return nil, fmt.Errorf("--range is required when the diff source is a range")
		}
		if opts.verbose {
			log.Printf("Collecting diff for range: %s", opts.rangeVal)
		}
		return runGitCommand("git", "diff", opts.rangeVal)

	case "file":
		if opts.diffFile == "" {
			return nil, fmt.Errorf("--diff-file is required when the diff source is a file")
		}
		if opts.verbose {
			log.Printf("Reading diff from file: %s", opts.diffFile)
		}
		return os.ReadFile(opts.diffFile)

	default:
		return nil, fmt.Errorf("invalid diff source: %s (must be staged, working, range, or file)", opts.diffSource)
	}
}

func runGitCommand(name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("git command failed: %s\nstderr: %s", err, string(exitErr.Stderr))
		}
		return nil, err
	}
	return output, nil
}

func repoNameFromCwd() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Base(cwd)
}

func submitReview(apiURL, apiKey, diffText, repoName, severity string, verbose bool) (uuid.UUID, error) {
	endpoint := strings.TrimSuffix(apiURL, "/") + "/api/reviews"

	payload := triggerReviewRequest{
		Repository:        repoName,
		DiffText:          diffText,
		SeverityThreshold: severity,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	if verbose {
		log.Printf("POST %s", endpoint)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return uuid.Nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var result triggerReviewResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return uuid.Nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return result.ReviewID, nil
}

func waitForReview(apiURL, apiKey string, reviewID uuid.UUID, pollInterval, timeout time.Duration, verbose bool) error {
	endpoint := strings.TrimSuffix(apiURL, "/") + "/api/reviews/" + reviewID.String() + "/status"
	deadline := time.Now().Add(timeout)
	start := time.Now()
	isTTY := term.IsTerminal(int(os.Stdout.Fd()))

	fmt.Printf("Waiting for review completion (poll every %s, timeout %s)...\n", pollInterval, timeout)

	for time.Now().Before(deadline) {
		req, err := http.NewRequest(http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		if apiKey != "" {
			req.Header.Set("X-API-Key", apiKey)
		}

		client := &http.Client{Timeout: 30 * time.Second}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to send request: %w", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
		}

		var status statusResponse
		if err := json.Unmarshal(body, &status); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}

		statusLine := fmt.Sprintf("Status: %s | elapsed: %s", status.Status, time.Since(start).Truncate(time.Second))
		if isTTY {
			fmt.Printf("\r%-80s", statusLine)
		} else {
			fmt.Println(statusLine)
		}
		if verbose {
			log.Printf("%s", statusLine)
		}

		switch status.Status {
		case "completed":
			fmt.Println()
			return nil
		case "failed":
			fmt.Println()
			if status.Detail != "" {
				return fmt.Errorf("review failed: %s", status.Detail)
			}
			return fmt.Errorf("review failed")
		}

		time.Sleep(pollInterval)
	}

	fmt.Println()
	return fmt.Errorf("timeout waiting for review completion")
}

func fetchReview(apiURL, apiKey string, reviewID uuid.UUID) (*reviewResult, error) {
	endpoint := strings.TrimSuffix(apiURL, "/") + "/api/reviews/" + reviewID.String()

	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var result reviewResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &result, nil
}

func renderResult(result *reviewResult, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	case "pretty":
		return renderPretty(result)
	default:
		return fmt.Errorf("invalid output format: %s (must be json or pretty)", format)
	}
}

func renderPretty(result *reviewResult) error {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("LIVEREVIEW RESULTS")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Printf("\nTotal findings: %d\n", result.Summary.TotalFindings)

	if len(result.Diagnostics) > 0 {
		fmt.Printf("\n%d analyzer(s) did not complete:\n", len(result.Diagnostics))
		for _, d := range result.Diagnostics {
			fmt.Printf("  - %s: %s (%s)\n", d.Category, d.Kind, d.Message)
		}
	}

	if len(result.Findings) == 0 {
		fmt.Println("\nNo findings.")
		return nil
	}

	byFile := make(map[string][]finding)
	var order []string
	for _, f := range result.Findings {
		if _, seen := byFile[f.FilePath]; !seen {
			order = append(order, f.FilePath)
		}
		byFile[f.FilePath] = append(byFile[f.FilePath], f)
	}

	for _, path := range order {
		fmt.Println("\n" + strings.Repeat("-", 80))
		fmt.Printf("FILE: %s\n", path)
		fmt.Println(strings.Repeat("-", 80))

		for _, f := range byFile[path] {
			fmt.Printf("\n  [%s] Line %d (%s)\n", strings.ToUpper(string(f.Severity)), f.LineNumber, f.Category)
			fmt.Printf("    %s\n", f.Description)
			if f.Suggestion != "" {
				fmt.Printf("    Suggestion: %s\n", f.Suggestion)
			}
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Printf("Review complete: %d total finding(s)\n", len(result.Findings))
	fmt.Println(strings.Repeat("=", 80) + "\n")

	return nil
}

func saveJSONResult(path string, result *reviewResult, verbose bool) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if verbose {
		log.Printf("Saved JSON response to %s", path)
	}
	return nil
}

// cliConfig holds the CLI's resolved apiKey/apiURL configuration.
type cliConfig struct {
	APIKey string
	APIURL string
}

// loadConfigValues loads ~/.lrc.toml, then applies CLI/env overrides.
func loadConfigValues(apiKeyOverride, apiURLOverride string, verbose bool) (*cliConfig, error) {
	cfg := &cliConfig{}

	var k *koanf.Koanf
	if homeDir, err := os.UserHomeDir(); err == nil {
		configPath := filepath.Join(homeDir, ".lrc.toml")
		if _, err := os.Stat(configPath); err == nil {
			k = koanf.New(".")
			if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
			}
			if verbose {
				log.Printf("Loaded config from: %s", configPath)
			}
		}
	}

	switch {
	case apiKeyOverride != "":
		cfg.APIKey = apiKeyOverride
	case k != nil && k.String("api_key") != "":
		cfg.APIKey = k.String("api_key")
	}

	switch {
	case apiURLOverride != "" && apiURLOverride != defaultAPIURL:
		cfg.APIURL = apiURLOverride
	case k != nil && k.String("api_url") != "":
		cfg.APIURL = k.String("api_url")
	default:
		cfg.APIURL = defaultAPIURL
	}

	return cfg, nil
}
