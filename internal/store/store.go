// Package store implements the Review Store (spec.md §4.G): a two-table
// Postgres repository for completed reviews and their findings, queryable
// by id, repository/PR, and time/severity/category filters.
//
// Grounded on the teacher's internal/database/database.go for connection
// bootstrap style and internal/jobqueue/jobqueue.go for pgx usage,
// upgraded from database/sql + lib/pq to pgx/v5 + pgxpool per
// SPEC_FULL.md's domain-stack table.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/livereview-cr/livereview-cr/internal/apperrors"
	"github.com/livereview-cr/livereview-cr/internal/reviewmodel"
)

// ErrNotFound is returned by Get when no review exists for the given id.
var ErrNotFound = errors.New("review not found")

const schema = `
CREATE TABLE IF NOT EXISTS reviews (
	review_id       UUID PRIMARY KEY,
	repository      TEXT NOT NULL DEFAULT '',
	pr_number       INTEGER NOT NULL DEFAULT 0,
	title           TEXT NOT NULL DEFAULT '',
	author          TEXT NOT NULL DEFAULT '',
	head_commit_sha TEXT NOT NULL DEFAULT '',
	base_branch     TEXT NOT NULL DEFAULT '',
	head_branch     TEXT NOT NULL DEFAULT '',
	config          JSONB NOT NULL,
	summary         JSONB NOT NULL,
	diagnostics     JSONB NOT NULL DEFAULT '[]',
	created_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS findings (
	review_id   UUID NOT NULL REFERENCES reviews(review_id) ON DELETE CASCADE,
	ordinal     INTEGER NOT NULL,
	file_path   TEXT NOT NULL,
	line_number INTEGER NOT NULL,
	severity    TEXT NOT NULL,
	category    TEXT NOT NULL,
	description TEXT NOT NULL,
	suggestion  TEXT NOT NULL DEFAULT '',
	agent_source TEXT NOT NULL,
	PRIMARY KEY (review_id, ordinal)
);

CREATE INDEX IF NOT EXISTS idx_reviews_repo_pr ON reviews (repository, pr_number);
CREATE INDEX IF NOT EXISTS idx_reviews_created_at ON reviews (created_at DESC);
`

// Store is the Review Store's Postgres-backed implementation.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects a pool against dsn and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, &apperrors.StorageError{Message: "failed to open connection pool", Cause: err}
	}
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already-constructed pool, for tests and callers that manage
// pool lifecycle themselves.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) ensureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return &apperrors.StorageError{Message: "failed to ensure schema", Cause: err}
	}
	return nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping reports whether the database connection is reachable, for the
// /health endpoint's database field.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Save persists r atomically: the review row and every finding row land in
// one transaction, or none do.
func (s *Store) Save(ctx context.Context, r reviewmodel.ReviewResult) (uuid.UUID, error) {
	if r.ReviewID == uuid.Nil {
		r.ReviewID = uuid.New()
	}

	configJSON, err := marshalConfig(r.Config)
	if err != nil {
		return uuid.Nil, &apperrors.StorageError{Message: "failed to marshal config", Cause: err}
	}
	summaryJSON, err := json.Marshal(r.Summary)
	if err != nil {
		return uuid.Nil, &apperrors.StorageError{Message: "failed to marshal summary", Cause: err}
	}
	diagnostics := r.Diagnostics
	if diagnostics == nil {
		diagnostics = []reviewmodel.AnalyzerFailure{}
	}
	diagnosticsJSON, err := json.Marshal(diagnostics)
	if err != nil {
		return uuid.Nil, &apperrors.StorageError{Message: "failed to marshal diagnostics", Cause: err}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, &apperrors.StorageError{Message: "failed to begin transaction", Cause: err}
	}
	defer tx.Rollback(ctx)

	meta := r.Metadata
	if meta == nil {
		meta = &reviewmodel.ChangeMetadata{}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO reviews (review_id, repository, pr_number, title, author, head_commit_sha, base_branch, head_branch, config, summary, diagnostics, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		r.ReviewID, meta.Repository, meta.PRNumber, meta.Title, meta.Author,
		meta.HeadCommitSHA, meta.BaseBranch, meta.HeadBranch, configJSON, summaryJSON, diagnosticsJSON, r.Timestamp)
	if err != nil {
		return uuid.Nil, &apperrors.StorageError{Message: "failed to insert review", Cause: err}
	}

	batch := &pgx.Batch{}
	for i, f := range r.Findings {
		batch.Queue(`
			INSERT INTO findings (review_id, ordinal, file_path, line_number, severity, category, description, suggestion, agent_source)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			r.ReviewID, i, f.FilePath, f.LineNumber, string(f.Severity), string(f.Category), f.Description, f.Suggestion, string(f.AgentSource))
	}
	if batch.Len() > 0 {
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return uuid.Nil, &apperrors.StorageError{Message: "failed to insert finding", Cause: err}
			}
		}
		if err := br.Close(); err != nil {
			return uuid.Nil, &apperrors.StorageError{Message: "failed to finalize finding batch", Cause: err}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, &apperrors.StorageError{Message: "failed to commit review", Cause: err}
	}
	return r.ReviewID, nil
}

// Get retrieves a single review with its findings, or ErrNotFound.
func (s *Store) Get(ctx context.Context, reviewID uuid.UUID) (*reviewmodel.ReviewResult, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT repository, pr_number, title, author, head_commit_sha, base_branch, head_branch, config, summary, diagnostics, created_at
		FROM reviews WHERE review_id = $1`, reviewID)

	var (
		meta            reviewmodel.ChangeMetadata
		configJSON      []byte
		summaryJSON     []byte
		diagnosticsJSON []byte
		createdAt       time.Time
	)
	if err := row.Scan(&meta.Repository, &meta.PRNumber, &meta.Title, &meta.Author,
		&meta.HeadCommitSHA, &meta.BaseBranch, &meta.HeadBranch, &configJSON, &summaryJSON, &diagnosticsJSON, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, &apperrors.StorageError{Message: "failed to fetch review", Cause: err}
	}

	config, err := unmarshalConfig(configJSON)
	if err != nil {
		return nil, &apperrors.StorageError{Message: "failed to unmarshal config", Cause: err}
	}
	var summary reviewmodel.ReviewSummary
	if err := json.Unmarshal(summaryJSON, &summary); err != nil {
		return nil, &apperrors.StorageError{Message: "failed to unmarshal summary", Cause: err}
	}
	var diagnostics []reviewmodel.AnalyzerFailure
	if err := json.Unmarshal(diagnosticsJSON, &diagnostics); err != nil {
		return nil, &apperrors.StorageError{Message: "failed to unmarshal diagnostics", Cause: err}
	}

	findings, err := s.loadFindings(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	return &reviewmodel.ReviewResult{
		ReviewID:    reviewID,
		Metadata:    &meta,
		CommitSHA:   meta.HeadCommitSHA,
		Config:      config,
		Findings:    findings,
		Summary:     summary,
		Diagnostics: diagnostics,
		Timestamp:   createdAt,
	}, nil
}

func (s *Store) loadFindings(ctx context.Context, reviewID uuid.UUID) ([]reviewmodel.Finding, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT file_path, line_number, severity, category, description, suggestion, agent_source
		FROM findings WHERE review_id = $1 ORDER BY ordinal ASC`, reviewID)
	if err != nil {
		return nil, &apperrors.StorageError{Message: "failed to fetch findings", Cause: err}
	}
	defer rows.Close()

	var findings []reviewmodel.Finding
	for rows.Next() {
		var (
			f                  reviewmodel.Finding
			severity, category string
			agentSource        string
		)
		if err := rows.Scan(&f.FilePath, &f.LineNumber, &severity, &category, &f.Description, &f.Suggestion, &agentSource); err != nil {
			return nil, &apperrors.StorageError{Message: "failed to scan finding", Cause: err}
		}
		f.Severity = reviewmodel.Severity(severity)
		f.Category = reviewmodel.Category(category)
		f.AgentSource = reviewmodel.Category(agentSource)
		findings = append(findings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, &apperrors.StorageError{Message: "failed to iterate findings", Cause: err}
	}
	return findings, nil
}

// QueryParams filters Query's result set. Zero values mean "unfiltered"
// for that dimension; Limit<=0 defaults to 50.
type QueryParams struct {
	Repository  string
	PRNumber    int
	HasPRNumber bool
	Start       time.Time
	End         time.Time
	MinSeverity reviewmodel.Severity
	Category    reviewmodel.Category
	Limit       int
	Offset      int
}

// Query lists reviews matching params, ordered by timestamp descending.
func (s *Store) Query(ctx context.Context, params QueryParams) ([]reviewmodel.ReviewResult, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}

	sqlStr := `SELECT review_id FROM reviews WHERE 1=1`
	args := []interface{}{}
	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		sqlStr += fmt.Sprintf(" AND %s $%d", clause, len(args))
	}

	if params.Repository != "" {
		add("repository =", params.Repository)
	}
	if params.HasPRNumber {
		add("pr_number =", params.PRNumber)
	}
	if !params.Start.IsZero() {
		add("created_at >=", params.Start)
	}
	if !params.End.IsZero() {
		add("created_at <=", params.End)
	}

	sqlStr += " ORDER BY created_at DESC"
	args = append(args, limit)
	sqlStr += fmt.Sprintf(" LIMIT $%d", len(args))
	args = append(args, params.Offset)
	sqlStr += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := s.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, &apperrors.StorageError{Message: "failed to query reviews", Cause: err}
	}

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, &apperrors.StorageError{Message: "failed to scan review id", Cause: err}
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, &apperrors.StorageError{Message: "failed to iterate review ids", Cause: err}
	}

	results := make([]reviewmodel.ReviewResult, 0, len(ids))
	for _, id := range ids {
		r, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if !matchesFindingFilters(r, params) {
			continue
		}
		results = append(results, *r)
	}
	return results, nil
}

// matchesFindingFilters applies the finding-scoped filters (min_severity,
// category) that cannot be expressed as a plain WHERE clause on the
// reviews table alone: a review matches if at least one finding qualifies.
func matchesFindingFilters(r *reviewmodel.ReviewResult, params QueryParams) bool {
	if params.MinSeverity == "" && params.Category == "" {
		return true
	}
	for _, f := range r.Findings {
		if params.MinSeverity != "" && !f.Severity.AtLeast(params.MinSeverity) {
			continue
		}
		if params.Category != "" && f.Category != params.Category {
			continue
		}
		return true
	}
	return false
}

// ByPR is a convenience wrapper over Query for the common repo+PR lookup.
func (s *Store) ByPR(ctx context.Context, repo string, prNumber int) ([]reviewmodel.ReviewResult, error) {
	return s.Query(ctx, QueryParams{Repository: repo, PRNumber: prNumber, HasPRNumber: true, Limit: 1000})
}

// configRow is the JSONB shape stored for ReviewConfig; duration fields are
// persisted as nanosecond counts so Postgres never needs to parse a Go
// duration string.
type configRow struct {
	SeverityThreshold reviewmodel.Severity          `json:"severity_threshold"`
	EnabledCategories map[reviewmodel.Category]bool `json:"enabled_categories"`
	CustomRules       map[string]string             `json:"custom_rules"`
	AnalyzerTimeoutNS int64                         `json:"analyzer_timeout_ns"`
	ReviewTimeoutNS   int64                         `json:"review_timeout_ns"`
	MaxFilesPerReview int                           `json:"max_files_per_review"`
	MaxDiffLines      int                           `json:"max_diff_lines"`
}

func marshalConfig(c reviewmodel.ReviewConfig) ([]byte, error) {
	return json.Marshal(configRow{
		SeverityThreshold: c.SeverityThreshold,
		EnabledCategories: c.EnabledCategories,
		CustomRules:       c.CustomRules,
		AnalyzerTimeoutNS: int64(c.AnalyzerTimeout),
		ReviewTimeoutNS:   int64(c.ReviewTimeout),
		MaxFilesPerReview: c.MaxFilesPerReview,
		MaxDiffLines:      c.MaxDiffLines,
	})
}

func unmarshalConfig(data []byte) (reviewmodel.ReviewConfig, error) {
	var row configRow
	if err := json.Unmarshal(data, &row); err != nil {
		return reviewmodel.ReviewConfig{}, err
	}
	return reviewmodel.ReviewConfig{
		SeverityThreshold: row.SeverityThreshold,
		EnabledCategories: row.EnabledCategories,
		CustomRules:       row.CustomRules,
		AnalyzerTimeout:   time.Duration(row.AnalyzerTimeoutNS),
		ReviewTimeout:     time.Duration(row.ReviewTimeoutNS),
		MaxFilesPerReview: row.MaxFilesPerReview,
		MaxDiffLines:      row.MaxDiffLines,
	}, nil
}
