// Package pgstore provides a PostgreSQL implementation of report.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kawacukennedy/civicsense/internal/report"
)

var tracer = otel.Tracer("github.com/kawacukennedy/civicsense/internal/report/pgstore")

//go:embed schema.sql
var schema string

// Store persists reports and their activity log in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Store.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const reportColumns = `id, title, description, raw_lat, raw_lng, lat, lng, accuracy_m, anonymous,
	media_refs, verification_score, verification_labels, corroborations, priority_score,
	priority_level, is_duplicate, duplicate_of, status, reporter_id, assigned_to, version,
	created_at, updated_at, resolved_at`

// Create inserts a new report row and its first activity row in one
// transaction.
func (s *Store) Create(ctx context.Context, r *report.Report, a *report.Activity) error {
	ctx, span := tracer.Start(ctx, "pgstore.Create", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return spanErr(span, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	mediaJSON, labelsJSON, err := marshalSets(r)
	if err != nil {
		return spanErr(span, err)
	}

	_, err = tx.Exec(ctx, `INSERT INTO reports (`+reportColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)`,
		r.ID, r.Title, r.Description, r.RawLat, r.RawLng, r.Lat, r.Lng, r.AccuracyM, r.Anonymous,
		mediaJSON, r.VerificationScore, labelsJSON, r.Corroborations, r.PriorityScore,
		string(r.PriorityLevel), r.IsDuplicate, nullable(r.DuplicateOf), string(r.Status),
		nullable(r.ReporterID), nullable(r.AssignedTo), r.Version,
		r.CreatedAt, r.UpdatedAt, nullableTime(r.ResolvedAt),
	)
	if err != nil {
		return spanErr(span, fmt.Errorf("insert report: %w", err))
	}

	if err := insertActivity(ctx, tx, a); err != nil {
		return spanErr(span, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return spanErr(span, fmt.Errorf("commit: %w", err))
	}
	return nil
}

// Get retrieves a report by ID.
func (s *Store) Get(ctx context.Context, id string) (*report.Report, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`
	r, err := scanReportRow(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, false, spanErr(span, err)
	}
	if r == nil {
		return nil, false, nil
	}
	return r, true, nil
}

// Query filters reports, ordered by priority score descending then
// creation time descending.
func (s *Store) Query(ctx context.Context, f report.Filter) ([]*report.Report, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Query", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + reportColumns + ` FROM reports WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.HasBBox {
		query += ` AND lat >= ` + arg(f.MinLat) + ` AND lat <= ` + arg(f.MaxLat) +
			` AND lng >= ` + arg(f.MinLng) + ` AND lng <= ` + arg(f.MaxLng)
	}
	if f.Status != "" {
		query += ` AND status = ` + arg(string(f.Status))
	}
	if f.MinPriority > 0 {
		query += ` AND priority_score >= ` + arg(f.MinPriority)
	}
	query += ` ORDER BY priority_score DESC, created_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ` + arg(f.Limit)
	}
	if f.Offset > 0 {
		query += ` OFFSET ` + arg(f.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, spanErr(span, fmt.Errorf("query reports: %w", err))
	}
	defer rows.Close()

	var out []*report.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, spanErr(span, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, spanErr(span, fmt.Errorf("iterate reports: %w", err))
	}
	return out, nil
}

// Commit updates a report and appends its activity record in one
// transaction, guarded by the optimistic version check. A version
// mismatch means a concurrent transition won and surfaces as
// report.ErrPreconditionFailed.
func (s *Store) Commit(ctx context.Context, r *report.Report, a *report.Activity) error {
	ctx, span := tracer.Start(ctx, "pgstore.Commit", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPDATE"),
	))
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return spanErr(span, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	mediaJSON, labelsJSON, err := marshalSets(r)
	if err != nil {
		return spanErr(span, err)
	}

	tag, err := tx.Exec(ctx, `UPDATE reports SET
		title = $1, description = $2, verification_score = $3, verification_labels = $4,
		corroborations = $5, priority_score = $6, priority_level = $7, is_duplicate = $8,
		duplicate_of = $9, status = $10, assigned_to = $11, media_refs = $12,
		version = version + 1, updated_at = $13, resolved_at = $14
		WHERE id = $15 AND version = $16`,
		r.Title, r.Description, r.VerificationScore, labelsJSON,
		r.Corroborations, r.PriorityScore, string(r.PriorityLevel), r.IsDuplicate,
		nullable(r.DuplicateOf), string(r.Status), nullable(r.AssignedTo), mediaJSON,
		r.UpdatedAt, nullableTime(r.ResolvedAt),
		r.ID, r.Version,
	)
	if err != nil {
		return spanErr(span, fmt.Errorf("update report: %w", err))
	}
	if tag.RowsAffected() == 0 {
		// Either the report is gone or another transition committed first.
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM reports WHERE id = $1)`, r.ID).Scan(&exists); err != nil {
			return spanErr(span, fmt.Errorf("check report: %w", err))
		}
		if !exists {
			return report.ErrNotFound
		}
		return fmt.Errorf("%w: report %s modified concurrently", report.ErrPreconditionFailed, r.ID)
	}

	if err := insertActivity(ctx, tx, a); err != nil {
		return spanErr(span, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return spanErr(span, fmt.Errorf("commit: %w", err))
	}
	r.Version++
	return nil
}

// Activities returns the audit log for a report, newest first.
func (s *Store) Activities(ctx context.Context, reportID string) ([]*report.Activity, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Activities", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT id, report_id, actor_id, action, details, created_at
		 FROM activities WHERE report_id = $1 ORDER BY created_at DESC, id DESC`,
		reportID,
	)
	if err != nil {
		return nil, spanErr(span, fmt.Errorf("query activities: %w", err))
	}
	defer rows.Close()

	var out []*report.Activity
	for rows.Next() {
		var (
			a           report.Activity
			actorID     *string
			detailsJSON []byte
		)
		if err := rows.Scan(&a.ID, &a.ReportID, &actorID, &a.Action, &detailsJSON, &a.CreatedAt); err != nil {
			return nil, spanErr(span, fmt.Errorf("scan activity: %w", err))
		}
		if actorID != nil {
			a.ActorID = *actorID
		}
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &a.Details); err != nil {
				return nil, spanErr(span, fmt.Errorf("unmarshal details: %w", err))
			}
		}
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, spanErr(span, fmt.Errorf("iterate activities: %w", err))
	}
	return out, nil
}

func insertActivity(ctx context.Context, tx pgx.Tx, a *report.Activity) error {
	var detailsJSON []byte
	if a.Details != nil {
		var err error
		detailsJSON, err = json.Marshal(a.Details)
		if err != nil {
			return fmt.Errorf("marshal details: %w", err)
		}
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO activities (id, report_id, actor_id, action, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.ReportID, nullable(a.ActorID), a.Action, detailsJSON, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// scanReport scans one row into a report.Report.
func scanReport(row pgx.Row) (*report.Report, error) {
	var (
		r           report.Report
		mediaJSON   []byte
		labelsJSON  []byte
		level       string
		status      string
		duplicateOf *string
		reporterID  *string
		assignedTo  *string
		resolvedAt  *time.Time
	)

	err := row.Scan(
		&r.ID, &r.Title, &r.Description, &r.RawLat, &r.RawLng, &r.Lat, &r.Lng, &r.AccuracyM, &r.Anonymous,
		&mediaJSON, &r.VerificationScore, &labelsJSON, &r.Corroborations, &r.PriorityScore,
		&level, &r.IsDuplicate, &duplicateOf, &status, &reporterID, &assignedTo, &r.Version,
		&r.CreatedAt, &r.UpdatedAt, &resolvedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	r.PriorityLevel = report.PriorityLevel(level)
	r.Status = report.Status(status)
	if duplicateOf != nil {
		r.DuplicateOf = *duplicateOf
	}
	if reporterID != nil {
		r.ReporterID = *reporterID
	}
	if assignedTo != nil {
		r.AssignedTo = *assignedTo
	}
	if resolvedAt != nil {
		r.ResolvedAt = *resolvedAt
	}
	if err := json.Unmarshal(mediaJSON, &r.MediaRefs); err != nil {
		return nil, fmt.Errorf("unmarshal media_refs: %w", err)
	}
	if err := json.Unmarshal(labelsJSON, &r.VerificationLabels); err != nil {
		return nil, fmt.Errorf("unmarshal verification_labels: %w", err)
	}
	return &r, nil
}

// scanReportRow is scanReport with (nil, nil) when no row is found.
func scanReportRow(row pgx.Row) (*report.Report, error) {
	r, err := scanReport(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return r, nil
}

func marshalSets(r *report.Report) (mediaJSON, labelsJSON []byte, err error) {
	mediaJSON, err = json.Marshal(emptySlice(r.MediaRefs))
	if err != nil {
		return nil, nil, fmt.Errorf("marshal media_refs: %w", err)
	}
	labelsJSON, err = json.Marshal(emptySlice(r.VerificationLabels))
	if err != nil {
		return nil, nil, fmt.Errorf("marshal verification_labels: %w", err)
	}
	return mediaJSON, labelsJSON, nil
}

func emptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func spanErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
