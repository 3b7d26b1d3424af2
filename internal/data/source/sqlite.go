package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/penwyp/go-booking-timeline/internal/core/model"
	"github.com/penwyp/go-booking-timeline/internal/util"

	_ "modernc.org/sqlite"
)

// SQLiteSource stores bookings and the resource catalog in a SQLite file
type SQLiteSource struct {
	db  *sql.DB
	loc *time.Location
}

// columns addressable from conditions and group-by
var sqliteColumns = map[string]string{
	FieldID:         "b.id",
	FieldResourceID: "COALESCE(b.resource_id, 0)",
	FieldCategoryID: "COALESCE(b.category_id, 0)",
	"start":         "b.start",
	"stop":          "b.stop",
}

// NewSQLiteSource opens (creating if needed) the database at dbPath
func NewSQLiteSource(dbPath string, loc *time.Location) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if loc == nil {
		loc = time.Local
	}
	s := &SQLiteSource{db: db, loc: loc}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *SQLiteSource) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS resource_groups (
		id INTEGER PRIMARY KEY,
		label TEXT NOT NULL,
		sequence INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS resources (
		id INTEGER PRIMARY KEY,
		group_id INTEGER NOT NULL REFERENCES resource_groups(id),
		label TEXT NOT NULL,
		sequence INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS bookings (
		id INTEGER PRIMARY KEY,
		start TEXT NOT NULL,
		stop TEXT NOT NULL,
		resource_id INTEGER,
		resource_label TEXT,
		category_id INTEGER,
		category_label TEXT,
		fields TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_bookings_start ON bookings(start);
	CREATE INDEX IF NOT EXISTS idx_bookings_stop ON bookings(stop);
	CREATE INDEX IF NOT EXISTS idx_resources_group ON resources(group_id, sequence);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteSource) Name() string {
	return TypeSQLite
}

func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

// Fetch returns one page of bookings overlapping the request range
func (s *SQLiteSource) Fetch(ctx context.Context, req FetchRequest) (FetchResponse, error) {
	where, args, err := s.buildWhere(req)
	if err != nil {
		return FetchResponse{}, err
	}

	var count int
	countQuery := "SELECT COUNT(*) FROM bookings b WHERE " + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&count); err != nil {
		return FetchResponse{}, fmt.Errorf("%w: failed to count bookings: %v", ErrUnavailable, err)
	}

	query := "SELECT b.id, b.start, b.stop, b.resource_id, b.resource_label, b.category_id, b.category_label, b.fields FROM bookings b WHERE " +
		where + " ORDER BY " + s.orderBy(req.Context.GroupBy)
	if req.Context.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", req.Context.Limit, req.Context.Offset)
	} else if req.Context.Offset > 0 {
		query += fmt.Sprintf(" LIMIT -1 OFFSET %d", req.Context.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return FetchResponse{}, fmt.Errorf("%w: failed to query bookings: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	records := make([]model.Record, 0)
	for rows.Next() {
		rec, err := scanBooking(rows)
		if err != nil {
			return FetchResponse{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		records = append(records, project(rec, req.Context.Fields))
	}
	if err := rows.Err(); err != nil {
		return FetchResponse{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	util.LogDebug("SQLiteSource: fetched bookings",
		util.F("range", req.Range.String()),
		util.F("count", count),
		util.F("page", len(records)))
	return FetchResponse{Count: count, Records: records}, nil
}

func (s *SQLiteSource) buildWhere(req FetchRequest) (string, []any, error) {
	start, end := rangeBounds(req.Range, s.loc)
	clauses := []string{"b.start <= ?", "b.stop >= ?"}
	args := []any{end, start}

	for _, c := range req.Context.Filters {
		clause, condArgs, err := sqlCondition(c)
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, clause)
		args = append(args, condArgs...)
	}
	return strings.Join(clauses, " AND "), args, nil
}

func sqlColumn(field string) (string, error) {
	if col, ok := sqliteColumns[field]; ok {
		return col, nil
	}
	if !isValidIdentifier(field) {
		return "", fmt.Errorf("invalid field name %q", field)
	}
	return fmt.Sprintf("json_extract(b.fields, '$.%s')", field), nil
}

func sqlCondition(c model.Condition) (string, []any, error) {
	col, err := sqlColumn(c.Field)
	if err != nil {
		return "", nil, err
	}
	switch strings.ToLower(c.Op) {
	case OpEq, "":
		return col + " = ?", []any{c.Value}, nil
	case OpNe:
		return col + " != ?", []any{c.Value}, nil
	case OpIn, OpNotIn:
		vals := stringList(c.Value)
		if len(vals) == 0 {
			if strings.ToLower(c.Op) == OpIn {
				return "0", nil, nil
			}
			return "1", nil, nil
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(vals)), ",")
		args := make([]any, len(vals))
		for i, v := range vals {
			args[i] = v
		}
		op := " IN "
		if strings.ToLower(c.Op) == OpNotIn {
			op = " NOT IN "
		}
		return "CAST(" + col + " AS TEXT)" + op + "(" + placeholders + ")", args, nil
	case OpILike:
		return col + " LIKE ?", []any{"%" + stringify(c.Value) + "%"}, nil
	default:
		return "", nil, fmt.Errorf("unsupported operator %q", c.Op)
	}
}

func (s *SQLiteSource) orderBy(groupBy []string) string {
	var cols []string
	for _, g := range groupBy {
		if col, err := sqlColumn(g); err == nil {
			cols = append(cols, col)
		}
	}
	return strings.Join(append(cols, "b.start", "b.id"), ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (model.Record, error) {
	var (
		rec                          model.Record
		resourceID, categoryID       sql.NullInt64
		resourceLabel, categoryLabel sql.NullString
		fields                       sql.NullString
	)
	if err := row.Scan(&rec.ID, &rec.Start, &rec.Stop, &resourceID, &resourceLabel, &categoryID, &categoryLabel, &fields); err != nil {
		return model.Record{}, err
	}
	if resourceID.Valid && resourceID.Int64 != 0 {
		rec.Resource = &model.Ref{ID: resourceID.Int64, Name: resourceLabel.String}
	}
	if categoryID.Valid && categoryID.Int64 != 0 {
		rec.Category = &model.Ref{ID: categoryID.Int64, Name: categoryLabel.String}
	}
	if fields.Valid && fields.String != "" {
		if err := sonic.UnmarshalString(fields.String, &rec.Fields); err != nil {
			return model.Record{}, fmt.Errorf("booking %d has invalid fields: %w", rec.ID, err)
		}
	}
	return rec, nil
}

// FetchOne returns a single booking by ID
func (s *SQLiteSource) FetchOne(ctx context.Context, id int64) (model.Record, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT b.id, b.start, b.stop, b.resource_id, b.resource_label, b.category_id, b.category_label, b.fields FROM bookings b WHERE b.id = ?", id)
	rec, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Record{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return model.Record{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return rec, nil
}

// Catalog returns resource groups and their resources in sequence order,
// extended with resources that only appear on bookings
func (s *SQLiteSource) Catalog(ctx context.Context) (model.Catalog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, g.label, r.id, r.label
		FROM resource_groups g
		LEFT JOIN resources r ON r.group_id = g.id
		ORDER BY g.sequence, g.id, r.sequence, r.id`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query catalog: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var catalog model.Catalog
	for rows.Next() {
		var (
			groupID    int64
			groupLabel string
			resID      sql.NullInt64
			resLabel   sql.NullString
		)
		if err := rows.Scan(&groupID, &groupLabel, &resID, &resLabel); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if len(catalog) == 0 || catalog[len(catalog)-1].ID != groupID {
			catalog = append(catalog, model.ResourceGroup{ID: groupID, Label: groupLabel})
		}
		if resID.Valid {
			last := &catalog[len(catalog)-1]
			last.Resources = append(last.Resources, model.Ref{ID: resID.Int64, Name: resLabel.String})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	seen, err := s.referencedResources(ctx)
	if err != nil {
		return nil, err
	}
	return AugmentCatalog(catalog, seen), nil
}

func (s *SQLiteSource) referencedResources(ctx context.Context) ([]model.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT resource_id, COALESCE(resource_label, ''), category_id
		FROM bookings
		WHERE resource_id IS NOT NULL AND category_id IS NOT NULL
		ORDER BY resource_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query booked resources: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var refs []model.Record
	for rows.Next() {
		var resID, catID int64
		var label string
		if err := rows.Scan(&resID, &label, &catID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		refs = append(refs, model.Record{
			Resource: &model.Ref{ID: resID, Name: label},
			Category: &model.Ref{ID: catID},
		})
	}
	return refs, rows.Err()
}

// Import upserts a dataset in a single transaction and returns the number
// of bookings written. Date-only boundaries get default stay times.
func (s *SQLiteSource) Import(ctx context.Context, ds Dataset) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for gi, g := range ds.Catalog {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO resource_groups (id, label, sequence) VALUES (?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET label = excluded.label, sequence = excluded.sequence`,
			g.ID, g.Label, gi); err != nil {
			return 0, fmt.Errorf("failed to save resource group %d: %w", g.ID, err)
		}
		for ri, r := range g.Resources {
			if r.ID == 0 {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO resources (id, group_id, label, sequence) VALUES (?, ?, ?, ?)
				 ON CONFLICT(id) DO UPDATE SET group_id = excluded.group_id, label = excluded.label, sequence = excluded.sequence`,
				r.ID, g.ID, r.Name, ri); err != nil {
				return 0, fmt.Errorf("failed to save resource %d: %w", r.ID, err)
			}
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bookings (id, start, stop, resource_id, resource_label, category_id, category_label, fields)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			start = excluded.start, stop = excluded.stop,
			resource_id = excluded.resource_id, resource_label = excluded.resource_label,
			category_id = excluded.category_id, category_label = excluded.category_label,
			fields = excluded.fields`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare booking insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range ds.Records {
		start, stop, err := s.normalizeBounds(rec)
		if err != nil {
			return 0, err
		}

		var fields any
		if len(rec.Fields) > 0 {
			encoded, err := sonic.MarshalString(rec.Fields)
			if err != nil {
				return 0, fmt.Errorf("failed to encode fields of booking %d: %w", rec.ID, err)
			}
			fields = encoded
		}

		var resID, resLabel, catID, catLabel any
		if rec.Resource != nil && rec.Resource.ID != 0 {
			resID, resLabel = rec.Resource.ID, rec.Resource.Name
		}
		if rec.Category != nil && rec.Category.ID != 0 {
			catID, catLabel = rec.Category.ID, rec.Category.Name
		}

		if _, err := stmt.ExecContext(ctx, rec.ID, start, stop, resID, resLabel, catID, catLabel, fields); err != nil {
			return 0, fmt.Errorf("failed to save booking %d: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit import: %w", err)
	}

	util.LogInfo("SQLiteSource: imported dataset",
		util.F("groups", len(ds.Catalog)),
		util.F("bookings", len(ds.Records)))
	return len(ds.Records), nil
}

func (s *SQLiteSource) normalizeBounds(rec model.Record) (string, string, error) {
	startRaw, stopRaw := model.NormalizeStayTimes(rec.Start, rec.Stop)
	start, err := model.ParseTimestamp(startRaw, s.loc)
	if err != nil {
		return "", "", fmt.Errorf("booking %d start: %w", rec.ID, err)
	}
	stop, err := model.ParseTimestamp(stopRaw, s.loc)
	if err != nil {
		return "", "", fmt.Errorf("booking %d stop: %w", rec.ID, err)
	}
	return start.In(s.loc).Format(DateTimeLayout), stop.In(s.loc).Format(DateTimeLayout), nil
}

// isValidIdentifier checks if a string is a safe SQL identifier
func isValidIdentifier(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, c := range s {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_') {
			return false
		}
	}
	return true
}
