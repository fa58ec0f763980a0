package postgres

import (
	"context"
	"fmt"
	"strings"

	"audit-ledger/internal/core/domain"
	"audit-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const auditEventColumns = `id, seq, category, severity, actor_id, action, operation, entity_name,
		entity_id, tenant_scope, change_snapshot, detail, source_ip, user_agent, occurred_at`

// auditOrder is the total order of the log: newest first, insertion order breaks ties.
const auditOrder = "ORDER BY occurred_at DESC, seq DESC"

// AuditEventRepo implements ports.AuditEventRepository. It never issues
// UPDATE or DELETE against audit_events.
type AuditEventRepo struct {
	pool Pool
}

// NewAuditEventRepo creates a new AuditEventRepo.
func NewAuditEventRepo(pool Pool) *AuditEventRepo {
	return &AuditEventRepo{pool: pool}
}

// Insert appends an event and sets its storage sequence number.
func (r *AuditEventRepo) Insert(ctx context.Context, e *domain.AuditEvent) error {
	query := `INSERT INTO audit_events (id, category, severity, actor_id, action, operation, entity_name,
		entity_id, tenant_scope, change_snapshot, detail, source_ip, user_agent, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING seq`

	err := r.pool.QueryRow(ctx, query,
		e.ID, e.Category, e.Severity, e.ActorID, e.Action, e.Operation, e.EntityName,
		e.EntityID, e.TenantScope, snapshotArg(e), e.Detail, e.SourceIP, e.UserAgent, e.OccurredAt,
	).Scan(&e.Seq)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// List fetches one page of events matching the filter, plus the total match count.
func (r *AuditEventRepo) List(ctx context.Context, params ports.AuditListParams) ([]domain.AuditEvent, int64, error) {
	where, args := auditWhere(params.Filter)

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM audit_events %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit events: %w", err)
	}

	argIdx := len(args) + 1
	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM audit_events %s %s LIMIT $%d OFFSET $%d`,
		auditEventColumns, where, auditOrder, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	events, err := r.queryEvents(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// ListByActor returns the actor's most recent events, newest first.
// The tenant condition is part of the query so the limit counts only in-scope rows.
func (r *AuditEventRepo) ListByActor(ctx context.Context, actorID uuid.UUID, tenantScope *string, limit int) ([]domain.AuditEvent, error) {
	where, args := auditWhere(domain.AuditFilter{ActorID: &actorID, TenantScope: tenantScope})
	query := fmt.Sprintf(`SELECT %s FROM audit_events %s %s LIMIT $%d`,
		auditEventColumns, where, auditOrder, len(args)+1)
	return r.queryEvents(ctx, query, append(args, limit)...)
}

// ListByEntity returns the full history of one resource, newest first.
func (r *AuditEventRepo) ListByEntity(ctx context.Context, entityName, entityID string, tenantScope *string) ([]domain.AuditEvent, error) {
	where, args := auditWhere(domain.AuditFilter{EntityName: &entityName, EntityID: &entityID, TenantScope: tenantScope})
	query := fmt.Sprintf(`SELECT %s FROM audit_events %s %s`, auditEventColumns, where, auditOrder)
	return r.queryEvents(ctx, query, args...)
}

// Statistics computes every aggregate inside one read-only repeatable-read
// transaction so all figures describe the same snapshot.
func (r *AuditEventRepo) Statistics(ctx context.Context, params ports.AuditStatsParams) (*domain.AuditStatistics, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("begin statistics tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	scope := "TRUE"
	var scopeArgs []any
	if params.TenantScope != nil {
		scope = "tenant_scope = $1"
		scopeArgs = append(scopeArgs, *params.TenantScope)
	}
	d1, d2 := len(scopeArgs)+1, len(scopeArgs)+2
	today := fmt.Sprintf("occurred_at >= $%d AND occurred_at < $%d", d1, d2)

	stats := &domain.AuditStatistics{
		ByCategory:  make(map[domain.EventCategory]int64),
		BySeverity:  make(map[domain.Severity]int64),
		ByOperation: make(map[domain.Operation]int64),
		TopEntities: []domain.EntityCount{},
	}

	countQuery := fmt.Sprintf(`SELECT
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE category = 'ACCESS' AND %[2]s) AS access_today,
		COUNT(*) FILTER (WHERE category = 'ERROR' AND %[2]s) AS errors_today,
		COUNT(DISTINCT actor_id) FILTER (WHERE category = 'ACCESS' AND %[2]s) AS active_actors_today
		FROM audit_events WHERE %[1]s`, scope, today)
	countArgs := append(append([]any{}, scopeArgs...), params.DayStart, params.DayEnd)
	err = tx.QueryRow(ctx, countQuery, countArgs...).Scan(
		&stats.Total, &stats.AccessToday, &stats.ErrorsToday, &stats.ActiveActorsToday,
	)
	if err != nil {
		return nil, fmt.Errorf("count audit statistics: %w", err)
	}

	if err := r.groupCounts(ctx, tx, scope, scopeArgs, stats); err != nil {
		return nil, err
	}

	if params.TopN > 0 {
		top, err := r.topEntities(ctx, tx, scope, scopeArgs, params.TopN)
		if err != nil {
			return nil, err
		}
		stats.TopEntities = top
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit statistics tx: %w", err)
	}
	return stats, nil
}

func (r *AuditEventRepo) groupCounts(ctx context.Context, tx pgx.Tx, scope string, args []any, stats *domain.AuditStatistics) error {
	query := fmt.Sprintf(`SELECT 'category' AS dimension, category AS key, COUNT(*) FROM audit_events
		WHERE %[1]s GROUP BY category
		UNION ALL
		SELECT 'severity', severity, COUNT(*) FROM audit_events
		WHERE %[1]s GROUP BY severity
		UNION ALL
		SELECT 'operation', operation, COUNT(*) FROM audit_events
		WHERE %[1]s AND operation IS NOT NULL GROUP BY operation`, scope)

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("group audit statistics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var dimension, key string
		var n int64
		if err := rows.Scan(&dimension, &key, &n); err != nil {
			return fmt.Errorf("scan audit statistics row: %w", err)
		}
		switch dimension {
		case "category":
			stats.ByCategory[domain.EventCategory(key)] = n
		case "severity":
			stats.BySeverity[domain.Severity(key)] = n
		case "operation":
			stats.ByOperation[domain.Operation(key)] = n
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate audit statistics rows: %w", err)
	}
	return nil
}

func (r *AuditEventRepo) topEntities(ctx context.Context, tx pgx.Tx, scope string, args []any, n int) ([]domain.EntityCount, error) {
	query := fmt.Sprintf(`SELECT entity_name, COUNT(*) AS hits FROM audit_events
		WHERE %s AND category = 'ACCESS' AND entity_name IS NOT NULL
		GROUP BY entity_name ORDER BY hits DESC, entity_name ASC LIMIT $%d`, scope, len(args)+1)

	rows, err := tx.Query(ctx, query, append(append([]any{}, args...), n)...)
	if err != nil {
		return nil, fmt.Errorf("top audit entities: %w", err)
	}
	defer rows.Close()

	top := []domain.EntityCount{}
	for rows.Next() {
		var ec domain.EntityCount
		if err := rows.Scan(&ec.EntityName, &ec.Count); err != nil {
			return nil, fmt.Errorf("scan top entity row: %w", err)
		}
		top = append(top, ec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top entity rows: %w", err)
	}
	return top, nil
}

func (r *AuditEventRepo) queryEvents(ctx context.Context, query string, args ...any) ([]domain.AuditEvent, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	events := []domain.AuditEvent{}
	for rows.Next() {
		e, err := scanAuditEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit event rows: %w", err)
	}
	return events, nil
}

func scanAuditEvent(row pgx.Row) (*domain.AuditEvent, error) {
	e := &domain.AuditEvent{}
	err := row.Scan(
		&e.ID, &e.Seq, &e.Category, &e.Severity, &e.ActorID, &e.Action, &e.Operation,
		&e.EntityName, &e.EntityID, &e.TenantScope, &e.ChangeSnapshot, &e.Detail,
		&e.SourceIP, &e.UserAgent, &e.OccurredAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan audit event: %w", err)
	}
	return e, nil
}

// auditWhere builds the conjunctive WHERE clause for a filter.
func auditWhere(f domain.AuditFilter) (string, []any) {
	var conditions []string
	var args []any
	argIdx := 1

	add := func(cond string, arg any) {
		conditions = append(conditions, fmt.Sprintf(cond, argIdx))
		args = append(args, arg)
		argIdx++
	}

	if f.ActorID != nil {
		add("actor_id = $%d", *f.ActorID)
	}
	if f.EntityName != nil {
		add("entity_name = $%d", *f.EntityName)
	}
	if f.EntityID != nil {
		add("entity_id = $%d", *f.EntityID)
	}
	if f.TenantScope != nil {
		add("tenant_scope = $%d", *f.TenantScope)
	}
	if f.Category != nil {
		add("category = $%d", string(*f.Category))
	}
	if f.Severity != nil {
		add("severity = $%d", string(*f.Severity))
	}
	if f.Operation != nil {
		add("operation = $%d", string(*f.Operation))
	}
	if f.SourceIP != nil {
		add("source_ip = $%d", *f.SourceIP)
	}
	if f.DateFrom != nil {
		add("occurred_at >= $%d", *f.DateFrom)
	}
	if f.DateTo != nil {
		add("occurred_at <= $%d", *f.DateTo)
	}
	if f.Search != "" {
		add(`(action ILIKE $%[1]d ESCAPE '\' OR detail ILIKE $%[1]d ESCAPE '\')`, "%"+escapeLike(f.Search)+"%")
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func snapshotArg(e *domain.AuditEvent) any {
	if len(e.ChangeSnapshot) == 0 {
		return nil
	}
	return string(e.ChangeSnapshot)
}
