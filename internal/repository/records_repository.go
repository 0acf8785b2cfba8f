package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/handoff-bridge/internal/domain"
	"github.com/spec-kit/handoff-bridge/internal/helpdesk"
)

// ReportingRepository reads ticket and escalation records from the
// helpdesk's reporting replica. All access is read-only; the replica
// schema is owned by the helpdesk.
type ReportingRepository interface {
	FetchRecords(ctx context.Context, query helpdesk.RecordQuery) ([]domain.AnalyticsRecord, error)
}

type reportingRepository struct {
	pool *pgxpool.Pool
}

// NewReportingRepository builds the repository.
func NewReportingRepository(pool *pgxpool.Pool) ReportingRepository {
	return &reportingRepository{pool: pool}
}

func (r *reportingRepository) FetchRecords(ctx context.Context, query helpdesk.RecordQuery) ([]domain.AnalyticsRecord, error) {
	const baseQuery = `
        SELECT id, kind, opened_at, resolved_at, category, service, customer_id, description
        FROM support_records
        WHERE ($1::timestamptz IS NULL OR opened_at >= $1)
          AND ($2::timestamptz IS NULL OR opened_at < $2)
          AND ($3::text = '' OR service = $3)
          AND ($4::text = '' OR kind = $4)
        ORDER BY opened_at ASC`

	var from, to any
	if !query.From.IsZero() {
		from = query.From
	}
	if !query.To.IsZero() {
		to = query.To
	}

	rows, err := r.pool.Query(ctx, baseQuery, from, to, query.Service, string(query.Kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.AnalyticsRecord
	for rows.Next() {
		var record domain.AnalyticsRecord
		if err := rows.Scan(
			&record.ID,
			&record.Kind,
			&record.OpenedAt,
			&record.ResolvedAt,
			&record.Category,
			&record.Service,
			&record.CustomerID,
			&record.Description,
		); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
