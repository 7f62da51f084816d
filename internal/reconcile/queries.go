package reconcile

import (
	"context"

	projectrepo "agency_portal_backend/internal/projects/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// query is a Source backed by one SQL statement returning (key, ids).
type query struct {
	pool *pgxpool.Pool
	kind string
	sql  string
}

func (q query) Kind() string { return q.kind }

func (q query) Find(ctx context.Context) ([]Finding, error) {
	rows, err := q.pool.Query(ctx, q.sql)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Finding, error) {
		f := Finding{Kind: q.kind}
		err := row.Scan(&f.Key, &f.IDs)
		return f, err
	})
}

// idSource wraps a repository lookup that returns offending record ids.
type idSource struct {
	kind string
	list func(ctx context.Context) ([]uuid.UUID, error)
}

func (s idSource) Kind() string { return s.kind }

func (s idSource) Find(ctx context.Context) ([]Finding, error) {
	ids, err := s.list(ctx)
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	f := Finding{Kind: s.kind, IDs: make([]string, 0, len(ids))}
	for _, id := range ids {
		f.IDs = append(f.IDs, id.String())
	}
	return []Finding{f}, nil
}

// PostgresSources are the standard checks against the CRM schema.
func PostgresSources(pool *pgxpool.Pool) []Source {
	return []Source{
		query{pool: pool, kind: KindDuplicateFingerprint, sql: `
			SELECT lead_fingerprint, array_agg(id::text ORDER BY created_at)
			FROM leads
			WHERE NOT is_deleted
			GROUP BY lead_fingerprint
			HAVING count(*) > 1`},
		query{pool: pool, kind: KindDuplicateProposalNo, sql: `
			SELECT proposal_number, array_agg(id::text ORDER BY created_at)
			FROM proposals
			GROUP BY proposal_number
			HAVING count(*) > 1`},
		query{pool: pool, kind: KindUnconvertedBacklink, sql: `
			SELECT '', array_agg(id::text ORDER BY created_at)
			FROM leads
			WHERE converted_at IS NULL AND (client_id IS NOT NULL OR project_id IS NOT NULL)
			HAVING count(*) > 0`},
		query{pool: pool, kind: KindOrphanClient, sql: `
			SELECT '', array_agg(c.id::text ORDER BY c.created_at)
			FROM clients c
			JOIN leads l ON l.id = c.source_lead_id
			WHERE l.converted_at IS NULL
			HAVING count(*) > 0`},
		idSource{kind: KindMissingMilestone, list: projectrepo.New(pool).ListMissingMilestones},
		query{pool: pool, kind: KindDepositPaidNotStarted, sql: `
			SELECT '', array_agg(p.id::text ORDER BY p.created_at)
			FROM invoices i
			JOIN projects p ON p.id = i.project_id
			WHERE i.type = 'deposit' AND i.status = 'paid' AND p.status = 'intake'
			HAVING count(*) > 0`},
		query{pool: pool, kind: KindStaleScheduledFollowUp, sql: `
			SELECT type, array_agg(id::text ORDER BY scheduled_for)
			FROM scheduled_emails
			WHERE sent_at IS NULL AND skipped_at IS NULL AND scheduled_for < now() - interval '1 day'
			GROUP BY type`},
	}
}
