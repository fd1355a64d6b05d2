package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/gap-pos/internal/domain"
)

// PolicyFilter captures operator search parameters.
type PolicyFilter struct {
	Environment *domain.Environment
	Statuses    []domain.PolicyStatus
	ProductCode *string
	SearchTerm  *string
	LockedFrom  *time.Time
	LockedTo    *time.Time
	Limit       int
	Offset      int
}

// PolicyRepository keeps a local record of every policy locked through this service.
type PolicyRepository interface {
	Create(ctx context.Context, flowID string, policy *domain.PolicyRecord) error
	Update(ctx context.Context, policy *domain.PolicyRecord) error
	GetByPolicyID(ctx context.Context, policyID string) (*domain.PolicyRecord, error)
	ReplaceDocuments(ctx context.Context, set domain.DocumentSet) error
	ListDocuments(ctx context.Context, policyID string) ([]domain.Document, error)
	ListWithFilter(ctx context.Context, filter PolicyFilter) ([]domain.PolicyRecord, error)
}

type policyRepository struct {
	pool *pgxpool.Pool
}

// NewPolicyRepository instantiates repository.
func NewPolicyRepository(pool *pgxpool.Pool) PolicyRepository {
	return &policyRepository{pool: pool}
}

const policyColumns = `policy_id, policy_number, status, signature_type, premium, environment, product_code,
               holder_name, holder_email, locked_at, confirmed_at, updated_at`

func (r *policyRepository) Create(ctx context.Context, flowID string, policy *domain.PolicyRecord) error {
	const query = `
        INSERT INTO policies (policy_id, flow_id, policy_number, status, signature_type, premium, environment,
            product_code, holder_name, holder_email, locked_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		policy.PolicyID,
		flowID,
		policy.PolicyNumber,
		policy.Status,
		policy.SignatureType,
		policy.Premium,
		policy.Environment,
		policy.ProductCode,
		policy.HolderName,
		policy.HolderEmail,
		policy.LockedAt,
	).Scan(&policy.UpdatedAt)
}

func (r *policyRepository) Update(ctx context.Context, policy *domain.PolicyRecord) error {
	const query = `
        UPDATE policies SET policy_number=$1, status=$2, confirmed_at=$3, updated_at=NOW()
        WHERE policy_id=$4`
	cmd, err := r.pool.Exec(ctx, query,
		policy.PolicyNumber,
		policy.Status,
		policy.ConfirmedAt,
		policy.PolicyID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *policyRepository) GetByPolicyID(ctx context.Context, policyID string) (*domain.PolicyRecord, error) {
	query := `SELECT ` + policyColumns + ` FROM policies WHERE policy_id=$1`
	rows, err := r.pool.Query(ctx, query, policyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list, err := scanPolicies(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &list[0], nil
}

// ReplaceDocuments stores the latest document list of a policy in one transaction.
func (r *policyRepository) ReplaceDocuments(ctx context.Context, set domain.DocumentSet) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM policy_documents WHERE policy_id=$1`, set.PolicyID); err != nil {
		return err
	}

	const insert = `
        INSERT INTO policy_documents (policy_id, position, code, name, url, mime_type, archive_key, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	batch := &pgx.Batch{}
	for i, doc := range set.Documents {
		batch.Queue(insert, set.PolicyID, i, doc.Code, doc.Name, doc.URL, doc.MimeType, nullable(doc.ArchiveKey), doc.CreatedAt)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *policyRepository) ListDocuments(ctx context.Context, policyID string) ([]domain.Document, error) {
	const query = `
        SELECT code, name, url, mime_type, COALESCE(archive_key, ''), created_at
        FROM policy_documents WHERE policy_id=$1 ORDER BY position`
	rows, err := r.pool.Query(ctx, query, policyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var d domain.Document
		if err := rows.Scan(&d.Code, &d.Name, &d.URL, &d.MimeType, &d.ArchiveKey, &d.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *policyRepository) ListWithFilter(ctx context.Context, filter PolicyFilter) ([]domain.PolicyRecord, error) {
	query, args := buildPolicyListQuery(filter)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPolicies(rows)
}

func buildPolicyListQuery(filter PolicyFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Environment != nil {
		args = append(args, *filter.Environment)
		clauses = append(clauses, fmt.Sprintf("environment=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.ProductCode != nil {
		args = append(args, *filter.ProductCode)
		clauses = append(clauses, fmt.Sprintf("product_code=$%d", len(args)))
	}
	if filter.LockedFrom != nil {
		args = append(args, *filter.LockedFrom)
		clauses = append(clauses, fmt.Sprintf("locked_at >= $%d", len(args)))
	}
	if filter.LockedTo != nil {
		args = append(args, *filter.LockedTo)
		clauses = append(clauses, fmt.Sprintf("locked_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(policy_number) LIKE %s OR LOWER(holder_name) LIKE %s)", placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM policies WHERE %s ORDER BY locked_at DESC LIMIT %d OFFSET %d`,
		policyColumns, strings.Join(clauses, " AND "), limit, offset)
	return query, args
}

func scanPolicies(rows pgx.Rows) ([]domain.PolicyRecord, error) {
	var result []domain.PolicyRecord
	for rows.Next() {
		var p domain.PolicyRecord
		if err := rows.Scan(
			&p.PolicyID,
			&p.PolicyNumber,
			&p.Status,
			&p.SignatureType,
			&p.Premium,
			&p.Environment,
			&p.ProductCode,
			&p.HolderName,
			&p.HolderEmail,
			&p.LockedAt,
			&p.ConfirmedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
