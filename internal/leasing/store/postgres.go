package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"leasehold/internal/leasing/models"
	"leasehold/internal/platform/postgres"
	"leasehold/pkg/domain"
	"leasehold/pkg/platform/sentinel"
	txcontext "leasehold/pkg/platform/tx"
)

// PostgresStore persists domains and leases in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const domainColumns = `node, real_owner, oracle_ref, is_set_up, created_at, updated_at`

func (s *PostgresStore) FindDomain(ctx context.Context, node domain.Node) (*models.DomainRecord, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `SELECT `+domainColumns+` FROM domains WHERE node = $1`, node.String())
	return scanDomain(row)
}

// FindDomainForUpdate locks the domain row until the surrounding transaction ends.
// Without a transaction in ctx it behaves like FindDomain.
func (s *PostgresStore) FindDomainForUpdate(ctx context.Context, node domain.Node) (*models.DomainRecord, error) {
	if _, ok := txcontext.From(ctx); !ok {
		return s.FindDomain(ctx, node)
	}
	row := s.execer(ctx).QueryRowContext(ctx, `SELECT `+domainColumns+` FROM domains WHERE node = $1 FOR UPDATE`, node.String())
	return scanDomain(row)
}

func (s *PostgresStore) SaveDomain(ctx context.Context, d *models.DomainRecord) error {
	query := `
		INSERT INTO domains (node, real_owner, oracle_ref, is_set_up, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (node) DO UPDATE SET
			real_owner = EXCLUDED.real_owner,
			oracle_ref = EXCLUDED.oracle_ref,
			is_set_up = EXCLUDED.is_set_up,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		d.Node.String(), d.RealOwner.String(), d.OracleRef, d.IsSetUp, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("save domain: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("save domain: %w", err)
	}
	return nil
}

const leaseColumns = `node, parent, label, owner, resolved_address, status, expiry, price, oracle_ref, fuses, records, registered_at, updated_at`

func (s *PostgresStore) FindLease(ctx context.Context, node domain.Node) (*models.SubdomainLease, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `SELECT `+leaseColumns+` FROM leases WHERE node = $1`, node.String())
	return scanLease(row)
}

// FindLeases loads the leases that exist among nodes in one round trip.
func (s *PostgresStore) FindLeases(ctx context.Context, nodes []domain.Node) (map[domain.Node]*models.SubdomainLease, error) {
	out := make(map[domain.Node]*models.SubdomainLease, len(nodes))
	if len(nodes) == 0 {
		return out, nil
	}
	keys := make([]string, len(nodes))
	for i, n := range nodes {
		keys[i] = n.String()
	}
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+leaseColumns+` FROM leases WHERE node = ANY($1)`, pq.Array(keys))
	if err != nil {
		return nil, fmt.Errorf("find leases: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		l, err := scanLease(rows)
		if err != nil {
			return nil, err
		}
		out[l.Node] = l
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leases: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) SaveLease(ctx context.Context, l *models.SubdomainLease) error {
	records, err := json.Marshal(recordsOrEmpty(l.Records))
	if err != nil {
		return fmt.Errorf("marshal lease records: %w", err)
	}
	query := `
		INSERT INTO leases (` + leaseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (node) DO UPDATE SET
			owner = EXCLUDED.owner,
			resolved_address = EXCLUDED.resolved_address,
			status = EXCLUDED.status,
			expiry = EXCLUDED.expiry,
			price = EXCLUDED.price,
			oracle_ref = EXCLUDED.oracle_ref,
			fuses = EXCLUDED.fuses,
			records = EXCLUDED.records,
			registered_at = EXCLUDED.registered_at,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		l.Node.String(), l.Parent.String(), l.Label, l.Owner.String(), l.ResolvedAddress.String(),
		string(l.Status), l.Expiry, l.Price, l.OracleRef, int64(l.Fuses), records,
		l.RegisteredAt, l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save lease: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByParent(ctx context.Context, parent domain.Node) ([]*models.SubdomainLease, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+leaseColumns+` FROM leases WHERE parent = $1 ORDER BY registered_at, node`, parent.String())
	if err != nil {
		return nil, fmt.Errorf("list leases: %w", err)
	}
	defer rows.Close()
	var out []*models.SubdomainLease
	for rows.Next() {
		l, err := scanLease(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leases: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDomain(row rowScanner) (*models.DomainRecord, error) {
	var (
		d               models.DomainRecord
		node, realOwner string
	)
	err := row.Scan(&node, &realOwner, &d.OracleRef, &d.IsSetUp, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan domain: %w", err)
	}
	if d.Node, err = domain.ParseNode(node); err != nil {
		return nil, fmt.Errorf("scan domain node: %w", err)
	}
	if d.RealOwner, err = domain.ParseAddress(realOwner); err != nil {
		return nil, fmt.Errorf("scan domain owner: %w", err)
	}
	return &d, nil
}

func scanLease(row rowScanner) (*models.SubdomainLease, error) {
	var (
		l                             models.SubdomainLease
		node, parent, owner, resolved string
		status                        string
		fuses                         int64
		records                       []byte
	)
	err := row.Scan(&node, &parent, &l.Label, &owner, &resolved, &status, &l.Expiry,
		&l.Price, &l.OracleRef, &fuses, &records, &l.RegisteredAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan lease: %w", err)
	}
	if l.Node, err = domain.ParseNode(node); err != nil {
		return nil, fmt.Errorf("scan lease node: %w", err)
	}
	if l.Parent, err = domain.ParseNode(parent); err != nil {
		return nil, fmt.Errorf("scan lease parent: %w", err)
	}
	if l.Owner, err = domain.ParseAddress(owner); err != nil {
		return nil, fmt.Errorf("scan lease owner: %w", err)
	}
	if l.ResolvedAddress, err = domain.ParseAddress(resolved); err != nil {
		return nil, fmt.Errorf("scan lease resolved address: %w", err)
	}
	l.Status = models.LeaseStatus(status)
	l.Fuses = domain.Fuses(fuses)
	if err := json.Unmarshal(records, &l.Records); err != nil {
		return nil, fmt.Errorf("scan lease records: %w", err)
	}
	if len(l.Records) == 0 {
		l.Records = nil
	}
	return &l, nil
}

func recordsOrEmpty(r map[string]string) map[string]string {
	if r == nil {
		return map[string]string{}
	}
	return r
}
