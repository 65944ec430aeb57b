package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert hits a unique constraint.
	ErrDuplicate = errors.New("duplicate record")
)

const uniqueViolation = "23505"

// DBTX is the query surface shared by *pgxpool.Pool, pgx.Tx and the pgxmock
// pool used in tests.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Database is a DBTX that can open a transaction. pgx.Tx satisfies it too,
// in which case Begin opens a savepoint.
type Database interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store groups the repositories over one connection so that a use case can
// run several of them inside a single transaction.
type Store interface {
	Organizations() OrganizationRepository
	Employees() EmployeeRepository
	CorporateOrders() CorporateOrderRepository
	SubOrders() SubOrderRepository
	Addresses() AddressRepository
	// InTx runs fn against a Store bound to a new transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(Store) error) error
	Ping(ctx context.Context) error
}

type store struct {
	db Database
}

func NewStore(db Database) Store {
	return &store{db: db}
}

func (s *store) Organizations() OrganizationRepository     { return NewOrganizationRepo(s.db) }
func (s *store) Employees() EmployeeRepository             { return NewEmployeeRepo(s.db) }
func (s *store) CorporateOrders() CorporateOrderRepository { return NewCorporateOrderRepo(s.db) }
func (s *store) SubOrders() SubOrderRepository             { return NewSubOrderRepo(s.db) }
func (s *store) Addresses() AddressRepository              { return NewAddressRepo(s.db) }

func (s *store) InTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(&store{db: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *store) Ping(ctx context.Context) error {
	var one int
	return s.db.QueryRow(ctx, "SELECT 1").Scan(&one)
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func duplicate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}
