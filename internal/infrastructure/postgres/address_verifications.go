package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/phone-otp-gate/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS address_phone_verification (
	address_id  BIGINT PRIMARY KEY,
	is_verified BOOLEAN NOT NULL DEFAULT FALSE,
	verified_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	verified_ip TEXT
)`

// NewPool opens a pgx connection pool and checks connectivity.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// DB is the part of *pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AddressVerificationRepo keeps one verification row per address.
type AddressVerificationRepo struct {
	db DB
}

func NewAddressVerificationRepo(db DB) *AddressVerificationRepo {
	return &AddressVerificationRepo{db: db}
}

// Migrate creates the ledger table when missing.
func (r *AddressVerificationRepo) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create address_phone_verification: %w", err)
	}
	return nil
}

func (r *AddressVerificationRepo) Upsert(ctx context.Context, v *domain.AddressPhoneVerification) error {
	query := `
		INSERT INTO address_phone_verification (address_id, is_verified, verified_at, verified_ip)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		ON CONFLICT (address_id) DO UPDATE
		SET is_verified = EXCLUDED.is_verified,
		    verified_at = EXCLUDED.verified_at,
		    verified_ip = EXCLUDED.verified_ip`
	if _, err := r.db.Exec(ctx, query, v.AddressID, v.IsVerified, v.VerifiedAt, v.VerifiedIP); err != nil {
		return fmt.Errorf("upsert address verification %d: %w", v.AddressID, err)
	}
	return nil
}

func (r *AddressVerificationRepo) Get(ctx context.Context, addressID int64) (*domain.AddressPhoneVerification, error) {
	query := `
		SELECT address_id, is_verified, verified_at, COALESCE(verified_ip, '')
		FROM address_phone_verification
		WHERE address_id = $1`
	v := &domain.AddressPhoneVerification{}
	err := r.db.QueryRow(ctx, query, addressID).Scan(&v.AddressID, &v.IsVerified, &v.VerifiedAt, &v.VerifiedIP)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("address verification not found: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get address verification %d: %w", addressID, err)
	}
	return v, nil
}
