package persist

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

type AccountRepo struct {
	db *DB
}

func NewAccountRepo(db *DB) *AccountRepo {
	return &AccountRepo{db: db}
}

func (r *AccountRepo) Load(ctx context.Context, name string) (*Account, error) {
	row := &Account{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT name, password_hash, admin, banned, COALESCE(ip,''), created_at, last_active
		 FROM accounts WHERE name = $1`, name,
	).Scan(&row.Name, &row.PasswordHash, &row.Admin, &row.Banned, &row.IP, &row.CreatedAt, &row.LastActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (r *AccountRepo) Create(ctx context.Context, name, rawPassword, ip string) (*Account, error) {
	hash, err := hashPassword(rawPassword, bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	row := &Account{
		Name:         name,
		PasswordHash: hash,
		IP:           ip,
		CreatedAt:    now,
		LastActive:   &now,
	}
	_, err = r.db.Pool.Exec(ctx,
		`INSERT INTO accounts (name, password_hash, ip, last_active)
		 VALUES ($1, $2, $3, $4)`,
		row.Name, row.PasswordHash, row.IP, row.LastActive,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return nil, ErrAccountExists
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (r *AccountRepo) UpdateLastActive(ctx context.Context, name, ip string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE accounts SET last_active = NOW(), ip = $2 WHERE name = $1`,
		name, ip,
	)
	return err
}
