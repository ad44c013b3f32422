package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tilerealm/server/internal/data"
	"github.com/tilerealm/server/internal/world"
)

// PlayerRepo keeps one JSONB snapshot per username. Level and experience
// are copied into columns for the leaderboard index.
type PlayerRepo struct {
	db *DB
}

func NewPlayerRepo(db *DB) *PlayerRepo {
	return &PlayerRepo{db: db}
}

func (r *PlayerRepo) Load(ctx context.Context, username string) (*world.Snapshot, error) {
	var raw []byte
	err := r.db.Pool.QueryRow(ctx,
		`SELECT snapshot FROM players WHERE username = $1`, username,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	snap := &world.Snapshot{}
	if err := json.Unmarshal(raw, snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", username, err)
	}
	return snap, nil
}

func (r *PlayerRepo) Save(ctx context.Context, username string, snap world.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", username, err)
	}
	_, err = r.db.Pool.Exec(ctx,
		`INSERT INTO players (username, snapshot, level, experience, updated_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (username) DO UPDATE
		 SET snapshot = EXCLUDED.snapshot, level = EXCLUDED.level,
		     experience = EXCLUDED.experience, updated_at = NOW()`,
		username, raw, data.LevelForExp(snap.Experience), snap.Experience,
	)
	return err
}

// Postgres is the Store backed by a pgx pool.
type Postgres struct {
	db       *DB
	accounts *AccountRepo
	players  *PlayerRepo
}

func NewPostgres(db *DB) *Postgres {
	return &Postgres{db: db, accounts: NewAccountRepo(db), players: NewPlayerRepo(db)}
}

func (p *Postgres) LoadAccount(ctx context.Context, name string) (*Account, error) {
	return p.accounts.Load(ctx, AccountKey(name))
}

func (p *Postgres) CreateAccount(ctx context.Context, name, rawPassword, ip string) (*Account, error) {
	return p.accounts.Create(ctx, AccountKey(name), rawPassword, ip)
}

func (p *Postgres) TouchAccount(ctx context.Context, name, ip string) error {
	return p.accounts.UpdateLastActive(ctx, AccountKey(name), ip)
}

func (p *Postgres) LoadPlayer(ctx context.Context, username string) (*world.Snapshot, error) {
	return p.players.Load(ctx, AccountKey(username))
}

func (p *Postgres) SavePlayer(ctx context.Context, snap world.Snapshot) error {
	return p.players.Save(ctx, AccountKey(snap.Username), snap)
}

func (p *Postgres) Close() { p.db.Close() }
