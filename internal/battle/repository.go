package battle

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Repository persists battle outcomes and cumulative player stats in
// Postgres. It implements AccountStore and OutcomeStore.
type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveBattle upserts the final outcome row, keyed by battle id so a retried
// finalize cannot duplicate it.
func (r *Repository) SaveBattle(ctx context.Context, oc *Outcome) error {
	if r == nil || r.db == nil || oc == nil {
		return nil
	}
	q := `INSERT INTO battles (
	    battle_id, sport, level,
	    first_opponent, second_opponent, first_score, second_score,
	    result, winner, loser, finished_at
	  ) VALUES (
	    $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
	  ) ON CONFLICT (battle_id) DO UPDATE SET
	    sport=EXCLUDED.sport,
	    level=EXCLUDED.level,
	    first_opponent=EXCLUDED.first_opponent,
	    second_opponent=EXCLUDED.second_opponent,
	    first_score=EXCLUDED.first_score,
	    second_score=EXCLUDED.second_score,
	    result=EXCLUDED.result,
	    winner=EXCLUDED.winner,
	    loser=EXCLUDED.loser,
	    finished_at=EXCLUDED.finished_at`

	_, err := r.db.ExecContext(ctx, q,
		oc.BattleID, oc.Sport, oc.Level,
		oc.First, oc.Second, oc.FirstScore, oc.SecondScore,
		oc.Result, oc.Winner, oc.Loser, time.Now().UTC(),
	)
	return err
}

// GetUser loads one player's cumulative stats. A missing row yields (nil, nil)
// so the caller can start a fresh record.
func (r *Repository) GetUser(ctx context.Context, username string) (*PlayerStats, error) {
	if r == nil || r.db == nil {
		return nil, nil
	}
	q := `SELECT username, total_battles, wins, streak, win_rate, rank, battle_ids
	  FROM users WHERE username = $1`

	var (
		s   PlayerStats
		raw []byte
	)
	err := r.db.QueryRowContext(ctx, q, username).Scan(
		&s.Username, &s.TotalBattles, &s.Wins, &s.Streak, &s.WinRate, &s.Rank, &raw,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &s.BattleIDs); err != nil {
			return nil, err
		}
	}
	return &s, nil
}

// UpdateUserStats upserts the player's record. The rank column is written by
// UpdateRanks only.
func (r *Repository) UpdateUserStats(ctx context.Context, s *PlayerStats) error {
	if r == nil || r.db == nil || s == nil {
		return nil
	}
	raw, err := json.Marshal(s.BattleIDs)
	if err != nil {
		return err
	}
	q := `INSERT INTO users (username, total_battles, wins, streak, win_rate, battle_ids)
	  VALUES ($1,$2,$3,$4,$5,$6)
	  ON CONFLICT (username) DO UPDATE SET
	    total_battles=EXCLUDED.total_battles,
	    wins=EXCLUDED.wins,
	    streak=EXCLUDED.streak,
	    win_rate=EXCLUDED.win_rate,
	    battle_ids=EXCLUDED.battle_ids`

	_, err = r.db.ExecContext(ctx, q,
		s.Username, s.TotalBattles, s.Wins, s.Streak, s.WinRate, string(raw),
	)
	return err
}

// ListStats returns every player's record for a full ranking rebuild.
func (r *Repository) ListStats(ctx context.Context) ([]PlayerStats, error) {
	if r == nil || r.db == nil {
		return nil, nil
	}
	q := `SELECT username, total_battles, wins, streak, win_rate, rank FROM users`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PlayerStats
	for rows.Next() {
		var s PlayerStats
		if err := rows.Scan(&s.Username, &s.TotalBattles, &s.Wins, &s.Streak, &s.WinRate, &s.Rank); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpdateRanks writes the freshly computed ladder positions in one
// transaction.
func (r *Repository) UpdateRanks(ctx context.Context, ranks map[string]int) error {
	if r == nil || r.db == nil || len(ranks) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE users SET rank = $2 WHERE username = $1`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for username, rank := range ranks {
		if _, err := stmt.ExecContext(ctx, username, rank); err != nil {
			return err
		}
	}
	return tx.Commit()
}
