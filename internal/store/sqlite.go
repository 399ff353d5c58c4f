package store

import (
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strconv"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Dicklesworthstone/pavcore/internal/farkas"
	"github.com/Dicklesworthstone/pavcore/internal/history"
	"github.com/Dicklesworthstone/pavcore/internal/results"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

-- one row per explored history; alpha is NULL when there is no certificate
CREATE TABLE IF NOT EXISTS histories (
	id INTEGER PRIMARY KEY,
	history TEXT NOT NULL UNIQUE,
	successful INTEGER NOT NULL,
	alpha TEXT
);

CREATE TABLE IF NOT EXISTS gammas (
	history_id INTEGER NOT NULL REFERENCES histories(id),
	step INTEGER NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (history_id, step)
);

CREATE TABLE IF NOT EXISTS betas (
	history_id INTEGER NOT NULL REFERENCES histories(id),
	step INTEGER NOT NULL,
	x INTEGER NOT NULL,
	y INTEGER NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (history_id, step, x, y)
);
`

func loadSQLite(path string) (*results.Map, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	m, err := readSQLite(db)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func readSQLite(db *sql.DB) (*results.Map, error) {
	numAlts, err := readMetaInt(db, "num_alts")
	if err != nil {
		return nil, err
	}
	k, err := readMetaInt(db, "k")
	if err != nil {
		return nil, err
	}

	type row struct {
		rec  results.Record
		cert *farkas.Certificate
	}
	byID := map[int64]*row{}
	var order []int64

	rows, err := db.Query(`SELECT id, history, successful, alpha FROM histories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArtifact, err)
	}
	for rows.Next() {
		var (
			id         int64
			text       string
			successful bool
			alpha      sql.NullString
		)
		if err := rows.Scan(&id, &text, &successful, &alpha); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: %v", ErrMalformedArtifact, err)
		}
		h, err := history.Parse(text)
		if err == nil {
			err = h.Validate(numAlts, k)
		}
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: %v", ErrMalformedArtifact, err)
		}
		r := &row{rec: results.Record{History: h, Successful: successful}}
		if alpha.Valid {
			a, err := parseRat(alpha.String)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("%s: alpha: %w", h.Label(), err)
			}
			r.cert = &farkas.Certificate{
				Alpha: a,
				Beta:  map[farkas.SwapIndex]*big.Rat{},
				Gamma: make([]*big.Rat, h.Depth()),
			}
		}
		byID[id] = r
		order = append(order, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("%w: %v", ErrMalformedArtifact, err)
	}
	rows.Close()

	certFor := func(id int64) (*row, error) {
		r, ok := byID[id]
		if !ok || r.cert == nil {
			return nil, fmt.Errorf("%w: coefficient for history id %d without a certificate", ErrMalformedArtifact, id)
		}
		return r, nil
	}

	rows, err = db.Query(`SELECT history_id, step, value FROM gammas`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArtifact, err)
	}
	for rows.Next() {
		var (
			id    int64
			step  int
			value string
		)
		if err := rows.Scan(&id, &step, &value); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: %v", ErrMalformedArtifact, err)
		}
		r, err := certFor(id)
		if err == nil && (step < 0 || step >= len(r.cert.Gamma)) {
			err = fmt.Errorf("%w: %s: gamma for step %d", ErrMalformedArtifact, r.rec.History.Label(), step)
		}
		if err == nil {
			r.cert.Gamma[step], err = parseRat(value)
		}
		if err != nil {
			rows.Close()
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("%w: %v", ErrMalformedArtifact, err)
	}
	rows.Close()

	rows, err = db.Query(`SELECT history_id, step, x, y, value FROM betas`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArtifact, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id    int64
			idx   farkas.SwapIndex
			value string
		)
		if err := rows.Scan(&id, &idx.Step, &idx.X, &idx.Y, &value); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedArtifact, err)
		}
		r, err := certFor(id)
		if err != nil {
			return nil, err
		}
		if r.cert.Beta[idx], err = parseRat(value); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArtifact, err)
	}

	records := make([]results.Record, 0, len(order))
	for _, id := range order {
		r := byID[id]
		if r.cert != nil {
			for i, g := range r.cert.Gamma {
				if g == nil {
					return nil, fmt.Errorf("%w: %s: gamma[%d] missing", ErrMalformedArtifact, r.rec.History.Label(), i)
				}
			}
			r.rec.Certificate = r.cert
		}
		records = append(records, r.rec)
	}
	m, err := results.Build(numAlts, k, records)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArtifact, err)
	}
	return m, nil
}

func readMetaInt(db *sql.DB, key string) (int, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: meta %s missing", ErrMalformedArtifact, key)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedArtifact, err)
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: meta %s=%q", ErrMalformedArtifact, key, value)
	}
	return n, nil
}

func saveSQLite(path string, m *results.Map) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if err := writeSQLite(tx, m); err != nil {
		tx.Rollback()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return tx.Commit()
}

func writeSQLite(tx *sql.Tx, m *results.Map) error {
	for key, value := range map[string]int{"num_alts": m.NumAlts, "k": m.K} {
		if _, err := tx.Exec(`INSERT INTO meta (key, value) VALUES (?, ?)`, key, strconv.Itoa(value)); err != nil {
			return err
		}
	}

	insHistory, err := tx.Prepare(`INSERT INTO histories (history, successful, alpha) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insHistory.Close()
	insGamma, err := tx.Prepare(`INSERT INTO gammas (history_id, step, value) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insGamma.Close()
	insBeta, err := tx.Prepare(`INSERT INTO betas (history_id, step, x, y, value) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insBeta.Close()

	var werr error
	m.Each(func(r results.Record) bool {
		var alpha sql.NullString
		if r.Certificate != nil {
			alpha = sql.NullString{String: formatRat(r.Certificate.Alpha), Valid: true}
		}
		res, err := insHistory.Exec(r.History.Key(), r.Successful, alpha)
		if err != nil {
			werr = err
			return false
		}
		if r.Certificate == nil {
			return true
		}
		id, err := res.LastInsertId()
		if err != nil {
			werr = err
			return false
		}
		for i, g := range r.Certificate.Gamma {
			if _, err := insGamma.Exec(id, i, formatRat(g)); err != nil {
				werr = err
				return false
			}
		}
		for _, idx := range sortedBeta(r.Certificate) {
			if _, err := insBeta.Exec(id, idx.Step, idx.X, idx.Y, formatRat(r.Certificate.Beta[idx])); err != nil {
				werr = err
				return false
			}
		}
		return true
	})
	return werr
}
