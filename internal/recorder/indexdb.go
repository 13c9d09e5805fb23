package recorder

import (
	"context"
	"database/sql"
	"sync"

	_ "modernc.org/sqlite"
)

// CycleRow is the indexed summary of one recorded cycle.
type CycleRow struct {
	At        string
	Watermark string
	Persons   int
	Cars      int
	Objects   int
}

// Index is a sqlite index over recorded cycles. Writes funnel through a
// single goroutine; Record never blocks the poll cycle. The mutex covers
// both the send and the close, so Close cannot close the channel under a
// concurrent Record.
type Index struct {
	db *sql.DB

	mu     sync.Mutex
	ch     chan CycleRow
	wg     sync.WaitGroup
	closed bool
}

const schema = `
CREATE TABLE IF NOT EXISTS cycles (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	at         TEXT NOT NULL,
	watermark  TEXT NOT NULL,
	persons    INTEGER NOT NULL,
	cars       INTEGER NOT NULL,
	objects    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cycles_at ON cycles(at);
`

func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	idx := &Index{
		db: db,
		ch: make(chan CycleRow, 256),
	}
	idx.wg.Add(1)
	go idx.writeLoop()
	return idx, nil
}

func (i *Index) writeLoop() {
	defer i.wg.Done()
	for row := range i.ch {
		_, _ = i.db.Exec(
			`INSERT INTO cycles (at, watermark, persons, cars, objects) VALUES (?, ?, ?, ?, ?)`,
			row.At, row.Watermark, row.Persons, row.Cars, row.Objects,
		)
	}
}

// Record queues one row. Rows are dropped rather than blocking when the
// writer falls behind; a closed index drops silently.
func (i *Index) Record(row CycleRow) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return
	}
	select {
	case i.ch <- row:
	default:
	}
}

func (i *Index) Close() error {
	i.mu.Lock()
	if !i.closed {
		i.closed = true
		close(i.ch)
	}
	i.mu.Unlock()
	i.wg.Wait()
	return i.db.Close()
}

// Cycles lists the recorded cycle summaries in order.
func (i *Index) Cycles(ctx context.Context) ([]CycleRow, error) {
	rows, err := i.db.QueryContext(ctx,
		`SELECT at, watermark, persons, cars, objects FROM cycles ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CycleRow
	for rows.Next() {
		var r CycleRow
		if err := rows.Scan(&r.At, &r.Watermark, &r.Persons, &r.Cars, &r.Objects); err != nil {
			return out, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
