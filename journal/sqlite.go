package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, position_id, ticker, side, mode, quantity, price, purchase_price, realized_pl, time, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.PositionID, t.Ticker, string(t.Side), t.Mode, t.Quantity,
		t.Price, t.PurchasePrice, t.RealizedPL, t.Time.UTC(), t.Reason,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
