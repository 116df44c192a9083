package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const selectTrades = `
	SELECT trade_id, position_id, ticker, side, mode, quantity, price, purchase_price, realized_pl, time, reason
	FROM trades`

// GetTrade returns a single trade record by ID.
func (j *SQLite) GetTrade(tradeID string) (TradeRecord, error) {
	row := j.db.QueryRow(selectTrades+` WHERE trade_id = ?`, tradeID)

	rec, err := scanTrade(row)
	if errors.Is(err, sql.ErrNoRows) {
		return TradeRecord{}, fmt.Errorf("trade %q not found", tradeID)
	}
	return rec, err
}

// ListTradesBetween returns trades whose time is within [start, end), oldest
// first.
func (j *SQLite) ListTradesBetween(start, end time.Time) ([]TradeRecord, error) {
	rows, err := j.db.Query(selectTrades+`
		WHERE time >= ? AND time < ?
		ORDER BY time ASC, trade_id ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// ListTradesByTicker returns every trade for ticker, oldest first.
func (j *SQLite) ListTradesByTicker(ticker string) ([]TradeRecord, error) {
	rows, err := j.db.Query(selectTrades+`
		WHERE ticker = ?
		ORDER BY time ASC, trade_id ASC`, ticker)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// RealizedPL sums realized profit/loss over all sells.
func (j *SQLite) RealizedPL() (float64, error) {
	var total sql.NullFloat64
	err := j.db.QueryRow(`SELECT SUM(realized_pl) FROM trades WHERE side = ?`, string(Sell)).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total.Float64, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(s scanner) (TradeRecord, error) {
	var (
		rec  TradeRecord
		side string
	)
	err := s.Scan(
		&rec.TradeID,
		&rec.PositionID,
		&rec.Ticker,
		&side,
		&rec.Mode,
		&rec.Quantity,
		&rec.Price,
		&rec.PurchasePrice,
		&rec.RealizedPL,
		&rec.Time,
		&rec.Reason,
	)
	rec.Side = Side(side)
	return rec, err
}

func collect(rows *sql.Rows) ([]TradeRecord, error) {
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
