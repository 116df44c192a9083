package journal

const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	position_id TEXT NOT NULL,
	ticker TEXT NOT NULL,
	side TEXT NOT NULL,
	mode TEXT NOT NULL,
	quantity INTEGER NOT NULL,
	price REAL NOT NULL,
	purchase_price REAL NOT NULL,
	realized_pl REAL NOT NULL,
	time DATETIME NOT NULL,
	reason TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_time ON trades(time);
CREATE INDEX IF NOT EXISTS idx_trades_ticker ON trades(ticker);
`
