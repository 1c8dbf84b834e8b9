package recorder

import "StockLens/internal/model"

// NoopStore is used when SQLite is not configured. Writes are discarded and every
// Read reports ErrNotFound.
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (n *NoopStore) Write(_ string, _ *model.Series, _ []model.IndicatorRow) error {
	return nil
}

func (n *NoopStore) Read(_ string) ([]model.SnapshotRow, error) {
	return nil, ErrNotFound
}

func (n *NoopStore) TableName(ticker string) (string, error) {
	return TableName(ticker)
}

func (n *NoopStore) Close() error { return nil }
