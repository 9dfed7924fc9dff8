package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
)

// SessionItem is one persisted blob.
type SessionItem struct {
	bun.BaseModel `bun:"table:session_items,alias:si"`

	Key       string    `bun:"item_key,pk" json:"key"`
	Value     string    `bun:"item_value,notnull" json:"value"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// BunStorage keeps blobs in the session_items table.
type BunStorage struct {
	db  bun.IDB
	now func() time.Time
}

var _ Storage = (*BunStorage)(nil)

func NewBunStorage(db bun.IDB) *BunStorage {
	return &BunStorage{db: db, now: time.Now}
}

// Migrate creates the session_items table.
func (b *BunStorage) Migrate(ctx context.Context) error {
	_, err := b.db.NewCreateTable().
		Model((*SessionItem)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func (b *BunStorage) Get(ctx context.Context, key string) (string, bool, error) {
	item := &SessionItem{}
	err := b.db.NewSelect().
		Model(item).
		Where("?TableAlias.item_key = ?", key).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return item.Value, true, nil
}

func (b *BunStorage) Set(ctx context.Context, key, value string) error {
	item := &SessionItem{
		Key:       key,
		Value:     value,
		UpdatedAt: b.now().UTC(),
	}
	_, err := b.db.NewInsert().
		Model(item).
		On("CONFLICT (item_key) DO UPDATE").
		Set("item_value = EXCLUDED.item_value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (b *BunStorage) Delete(ctx context.Context, key string) error {
	_, err := b.db.NewDelete().
		Model((*SessionItem)(nil)).
		Where("item_key = ?", key).
		Exec(ctx)
	return err
}
