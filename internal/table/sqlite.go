package table

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLiteBackend stores each queue in its own SQLite file through gorm.
type SQLiteBackend struct {
	// BusyTimeout bounds how long SQLite waits on its file lock.
	BusyTimeout time.Duration
}

func (b *SQLiteBackend) Name() string { return "sqlite" }

func (b *SQLiteBackend) Location(dataDir, kind, name string) string {
	return filepath.Join(dataDir, kind, name+".db")
}

// itemRow maps Record onto the queue_items table. Times are unix nanoseconds.
type itemRow struct {
	ID             uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	Payload        []byte `gorm:"column:payload;not null"`
	InvisibleUntil int64  `gorm:"column:invisible_until;not null;index"`
	CreateTime     int64  `gorm:"column:created_at;not null;index"`
	DeleteTime     *int64 `gorm:"column:deleted_at;index"`
}

func (itemRow) TableName() string { return "queue_items" }

func rowFromRecord(r *Record) itemRow {
	row := itemRow{
		ID:             r.ID,
		Payload:        r.Payload,
		InvisibleUntil: timeToNanos(r.InvisibleUntil),
		CreateTime:     timeToNanos(r.CreatedAt),
	}
	if r.DeletedAt != nil {
		n := timeToNanos(*r.DeletedAt)
		row.DeleteTime = &n
	}
	return row
}

func (row itemRow) record() Record {
	r := Record{
		ID:             row.ID,
		Payload:        row.Payload,
		InvisibleUntil: nanosToTime(row.InvisibleUntil),
		CreatedAt:      nanosToTime(row.CreateTime),
	}
	if row.DeleteTime != nil {
		t := nanosToTime(*row.DeleteTime)
		r.DeletedAt = &t
	}
	return r
}

func (b *SQLiteBackend) Open(ctx context.Context, location string) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(location), 0o755); err != nil {
		return nil, err
	}
	busy := b.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	dsn := location + "?_busy_timeout=" + strconv.FormatInt(busy.Milliseconds(), 10) + "&_journal_mode=WAL"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.WithContext(ctx).AutoMigrate(&itemRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return &sqliteStore{db: db}, nil
}

func (b *SQLiteBackend) Remove(location string) error {
	for _, p := range []string{location, location + "-wal", location + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

type sqliteStore struct {
	db     *gorm.DB
	closed bool
}

func (s *sqliteStore) conn(ctx context.Context) (*gorm.DB, error) {
	if s.closed {
		return nil, ErrClosed
	}
	return s.db.WithContext(ctx), nil
}

func (s *sqliteStore) Insert(ctx context.Context, r *Record) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	row := rowFromRecord(r)
	row.ID = 0
	if err := db.Create(&row).Error; err != nil {
		return err
	}
	r.ID = row.ID
	return nil
}

func (s *sqliteStore) Get(ctx context.Context, n uint64) (Record, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return Record{}, err
	}
	var row itemRow
	if err := db.Where("id = ?", n).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return row.record(), nil
}

func (s *sqliteStore) Update(ctx context.Context, r Record) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	row := rowFromRecord(&r)
	res := db.Model(&itemRow{}).Where("id = ?", r.ID).Updates(map[string]interface{}{
		"payload":         row.Payload,
		"invisible_until": row.InvisibleUntil,
		"created_at":      row.CreateTime,
		"deleted_at":      row.DeleteTime,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) Delete(ctx context.Context, n uint64) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	return db.Where("id = ?", n).Delete(&itemRow{}).Error
}

func (s *sqliteStore) where(db *gorm.DB, f Filter) *gorm.DB {
	q := db.Model(&itemRow{})
	if !f.VisibleAt.IsZero() {
		q = q.Where("invisible_until <= ?", timeToNanos(f.VisibleAt))
	}
	switch f.Tombstones {
	case ActiveRows:
		q = q.Where("deleted_at IS NULL")
	case DeletedRows:
		q = q.Where("deleted_at IS NOT NULL")
	}
	if f.Since != nil {
		q = q.Where("created_at >= ?", timeToNanos(*f.Since))
	}
	return q
}

func (s *sqliteStore) Scan(ctx context.Context, f Filter) ([]Record, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	q := s.where(db, f).Order("id asc")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var rows []itemRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.record())
	}
	return out, nil
}

func (s *sqliteStore) Count(ctx context.Context, f Filter) (int, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := s.where(db, f).Count(&n).Error; err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *sqliteStore) DeleteWhere(ctx context.Context, f Filter) (int, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	q := s.where(db, f)
	if f.VisibleAt.IsZero() && f.Tombstones == AnyRows && f.Since == nil {
		// gorm refuses unconditional deletes without an explicit opt-in.
		q = q.Session(&gorm.Session{AllowGlobalUpdate: true})
	}
	res := q.Delete(&itemRow{})
	return int(res.RowsAffected), res.Error
}

func (s *sqliteStore) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
