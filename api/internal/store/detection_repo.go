package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"shelf-scan/api/internal/product"
)

// Record: одна сохранённая детекция.
type Record struct {
	ID         int64
	ImageName  string
	UploadTime time.Time
	Products   []product.DetectedProduct
	ImageURL   string
}

// DetectionRepo is the append-only detections log.
type DetectionRepo struct {
	DB      *sql.DB
	Dialect Dialect
	now     func() time.Time
}

func NewDetectionRepo(db *sql.DB, dialect Dialect) *DetectionRepo {
	return &DetectionRepo{DB: db, Dialect: dialect, now: time.Now}
}

var schema = map[Dialect][]string{
	SQLite: {
		`create table if not exists detections (
  id integer primary key autoincrement,
  image_name text,
  upload_time timestamp default current_timestamp,
  products text,
  image_url text not null default ''
)`,
		`create index if not exists detections_upload_time_idx on detections (upload_time)`,
	},
	Postgres: {
		`create table if not exists detections (
  id bigserial primary key,
  image_name text,
  upload_time timestamptz not null default now(),
  products text,
  image_url text not null default ''
)`,
		`create index if not exists detections_upload_time_idx on detections (upload_time)`,
	},
}

// EnsureSchema создаёт таблицу и индекс, если их ещё нет. Идемпотентно.
func (r *DetectionRepo) EnsureSchema(ctx context.Context) error {
	stmts, ok := schema[r.Dialect]
	if !ok {
		return fmt.Errorf("unsupported dialect %q", r.Dialect)
	}
	for _, q := range stmts {
		if _, err := r.DB.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Insert appends a record. upload_time is assigned here, in UTC.
func (r *DetectionRepo) Insert(ctx context.Context, imageName string, products []product.DetectedProduct, imageURL string) (Record, error) {
	if products == nil {
		products = []product.DetectedProduct{}
	}
	js, err := json.Marshal(products)
	if err != nil {
		return Record{}, fmt.Errorf("encode products: %w", err)
	}
	ts := r.now().UTC()

	const q = `
insert into detections (image_name, upload_time, products, image_url)
values ($1, $2, $3, $4)
returning id`
	var id int64
	if err := r.DB.QueryRowContext(ctx, q, imageName, ts, string(js), imageURL).Scan(&id); err != nil {
		return Record{}, fmt.Errorf("insert detection: %w", err)
	}
	return Record{
		ID:         id,
		ImageName:  imageName,
		UploadTime: ts,
		Products:   product.Clone(products),
		ImageURL:   imageURL,
	}, nil
}

// Recent возвращает последние limit записей, новые первыми.
func (r *DetectionRepo) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		return []Record{}, nil
	}
	const q = `
select id, coalesce(image_name, ''), upload_time, coalesce(products, '[]'), coalesce(image_url, '')
from detections
order by upload_time desc, id desc
limit $1`
	rows, err := r.DB.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, limit)
	for rows.Next() {
		var (
			rec Record
			js  string
		)
		if err := rows.Scan(&rec.ID, &rec.ImageName, &rec.UploadTime, &js, &rec.ImageURL); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if err := json.Unmarshal([]byte(js), &rec.Products); err != nil || rec.Products == nil {
			// битый JSON в строке не должен ронять всю историю
			rec.Products = []product.DetectedProduct{}
		}
		rec.UploadTime = rec.UploadTime.UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return out, nil
}

func (r *DetectionRepo) Ping(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}
