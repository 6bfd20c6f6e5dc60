package upload

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const submissionsSchema = `CREATE TABLE IF NOT EXISTS upload_submissions (
	id         BIGSERIAL PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	fields     JSONB NOT NULL,
	file       JSONB
)`

// PostgresLog stores submissions as rows, one insert per upload.
type PostgresLog struct {
	pool *pgxpool.Pool
}

func NewPostgresLog(ctx context.Context, pool *pgxpool.Pool) (*PostgresLog, error) {
	if _, err := pool.Exec(ctx, submissionsSchema); err != nil {
		return nil, err
	}
	return &PostgresLog{pool: pool}, nil
}

func (l *PostgresLog) Append(ctx context.Context, rec Record) error {
	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return err
	}
	var file []byte
	if rec.File != nil {
		if file, err = json.Marshal(rec.File); err != nil {
			return err
		}
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO upload_submissions(created_at, fields, file) VALUES ($1, $2, $3)`,
		rec.Timestamp, fields, file)
	return err
}

func (l *PostgresLog) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := l.pool.Query(ctx, `SELECT created_at, fields, file FROM upload_submissions ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			createdAt time.Time
			fields    []byte
			file      []byte
		)
		if err := rows.Scan(&createdAt, &fields, &file); err != nil {
			return nil, err
		}
		rec := Record{Timestamp: createdAt}
		if err := json.Unmarshal(fields, &rec.Fields); err != nil {
			return nil, err
		}
		if len(file) > 0 {
			rec.File = &FileDescriptor{}
			if err := json.Unmarshal(file, rec.File); err != nil {
				return nil, err
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
