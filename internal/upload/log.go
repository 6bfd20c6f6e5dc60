package upload

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type FileDescriptor struct {
	Name         string `json:"name"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
	Path         string `json:"path"`
}

type Record struct {
	Timestamp time.Time         `json:"timestamp"`
	Fields    map[string]string `json:"fields"`
	File      *FileDescriptor   `json:"file"`
}

// Log is the submission audit log. It is best-effort: the upload handler
// reports Append errors but does not fail the request on them.
type Log interface {
	Append(ctx context.Context, rec Record) error
	List(ctx context.Context, limit int) ([]Record, error)
}

// FileLog keeps every record in one JSON array file. Appends within the
// process are serialized and the file is replaced atomically, so a reader
// never sees a half-written array.
type FileLog struct {
	path string
	mu   sync.Mutex
}

func NewFileLog(path string) *FileLog {
	return &FileLog{path: path}
}

func (l *FileLog) Append(ctx context.Context, rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	records := l.read()
	records = append(records, rec)
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(l.path, data)
}

// List returns up to limit of the oldest records; limit <= 0 means all.
func (l *FileLog) List(ctx context.Context, limit int) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	records := l.read()
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// read returns the stored records; a missing or unreadable file is an
// empty log.
func (l *FileLog) read() []Record {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return []Record{}
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil || records == nil {
		return []Record{}
	}
	return records
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
