// Package snapshot exports one owner's records as a gzip-compressed JSON
// document to object storage.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/gogotex/records/internal/record"
	"github.com/gogotex/records/pkg/logger"
	"github.com/gogotex/records/pkg/metrics"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
)

const (
	ContentType = "application/gzip"
	urlExpiry   = 15 * time.Minute
)

var ErrNoObjectStore = errors.New("object storage not configured")

// Lister yields an owner's records; service.Service satisfies it.
type Lister interface {
	List(ctx context.Context, owner string) ([]*record.Record, error)
}

// ObjectStore is the subset of internal/storage.MinIOStorage used here.
type ObjectStore interface {
	UploadFile(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	GetPresignedURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// Snapshot is the exported document.
type Snapshot struct {
	Owner   string           `json:"owner"`
	TakenAt int64            `json:"takenAt"`
	Records []*record.Record `json:"records"`
}

// Result locates an uploaded snapshot.
type Result struct {
	Key string `json:"key"`
	URL string `json:"url,omitempty"`
}

type Exporter struct {
	records Lister
	store   ObjectStore
	now     func() time.Time
}

// NewExporter returns an exporter. store may be nil, in which case Export
// fails with ErrNoObjectStore.
func NewExporter(records Lister, store ObjectStore) *Exporter {
	return &Exporter{records: records, store: store, now: time.Now}
}

// Export uploads a snapshot of owner's records and returns its key and a
// short-lived download URL.
func (e *Exporter) Export(ctx context.Context, owner string) (*Result, error) {
	if e.store == nil {
		return nil, ErrNoObjectStore
	}
	list, err := e.records.List(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("snapshot list: %w", err)
	}
	taken := e.now().UTC()

	var buf bytes.Buffer
	if err := Encode(&buf, &Snapshot{Owner: owner, TakenAt: taken.Unix(), Records: list}); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("snapshots/%s/%s-%s.json.gz", url.PathEscape(owner), taken.Format("20060102T150405Z"), uuid.NewString())
	if err := e.store.UploadFile(ctx, key, &buf, int64(buf.Len()), ContentType); err != nil {
		return nil, fmt.Errorf("snapshot upload: %w", err)
	}
	metrics.SnapshotsWritten.Inc()
	logger.Infof("snapshot written: owner=%s records=%d key=%s", owner, len(list), key)

	res := &Result{Key: key}
	if u, err := e.store.GetPresignedURL(ctx, key, urlExpiry); err == nil {
		res.URL = u
	} else {
		logger.Warnf("snapshot presign failed for %s: %v", key, err)
	}
	return res, nil
}

// Encode writes s as gzip-compressed JSON.
func Encode(w io.Writer, s *Snapshot) error {
	zw := gzip.NewWriter(w)
	if err := json.NewEncoder(zw).Encode(s); err != nil {
		zw.Close()
		return fmt.Errorf("snapshot encode: %w", err)
	}
	return zw.Close()
}

// Decode reads a snapshot written by Encode.
func Decode(r io.Reader) (*Snapshot, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("snapshot decode: %w", err)
	}
	defer zr.Close()
	var s Snapshot
	if err := json.NewDecoder(zr).Decode(&s); err != nil {
		return nil, fmt.Errorf("snapshot decode: %w", err)
	}
	return &s, nil
}
