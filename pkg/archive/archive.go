// Package archive persists snapshots for later inspection.
//
// Two stores are provided: DiskStore writes JSON files to a directory and
// S3Store writes objects to an S3 bucket.
//
//	client, _ := archive.NewS3Client(ctx, "eu-west-1")
//	store := archive.NewS3Store(client, "prompt-archive", "snapshots/")
//	id, err := store.Save(ctx, archive.NewRecord(snap))
package archive

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/vango-dev/vprompt/pkg/snapshot"
)

// ErrNotFound is returned when a record doesn't exist.
var ErrNotFound = errors.New("archive: record not found")

// ErrInvalidID is returned for ids that are not UUIDs.
var ErrInvalidID = errors.New("archive: invalid record id")

// Record is one archived snapshot.
type Record struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"createdAt"`
	Labels    map[string]string `json:"labels,omitempty"`
	Snapshot  *snapshot.Node    `json:"snapshot"`
}

// NewRecord wraps snap in a record with a fresh id.
func NewRecord(snap *snapshot.Node) *Record {
	return &Record{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Snapshot:  snap,
	}
}

// Store is the interface for archive backends.
type Store interface {
	// Save stores rec and returns its id. Records without an id get one.
	Save(ctx context.Context, rec *Record) (string, error)

	// Load returns the record with the given id or ErrNotFound.
	Load(ctx context.Context, id string) (*Record, error)
}

// validateID rejects ids that could escape a directory or key prefix.
func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidID
	}
	return nil
}

func prepare(rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return validateID(rec.ID)
}
