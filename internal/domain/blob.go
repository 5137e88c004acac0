package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes a stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobReader retrieves data from object storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// GameArchive is everything recorded about one ended game.
type GameArchive struct {
	Game   Game
	Pools  []Pool
	Events []LedgerEvent
}

// GameArchiver writes ended games to cold storage and returns the object path.
type GameArchiver interface {
	ArchiveGame(ctx context.Context, archive GameArchive) (string, error)
}

// ArchiveReader reads archived games back out of cold storage.
type ArchiveReader interface {
	// OpenArchive streams a game's archive. Unarchived games return ErrNotFound.
	OpenArchive(ctx context.Context, game Game) (io.ReadCloser, error)
	// ListArchives lists stored archives, all of them when month is empty,
	// otherwise those of games starting in month (YYYY-MM).
	ListArchives(ctx context.Context, month string) ([]BlobInfo, error)
}
