package snapshots

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

const timestampLayout = "20060102_150405"

// FilesystemSink writes each snapshot to its own file under a directory.
type FilesystemSink struct {
	dir string
}

func NewFilesystemSink(dir string) (FilesystemSink, error) {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return FilesystemSink{}, err
	}
	return FilesystemSink{dir: dir}, nil
}

func (s FilesystemSink) Dir() string {
	return s.dir
}

// Filename is the name a snapshot is stored under.
func Filename(snapshot Snapshot) string {
	ts := snapshot.Time.Format(timestampLayout)
	switch snapshot.Kind {
	case KindReservation:
		return fmt.Sprintf("cart_add_%s_req%d.txt", ts, snapshot.Sequence)
	default:
		return fmt.Sprintf("response_%s_req%d_http%d.html", ts, snapshot.Sequence, snapshot.StatusCode)
	}
}

func (s FilesystemSink) Save(_ context.Context, snapshot Snapshot) error {
	path := filepath.Join(s.dir, Filename(snapshot))
	err := os.WriteFile(path, snapshot.Body, 0600)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
