package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/update-manifest/internal/config"
	"github.com/oshokin/update-manifest/internal/domain/manifest"
	pb "github.com/oshokin/update-manifest/internal/pb/v1"
)

// Repository defines persistence operations for the manifest snapshot.
type Repository interface {
	Load(ctx context.Context) (*manifest.Manifest, error)
	Save(ctx context.Context, m *manifest.Manifest) error
}

// FileRepository persists the manifest to a JSON file on disk.
// JSON is produced and consumed via protobuf JSON (protojson) of the same
// Struct the gRPC API returns.
type FileRepository struct {
	// path is the filesystem location of the snapshot file.
	path string
	// mu protects concurrent access to the snapshot file.
	mu sync.Mutex
}

// ErrNotFound is returned when the snapshot file does not exist yet.
var ErrNotFound = errors.New("snapshot not found")

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the snapshot from disk.
func (r *FileRepository) Load(_ context.Context) (*manifest.Manifest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read snapshot file: %w", err)
	}

	var s structpb.Struct
	if err = protojson.Unmarshal(contents, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot file: %w: %w", manifest.ErrEncoding, err)
	}

	return pb.FromStruct(&s)
}

// Save writes the snapshot to disk. The file is replaced atomically.
func (r *FileRepository) Save(_ context.Context, m *manifest.Manifest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := pb.ToStruct(m)
	if err != nil {
		return err
	}

	data, err := protojson.MarshalOptions{Multiline: true}.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w: %w", manifest.ErrEncoding, err)
	}

	temporary := r.path + ".tmp"
	if err = os.WriteFile(temporary, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write snapshot file: %w", err)
	}

	if err = os.Rename(temporary, r.path); err != nil {
		return fmt.Errorf("replace snapshot file: %w", err)
	}

	return nil
}
