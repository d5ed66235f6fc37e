package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"speaksmart/internal/domain"
)

// FileSource watches a directory for dropped WAV files. Each file is
// consumed once and renamed with a .processed suffix.
type FileSource struct {
	dir       string
	logger    *slog.Logger
	processed map[string]bool
	mu        sync.Mutex
}

func NewFileSource(dir string, logger *slog.Logger) *FileSource {
	return &FileSource{
		dir:       dir,
		logger:    logger,
		processed: make(map[string]bool),
	}
}

func (f *FileSource) Name() string {
	return "file"
}

func (f *FileSource) Start(_ context.Context) error {
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return fmt.Errorf("creating audio dir: %w", err)
	}
	return nil
}

func (f *FileSource) Stop() error {
	return nil
}

func (f *FileSource) NextClip(ctx context.Context) (domain.AudioClip, error) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		clip, ok, err := f.checkForNewFile()
		if err != nil {
			return domain.AudioClip{}, err
		}
		if ok {
			return clip, nil
		}

		select {
		case <-ctx.Done():
			return domain.AudioClip{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (f *FileSource) checkForNewFile() (domain.AudioClip, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return domain.AudioClip{}, false, fmt.Errorf("reading dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".wav" {
			continue
		}

		path := filepath.Join(f.dir, entry.Name())
		if f.processed[path] {
			continue
		}
		f.processed[path] = true

		data, err := os.ReadFile(path)
		if err != nil {
			return domain.AudioClip{}, false, fmt.Errorf("reading file %s: %w", path, err)
		}

		if err := os.Rename(path, path+".processed"); err != nil {
			f.logger.Warn("marking audio file processed", "path", path, "error", err)
		}

		clip, err := ClipFromWAV(data)
		if err != nil {
			f.logger.Warn("skipping unreadable audio file", "path", path, "error", err)
			continue
		}

		return clip, true, nil
	}

	return domain.AudioClip{}, false, nil
}
