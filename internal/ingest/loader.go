// Package ingest loads knowledge passages from a directory into the
// retrieval index and keeps them current while the service runs.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/campuskit/advisor/internal/retrieval"
)

// maxChunkLen bounds one indexed passage. Long sections are split on
// paragraph boundaries so each embedding stays focused.
const maxChunkLen = 1200

var watchedExtensions = map[string]struct{}{
	".md":  {},
	".txt": {},
}

// Indexer is the slice of the retrieval index ingestion needs.
type Indexer interface {
	Upsert(ctx context.Context, doc retrieval.Document) error
}

// Loader reads knowledge files and upserts their chunks.
type Loader struct {
	dir   string
	index Indexer
}

func NewLoader(dir string, index Indexer) *Loader {
	return &Loader{dir: dir, index: index}
}

// LoadDir ingests every knowledge file under the directory. It returns the
// number of chunks indexed; individual file failures are logged and skipped
// so one bad file cannot empty the index.
func (l *Loader) LoadDir(ctx context.Context) (int, error) {
	total := 0
	err := filepath.WalkDir(l.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := watchedExtensions[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}
		n, err := l.LoadFile(ctx, path)
		if err != nil {
			log.Printf("ingest: skipping %s: %v", path, err)
			return nil
		}
		total += n
		return nil
	})
	if err != nil {
		return total, fmt.Errorf("walk %s: %w", l.dir, err)
	}
	return total, nil
}

// LoadFile (re)ingests one file. Chunk IDs are stable across reloads, so a
// rewritten file replaces its previous passages.
func (l *Loader) LoadFile(ctx context.Context, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}

	rel, err := filepath.Rel(l.dir, path)
	if err != nil {
		rel = filepath.Base(path)
	}

	chunks := splitChunks(string(raw))
	for i, chunk := range chunks {
		doc := retrieval.Document{
			ID:        fmt.Sprintf("%s#%d", filepath.ToSlash(rel), i),
			Content:   chunk,
			SourceRef: filepath.Base(path),
			UpdatedAt: info.ModTime().UTC(),
		}
		if err := l.index.Upsert(ctx, doc); err != nil {
			return i, fmt.Errorf("upsert %s: %w", doc.ID, err)
		}
	}
	return len(chunks), nil
}

// splitChunks splits text on blank lines and packs paragraphs into chunks of
// at most maxChunkLen. A single oversized paragraph becomes its own chunk.
func splitChunks(text string) []string {
	paragraphs := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n")

	var (
		chunks  []string
		current strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
	}

	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(p)+2 > maxChunkLen {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
	}
	flush()
	return chunks
}
