package agents

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/shayc/otto/internal/config"
	"github.com/shayc/otto/pkg/models"
)

const (
	defaultIndexInterval = 5 * time.Minute
	defaultIndexMaxFiles = 100
)

// Indexer walks the configured roots on a fixed cadence and records an
// index summary per pass. Hidden directories, node_modules, and vendor
// trees are skipped, and a pass touches at most maxFiles files.
type Indexer struct {
	base
	records  *taskLog
	roots    []string
	maxFiles int
	interval time.Duration
}

// NewIndexer creates the indexer agent over the configured roots.
func NewIndexer(store Memory, cfg config.IndexerAgentConfig) *Indexer {
	roots := cfg.Roots
	if len(roots) == 0 {
		roots = []string{"."}
	}
	maxFiles := cfg.MaxFiles
	if maxFiles <= 0 {
		maxFiles = defaultIndexMaxFiles
	}
	return &Indexer{
		base:     base{kind: models.AgentIndexer},
		records:  newTaskLog(store, models.AgentIndexer),
		roots:    roots,
		maxFiles: maxFiles,
		interval: defaultIndexInterval,
	}
}

// Run indexes once immediately, then on every tick until the context
// is canceled.
func (ix *Indexer) Run(ctx context.Context) {
	ix.pass(ctx)

	ticker := time.NewTicker(ix.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ix.pass(ctx)
		}
	}
}

// Drain flushes any buffered index summaries.
func (ix *Indexer) Drain(ctx context.Context) error {
	return ix.records.flush(ctx)
}

func (ix *Indexer) pass(ctx context.Context) {
	ix.beat()

	files := 0
	var size int64
	for _, root := range ix.roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return filepath.SkipAll
			}
			if err != nil {
				// Unreadable entries are skipped, not fatal.
				return nil
			}
			if d.IsDir() {
				if path != root && skipDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			if info, err := d.Info(); err == nil {
				size += info.Size()
			}
			files++
			if files >= ix.maxFiles {
				return filepath.SkipAll
			}
			return nil
		})
		if err != nil {
			log.Printf("[indexer] WARNING: walk %s failed: %v", root, err)
		}
		if files >= ix.maxFiles || ctx.Err() != nil {
			break
		}
	}
	if ctx.Err() != nil {
		return
	}

	ix.records.add(fmt.Sprintf("indexed %d files (%d KB) across %d roots", files, size/1024, len(ix.roots)), "")
	ix.taskDone()

	if err := ix.records.flush(ctx); err != nil {
		log.Printf("[indexer] WARNING: task flush failed: %v", err)
	}
}

// skipDir reports whether a directory should be pruned from the walk.
func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || name == "node_modules" || name == "vendor"
}
