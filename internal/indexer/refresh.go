package indexer

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"
)

// Refresher applies corpus directory changes to the index. It only touches
// files that IndexCorpus would pick for a corpus document.
type Refresher struct {
	ctx   context.Context
	idx   *Indexer
	dir   string
	names map[string]bool
	exts  []string
}

// NewRefresher returns a Refresher for the named documents in dir.
func (idx *Indexer) NewRefresher(ctx context.Context, dir string, names, exts []string) *Refresher {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return &Refresher{ctx: ctx, idx: idx, dir: filepath.Clean(dir), names: set, exts: exts}
}

// Accept reports whether path could hold a corpus document.
func (r *Refresher) Accept(path string) bool {
	if !r.names[DocumentID(path)] {
		return false
	}
	ext := filepath.Ext(path)
	for _, e := range r.exts {
		if e == ext || "."+e == ext {
			return true
		}
	}
	return false
}

// FileChanged re-indexes path when it is the preferred file of its document.
func (r *Refresher) FileChanged(path string) {
	name := DocumentID(path)
	if findDocumentFile(r.dir, name, r.exts) != filepath.Clean(path) {
		r.idx.logger.Debug("ignoring change to shadowed corpus file", zap.String("path", path))
		return
	}
	skipped, err := r.idx.IndexFile(r.ctx, path)
	if err != nil {
		r.idx.logger.Error("failed to re-index corpus document", zap.String("document", name), zap.Error(err))
		return
	}
	if !skipped {
		r.idx.logger.Info("corpus document re-indexed", zap.String("document", name))
	}
}

// FileRemoved drops the document indexed from path, then indexes any
// remaining file for the same document.
func (r *Refresher) FileRemoved(path string) {
	name := DocumentID(path)
	removed, err := r.idx.RemoveFile(r.ctx, path)
	if err != nil {
		r.idx.logger.Error("failed to remove corpus document", zap.String("document", name), zap.Error(err))
		return
	}
	if !removed {
		return
	}
	r.idx.logger.Info("corpus document removed", zap.String("document", name))
	if next := findDocumentFile(r.dir, name, r.exts); next != "" {
		r.FileChanged(next)
	}
}
