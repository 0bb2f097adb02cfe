package content

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch invalidates cached pages whenever a markdown file under the pages
// directory changes. It blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(s.pagesDir()); err != nil {
		return err
	}
	logger.Info("watching content", zap.String("dir", s.pagesDir()))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(event.Name, ".md") {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			slug := strings.TrimSuffix(filepath.Base(event.Name), ".md")
			s.Invalidate(slug)
			logger.Debug("content changed", zap.String("slug", slug), zap.String("op", event.Op.String()))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("content watcher error", zap.Error(err))
		}
	}
}
