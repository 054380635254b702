// Package watcher reports document changes in the data directory so the
// index can be refreshed without a manual rebuild.
//
// Only the top level of the directory is watched, matching how the index
// scans it. fsnotify is used when available; otherwise the directory is
// polled. Events are debounced so that a PDF being copied in several writes
// produces a single batch.
//
// Usage:
//
//	w, err := watcher.New(dataDir, watcher.Options{Filter: extractor.Supports})
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	go func() { _ = w.Start(ctx) }()
//	return watcher.Drive(ctx, w.Events(), rebuild, logger)
package watcher
