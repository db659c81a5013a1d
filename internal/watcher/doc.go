// Package watcher observes a workspace tree for changes so watch mode
// can re-index incrementally.
//
// Events come from fsnotify, are filtered against .gitignore and the
// data dir, and are debounced so a burst of saves from an editor or a
// git checkout collapses into one batch. Changes to .gitignore and
// .symdex.yaml surface as their own operations because they call for a
// reconcile pass rather than a single-file reindex.
//
//	w, err := watcher.New(watcher.DefaultOptions(), logger)
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//	go w.Start(ctx, root)
//
//	for batch := range w.Events() {
//	    // re-index the batch
//	}
package watcher
