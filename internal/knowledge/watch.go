package knowledge

import (
	"context"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const reloadDebounce = 500 * time.Millisecond

// Watch rebuilds the snapshot whenever a supported file under opts.Dir is
// created, written, removed or renamed, and swaps it into h. Bursts of
// events are coalesced. A failed rebuild keeps the previous snapshot.
// Watch blocks until ctx is done.
func Watch(ctx context.Context, h *Holder, opts Options, log *zerolog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	err = filepath.WalkDir(opts.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Info().Str("dir", opts.Dir).Msg("watching knowledge directory")

	var (
		timer   *time.Timer
		reloadC <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create == fsnotify.Create {
				// new subdirectories need their own watch
				if isDir(ev.Name) {
					_ = w.Add(ev.Name)
					continue
				}
			}
			if !supported(ev.Name) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			reloadC = timer.C

		case <-reloadC:
			reloadC = nil
			b, err := Build(ctx, opts, log)
			if err != nil {
				log.Error().Err(err).Msg("knowledge reload failed; keeping previous snapshot")
				continue
			}
			h.Swap(b)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("knowledge watcher")
		}
	}
}
