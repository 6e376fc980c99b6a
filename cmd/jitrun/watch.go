package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wippyai/wasm-jit/runtime"
)

const settleDelay = 50 * time.Millisecond

func runWatch(ctx context.Context, cfg *runtime.Config, files []string, a, b int32) error {
	s, err := newSession(ctx, cfg, files)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	for i, f := range s.funcs {
		if err := watcher.Add(f.file); err != nil {
			return fmt.Errorf("watch %s: %w", f.file, err)
		}
		s.report(ctx, i, s.load(ctx, i), a, b)
	}
	fmt.Println("watching for changes, ctrl+c to stop")

	for {
		select {
		case <-ctx.Done():
			return nil

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watch: %v\n", err)

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			changed := map[string]bool{}
			collect := func(ev fsnotify.Event) {
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove) {
					changed[filepath.Clean(ev.Name)] = true
				}
			}
			collect(ev)
			// editors write in bursts; wait until the file settles
			timer := time.NewTimer(settleDelay)
		drain:
			for {
				select {
				case ev := <-watcher.Events:
					collect(ev)
				case <-timer.C:
					break drain
				}
			}

			for name := range changed {
				i := s.index(name)
				if i < 0 {
					continue
				}
				// editors that save by rename drop the watch
				watcher.Add(s.funcs[i].file)
				s.report(ctx, i, s.reload(ctx, i), a, b)
			}
			s.printGuards()
		}
	}
}

func (s *session) report(ctx context.Context, i int, err error, a, b int32) {
	f := s.funcs[i]
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s [%d]: %v\n", f.file, f.handle, err)
		return
	}
	fmt.Printf("%s [%d]: run(%d, %d) = %d\n", f.file, f.handle, a, b, s.rt.Invoke(ctx, f.handle, a, b))
}
