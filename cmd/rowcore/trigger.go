package main

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"rowcore/internal/config"
)

// runFunc performs one pipeline run.
type runFunc func(ctx context.Context) error

// runWithTrigger calls run according to the pipeline trigger until ctx is
// done. A "once" trigger returns the run's error; the repeating kinds log
// failed runs and keep going. Runs never overlap.
func runWithTrigger(ctx context.Context, p config.Pipeline, run runFunc) error {
	switch kind := p.Trigger.EffectiveKind(); kind {
	case config.TriggerOnce:
		return run(ctx)
	case config.TriggerSchedule:
		return runScheduled(ctx, p.Trigger.Schedule, run)
	case config.TriggerFileWatch:
		var paths []string
		for _, in := range p.AllInputs() {
			if in.Source.Kind == "file" {
				paths = append(paths, in.Source.File.Path)
			}
		}
		return runOnChange(ctx, paths, p.Trigger.DebounceDuration(), run)
	default:
		return fmt.Errorf("unknown trigger kind %q", kind)
	}
}

// runScheduled runs on a cron schedule. A tick that arrives while the
// previous run is still going is skipped.
func runScheduled(ctx context.Context, expr string, run runFunc) error {
	logger := cron.PrintfLogger(log.Default())
	c := cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	if _, err := c.AddFunc(expr, func() {
		if err := run(ctx); err != nil {
			log.Printf("trigger: scheduled run failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("trigger: invalid schedule %q: %w", expr, err)
	}
	c.Start()
	log.Printf("trigger: scheduled %q", expr)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// runOnChange runs once at start and again whenever one of paths is written
// or created and then stays quiet for debounce. Changes during a run queue
// at most one more run.
func runOnChange(ctx context.Context, paths []string, debounce time.Duration, run runFunc) error {
	if len(paths) == 0 {
		return fmt.Errorf("trigger: file_watch needs at least one file input")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("trigger: create watcher: %w", err)
	}
	defer watcher.Close()

	watched := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("trigger: bad path %q: %w", p, err)
		}
		watched[abs] = true
		// Editors and copy tools replace files; watch the directory.
		if dir := filepath.Dir(abs); !dirs[dir] {
			if err := watcher.Add(dir); err != nil {
				return fmt.Errorf("trigger: watch %s: %w", dir, err)
			}
			dirs[dir] = true
		}
	}
	log.Printf("trigger: watching %d file(s), debounce %s", len(watched), debounce)

	pending := make(chan struct{}, 1)
	pending <- struct{}{}
	queue := func() {
		select {
		case pending <- struct{}{}:
		default:
		}
	}

	go func() {
		var timer *time.Timer
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				abs, _ := filepath.Abs(ev.Name)
				if !watched[abs] {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, func() {
					log.Printf("trigger: %s changed", abs)
					queue()
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("trigger: watcher error: %v", err)
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pending:
			if err := run(ctx); err != nil {
				log.Printf("trigger: run failed: %v", err)
			}
		}
	}
}
