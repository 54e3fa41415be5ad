// Package watcher submits rulebooks for ingestion as they appear in a
// directory. Files are submitted once writes have settled, so a book being
// copied in is ingested once rather than on every write.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/tome/internal/core/domain"
	"github.com/custodia-labs/tome/internal/core/ports/driving"
	"github.com/custodia-labs/tome/internal/logger"
)

// DefaultDebounce is how long a file must go without writes before it is
// submitted.
const DefaultDebounce = 2 * time.Second

// SubmitFunc is told about every submission attempt.
type SubmitFunc func(path, jobID string, err error)

// Watcher watches one directory and submits supported files.
type Watcher struct {
	dir       string
	ingestion driving.IngestionService
	template  domain.SubmitRequest

	supports    func(path string) bool
	bookName    func(path string) string
	onSubmit    SubmitFunc
	debounce    time.Duration
	initialScan bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithFilter restricts submissions to paths the filter accepts, typically
// the extensions an extractor is registered for.
func WithFilter(supports func(path string) bool) Option {
	return func(w *Watcher) {
		if supports != nil {
			w.supports = supports
		}
	}
}

// WithBookName sets how a file path becomes the book title in citations.
func WithBookName(fn func(path string) string) Option {
	return func(w *Watcher) {
		if fn != nil {
			w.bookName = fn
		}
	}
}

// WithDebounce sets the quiet period before a changed file is submitted.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithInitialScan submits files already in the directory when Run starts.
func WithInitialScan(enabled bool) Option {
	return func(w *Watcher) {
		w.initialScan = enabled
	}
}

// OnSubmit registers a callback for submission results.
func OnSubmit(fn SubmitFunc) Option {
	return func(w *Watcher) {
		w.onSubmit = fn
	}
}

// New creates a watcher. template supplies the game system, version and
// per-job configs; the document and book are filled in per file.
func New(dir string, ingestion driving.IngestionService, template domain.SubmitRequest, opts ...Option) *Watcher {
	w := &Watcher{
		dir:       dir,
		ingestion: ingestion,
		template:  template,
		supports:  func(string) bool { return true },
		bookName:  BookName,
		onSubmit:  func(string, string, error) {},
		debounce:  DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is cancelled. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	info, err := os.Stat(w.dir)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, w.dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	logger.Info("watching %s", w.dir)

	if w.initialScan {
		if err := w.scan(ctx); err != nil {
			return err
		}
	}

	ready := make(chan string)
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			path, ok := w.handleEvent(event)
			if !ok {
				continue
			}
			if t, exists := timers[path]; exists {
				t.Reset(w.debounce)
				continue
			}
			timers[path] = time.AfterFunc(w.debounce, func() {
				select {
				case ready <- path:
				case <-ctx.Done():
				}
			})

		case path := <-ready:
			delete(timers, path)
			w.submit(ctx, path)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error: %v", err)
		}
	}
}

// scan submits the supported files already in the directory.
func (w *Watcher) scan(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", w.dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(w.dir, entry.Name())
		if isHidden(entry.Name()) || !w.supports(path) {
			continue
		}
		w.submit(ctx, path)
	}
	return nil
}

// handleEvent returns the path to submit for a create or write of a
// visible, supported regular file.
func (w *Watcher) handleEvent(event fsnotify.Event) (string, bool) {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
		return "", false
	}
	if isHidden(filepath.Base(event.Name)) || !w.supports(event.Name) {
		return "", false
	}
	info, err := os.Stat(event.Name)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return event.Name, true
}

func (w *Watcher) submit(ctx context.Context, path string) {
	req := w.template
	req.Document = domain.DocumentRef{URI: path, Format: w.template.Document.Format}
	req.Book = w.bookName(path)

	jobID, err := w.ingestion.Submit(ctx, req)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("submitting %s: %v", path, err)
	} else if err == nil {
		logger.Info("submitted %s as job %s", path, jobID)
	}
	w.onSubmit(path, jobID, err)
}

// BookName derives a book title from a file name:
// "players_handbook-2014.pdf" becomes "players handbook 2014".
func BookName(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	return strings.Join(strings.Fields(name), " ")
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
