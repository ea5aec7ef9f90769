package database

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"sync"

	"github.com/spf13/afero"

	"github.com/gurkanbulca/taskdesk/internal/models"
	"github.com/gurkanbulca/taskdesk/internal/xmlcodec"
	"github.com/gurkanbulca/taskdesk/internal/xmlschema"
	"github.com/gurkanbulca/taskdesk/pkg/logger"
)

//go:embed seed/*.xml
var bundledSeed embed.FS

var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicateID       = errors.New("record id already exists")
	ErrDuplicateUsername = errors.New("username already exists")
	ErrValidation        = errors.New("document failed schema validation")
	ErrWrite             = errors.New("write data file")
	// ErrUnavailable is returned for writes to a collection whose file could
	// not be loaded. The file is left untouched until a successful Reload.
	ErrUnavailable = errors.New("collection unavailable")
)

// Config for the XML database
type Config struct {
	Fs        afero.Fs // defaults to the OS filesystem
	Dir       string
	Validator *xmlschema.Validator
	Logger    logger.Logger
	// Seed provides users.xml and tasks.xml copied into Dir on first run.
	// Defaults to the bundled documents.
	Seed fs.FS
}

// XMLDatabase keeps users and tasks in memory and mirrors every change into
// schema-validated XML files. All access goes through one mutex; the caches
// are loaded on first use.
type XMLDatabase struct {
	mu        sync.Mutex
	fs        afero.Fs
	dir       string
	validator *xmlschema.Validator
	log       logger.Logger
	seed      fs.FS

	loaded bool
	users  table[models.User]
	tasks  table[models.Task]
}

type table[T models.Record] struct {
	kind    models.Kind
	items   []T
	ready   bool
	loadErr error
}

// KindStatus reports how a collection was loaded.
type KindStatus struct {
	Kind    models.Kind
	Path    string
	Ready   bool
	Records int
	Err     error
}

// NewXMLDatabase creates a database over cfg.Dir. Nothing is read until the
// first access or an explicit Warm.
func NewXMLDatabase(cfg Config) (*XMLDatabase, error) {
	if cfg.Dir == "" {
		return nil, errors.New("data directory is required")
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Validator == nil {
		v, err := xmlschema.New()
		if err != nil {
			return nil, fmt.Errorf("load schemas: %w", err)
		}
		cfg.Validator = v
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewLogger(nil)
	}
	if cfg.Seed == nil {
		sub, err := fs.Sub(bundledSeed, "seed")
		if err != nil {
			return nil, fmt.Errorf("open bundled seed: %w", err)
		}
		cfg.Seed = sub
	}

	return &XMLDatabase{
		fs:        cfg.Fs,
		dir:       cfg.Dir,
		validator: cfg.Validator,
		log:       cfg.Logger.With("component", "xmldb"),
		seed:      cfg.Seed,
		users:     table[models.User]{kind: models.KindUsers},
		tasks:     table[models.Task]{kind: models.KindTasks},
	}, nil
}

// Path returns the location of the data file for kind.
func (db *XMLDatabase) Path(kind models.Kind) string {
	return path.Join(db.dir, kind.FileName())
}

// Warm loads both collections if they are not loaded yet.
func (db *XMLDatabase) Warm() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.ensureLoaded()
	return errors.Join(db.users.loadErr, db.tasks.loadErr)
}

// Reload discards both caches and reads the files again. Load failures are
// not fatal: the failing collection is empty and the error is returned.
func (db *XMLDatabase) Reload() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.loadAll()
	return errors.Join(db.users.loadErr, db.tasks.loadErr)
}

// Status describes both collections, loading them first if needed.
func (db *XMLDatabase) Status() []KindStatus {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.ensureLoaded()
	return []KindStatus{
		{Kind: models.KindUsers, Path: db.Path(models.KindUsers), Ready: db.users.ready, Records: len(db.users.items), Err: db.users.loadErr},
		{Kind: models.KindTasks, Path: db.Path(models.KindTasks), Ready: db.tasks.ready, Records: len(db.tasks.items), Err: db.tasks.loadErr},
	}
}

func (db *XMLDatabase) ensureLoaded() {
	if !db.loaded {
		db.loadAll()
	}
}

func (db *XMLDatabase) loadAll() {
	db.log.Debug("loading XML database", "dir", db.dir)
	loadTable(db, &db.users)
	loadTable(db, &db.tasks)
	db.loaded = true
}

// loadTable runs seed -> read -> validate -> decode for one collection. A
// failure leaves that collection empty without touching the other one.
func loadTable[T models.Record](db *XMLDatabase, t *table[T]) {
	t.items, t.ready, t.loadErr = nil, false, nil
	p := db.Path(t.kind)
	log := db.log.With("kind", t.kind, "path", p)

	fail := func(err error) {
		t.loadErr = err
		log.Error("collection not loaded, using an empty list", "error", err)
	}

	if err := db.seedIfMissing(t.kind); err != nil {
		fail(err)
		return
	}
	data, err := afero.ReadFile(db.fs, p)
	if err != nil {
		fail(fmt.Errorf("read %s: %w", p, err))
		return
	}
	if err := db.validator.Validate(t.kind, data); err != nil {
		fail(fmt.Errorf("%w: %s: %w", ErrValidation, t.kind, err))
		return
	}
	records, issues, err := xmlcodec.Decode[T](data)
	if err != nil {
		fail(err)
		return
	}
	for _, issue := range issues {
		log.Warn("field replaced by default", "issue", issue.String())
	}
	t.items = records
	t.ready = true
	log.Info("collection loaded", "records", len(records))
}

func (db *XMLDatabase) seedIfMissing(kind models.Kind) error {
	p := db.Path(kind)
	exists, err := afero.Exists(db.fs, p)
	if err != nil {
		return fmt.Errorf("stat %s: %w", p, err)
	}
	if exists {
		return nil
	}
	data, err := fs.ReadFile(db.seed, kind.FileName())
	if err != nil {
		return fmt.Errorf("read seed for %s: %w", kind, err)
	}
	if err := db.fs.MkdirAll(db.dir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	if err := afero.WriteFile(db.fs, p, data, 0o644); err != nil {
		return fmt.Errorf("seed %s: %w", p, err)
	}
	db.log.Info("first run: seeded data file", "kind", kind, "path", p)
	return nil
}

// persist writes data through a temporary file which is re-read and
// re-validated before it replaces the live file.
func (db *XMLDatabase) persist(kind models.Kind, data []byte) error {
	if err := db.validator.Validate(kind, data); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrValidation, kind, err)
	}

	p := db.Path(kind)
	tmp := p + ".tmp"
	if err := afero.WriteFile(db.fs, tmp, data, 0o644); err != nil {
		_ = db.fs.Remove(tmp)
		return fmt.Errorf("%w: %s: %w", ErrWrite, tmp, err)
	}
	written, err := afero.ReadFile(db.fs, tmp)
	if err != nil {
		_ = db.fs.Remove(tmp)
		return fmt.Errorf("%w: re-read %s: %w", ErrWrite, tmp, err)
	}
	if err := db.validator.Validate(kind, written); err != nil {
		_ = db.fs.Remove(tmp)
		return fmt.Errorf("%w: %s after write: %w", ErrValidation, kind, err)
	}
	if err := db.fs.Rename(tmp, p); err != nil {
		_ = db.fs.Remove(tmp)
		return fmt.Errorf("%w: replace %s: %w", ErrWrite, p, err)
	}
	return nil
}

// mutate applies change to a copy of the collection and commits it. The
// cache is only replaced once the file has been written and re-validated, so
// a failed commit leaves cache and disk as they were.
func mutate[T models.Record](db *XMLDatabase, t *table[T], change func([]T) ([]T, error)) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.ensureLoaded()

	if !t.ready {
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, t.kind, t.loadErr)
	}

	next, err := change(slices.Clone(t.items))
	if err != nil {
		return err
	}
	data, err := xmlcodec.Encode(next)
	if err != nil {
		return err
	}
	if err := db.persist(t.kind, data); err != nil {
		db.log.Error("commit failed, changes rolled back", "kind", t.kind, "error", err)
		return err
	}
	t.items = next
	db.log.Debug("commit succeeded", "kind", t.kind, "records", len(next))
	return nil
}

func all[T models.Record](db *XMLDatabase, t *table[T]) []T {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.ensureLoaded()
	out := make([]T, len(t.items))
	copy(out, t.items)
	return out
}

func byID[T models.Record](db *XMLDatabase, t *table[T], id string) (T, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.ensureLoaded()
	if i := indexOf(t.items, id); i >= 0 {
		return t.items[i], true
	}
	var zero T
	return zero, false
}

func indexOf[T models.Record](items []T, id string) int {
	return slices.IndexFunc(items, func(r T) bool { return r.RecordID() == id })
}

func insert[T models.Record](db *XMLDatabase, t *table[T], rec T, check func([]T) error) error {
	return mutate(db, t, func(items []T) ([]T, error) {
		if indexOf(items, rec.RecordID()) >= 0 {
			return nil, fmt.Errorf("%w: %s %q", ErrDuplicateID, t.kind, rec.RecordID())
		}
		if check != nil {
			if err := check(items); err != nil {
				return nil, err
			}
		}
		return append(items, rec), nil
	})
}

func modify[T models.Record](db *XMLDatabase, t *table[T], id string, fn func(*T) error, check func([]T, int) error) (T, error) {
	var updated T
	err := mutate(db, t, func(items []T) ([]T, error) {
		i := indexOf(items, id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s %q", ErrNotFound, t.kind, id)
		}
		rec := items[i]
		if err := fn(&rec); err != nil {
			return nil, err
		}
		if rec.RecordID() != id {
			return nil, fmt.Errorf("%s id cannot change from %q to %q", t.kind, id, rec.RecordID())
		}
		items[i] = rec
		if check != nil {
			if err := check(items, i); err != nil {
				return nil, err
			}
		}
		updated = rec
		return items, nil
	})
	return updated, err
}

func remove[T models.Record](db *XMLDatabase, t *table[T], id string) error {
	return mutate(db, t, func(items []T) ([]T, error) {
		i := indexOf(items, id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s %q", ErrNotFound, t.kind, id)
		}
		return slices.Delete(items, i, i+1), nil
	})
}
