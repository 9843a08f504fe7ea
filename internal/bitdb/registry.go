package bitdb

import "sync"

// Registry hands out the single shared TileBitDatabase for each backing
// file. Concurrent fuzz workers for the same tile type must observe and
// mutate one database, not independent copies, so insert-if-absent is
// atomic: the first request loads the file, every later request returns
// the same instance.
//
// The registry's lock is independent of any database's lock. It is held
// across the first load, which serializes concurrent first-time
// requests for the same tile type.
type Registry struct {
	mu  sync.Mutex
	dbs map[string]*TileBitDatabase
}

// NewRegistry returns an empty registry. The surrounding tool owns one
// registry per session and passes it to whatever needs tile databases.
func NewRegistry() *Registry {
	return &Registry{dbs: make(map[string]*TileBitDatabase)}
}

// TileDatabase returns the shared database backed by the given file,
// loading it on first request. A missing file is a not-found error;
// malformed text is a parse error.
func (r *Registry) TileDatabase(path string) (*TileBitDatabase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if db, cached := r.dbs[path]; cached {
		return db, nil
	}
	db, err := openTileBitDatabase(path)
	if err != nil {
		return nil, err
	}
	r.dbs[path] = db
	return db, nil
}

// CreateTileDatabase returns the shared database backed by the given
// file, starting from an empty database if the file does not exist yet.
// Fuzzing a brand new tile type begins here.
func (r *Registry) CreateTileDatabase(path string) (*TileBitDatabase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if db, cached := r.dbs[path]; cached {
		return db, nil
	}
	db, err := openTileBitDatabase(path)
	if err != nil {
		if !IsNotFound(err) {
			return nil, err
		}
		db = newEmptyDatabase(path)
	}
	r.dbs[path] = db
	return db, nil
}

// SaveAll persists every dirty database in the registry. The first
// failure is returned; databases saved before it stay saved.
func (r *Registry) SaveAll() error {
	r.mu.Lock()
	dbs := make([]*TileBitDatabase, 0, len(r.dbs))
	for _, db := range r.dbs {
		dbs = append(dbs, db)
	}
	r.mu.Unlock()

	for _, db := range dbs {
		if err := db.Save(); err != nil {
			return err
		}
	}
	return nil
}
