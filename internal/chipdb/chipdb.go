package chipdb

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/openfpga-tools/bitdb/internal/bitdb"
)

// DeviceFile is the name of the device declaration file at the
// database root.
const DeviceFile = "devices.yaml"

// Family declares one device family: its devices and the tile types
// its databases cover.
type Family struct {
	Name      string   `yaml:"name"`
	Devices   []string `yaml:"devices"`
	TileTypes []string `yaml:"tile_types"`
}

// Config is the decoded device declaration file.
type Config struct {
	Families []Family `yaml:"families"`
}

// TileLocator names one tile type on one device.
type TileLocator struct {
	Family   string
	Device   string
	TileType string
}

func (l TileLocator) String() string {
	return fmt.Sprintf("%s/%s/%s", l.Family, l.Device, l.TileType)
}

// Registry resolves tile locators against a database root and hands
// out the shared per-tile-type databases.
type Registry struct {
	root     string
	families map[string]Family
	bits     *bitdb.Registry
}

// Open reads and validates <root>/devices.yaml and returns a registry
// for the database root.
func Open(root string) (*Registry, error) {
	cfg, err := LoadConfig(filepath.Join(root, DeviceFile))
	if err != nil {
		return nil, err
	}
	families := make(map[string]Family, len(cfg.Families))
	for _, fam := range cfg.Families {
		if _, dup := families[fam.Name]; dup {
			return nil, fmt.Errorf("load %s: duplicate family %q", DeviceFile, fam.Name)
		}
		families[fam.Name] = fam
	}
	return &Registry{root: root, families: families, bits: bitdb.NewRegistry()}, nil
}

// LoadConfig reads a device declaration file, validates it against the
// embedded schema, and decodes it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &bitdb.Error{Code: bitdb.CodeNotFound, File: path, Detail: "no device file"}
		}
		return nil, fmt.Errorf("read device file: %w", err)
	}

	// Decode generically first so the schema sees the raw shape.
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &bitdb.Error{Code: bitdb.CodeParse, File: path, Detail: err.Error()}
	}
	if err := validateConfig(raw); err != nil {
		return nil, &bitdb.Error{Code: bitdb.CodeParse, File: path, Detail: err.Error()}
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &bitdb.Error{Code: bitdb.CodeParse, File: path, Detail: err.Error()}
	}
	return &cfg, nil
}

// Families returns the declared family names in sorted order.
func (r *Registry) Families() []string {
	names := make([]string, 0, len(r.families))
	for name := range r.families {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DatabasePath returns the backing file for a locator's tile database
// without opening it.
func (r *Registry) DatabasePath(loc TileLocator) (string, error) {
	fam, known := r.families[loc.Family]
	if !known {
		return "", &bitdb.Error{Code: bitdb.CodeNotFound, Entry: loc.String(), Detail: "unknown family"}
	}
	if loc.Device != "" && !contains(fam.Devices, loc.Device) {
		return "", &bitdb.Error{Code: bitdb.CodeNotFound, Entry: loc.String(), Detail: "unknown device"}
	}
	if !contains(fam.TileTypes, loc.TileType) {
		return "", &bitdb.Error{Code: bitdb.CodeNotFound, Entry: loc.String(), Detail: "unknown tile type"}
	}
	return filepath.Join(r.root, loc.Family, "tiletypes", loc.TileType+".tdb"), nil
}

// TileDatabase returns the shared bit database for a locator, loading
// it from disk on the first request for its tile type.
func (r *Registry) TileDatabase(loc TileLocator) (*bitdb.TileBitDatabase, error) {
	path, err := r.DatabasePath(loc)
	if err != nil {
		return nil, err
	}
	return r.bits.TileDatabase(path)
}

// CreateTileDatabase is TileDatabase for fuzz runs that may start a
// tile type from scratch: a missing backing file yields a fresh empty
// database instead of an error.
func (r *Registry) CreateTileDatabase(loc TileLocator) (*bitdb.TileBitDatabase, error) {
	path, err := r.DatabasePath(loc)
	if err != nil {
		return nil, err
	}
	return r.bits.CreateTileDatabase(path)
}

// SaveAll persists every dirty database opened through this registry.
func (r *Registry) SaveAll() error {
	return r.bits.SaveAll()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
