package datasets

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Noofbiz/vldata/tokenizer"
)

// Config carries what a registered adapter needs to open a dataset.
type Config struct {
	AnnotationsPath string
	FeaturesPath    string
	Tokenizer       tokenizer.Tokenizer
	Options         []FoilOption
}

// Factory opens a dataset from cfg.
type Factory func(cfg Config) (Adapter, error)

// Adapter is a registered dataset that owns resources.
type Adapter interface {
	Dataset
	Close() error
}

var registry = struct {
	sync.RWMutex
	factories map[string]Factory
}{factories: make(map[string]Factory)}

// FoilName is the registry name of FoilClassificationDataset.
const FoilName = "foil"

func init() {
	Register(FoilName, func(cfg Config) (Adapter, error) {
		ds, err := NewFoilClassificationDataset(cfg.AnnotationsPath, cfg.FeaturesPath, cfg.Tokenizer, cfg.Options...)
		if err != nil {
			return nil, err
		}
		return ds, nil
	})
}

// Register makes an adapter available under name. It panics if name is empty
// or already registered.
func Register(name string, f Factory) {
	registry.Lock()
	defer registry.Unlock()
	if name == "" || f == nil {
		panic("datasets: Register with empty name or nil factory")
	}
	if _, ok := registry.factories[name]; ok {
		panic("datasets: Register called twice for " + name)
	}
	registry.factories[name] = f
}

// Lookup returns the factory registered under name.
func Lookup(name string) (Factory, bool) {
	registry.RLock()
	defer registry.RUnlock()
	f, ok := registry.factories[name]
	return f, ok
}

// Names returns the registered names, sorted.
func Names() []string {
	registry.RLock()
	defer registry.RUnlock()
	names := make([]string, 0, len(registry.factories))
	for name := range registry.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open builds the adapter registered under name.
func Open(name string, cfg Config) (Adapter, error) {
	f, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown dataset %q (registered: %v)", name, Names())
	}
	return f(cfg)
}
