package datasets

import (
	"slices"
	"testing"
)

func TestRegistry_Foil(t *testing.T) {
	if !slices.Contains(Names(), FoilName) {
		t.Fatalf("%q should be registered, got %v", FoilName, Names())
	}

	tmp := t.TempDir()
	ds, err := Open(FoilName, Config{
		AnnotationsPath: writeFile(t, tmp, "ann.json", foilAnnotations),
		FeaturesPath:    writeFeatures(t, tmp, 1, 2, 3),
		Tokenizer:       testTokenizer(),
		Options:         []FoilOption{WithEntryMode(EntryPerCaption)},
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer ds.Close()
	if ds.Len() != 4 || ds.Name() != "FoilClassificationDataset" {
		t.Fatalf("unexpected dataset %s with %d entries", ds.Name(), ds.Len())
	}
}

func TestRegistry_Errors(t *testing.T) {
	if _, err := Open("vqa", Config{}); err == nil {
		t.Fatalf("expected error for unknown dataset")
	}

	ds, err := Open(FoilName, Config{AnnotationsPath: "/nonexistent/ann.json", Tokenizer: testTokenizer()})
	if err == nil || ds != nil {
		t.Fatalf("expected nil adapter and error, got %v, %v", ds, err)
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("registering %q twice should panic", FoilName)
		}
	}()
	Register(FoilName, func(Config) (Adapter, error) { return nil, nil })
}
