package main

// Example command that loads the FOIL classification dataset through the
// registry, reads a few samples and feeds batches to the gomlx loader.
//
// Usage:
//   go run ./datasets/example -annotations foil_val.json -features val.vlf -vocab vocab.txt
//
// The feature store can be produced from a JSON-lines dump with
// `vldata pack`. Features are read lazily here; pass -in-memory to decode the
// whole store up front.

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"

	"github.com/Noofbiz/vldata/datasets"
	"github.com/Noofbiz/vldata/tokenizer"
)

func main() {
	annotationsPath := flag.String("annotations", "../assets/foil/foilv1.0_test_2017.json", "FOIL annotations JSON")
	featuresPath := flag.String("features", "../assets/foil/coco_test.vlf", "image feature store")
	vocabPath := flag.String("vocab", "../assets/bert-base-uncased-vocab.txt", "WordPiece vocabulary")
	inMemory := flag.Bool("in-memory", false, "decode every feature array at startup")
	batchSize := flag.Int("batch-size", 8, "loader batch size")
	flag.Parse()

	vocab, err := tokenizer.LoadVocab(*vocabPath)
	if err != nil {
		log.Fatalf("failed to load vocabulary: %v", err)
	}

	fmt.Printf("Registered datasets: %v\n", datasets.Names())
	ds, err := datasets.Open(datasets.FoilName, datasets.Config{
		AnnotationsPath: *annotationsPath,
		FeaturesPath:    *featuresPath,
		Tokenizer:       tokenizer.NewWordPiece(vocab),
		Options: []datasets.FoilOption{
			datasets.WithImageFeaturesInMemory(*inMemory),
			datasets.WithPaddingIndex(tokenizer.PadID(vocab)),
		},
	})
	if err != nil {
		log.Fatalf("failed to open foil dataset: %v", err)
	}
	defer ds.Close()
	fmt.Printf("Total %s entries available: %d\n", ds.Name(), ds.Len())

	// Show the first few samples
	n := min(3, ds.Len())
	for i := range n {
		s, err := ds.Example(i)
		if err != nil {
			log.Fatalf("failed to read example %d: %v", i, err)
		}
		fmt.Printf("  image %d: features %v, label %d\n", s.ImageID, s.Features.Shape, s.Label)
		var words []string
		for _, id := range s.Caption {
			if tok, ok := vocab.Token(id); ok {
				words = append(words, tok)
			}
		}
		fmt.Printf("    caption ids %v\n    tokens %v\n", s.Caption, words)
	}

	loader, err := datasets.NewLoader(ds, *batchSize, datasets.WithShuffle(1))
	if err != nil {
		log.Fatalf("failed to create loader: %v", err)
	}

	// One pass over at most 3 batches, as a training loop would consume them.
	for b := 0; b < 3; b++ {
		_, inputs, labels, err := loader.Yield()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Fatalf("failed to yield batch: %v", err)
		}
		fmt.Printf("Batch %d: features %v captions %v labels %v\n", b,
			inputs[0].Shape().Dimensions, inputs[1].Shape().Dimensions, labels[0].Shape().Dimensions)
	}

	fmt.Println("\nExample completed successfully!")
}
