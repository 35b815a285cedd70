// Package dataset indexes a labelled image directory and feeds it to the
// trainer in fixed-size batches.
//
// The expected layout is one subdirectory per class:
//
//	garbage_classification/
//	  battery/   img1.jpg ...
//	  cardboard/ img2.png ...
//
// Class labels are the subdirectory names in lexical order; a sample's label
// is the index of its directory in that order.
package dataset

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".bmp":  {},
	".webp": {},
}

type Sample struct {
	Path  string
	Label int
}

type Dataset struct {
	Root    string
	Classes []string
	Samples []Sample
}

var ErrEmpty = errors.New("dataset contains no images")

// Scan indexes dir. Files directly under dir and files with other
// extensions are ignored; images in nested folders count for the class of
// their top-level directory.
func Scan(dir string) (*Dataset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset directory: %w", err)
	}

	var classes []string
	for _, entry := range entries {
		if entry.IsDir() {
			classes = append(classes, entry.Name())
		}
	}
	sort.Strings(classes)
	if len(classes) == 0 {
		return nil, fmt.Errorf("%w: no class directories in %s", ErrEmpty, dir)
	}

	ds := &Dataset{Root: dir, Classes: classes}
	for label, class := range classes {
		var files []string
		err := filepath.WalkDir(filepath.Join(dir, class), func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if _, ok := imageExtensions[strings.ToLower(filepath.Ext(path))]; ok {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to index class %q: %w", class, err)
		}

		sort.Strings(files)
		for _, f := range files {
			ds.Samples = append(ds.Samples, Sample{Path: f, Label: label})
		}
	}

	if len(ds.Samples) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, dir)
	}
	return ds, nil
}

// Split shuffles the samples with seed and holds out the last
// int(n*validationFraction) of them for validation. The same seed over the
// same directory always produces the same two subsets.
func Split(samples []Sample, validationFraction float64, seed int64) (train, validation []Sample, err error) {
	if validationFraction <= 0 || validationFraction >= 1 {
		return nil, nil, fmt.Errorf("validation fraction must be in (0, 1), got %v", validationFraction)
	}

	shuffled := append([]Sample(nil), samples...)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	numValidation := int(float64(len(shuffled)) * validationFraction)
	if numValidation == 0 || numValidation == len(shuffled) {
		return nil, nil, fmt.Errorf("%d samples cannot be split with fraction %v", len(shuffled), validationFraction)
	}

	cut := len(shuffled) - numValidation
	return shuffled[:cut], shuffled[cut:], nil
}

// Batches reshuffles samples with rng and cuts them into batches of exactly
// size samples. A trailing partial batch is dropped.
func Batches(samples []Sample, size int, rng *rand.Rand) [][]Sample {
	if size <= 0 {
		return nil
	}

	order := append([]Sample(nil), samples...)
	if rng != nil {
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}

	batches := make([][]Sample, 0, len(order)/size)
	for start := 0; start+size <= len(order); start += size {
		batches = append(batches, order[start:start+size])
	}
	return batches
}

// CountByClass returns how many samples each label has, indexed by label.
func CountByClass(samples []Sample, numClasses int) []int {
	counts := make([]int, numClasses)
	for _, s := range samples {
		if s.Label >= 0 && s.Label < numClasses {
			counts[s.Label]++
		}
	}
	return counts
}
