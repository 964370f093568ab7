package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"fortuna/internal/fileutil"
)

// WriteOriginal writes the volatility bundle into dir atomically and returns
// the artifact path.
func WriteOriginal(dir string, bundle OriginalBundle) (string, error) {
	return writeBundle(filepath.Join(dir, OriginalFileName(bundle.WorkID)), bundle)
}

// WriteCumulative writes the fortune bundle into dir atomically and returns
// the artifact path.
func WriteCumulative(dir string, bundle CumulativeBundle) (string, error) {
	return writeBundle(filepath.Join(dir, CumulativeFileName(bundle.WorkID)), bundle)
}

// WriteMaster writes the corpus bundle into dir atomically and returns the
// artifact path.
func WriteMaster(dir string, bundle MasterBundle) (string, error) {
	return writeBundle(filepath.Join(dir, MasterFileName), bundle)
}

func writeBundle(path string, bundle any) (string, error) {
	if err := fileutil.WriteJSONAtomic(path, bundle); err != nil {
		return "", fmt.Errorf("write bundle: %w", err)
	}
	return path, nil
}

// ReadCumulative loads a fortune bundle back from disk. Aggregation uses this
// to pick up the macro arcs of completed works without re-running analysis.
func ReadCumulative(path string) (*CumulativeBundle, error) {
	var bundle CumulativeBundle
	if err := readBundle(path, &bundle); err != nil {
		return nil, err
	}
	return &bundle, nil
}

// ReadMaster loads the corpus bundle from dir.
func ReadMaster(dir string) (*MasterBundle, error) {
	var bundle MasterBundle
	if err := readBundle(filepath.Join(dir, MasterFileName), &bundle); err != nil {
		return nil, err
	}
	return &bundle, nil
}

func readBundle(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read bundle: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse bundle %s: %w", filepath.Base(path), err)
	}
	return nil
}
