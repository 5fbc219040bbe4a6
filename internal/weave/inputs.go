package weave

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Input is one class file to weave.
type Input struct {
	// Path is relative to the argument it was found under and is reused as
	// the output path.
	Path string

	// Source is the file to read.
	Source string
}

// Collect expands args into inputs. Directories are walked for .class
// files; files are taken as given. Inputs are sorted by Path.
func Collect(args []string) ([]Input, error) {
	var inputs []Input
	seen := make(map[string]string)
	add := func(rel, src string) error {
		rel = filepath.ToSlash(rel)
		if prev, ok := seen[rel]; ok {
			return fmt.Errorf("%s and %s map to the same output %s", prev, src, rel)
		}
		seen[rel] = src
		inputs = append(inputs, Input{Path: rel, Source: src})
		return nil
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if err := add(filepath.Base(arg), arg); err != nil {
				return nil, err
			}
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(d.Name(), ".class") {
				return nil
			}
			rel, err := filepath.Rel(arg, path)
			if err != nil {
				return err
			}
			return add(rel, path)
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(inputs, func(i, j int) bool { return inputs[i].Path < inputs[j].Path })
	return inputs, nil
}
