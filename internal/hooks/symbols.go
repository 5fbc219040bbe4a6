package hooks

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/roach88/classweave/internal/classfile"
)

// SymbolTable answers whether a static method exists. A non-nil error
// means the table could not tell, as when a class file is unreadable.
type SymbolTable interface {
	LookupStatic(owner, name, desc string) (bool, error)
}

// Exports is a declared set of static methods.
type Exports struct {
	mu      sync.RWMutex
	symbols map[string]bool
}

// NewExports returns a table holding refs.
func NewExports(refs ...classfile.MemberRef) *Exports {
	e := &Exports{symbols: make(map[string]bool, len(refs))}
	for _, r := range refs {
		e.Add(r)
	}
	return e
}

// DefaultExports declares the hooks the given spec names, the way the
// standard hook module provides them.
func DefaultExports(s Spec) *Exports {
	return NewExports(s.WrapRef(), s.LogRef())
}

// Add declares a static method.
func (e *Exports) Add(r classfile.MemberRef) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.symbols[symbolKey(r.Owner, r.Name, r.Desc)] = true
}

// LookupStatic implements SymbolTable.
func (e *Exports) LookupStatic(owner, name, desc string) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.symbols[symbolKey(owner, name, desc)], nil
}

func symbolKey(owner, name, desc string) string {
	return owner + "." + name + desc
}

// ClassPath indexes the static methods of compiled classes found under a
// set of directories. Class files are located by internal name, so
// "a/b/C" is read from "<dir>/a/b/C.class".
type ClassPath struct {
	dirs []string

	mu      sync.Mutex
	classes map[string]*classfile.Class
}

// NewClassPath returns a ClassPath over dirs, searched in order.
func NewClassPath(dirs ...string) *ClassPath {
	return &ClassPath{dirs: dirs, classes: make(map[string]*classfile.Class)}
}

// Load returns the parsed class with the given internal name.
func (cp *ClassPath) Load(name string) (*classfile.Class, error) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if c, ok := cp.classes[name]; ok {
		return c, nil
	}
	for _, dir := range cp.dirs {
		path := filepath.Join(dir, filepath.FromSlash(name)+".class")
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		c, err := classfile.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if c.Name() != name {
			return nil, fmt.Errorf("%s declares class %s, want %s", path, c.Name(), name)
		}
		cp.classes[name] = c
		return c, nil
	}
	return nil, fmt.Errorf("class %s: %w", name, fs.ErrNotExist)
}

// LookupStatic implements SymbolTable.
// A class absent from every directory is not an error.
func (cp *ClassPath) LookupStatic(owner, name, desc string) (bool, error) {
	c, err := cp.Load(owner)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	m := c.Method(name, desc)
	return m != nil && m.Access.IsStatic(), nil
}

// Classes lists the internal names of every class file under the path.
func (cp *ClassPath) Classes() ([]string, error) {
	var names []string
	for _, dir := range cp.dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".class") {
				return nil
			}
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			names = append(names, filepath.ToSlash(strings.TrimSuffix(rel, ".class")))
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return names, nil
}

// Chain consults each table in order.
type Chain []SymbolTable

// LookupStatic implements SymbolTable. A later table can still resolve
// the symbol after an earlier one failed; otherwise the first failure is
// returned.
func (c Chain) LookupStatic(owner, name, desc string) (bool, error) {
	var first error
	for _, t := range c {
		ok, err := t.LookupStatic(owner, name, desc)
		if ok {
			return true, nil
		}
		if err != nil && first == nil {
			first = err
		}
	}
	return false, first
}
