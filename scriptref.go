// Copyright (c) 2026 Michael D Henderson. All rights reserved.

package initscript

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	// ScriptSeparator separates entries in the init-script list.
	ScriptSeparator = ";"

	// FilePrefix marks an entry as a filesystem path.
	FilePrefix = "file:"
)

// ErrNoResources is returned when a resource reference is resolved without
// a resource filesystem. It wraps fs.ErrNotExist.
var ErrNoResources = fmt.Errorf("no resource filesystem configured: %w", fs.ErrNotExist)

// RefKind tells how a ScriptRef is resolved.
type RefKind int

const (
	// ResourceRef is resolved by name through the bundled resource filesystem.
	ResourceRef RefKind = iota
	// FileRef is resolved as a filesystem path.
	FileRef
)

func (k RefKind) String() string {
	switch k {
	case FileRef:
		return "file"
	case ResourceRef:
		return "resource"
	}
	return fmt.Sprintf("RefKind(%d)", int(k))
}

// ScriptRef is a single entry of the init-script list.
type ScriptRef struct {
	Kind RefKind
	// Location is the file path (without the "file:" prefix) or the
	// resource name.
	Location string
}

func (r ScriptRef) String() string {
	if r.Kind == FileRef {
		return FilePrefix + r.Location
	}
	return r.Location
}

// ParseScriptList splits the init-script value into references, in order.
// Entries are trimmed; empty entries are dropped.
func ParseScriptList(list string) []ScriptRef {
	var refs []ScriptRef
	for _, entry := range strings.Split(list, ScriptSeparator) {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		refs = append(refs, ParseScriptRef(entry))
	}
	return refs
}

// ParseScriptRef classifies a single, already trimmed, entry.
func ParseScriptRef(entry string) ScriptRef {
	if path, ok := strings.CutPrefix(entry, FilePrefix); ok {
		return ScriptRef{Kind: FileRef, Location: path}
	}
	return ScriptRef{Kind: ResourceRef, Location: entry}
}

// Open resolves the reference to a UTF-8 text stream. A leading byte order
// mark is removed and invalid UTF-8 is replaced with U+FFFD.
// The caller must close the returned reader.
func (r ScriptRef) Open(resources fs.FS) (io.ReadCloser, error) {
	var rc io.ReadCloser
	var err error
	switch r.Kind {
	case FileRef:
		rc, err = openFile(r.Location)
	case ResourceRef:
		rc, err = openResource(resources, r.Location)
	default:
		err = fmt.Errorf("unknown reference kind %v", r.Kind)
	}
	if err != nil {
		return nil, err
	}
	return &textReader{
		Reader: transform.NewReader(rc, unicode.UTF8BOM.NewDecoder()),
		closer: rc,
	}, nil
}

func openFile(path string) (io.ReadCloser, error) {
	if path == "" {
		return nil, fmt.Errorf("%s: empty path: %w", FilePrefix, fs.ErrNotExist)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !isRegular(f) {
		f.Close()
		return nil, fmt.Errorf("%s: not a regular file", path)
	}
	return f, nil
}

func openResource(resources fs.FS, name string) (io.ReadCloser, error) {
	if resources == nil {
		return nil, fmt.Errorf("%s: %w", name, ErrNoResources)
	}
	// resource names may be written with a leading slash; fs.FS paths may not
	f, err := resources.Open(strings.TrimPrefix(name, "/"))
	if err != nil {
		return nil, err
	}
	if !isRegular(f) {
		f.Close()
		return nil, fmt.Errorf("%s: not a regular file", name)
	}
	return f, nil
}

func isRegular(f fs.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// textReader pairs a decoding reader with the underlying file.
type textReader struct {
	io.Reader
	closer io.Closer
}

func (t *textReader) Close() error {
	return t.closer.Close()
}
