package schema

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	protoparser "github.com/yoheimuta/go-protoparser/v4"
	"github.com/yoheimuta/go-protoparser/v4/parser"
	"github.com/yoheimuta/go-protoparser/v4/parser/meta"
	"google.golang.org/protobuf/reflect/protoregistry"

	// Well-known types resolvable through protoregistry.GlobalFiles.
	_ "google.golang.org/protobuf/types/known/anypb"
	_ "google.golang.org/protobuf/types/known/durationpb"
	_ "google.golang.org/protobuf/types/known/emptypb"
	_ "google.golang.org/protobuf/types/known/fieldmaskpb"
	_ "google.golang.org/protobuf/types/known/structpb"
	_ "google.golang.org/protobuf/types/known/timestamppb"
	_ "google.golang.org/protobuf/types/known/wrapperspb"
)

// Loader loads .proto files and their imports into a single catalog.
type Loader struct {
	// SearchPaths are directories to search for imported files.
	SearchPaths []string

	catalog  *Catalog
	loaded   map[string]bool
	files    []string
	packages map[string]string

	// repeated named-type fields of proto3 files whose packed default
	// depends on whether the type turns out to be an enum
	packCandidates []*Field
}

// NewLoader creates a new loader with the given search paths.
func NewLoader(searchPaths ...string) *Loader {
	return &Loader{
		SearchPaths: searchPaths,
		catalog:     NewCatalog(),
		loaded:      make(map[string]bool),
		packages:    make(map[string]string),
	}
}

// LoadFiles loads the given files with their imports and returns the
// resolved catalog.
func LoadFiles(paths []string, searchPaths ...string) (*Catalog, error) {
	l := NewLoader(searchPaths...)
	for _, p := range paths {
		if err := l.LoadFile(p); err != nil {
			return nil, err
		}
	}
	return l.Catalog()
}

// LoadFile loads a .proto file and all its imports.
func (l *Loader) LoadFile(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	return l.loadFileInternal(absPath, nil)
}

// LoadReader parses one .proto file from r. Imports are resolved against
// the search paths and the current directory.
func (l *Loader) LoadReader(filename string, r io.Reader) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if l.loaded[filename] {
		return nil
	}
	l.loaded[filename] = true
	return l.parse(filename, content, []string{filename})
}

// Files returns the files loaded so far, in load order.
func (l *Loader) Files() []string { return l.files }

// Package returns the package declared by a loaded file.
func (l *Loader) Package(file string) string { return l.packages[file] }

// Catalog resolves and returns the catalog built from every loaded file.
func (l *Loader) Catalog() (*Catalog, error) {
	for _, f := range l.packCandidates {
		if _, ok := l.catalog.lookup(f.parent.Name, f.TypeName).(*Enum); ok {
			f.Packed = true
		}
		f.parent = nil
	}
	l.packCandidates = nil
	if err := l.catalog.Resolve(); err != nil {
		return nil, err
	}
	return l.catalog, nil
}

// loadFileInternal loads a file, tracking the import chain to detect cycles.
func (l *Loader) loadFileInternal(absPath string, importChain []string) error {
	for _, p := range importChain {
		if p == absPath {
			return fmt.Errorf("circular import detected: %s", strings.Join(append(importChain, absPath), " -> "))
		}
	}
	if l.loaded[absPath] {
		return nil
	}
	l.loaded[absPath] = true

	content, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", absPath, err)
	}
	return l.parse(absPath, content, append(importChain, absPath))
}

func (l *Loader) parse(filename string, content []byte, chain []string) error {
	proto, err := protoparser.Parse(bytes.NewReader(content), protoparser.WithFilename(filename))
	if err != nil {
		return fmt.Errorf("parse %s: %w", filename, err)
	}
	l.files = append(l.files, filename)

	fb := &fileBuilder{loader: l, filename: filename, syntax: "proto2"}
	if proto.Syntax != nil {
		fb.syntax = strings.Trim(proto.Syntax.ProtobufVersion, `"'`)
	}

	baseDir := filepath.Dir(filename)
	for _, body := range proto.ProtoBody {
		switch b := body.(type) {
		case *parser.Package:
			fb.pkg = b.Name
			l.packages[filename] = b.Name
		case *parser.Import:
			if err := l.loadImport(strings.Trim(b.Location, `"'`), baseDir, chain); err != nil {
				return fmt.Errorf("%s: %w", filename, err)
			}
		}
	}

	for _, body := range proto.ProtoBody {
		switch b := body.(type) {
		case *parser.Message:
			if err := fb.message(fb.pkg, b); err != nil {
				return err
			}
		case *parser.Enum:
			fb.enum(fb.pkg, b)
		}
	}
	return nil
}

func (l *Loader) loadImport(importPath, baseDir string, chain []string) error {
	if resolved := l.resolveImportPath(importPath, baseDir); resolved != "" {
		return l.loadFileInternal(resolved, chain)
	}
	if l.loaded[importPath] {
		return nil
	}
	fd, err := protoregistry.GlobalFiles.FindFileByPath(importPath)
	if err != nil {
		return fmt.Errorf("import not found: %s", importPath)
	}
	l.loaded[importPath] = true
	return l.catalog.AddFileDescriptor(fd)
}

// resolveImportPath resolves an import path to an absolute file path.
func (l *Loader) resolveImportPath(importPath, baseDir string) string {
	candidate := filepath.Join(baseDir, importPath)
	if _, err := os.Stat(candidate); err == nil {
		absPath, _ := filepath.Abs(candidate)
		return absPath
	}

	for _, searchPath := range l.SearchPaths {
		candidate := filepath.Join(searchPath, importPath)
		if _, err := os.Stat(candidate); err == nil {
			absPath, _ := filepath.Abs(candidate)
			return absPath
		}
	}

	return ""
}

// fileBuilder converts the parse tree of one file into descriptors.
type fileBuilder struct {
	loader   *Loader
	filename string
	syntax   string
	pkg      string
}

func qualify(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "." + name
}

func position(m meta.Meta) Position {
	return Position{
		Filename: m.Pos.Filename,
		Line:     m.Pos.Line,
		Column:   m.Pos.Column,
		Offset:   m.Pos.Offset,
	}
}

func (fb *fileBuilder) message(scope string, pm *parser.Message) error {
	msg := &Message{
		Name:     qualify(scope, pm.MessageName),
		Package:  fb.pkg,
		File:     fb.filename,
		Position: position(pm.Meta),
	}

	for _, body := range pm.MessageBody {
		switch b := body.(type) {
		case *parser.Field:
			f, err := fb.field(msg, b.FieldName, b.Type, b.FieldNumber, b.FieldOptions, position(b.Meta))
			if err != nil {
				return err
			}
			if b.IsRepeated {
				f.Cardinality = Repeated
				fb.applyPackedDefault(msg, f, b.FieldOptions)
			}
			msg.Fields = append(msg.Fields, f)
		case *parser.MapField:
			f, err := fb.field(msg, b.MapName, b.Type, b.FieldNumber, b.FieldOptions, position(b.Meta))
			if err != nil {
				return err
			}
			key, ok := ScalarKind(b.KeyType)
			if !ok {
				return fmt.Errorf("%s: map key type %q is not a scalar", f.Position, b.KeyType)
			}
			f.Cardinality = Map
			f.MapKey = key
			msg.Fields = append(msg.Fields, f)
		case *parser.Oneof:
			for _, of := range b.OneofFields {
				f, err := fb.field(msg, of.FieldName, of.Type, of.FieldNumber, of.FieldOptions, position(of.Meta))
				if err != nil {
					return err
				}
				f.Oneof = b.OneofName
				msg.Fields = append(msg.Fields, f)
			}
		case *parser.Message:
			if err := fb.message(msg.Name, b); err != nil {
				return err
			}
		case *parser.Enum:
			fb.enum(msg.Name, b)
		case *parser.Reserved:
			if err := fb.reserved(msg, b); err != nil {
				return err
			}
		case *parser.Option:
			if b.OptionName == "deprecated" && b.Constant == "true" {
				msg.Deprecated = true
			}
		case *parser.GroupField:
			return fmt.Errorf("%s: group %q is not supported", position(b.Meta), b.GroupName)
		}
	}

	return fb.loader.catalog.AddMessage(msg)
}

func (fb *fileBuilder) field(msg *Message, name, typ, number string, opts []*parser.FieldOption, pos Position) (*Field, error) {
	n, err := strconv.ParseInt(number, 0, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid field number %q", pos, number)
	}
	f := &Field{
		Name:     name,
		Number:   FieldNumber(n),
		Position: pos,
	}
	switch {
	case n > int64(MaxFieldNumber):
		// Keep the out-of-range number visible to validation.
		f.Number = MaxFieldNumber + 1
	case n < 0:
		f.Number = 0
	}
	if k, ok := ScalarKind(typ); ok {
		f.Kind = k
	} else {
		f.TypeName = typ
	}
	for _, o := range opts {
		switch o.OptionName {
		case "deprecated":
			f.Deprecated = o.Constant == "true"
		case "json_name":
			f.JSONName = strings.Trim(o.Constant, `"'`)
		}
	}
	return f, nil
}

func (fb *fileBuilder) applyPackedDefault(msg *Message, f *Field, opts []*parser.FieldOption) {
	for _, o := range opts {
		if o.OptionName == "packed" {
			f.Packed = o.Constant == "true"
			return
		}
	}
	if fb.syntax != "proto3" {
		return
	}
	if f.Kind.IsNumeric() {
		f.Packed = true
		return
	}
	if f.Kind == InvalidKind {
		f.parent = msg
		fb.loader.packCandidates = append(fb.loader.packCandidates, f)
	}
}

func (fb *fileBuilder) reserved(msg *Message, r *parser.Reserved) error {
	for _, rg := range r.Ranges {
		start, err := strconv.ParseInt(rg.Begin, 0, 32)
		if err != nil {
			return fmt.Errorf("%s: invalid reserved range start %q", msg.Name, rg.Begin)
		}
		end := start
		switch rg.End {
		case "":
		case "max":
			end = int64(MaxFieldNumber)
		default:
			end, err = strconv.ParseInt(rg.End, 0, 32)
			if err != nil {
				return fmt.Errorf("%s: invalid reserved range end %q", msg.Name, rg.End)
			}
		}
		msg.Reserved = append(msg.Reserved, ReservedRange{Start: FieldNumber(start), End: FieldNumber(end)})
	}
	for _, name := range r.FieldNames {
		msg.ReservedNames = append(msg.ReservedNames, strings.Trim(name, `"'`))
	}
	return nil
}

func (fb *fileBuilder) enum(scope string, pe *parser.Enum) {
	e := &Enum{
		Name:     qualify(scope, pe.EnumName),
		Package:  fb.pkg,
		File:     fb.filename,
		Position: position(pe.Meta),
	}
	for _, body := range pe.EnumBody {
		ef, ok := body.(*parser.EnumField)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(ef.Number, 0, 32)
		if err != nil {
			continue
		}
		v := &EnumValue{Name: ef.Ident, Number: int32(n), Position: position(ef.Meta)}
		for _, o := range ef.EnumValueOptions {
			if o.OptionName == "deprecated" && o.Constant == "true" {
				v.Deprecated = true
			}
		}
		e.Values = append(e.Values, v)
	}
	_ = fb.loader.catalog.AddEnum(e)
}
