// Package extract derives message catalogs from tagged Go structs.
//
// Struct fields carry their wire layout in a `wire` tag:
//
//	type Volume struct {
//		Name     string            `wire:"1"`
//		BlockIDs []int64           `wire:"6,zigzag,packed"`
//		Labels   map[string]string `wire:"3"`
//		Cache    string            `wire:"-"`
//	}
//
// Named integer types with constants become enums. Structs become messages.
package extract

import (
	"fmt"
	"go/token"
	"go/types"

	"golang.org/x/tools/go/packages"
)

// PackageLoader loads Go packages for analysis.
type PackageLoader struct {
	config *packages.Config
}

// NewPackageLoader creates a new package loader rooted at dir. An empty dir
// uses the working directory.
func NewPackageLoader(dir string) *PackageLoader {
	return &PackageLoader{
		config: &packages.Config{
			Dir: dir,
			Mode: packages.NeedName |
				packages.NeedTypes |
				packages.NeedTypesInfo |
				packages.NeedSyntax |
				packages.NeedImports |
				packages.NeedDeps,
		},
	}
}

// Load loads packages matching the given patterns.
func (l *PackageLoader) Load(patterns []string) ([]*packages.Package, error) {
	pkgs, err := packages.Load(l.config, patterns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load packages: %w", err)
	}

	var errs []error
	packages.Visit(pkgs, nil, func(pkg *packages.Package) {
		for _, err := range pkg.Errors {
			errs = append(errs, err)
		}
	})
	if len(errs) > 0 {
		return nil, fmt.Errorf("package errors: %v", errs[0])
	}

	return pkgs, nil
}

// TypeInfo describes a struct type that becomes a message.
type TypeInfo struct {
	Name    string
	Package string
	PkgPath string
	Fields  []*FieldInfo
	GoType  types.Type
	Pos     token.Position
}

// FieldInfo describes one struct field.
type FieldInfo struct {
	Name   string
	GoType types.Type
	Tag    *StructTag
	Pos    token.Position
}

// EnumInfo describes a named integer type with constants.
type EnumInfo struct {
	Name    string
	Package string
	PkgPath string
	Values  []*EnumValueInfo
	GoType  types.Type
	Pos     token.Position
}

// EnumValueInfo is one constant of an enum type.
type EnumValueInfo struct {
	Name   string
	Number int64
	Pos    token.Position
}

// StructTag is a parsed `wire` struct tag.
type StructTag struct {
	Number     int
	Name       string // overrides the derived field name
	Packed     bool
	ZigZag     bool
	Fixed      bool
	Oneof      string
	Deprecated bool
	Skip       bool
	Explicit   bool // the number came from the tag
}
