package extract

import (
	"fmt"
	"go/constant"
	"go/types"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/tools/go/packages"
)

// TagKey is the struct tag key read by the collector.
const TagKey = "wire"

// Config configures the type collector.
type Config struct {
	IncludePrivate  bool     // Include unexported types
	IncludePatterns []string // Type name patterns to include (glob)
	ExcludePatterns []string // Type name patterns to exclude (glob)
	// RequireTags skips struct fields without a wire tag instead of
	// numbering them by position.
	RequireTags bool
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{}
}

// TypeCollector collects type information from Go packages.
type TypeCollector struct {
	packages []*packages.Package
	config   *Config
	types    map[string]*TypeInfo
	enums    map[string]*EnumInfo
}

// NewTypeCollector creates a new type collector.
func NewTypeCollector(pkgs []*packages.Package, cfg *Config) *TypeCollector {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &TypeCollector{
		packages: pkgs,
		config:   cfg,
		types:    make(map[string]*TypeInfo),
		enums:    make(map[string]*EnumInfo),
	}
}

// Collect analyzes all packages and collects type information.
func (c *TypeCollector) Collect() error {
	for _, pkg := range c.packages {
		if err := c.collectPackage(pkg); err != nil {
			return err
		}
	}
	return nil
}

// Types returns collected struct types keyed by package path and name.
func (c *TypeCollector) Types() map[string]*TypeInfo {
	return c.types
}

// Enums returns collected enum types keyed by package path and name.
func (c *TypeCollector) Enums() map[string]*EnumInfo {
	return c.enums
}

func (c *TypeCollector) collectPackage(pkg *packages.Package) error {
	scope := pkg.Types.Scope()
	for _, name := range scope.Names() {
		obj := scope.Lookup(name)
		if obj == nil {
			continue
		}
		if !c.config.IncludePrivate && !obj.Exported() {
			continue
		}
		if !c.matchesPatterns(name) {
			continue
		}
		if typeName, ok := obj.(*types.TypeName); ok && !typeName.IsAlias() {
			if err := c.collectType(pkg, typeName); err != nil {
				return err
			}
		}
	}

	c.collectEnumValues(pkg)
	return nil
}

func (c *TypeCollector) collectType(pkg *packages.Package, typeName *types.TypeName) error {
	qualifiedName := pkg.PkgPath + "." + typeName.Name()

	switch t := typeName.Type().Underlying().(type) {
	case *types.Struct:
		info := &TypeInfo{
			Name:    typeName.Name(),
			Package: typeName.Pkg().Name(),
			PkgPath: pkg.PkgPath,
			GoType:  typeName.Type(),
			Pos:     pkg.Fset.Position(typeName.Pos()),
		}

		for i := 0; i < t.NumFields(); i++ {
			field := t.Field(i)
			if !c.config.IncludePrivate && !field.Exported() {
				continue
			}

			tag, err := parseTag(t.Tag(i), i+1)
			if err != nil {
				return fmt.Errorf("%s.%s: %w", typeName.Name(), field.Name(), err)
			}
			if tag.Skip || (c.config.RequireTags && !tag.Explicit) {
				continue
			}

			info.Fields = append(info.Fields, &FieldInfo{
				Name:   field.Name(),
				GoType: field.Type(),
				Tag:    tag,
				Pos:    pkg.Fset.Position(field.Pos()),
			})
		}

		c.types[qualifiedName] = info

	case *types.Basic:
		if t.Info()&types.IsInteger != 0 {
			c.enums[qualifiedName] = &EnumInfo{
				Name:    typeName.Name(),
				Package: typeName.Pkg().Name(),
				PkgPath: pkg.PkgPath,
				GoType:  typeName.Type(),
				Pos:     pkg.Fset.Position(typeName.Pos()),
			}
		}
	}
	return nil
}

func (c *TypeCollector) collectEnumValues(pkg *packages.Package) {
	scope := pkg.Types.Scope()
	for _, name := range scope.Names() {
		cnst, ok := scope.Lookup(name).(*types.Const)
		if !ok {
			continue
		}
		named, ok := cnst.Type().(*types.Named)
		if !ok || named.Obj().Pkg() == nil {
			continue
		}
		qualifiedName := named.Obj().Pkg().Path() + "." + named.Obj().Name()
		enumInfo, exists := c.enums[qualifiedName]
		if !exists {
			continue
		}
		if val, ok := constantToInt64(cnst); ok {
			enumInfo.Values = append(enumInfo.Values, &EnumValueInfo{
				Name:   cnst.Name(),
				Number: val,
				Pos:    pkg.Fset.Position(cnst.Pos()),
			})
		}
	}
}

func constantToInt64(cnst *types.Const) (int64, bool) {
	if cnst.Val() == nil || cnst.Val().Kind() != constant.Int {
		return 0, false
	}
	return constant.Int64Val(cnst.Val())
}

// parseTag parses a wire tag. Fields without a number are numbered by
// their position in the struct.
func parseTag(tag string, defaultNum int) (*StructTag, error) {
	st := &StructTag{Number: defaultNum}

	value, ok := reflect.StructTag(tag).Lookup(TagKey)
	if !ok || value == "" {
		return st, nil
	}
	if value == "-" {
		st.Skip = true
		return st, nil
	}

	parts := strings.Split(value, ",")
	if parts[0] != "" {
		num, err := strconv.Atoi(parts[0])
		if err != nil || num <= 0 {
			return nil, fmt.Errorf("invalid field number %q in wire tag", parts[0])
		}
		st.Number = num
		st.Explicit = true
	}
	for _, part := range parts[1:] {
		switch {
		case part == "packed":
			st.Packed = true
		case part == "zigzag":
			st.ZigZag = true
		case part == "fixed":
			st.Fixed = true
		case part == "deprecated":
			st.Deprecated = true
		case strings.HasPrefix(part, "oneof="):
			st.Oneof = strings.TrimPrefix(part, "oneof=")
		case strings.HasPrefix(part, "name="):
			st.Name = strings.TrimPrefix(part, "name=")
		default:
			return nil, fmt.Errorf("unknown wire tag option %q", part)
		}
	}
	if st.ZigZag && st.Fixed {
		return nil, fmt.Errorf("wire tag options zigzag and fixed are exclusive")
	}
	return st, nil
}

func (c *TypeCollector) matchesPatterns(name string) bool {
	if len(c.config.IncludePatterns) > 0 {
		matched := false
		for _, pattern := range c.config.IncludePatterns {
			if matchGlob(pattern, name) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	for _, pattern := range c.config.ExcludePatterns {
		if matchGlob(pattern, name) {
			return false
		}
	}
	return true
}

func matchGlob(pattern, name string) bool {
	// * matches any sequence
	regexPattern := "^" + strings.ReplaceAll(regexp.QuoteMeta(pattern), `\*`, `.*`) + "$"
	matched, _ := regexp.MatchString(regexPattern, name)
	return matched
}
