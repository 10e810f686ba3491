package schema

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/blockberries/wiremsg/internal/naming"
)

// Writer renders catalogs as proto3 source.
type Writer struct {
	indent string
}

// NewWriter creates a new schema writer.
func NewWriter() *Writer {
	return &Writer{
		indent: "  ",
	}
}

// SetIndent sets the indentation string (default is two spaces).
func (w *Writer) SetIndent(indent string) {
	w.indent = indent
}

// Packages returns the distinct package names declared in c, sorted.
func Packages(c *Catalog) []string {
	seen := make(map[string]bool)
	for _, m := range c.Messages() {
		seen[m.Package] = true
	}
	for _, e := range c.Enums() {
		seen[e.Package] = true
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// WritePackage writes every message and enum of package pkg as a single
// proto3 file. Nested declarations are written inside their parent.
func (w *Writer) WritePackage(out io.Writer, c *Catalog, pkg string) error {
	p := &printer{w: w, out: out, c: c, pkg: pkg, children: make(map[string][]any)}
	p.collect()

	p.printf("syntax = \"proto3\";\n")
	if pkg != "" {
		p.printf("\npackage %s;\n", pkg)
	}
	if imports := p.imports(); len(imports) > 0 {
		p.printf("\n")
		for _, imp := range imports {
			p.printf("import %q;\n", imp)
		}
	}
	for _, decl := range p.children[""] {
		p.printf("\n")
		p.decl(decl, 0)
	}
	return p.err
}

// WriteCatalog writes every package of c, one after another.
func (w *Writer) WriteCatalog(out io.Writer, c *Catalog) error {
	for i, pkg := range Packages(c) {
		if i > 0 {
			if _, err := fmt.Fprintln(out); err != nil {
				return err
			}
		}
		if err := w.WritePackage(out, c, pkg); err != nil {
			return err
		}
	}
	return nil
}

// Format returns the proto3 rendering of c.
func Format(c *Catalog) string {
	var sb strings.Builder
	_ = NewWriter().WriteCatalog(&sb, c) // Error can't happen with strings.Builder
	return sb.String()
}

// WriteToFile writes package pkg of c to a .proto file.
func WriteToFile(path string, c *Catalog, pkg string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := NewWriter().WritePackage(f, c, pkg); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

type printer struct {
	w   *Writer
	out io.Writer
	c   *Catalog
	pkg string
	err error

	// declarations keyed by the full name of their enclosing message,
	// "" for top level
	children map[string][]any
	refs     []*Field
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.out, format, args...)
}

func (p *printer) collect() {
	messages := make(map[string]bool)
	for _, m := range p.c.Messages() {
		if m.Package == p.pkg {
			messages[m.Name] = true
		}
	}
	parentOf := func(name string) string {
		if i := strings.LastIndexByte(name, '.'); i >= 0 && messages[name[:i]] {
			return name[:i]
		}
		return ""
	}
	for _, m := range p.c.Messages() {
		if m.Package != p.pkg {
			continue
		}
		parent := parentOf(m.Name)
		p.children[parent] = append(p.children[parent], m)
		p.refs = append(p.refs, m.Fields...)
	}
	for _, e := range p.c.Enums() {
		if e.Package != p.pkg {
			continue
		}
		parent := parentOf(e.Name)
		p.children[parent] = append(p.children[parent], e)
	}
}

// imports lists the files declaring types referenced from other packages.
func (p *printer) imports() []string {
	seen := make(map[string]bool)
	for _, f := range p.refs {
		file, pkg := "", ""
		switch {
		case f.message != nil:
			file, pkg = f.message.File, f.message.Package
		case f.enum != nil:
			file, pkg = f.enum.File, f.enum.Package
		}
		if file != "" && pkg != p.pkg {
			seen[file] = true
		}
	}
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func (p *printer) decl(d any, depth int) {
	switch d := d.(type) {
	case *Message:
		p.message(d, depth)
	case *Enum:
		p.enum(d, depth)
	}
}

func (p *printer) message(m *Message, depth int) {
	ind := strings.Repeat(p.w.indent, depth)
	in := ind + p.w.indent
	p.printf("%smessage %s {\n", ind, m.ShortName())
	if m.Deprecated {
		p.printf("%soption deprecated = true;\n", in)
	}

	for _, d := range p.children[m.Name] {
		p.decl(d, depth+1)
	}

	written := make(map[string]bool)
	for _, f := range m.Fields {
		if f.Oneof == "" {
			p.field(f, in, false)
			continue
		}
		if written[f.Oneof] {
			continue
		}
		written[f.Oneof] = true
		p.printf("%soneof %s {\n", in, f.Oneof)
		for _, member := range m.OneofFields(f.Oneof) {
			p.field(member, in+p.w.indent, true)
		}
		p.printf("%s}\n", in)
	}

	if len(m.Reserved) > 0 {
		parts := make([]string, len(m.Reserved))
		for i, r := range m.Reserved {
			switch {
			case r.Start == r.End:
				parts[i] = fmt.Sprint(r.Start)
			case r.End == MaxFieldNumber:
				parts[i] = fmt.Sprintf("%d to max", r.Start)
			default:
				parts[i] = fmt.Sprintf("%d to %d", r.Start, r.End)
			}
		}
		p.printf("%sreserved %s;\n", in, strings.Join(parts, ", "))
	}
	if len(m.ReservedNames) > 0 {
		parts := make([]string, len(m.ReservedNames))
		for i, n := range m.ReservedNames {
			parts[i] = fmt.Sprintf("%q", n)
		}
		p.printf("%sreserved %s;\n", in, strings.Join(parts, ", "))
	}
	p.printf("%s}\n", ind)
}

func (p *printer) field(f *Field, ind string, inOneof bool) {
	elem := p.typeRef(f)
	typ := elem
	switch f.Cardinality {
	case Repeated:
		typ = "repeated " + elem
	case Map:
		typ = "map<" + f.MapKey.String() + ", " + elem + ">"
	}

	var opts []string
	if f.Cardinality == Repeated && f.Kind.IsNumeric() && !f.Packed && !inOneof {
		opts = append(opts, "packed = false")
	}
	if f.JSONName != "" && f.JSONName != naming.JSONName(f.Name) {
		opts = append(opts, fmt.Sprintf("json_name = %q", f.JSONName))
	}
	if f.Deprecated {
		opts = append(opts, "deprecated = true")
	}
	optStr := ""
	if len(opts) > 0 {
		optStr = " [" + strings.Join(opts, ", ") + "]"
	}
	p.printf("%s%s %s = %d%s;\n", ind, typ, f.Name, f.Number, optStr)
}

// typeRef names the field's element type relative to the current package.
func (p *printer) typeRef(f *Field) string {
	var name, pkg string
	switch {
	case f.message != nil:
		name, pkg = f.message.Name, f.message.Package
	case f.enum != nil:
		name, pkg = f.enum.Name, f.enum.Package
	default:
		return f.elemTypeString()
	}
	if pkg == p.pkg {
		if p.pkg != "" {
			return strings.TrimPrefix(name, p.pkg+".")
		}
		return name
	}
	return "." + name
}

func (p *printer) enum(e *Enum, depth int) {
	ind := strings.Repeat(p.w.indent, depth)
	in := ind + p.w.indent
	p.printf("%senum %s {\n", ind, e.ShortName())
	aliases := false
	seen := make(map[int32]bool)
	for _, v := range e.Values {
		if seen[v.Number] {
			aliases = true
		}
		seen[v.Number] = true
	}
	if aliases {
		p.printf("%soption allow_alias = true;\n", in)
	}
	for _, v := range e.Values {
		if v.Deprecated {
			p.printf("%s%s = %d [deprecated = true];\n", in, v.Name, v.Number)
		} else {
			p.printf("%s%s = %d;\n", in, v.Name, v.Number)
		}
	}
	p.printf("%s}\n", ind)
}
