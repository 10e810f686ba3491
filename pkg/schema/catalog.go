package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/blockberries/wiremsg/internal/naming"
)

// ErrCatalogFrozen is returned when adding descriptors to a resolved catalog.
var ErrCatalogFrozen = errors.New("schema: catalog is already resolved")

// Catalog is a closed set of message and enum descriptors.
//
// Descriptors are added with AddMessage and AddEnum, then linked with
// Resolve. After Resolve succeeds the catalog and every descriptor reachable
// from it are immutable and safe for concurrent use.
type Catalog struct {
	mu sync.RWMutex

	messages []*Message
	enums    []*Enum
	byName   map[string]any

	codecs   *codecTable
	resolved bool
}

// NewCatalog creates an empty catalog holding the given messages.
func NewCatalog(messages ...*Message) *Catalog {
	c := &Catalog{
		byName: make(map[string]any),
		codecs: newCodecTable(),
	}
	for _, m := range messages {
		_ = c.AddMessage(m)
	}
	return c
}

// AddMessage adds a message descriptor. Names must be unique across messages
// and enums; duplicates are reported by Resolve.
func (c *Catalog) AddMessage(m *Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resolved {
		return ErrCatalogFrozen
	}
	c.messages = append(c.messages, m)
	if _, ok := c.byName[m.Name]; !ok {
		c.byName[m.Name] = m
	}
	return nil
}

// AddEnum adds an enum descriptor.
func (c *Catalog) AddEnum(e *Enum) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resolved {
		return ErrCatalogFrozen
	}
	c.enums = append(c.enums, e)
	if _, ok := c.byName[e.Name]; !ok {
		c.byName[e.Name] = e
	}
	return nil
}

// Resolve validates the catalog, links every type reference and attaches
// the per-kind codecs to each field. It returns ValidationErrors if any
// error-severity problem is found. Resolving twice is a no-op.
//
// Fields declared with InvalidKind and a TypeName take their kind from the
// referenced descriptor, which lets loaders defer the enum-or-message choice.
func (c *Catalog) Resolve() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resolved {
		return nil
	}

	v := NewValidator(c)
	v.Validate()
	if v.HasErrors() {
		return ValidationErrors(v.Errors())
	}

	for _, e := range c.enums {
		linkEnum(e)
	}
	for _, m := range c.messages {
		c.linkMessage(m)
	}
	c.resolved = true
	return nil
}

// MustResolve is like Resolve but panics on error. It is intended for
// catalogs declared in code.
func (c *Catalog) MustResolve() *Catalog {
	if err := c.Resolve(); err != nil {
		panic(err)
	}
	return c
}

// Resolved reports whether Resolve has completed.
func (c *Catalog) Resolved() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resolved
}

func (c *Catalog) linkMessage(m *Message) {
	m.catalog = c
	m.byNumber = make(map[FieldNumber]*Field, len(m.Fields))
	m.byName = make(map[string]*Field, 2*len(m.Fields))
	m.oneofs = nil
	seenOneof := make(map[string]bool)

	for _, f := range m.Fields {
		f.parent = m
		if f.JSONName == "" {
			f.JSONName = naming.JSONName(f.Name)
		}
		m.byNumber[f.Number] = f
		m.byName[f.Name] = f
		if _, ok := m.byName[f.JSONName]; !ok {
			m.byName[f.JSONName] = f
		}
		if f.Oneof != "" && !seenOneof[f.Oneof] {
			seenOneof[f.Oneof] = true
			m.oneofs = append(m.oneofs, f.Oneof)
		}

		c.linkField(m, f)
		if f.Cardinality == Map {
			f.entry = c.mapEntry(m, f)
		}
	}
}

func (c *Catalog) linkField(scope *Message, f *Field) {
	if f.TypeName != "" && (f.Kind == InvalidKind || f.Kind == EnumKind || f.Kind == MessageKind) {
		switch t := c.lookup(scope.Name, f.TypeName).(type) {
		case *Message:
			f.Kind = MessageKind
			f.message = t
		case *Enum:
			f.Kind = EnumKind
			f.enum = t
		}
	}
	f.codec = &c.codecs[f.Kind]
}

// mapEntry synthesises the {1: key, 2: value} entry message of a map field.
func (c *Catalog) mapEntry(scope *Message, f *Field) *Message {
	key := &Field{Name: "key", JSONName: "key", Number: 1, Kind: f.MapKey}
	value := &Field{
		Name:     "value",
		JSONName: "value",
		Number:   2,
		Kind:     f.Kind,
		TypeName: f.TypeName,
		message:  f.message,
		enum:     f.enum,
	}
	entry := &Message{
		Name:     scope.Name + "." + naming.ToPascalCase(f.Name) + "Entry",
		Fields:   []*Field{key, value},
		catalog:  c,
		mapEntry: true,
		byNumber: map[FieldNumber]*Field{1: key, 2: value},
		byName:   map[string]*Field{"key": key, "value": value},
	}
	key.parent, value.parent = entry, entry
	key.codec = &c.codecs[key.Kind]
	value.codec = &c.codecs[value.Kind]
	return entry
}

func linkEnum(e *Enum) {
	e.byNumber = make(map[int32]*EnumValue, len(e.Values))
	e.byName = make(map[string]*EnumValue, len(e.Values))
	for _, v := range e.Values {
		if _, ok := e.byNumber[v.Number]; !ok {
			e.byNumber[v.Number] = v
		}
		e.byName[v.Name] = v
	}
}

// lookup resolves a type reference made from inside scope. A leading dot
// means the name is fully qualified; otherwise the innermost enclosing scope
// wins, walking outward one component at a time.
func (c *Catalog) lookup(scope, name string) any {
	if strings.HasPrefix(name, ".") {
		return c.byName[name[1:]]
	}
	for scope != "" {
		if t, ok := c.byName[scope+"."+name]; ok {
			return t
		}
		i := strings.LastIndexByte(scope, '.')
		if i < 0 {
			break
		}
		scope = scope[:i]
	}
	return c.byName[name]
}

// Message returns the message with the given fully qualified name, or nil.
func (c *Catalog) Message(name string) *Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, _ := c.byName[strings.TrimPrefix(name, ".")].(*Message)
	return m
}

// Enum returns the enum with the given fully qualified name, or nil.
func (c *Catalog) Enum(name string) *Enum {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, _ := c.byName[strings.TrimPrefix(name, ".")].(*Enum)
	return e
}

// Lookup finds a message by its full name, or by short name when exactly one
// message has that short name.
func (c *Catalog) Lookup(name string) (*Message, error) {
	if m := c.Message(name); m != nil {
		return m, nil
	}
	var found []*Message
	for _, m := range c.Messages() {
		if m.ShortName() == name {
			found = append(found, m)
		}
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("schema: unknown message %q", name)
	case 1:
		return found[0], nil
	default:
		names := make([]string, len(found))
		for i, m := range found {
			names[i] = m.Name
		}
		return nil, fmt.Errorf("schema: message name %q is ambiguous: %s", name, strings.Join(names, ", "))
	}
}

// Messages returns all messages sorted by name.
func (c *Catalog) Messages() []*Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Message, len(c.messages))
	copy(out, c.messages)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Enums returns all enums sorted by name.
func (c *Catalog) Enums() []*Enum {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Enum, len(c.enums))
	copy(out, c.enums)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
