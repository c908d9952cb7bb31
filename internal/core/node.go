package core

// node.go implements the typed tree that records are built on.
//
// A record is an *Object. Its fields are scalar Values, nested *Objects or
// *Lists. Objects keep insertion order so that JSON output and identity
// computation are deterministic. Nothing here uses reflection: the tree is
// converted to plain Go maps only at the edges (JSON, persistence).

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ValueKind identifies the concrete type held by a Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindTime
)

// Node is any element of a record tree: Value, *Object or *List.
type Node interface {
	node()
}

// Value is a typed scalar leaf.
type Value struct {
	Kind ValueKind
	Str  string
	Num  decimal.Decimal
	Bool bool
	Time time.Time
}

func (Value) node()   {}
func (*Object) node() {}
func (*List) node()   {}

// Null returns the null value.
func Null() Value { return Value{Kind: KindNull} }

// StringValue wraps a string.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// NumberValue wraps a decimal.
func NumberValue(d decimal.Decimal) Value { return Value{Kind: KindNumber, Num: d} }

// BoolValue wraps a bool.
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// TimeValue wraps a timestamp.
func TimeValue(t time.Time) Value { return Value{Kind: KindTime, Time: t} }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Text returns a canonical string form of the value.
// Used for identity keys and store columns; times render as Unix seconds.
func (v Value) Text() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return v.Num.String()
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindTime:
		return strconv.FormatInt(v.Time.Unix(), 10)
	default:
		return ""
	}
}

// Interface converts the value to a plain Go value suitable for encoding/json.
func (v Value) Interface() any {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return json.Number(v.Num.String())
	case KindBool:
		return v.Bool
	case KindTime:
		return v.Time.Unix()
	default:
		return nil
	}
}

// Object is an ordered set of named nodes.
type Object struct {
	keys   []string
	fields map[string]Node
}

// NewObject returns an empty object.
func NewObject() *Object {
	return &Object{fields: make(map[string]Node)}
}

// Len returns the number of fields.
func (o *Object) Len() int { return len(o.keys) }

// Keys returns the field names in insertion order.
func (o *Object) Keys() []string {
	keys := make([]string, len(o.keys))
	copy(keys, o.keys)
	return keys
}

// Has reports whether key is present.
func (o *Object) Has(key string) bool {
	_, ok := o.fields[key]
	return ok
}

// Get returns the node stored at key.
func (o *Object) Get(key string) (Node, bool) {
	n, ok := o.fields[key]
	return n, ok
}

// Set stores n at key, keeping the original position when key already exists.
func (o *Object) Set(key string, n Node) {
	if _, ok := o.fields[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.fields[key] = n
}

// Delete removes key.
func (o *Object) Delete(key string) {
	if _, ok := o.fields[key]; !ok {
		return
	}
	delete(o.fields, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Value returns the scalar stored at key.
func (o *Object) Value(key string) (Value, bool) {
	v, ok := o.fields[key].(Value)
	return v, ok
}

// Object returns the nested object stored at key.
func (o *Object) Object(key string) (*Object, bool) {
	obj, ok := o.fields[key].(*Object)
	return obj, ok
}

// List returns the list stored at key.
func (o *Object) List(key string) (*List, bool) {
	l, ok := o.fields[key].(*List)
	return l, ok
}

// String returns the text of the scalar at key, or "" if absent.
func (o *Object) String(key string) string {
	v, ok := o.Value(key)
	if !ok {
		return ""
	}
	return v.Text()
}

// Decimal returns the number stored at key.
func (o *Object) Decimal(key string) (decimal.Decimal, bool) {
	v, ok := o.Value(key)
	if !ok || v.Kind != KindNumber {
		return decimal.Zero, false
	}
	return v.Num, true
}

// Time returns the timestamp stored at key.
func (o *Object) Time(key string) (time.Time, bool) {
	v, ok := o.Value(key)
	if !ok || v.Kind != KindTime {
		return time.Time{}, false
	}
	return v.Time, true
}

// Lookup walks a dotted path ("ship_to.name").
func (o *Object) Lookup(path string) (Node, bool) {
	cur := o
	parts := strings.Split(path, ".")
	for i, part := range parts {
		n, ok := cur.fields[part]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return n, true
		}
		next, ok := n.(*Object)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return nil, false
}

// SetPath stores n at a dotted path, creating intermediate objects.
// A scalar standing where an intermediate object is needed is replaced.
func (o *Object) SetPath(path string, n Node) {
	cur := o
	parts := strings.Split(path, ".")
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur.fields[part].(*Object)
		if !ok {
			next = NewObject()
			cur.Set(part, next)
		}
		cur = next
	}
	cur.Set(parts[len(parts)-1], n)
}

// Clone returns a deep copy.
func (o *Object) Clone() *Object {
	c := &Object{
		keys:   make([]string, len(o.keys)),
		fields: make(map[string]Node, len(o.fields)),
	}
	copy(c.keys, o.keys)
	for k, n := range o.fields {
		c.fields[k] = cloneNode(n)
	}
	return c
}

// Merge applies src onto o. Nested objects merge key by key; scalars and
// lists present in src replace what o holds. Keys absent from src are kept.
func (o *Object) Merge(src *Object) {
	for _, k := range src.keys {
		incoming := src.fields[k]
		if in, ok := incoming.(*Object); ok {
			if cur, ok := o.fields[k].(*Object); ok {
				cur.Merge(in)
				continue
			}
		}
		o.Set(k, cloneNode(incoming))
	}
}

// Prune drops null leaves and nested objects left without fields.
// Returns true when o itself ends up empty.
func (o *Object) Prune() bool {
	for _, k := range o.Keys() {
		switch n := o.fields[k].(type) {
		case Value:
			if n.IsNull() {
				o.Delete(k)
			}
		case *Object:
			if n.Prune() {
				o.Delete(k)
			}
		}
	}
	return o.Len() == 0
}

// ToMap converts the object into plain Go values.
func (o *Object) ToMap() map[string]any {
	m := make(map[string]any, len(o.keys))
	for _, k := range o.keys {
		m[k] = nodeInterface(o.fields[k])
	}
	return m
}

// MarshalJSON encodes the object preserving field order.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(nodeInterface(o.fields[k]))
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object. Numbers become decimals.
// Key order follows the sorted key order since encoding/json maps are unordered.
func (o *Object) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	obj, err := objectFromMap(raw)
	if err != nil {
		return err
	}
	*o = *obj
	return nil
}

func objectFromMap(raw map[string]any) (*Object, error) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	obj := NewObject()
	for _, k := range keys {
		n, err := nodeFromInterface(raw[k])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		obj.Set(k, n)
	}
	return obj, nil
}

func nodeFromInterface(v any) (Node, error) {
	switch t := v.(type) {
	case nil:
		return Null(), nil
	case string:
		return StringValue(t), nil
	case bool:
		return BoolValue(t), nil
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return nil, err
		}
		return NumberValue(d), nil
	case float64:
		return NumberValue(decimal.NewFromFloat(t)), nil
	case map[string]any:
		return objectFromMap(t)
	case []any:
		l := NewList()
		for _, item := range t {
			n, err := nodeFromInterface(item)
			if err != nil {
				return nil, err
			}
			l.Append(n)
		}
		return l, nil
	default:
		return nil, fmt.Errorf("unsupported JSON value %T", v)
	}
}

// List is an ordered sequence of nodes.
type List struct {
	items []Node
}

// NewList returns a list holding items.
func NewList(items ...Node) *List {
	return &List{items: items}
}

// Len returns the number of items.
func (l *List) Len() int { return len(l.items) }

// Append adds n at the end.
func (l *List) Append(n Node) { l.items = append(l.items, n) }

// At returns the item at i.
func (l *List) At(i int) Node { return l.items[i] }

// Objects returns the items that are objects, in order.
func (l *List) Objects() []*Object {
	out := make([]*Object, 0, len(l.items))
	for _, n := range l.items {
		if obj, ok := n.(*Object); ok {
			out = append(out, obj)
		}
	}
	return out
}

// MarshalJSON encodes the list as a JSON array.
func (l *List) MarshalJSON() ([]byte, error) {
	return json.Marshal(nodeInterface(l))
}

func cloneNode(n Node) Node {
	switch t := n.(type) {
	case *Object:
		return t.Clone()
	case *List:
		c := &List{items: make([]Node, len(t.items))}
		for i, item := range t.items {
			c.items[i] = cloneNode(item)
		}
		return c
	default:
		return n
	}
}

func nodeInterface(n Node) any {
	switch t := n.(type) {
	case Value:
		return t.Interface()
	case *Object:
		return t.ToMap()
	case *List:
		out := make([]any, len(t.items))
		for i, item := range t.items {
			out[i] = nodeInterface(item)
		}
		return out
	default:
		return nil
	}
}
