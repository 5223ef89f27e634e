package genicam

import (
	"fmt"
	"math"
	"sync"

	"github.com/smazurov/camnode/pkg/evaluator"
)

// Dictionary is a set of feature nodes keyed by name.
// It is safe for concurrent use.
type Dictionary struct {
	mu       sync.Mutex
	nodes    map[string]*Node
	order    []string
	onChange []func(name string)
}

// NewDictionary returns an empty dictionary.
func NewDictionary() *Dictionary {
	return &Dictionary{nodes: make(map[string]*Node)}
}

// Add inserts a node. Formula nodes are parsed here and become read-only.
// References to other nodes are resolved lazily, so nodes may be added in any order.
func (d *Dictionary) Add(n Node) error {
	if n.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidNode)
	}

	node := n
	if node.Formula != "" {
		ev, err := evaluator.New(node.Formula)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidNode, node.Name, err)
		}
		for _, v := range ev.Variables() {
			if _, ok := node.Variables[v]; !ok {
				return fmt.Errorf("%w: %s: formula variable %s is not mapped to a node", ErrInvalidNode, node.Name, v)
			}
		}
		node.formula = ev
		node.Access = AccessRO
	}

	switch node.Kind {
	case KindInteger:
		if !node.HasMin && node.MinNode == "" {
			node.Min = math.MinInt64
		}
		if !node.HasMax && node.MaxNode == "" {
			node.Max = math.MaxInt64
		}
		if node.Inc <= 0 {
			node.Inc = 1
		}
	case KindFloat:
		if !node.HasMin && node.MinNode == "" {
			node.FloatMin = math.Inf(-1)
		}
		if !node.HasMax && node.MaxNode == "" {
			node.FloatMax = math.Inf(1)
		}
	case KindEnumeration:
		if len(node.Entries) == 0 {
			return fmt.Errorf("%w: %s: enumeration without entries", ErrInvalidNode, node.Name)
		}
		if _, ok := node.entryByValue(node.Int); !ok && node.formula == nil {
			node.Int = node.Entries[0].Value
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.nodes[node.Name]; exists {
		return fmt.Errorf("%w: duplicate feature %s", ErrInvalidNode, node.Name)
	}
	d.nodes[node.Name] = &node
	d.order = append(d.order, node.Name)
	return nil
}

// Names returns feature names in declaration order.
func (d *Dictionary) Names() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Has reports whether a feature exists.
func (d *Dictionary) Has(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.nodes[name]
	return ok
}

// OnChange registers fn to run after every successful write or command execution.
// fn runs without the dictionary lock held.
func (d *Dictionary) OnChange(fn func(name string)) {
	d.mu.Lock()
	d.onChange = append(d.onChange, fn)
	d.mu.Unlock()
}

// Info is a snapshot of a node with its current value and effective bounds.
type Info struct {
	Name        string
	Description string
	Kind        Kind
	Access      Access
	Unit        string
	Value       Value
	// ValueErr is set when the current value could not be computed.
	ValueErr error

	Min, Max, Inc      int64
	FloatMin, FloatMax float64
	Entries            []EnumEntry
	Formula            string
}

// Node returns a snapshot of the named feature.
func (d *Dictionary) Node(name string) (Info, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.lookup(name)
	if err != nil {
		return Info{}, err
	}

	info := Info{
		Name:        n.Name,
		Description: n.Description,
		Kind:        n.Kind,
		Access:      n.Access,
		Unit:        n.Unit,
		Formula:     n.Formula,
		Entries:     append([]EnumEntry(nil), n.Entries...),
	}
	info.Value, info.ValueErr = d.value(n, map[string]bool{})

	switch n.Kind {
	case KindInteger:
		info.Min, info.Max, info.Inc, err = d.intBounds(n, map[string]bool{})
	case KindFloat:
		info.FloatMin, info.FloatMax, err = d.floatBounds(n, map[string]bool{})
	}
	if err != nil && info.ValueErr == nil {
		info.ValueErr = err
	}
	return info, nil
}

// Value reads any feature as a typed value.
func (d *Dictionary) Value(name string) (Value, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.lookup(name)
	if err != nil {
		return Value{}, err
	}
	return d.value(n, map[string]bool{})
}

// IntegerValue reads an Integer feature. Enumeration and Boolean features
// are accepted and read as their integer value.
func (d *Dictionary) IntegerValue(name string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.lookup(name)
	if err != nil {
		return 0, err
	}
	switch n.Kind {
	case KindInteger, KindEnumeration, KindBoolean:
		return d.intValue(n, map[string]bool{})
	}
	return 0, mismatch(n, KindInteger)
}

func (d *Dictionary) FloatValue(name string) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.lookup(name)
	if err != nil {
		return 0, err
	}
	if n.Kind != KindFloat {
		return 0, mismatch(n, KindFloat)
	}
	return d.floatValue(n, map[string]bool{})
}

func (d *Dictionary) BooleanValue(name string) (bool, error) {
	v, err := d.typedValue(name, KindBoolean)
	return v.Bool, err
}

func (d *Dictionary) StringValue(name string) (string, error) {
	v, err := d.typedValue(name, KindString)
	return v.Str, err
}

// EnumValue returns the name of the selected entry.
func (d *Dictionary) EnumValue(name string) (string, error) {
	v, err := d.typedValue(name, KindEnumeration)
	return v.Str, err
}

// EnumIntValue returns the integer value of the selected entry.
func (d *Dictionary) EnumIntValue(name string) (int64, error) {
	v, err := d.typedValue(name, KindEnumeration)
	return v.Int, err
}

func (d *Dictionary) typedValue(name string, kind Kind) (Value, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.lookup(name)
	if err != nil {
		return Value{}, err
	}
	if n.Kind != kind {
		return Value{}, mismatch(n, kind)
	}
	return d.value(n, map[string]bool{})
}

// IntegerBounds returns the effective minimum, maximum and increment.
func (d *Dictionary) IntegerBounds(name string) (minimum, maximum, inc int64, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.lookup(name)
	if err != nil {
		return 0, 0, 0, err
	}
	if n.Kind != KindInteger {
		return 0, 0, 0, mismatch(n, KindInteger)
	}
	return d.intBounds(n, map[string]bool{})
}

func (d *Dictionary) FloatBounds(name string) (minimum, maximum float64, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.lookup(name)
	if err != nil {
		return 0, 0, err
	}
	if n.Kind != KindFloat {
		return 0, 0, mismatch(n, KindFloat)
	}
	return d.floatBounds(n, map[string]bool{})
}

// SetIntegerValue writes an Integer feature, or an Enumeration by entry value.
// The value must lie within the bounds and on the increment grid.
func (d *Dictionary) SetIntegerValue(name string, v int64) error {
	return d.write(name, func(n *Node) error {
		switch n.Kind {
		case KindInteger:
			minimum, maximum, inc, err := d.intBounds(n, map[string]bool{})
			if err != nil {
				return err
			}
			if v < minimum || v > maximum {
				return fmt.Errorf("%w: %s=%d not in [%d, %d]", ErrOutOfRange, n.Name, v, minimum, maximum)
			}
			base := minimum
			if base == math.MinInt64 {
				// open minimum: the grid starts at zero
				base = 0
			}
			if inc > 1 && (v-base)%inc != 0 {
				return fmt.Errorf("%w: %s=%d not a multiple of increment %d from %d", ErrOutOfRange, n.Name, v, inc, base)
			}
			n.Int = v
		case KindEnumeration:
			if _, ok := n.entryByValue(v); !ok {
				return fmt.Errorf("%w: %s has no entry with value %d", ErrOutOfRange, n.Name, v)
			}
			n.Int = v
		default:
			return mismatch(n, KindInteger)
		}
		return nil
	})
}

func (d *Dictionary) SetFloatValue(name string, v float64) error {
	return d.write(name, func(n *Node) error {
		if n.Kind != KindFloat {
			return mismatch(n, KindFloat)
		}
		minimum, maximum, err := d.floatBounds(n, map[string]bool{})
		if err != nil {
			return err
		}
		if math.IsNaN(v) || v < minimum || v > maximum {
			return fmt.Errorf("%w: %s=%g not in [%g, %g]", ErrOutOfRange, n.Name, v, minimum, maximum)
		}
		n.Float = v
		return nil
	})
}

func (d *Dictionary) SetBooleanValue(name string, v bool) error {
	return d.write(name, func(n *Node) error {
		if n.Kind != KindBoolean {
			return mismatch(n, KindBoolean)
		}
		n.Bool = v
		return nil
	})
}

func (d *Dictionary) SetStringValue(name, v string) error {
	return d.write(name, func(n *Node) error {
		if n.Kind != KindString {
			return mismatch(n, KindString)
		}
		n.Str = v
		return nil
	})
}

// SetEnumValue selects an enumeration entry by name.
func (d *Dictionary) SetEnumValue(name, entry string) error {
	return d.write(name, func(n *Node) error {
		if n.Kind != KindEnumeration {
			return mismatch(n, KindEnumeration)
		}
		e, ok := n.entryByName(entry)
		if !ok {
			return fmt.Errorf("%w: %s has no entry %q", ErrOutOfRange, n.Name, entry)
		}
		n.Int = e.Value
		return nil
	})
}

// Execute runs a Command feature.
func (d *Dictionary) Execute(name string) error {
	return d.write(name, func(n *Node) error {
		if n.Kind != KindCommand {
			return mismatch(n, KindCommand)
		}
		n.Int++
		return nil
	})
}

// SetValue writes a typed value, dispatching on the node kind.
func (d *Dictionary) SetValue(name string, v Value) error {
	switch v.Kind {
	case KindInteger:
		return d.SetIntegerValue(name, v.Int)
	case KindFloat:
		return d.SetFloatValue(name, v.Float)
	case KindBoolean:
		return d.SetBooleanValue(name, v.Bool)
	case KindString:
		return d.SetStringValue(name, v.Str)
	case KindEnumeration:
		return d.SetEnumValue(name, v.Str)
	case KindCommand:
		return d.Execute(name)
	}
	return fmt.Errorf("%w: unknown value kind %d", ErrTypeMismatch, v.Kind)
}

// SetFromString parses s according to the node kind and writes it.
func (d *Dictionary) SetFromString(name, s string) error {
	d.mu.Lock()
	n, err := d.lookup(name)
	var kind Kind
	if err == nil {
		kind = n.Kind
	}
	d.mu.Unlock()
	if err != nil {
		return err
	}

	v, err := ParseValue(kind, s)
	if err != nil {
		return err
	}
	return d.SetValue(name, v)
}

// Update stores a value without access or range checks. Devices use it to
// publish status values on read-only nodes.
func (d *Dictionary) Update(name string, v Value) error {
	d.mu.Lock()
	n, err := d.lookup(name)
	if err == nil {
		switch {
		case n.formula != nil:
			err = fmt.Errorf("%w: %s is computed", ErrAccessDenied, name)
		case v.Kind != n.Kind:
			err = mismatch(n, v.Kind)
		default:
			switch n.Kind {
			case KindFloat:
				n.Float = v.Float
			case KindBoolean:
				n.Bool = v.Bool
			case KindString:
				n.Str = v.Str
			default:
				n.Int = v.Int
			}
		}
	}
	d.mu.Unlock()
	return err
}

func (d *Dictionary) write(name string, fn func(n *Node) error) error {
	d.mu.Lock()
	n, err := d.lookup(name)
	if err == nil {
		if n.Access != AccessRW {
			err = fmt.Errorf("%w: %s", ErrAccessDenied, name)
		} else {
			err = fn(n)
		}
	}
	hooks := d.onChange
	d.mu.Unlock()

	if err != nil {
		return err
	}
	for _, hook := range hooks {
		hook(name)
	}
	return nil
}

func (d *Dictionary) lookup(name string) (*Node, error) {
	n, ok := d.nodes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFeatureNotFound, name)
	}
	return n, nil
}

func mismatch(n *Node, want Kind) error {
	return fmt.Errorf("%w: %s is %s, not %s", ErrTypeMismatch, n.Name, n.Kind, want)
}

// The helpers below run with d.mu held. visiting tracks the formula chain to
// detect cycles.

func (d *Dictionary) value(n *Node, visiting map[string]bool) (Value, error) {
	switch n.Kind {
	case KindInteger, KindCommand:
		i, err := d.intValue(n, visiting)
		return Value{Kind: n.Kind, Int: i}, err
	case KindFloat:
		f, err := d.floatValue(n, visiting)
		return FloatValue(f), err
	case KindBoolean:
		if n.formula != nil {
			i, err := d.intValue(n, visiting)
			return BoolValue(i != 0), err
		}
		return BoolValue(n.Bool), nil
	case KindEnumeration:
		i, err := d.intValue(n, visiting)
		if err != nil {
			return Value{}, err
		}
		e, ok := n.entryByValue(i)
		if !ok {
			return Value{}, fmt.Errorf("%w: %s value %d has no entry", ErrOutOfRange, n.Name, i)
		}
		return Value{Kind: KindEnumeration, Int: e.Value, Str: e.Name}, nil
	default:
		return StringValue(n.Str), nil
	}
}

func (d *Dictionary) intValue(n *Node, visiting map[string]bool) (int64, error) {
	if n.formula == nil {
		switch n.Kind {
		case KindFloat:
			return int64(n.Float), nil
		case KindBoolean:
			if n.Bool {
				return 1, nil
			}
			return 0, nil
		case KindString:
			return 0, mismatch(n, KindInteger)
		}
		return n.Int, nil
	}
	if err := d.bind(n, visiting); err != nil {
		return 0, err
	}
	v, err := n.formula.EvaluateAsInt64()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", n.Name, err)
	}
	return v, nil
}

func (d *Dictionary) floatValue(n *Node, visiting map[string]bool) (float64, error) {
	if n.formula == nil {
		if n.Kind == KindFloat {
			return n.Float, nil
		}
		i, err := d.intValue(n, visiting)
		return float64(i), err
	}
	if err := d.bind(n, visiting); err != nil {
		return 0, err
	}
	v, err := n.formula.EvaluateAsDouble()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", n.Name, err)
	}
	return v, nil
}

// bind resolves every formula variable of n from the current node values.
func (d *Dictionary) bind(n *Node, visiting map[string]bool) error {
	if visiting[n.Name] {
		return fmt.Errorf("%w: %s", ErrRecursion, n.Name)
	}
	visiting[n.Name] = true
	defer delete(visiting, n.Name)

	for variable, ref := range n.Variables {
		dep, err := d.lookup(ref)
		if err != nil {
			return fmt.Errorf("%s: %w", n.Name, err)
		}
		if dep.Kind == KindFloat {
			f, err := d.floatValue(dep, visiting)
			if err != nil {
				return err
			}
			n.formula.SetDoubleVariable(variable, f)
			continue
		}
		i, err := d.intValue(dep, visiting)
		if err != nil {
			return err
		}
		n.formula.SetIntVariable(variable, i)
	}
	return nil
}

func (d *Dictionary) intBounds(n *Node, visiting map[string]bool) (minimum, maximum, inc int64, err error) {
	minimum, maximum, inc = n.Min, n.Max, n.Inc
	if n.MinNode != "" {
		if minimum, err = d.refInt(n.MinNode, visiting); err != nil {
			return 0, 0, 0, err
		}
	}
	if n.MaxNode != "" {
		if maximum, err = d.refInt(n.MaxNode, visiting); err != nil {
			return 0, 0, 0, err
		}
	}
	return minimum, maximum, inc, nil
}

func (d *Dictionary) floatBounds(n *Node, visiting map[string]bool) (minimum, maximum float64, err error) {
	minimum, maximum = n.FloatMin, n.FloatMax
	if n.MinNode != "" {
		if minimum, err = d.refFloat(n.MinNode, visiting); err != nil {
			return 0, 0, err
		}
	}
	if n.MaxNode != "" {
		if maximum, err = d.refFloat(n.MaxNode, visiting); err != nil {
			return 0, 0, err
		}
	}
	return minimum, maximum, nil
}

func (d *Dictionary) refInt(name string, visiting map[string]bool) (int64, error) {
	n, err := d.lookup(name)
	if err != nil {
		return 0, err
	}
	return d.intValue(n, visiting)
}

func (d *Dictionary) refFloat(name string, visiting map[string]bool) (float64, error) {
	n, err := d.lookup(name)
	if err != nil {
		return 0, err
	}
	return d.floatValue(n, visiting)
}
