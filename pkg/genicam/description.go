package genicam

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// A device description lists feature nodes as TOML tables:
//
//	[[feature]]
//	name = "Width"
//	type = "Integer"
//	access = "RW"
//	value = 512
//	min = 4
//	max_node = "WidthMax"
//	inc = 4
//
//	[[feature]]
//	name = "PayloadSize"
//	type = "Integer"
//	formula = "W * H * ((PF >> 16) & 0xFF) / 8"
//	variables = { W = "Width", H = "Height", PF = "PixelFormat" }
type description struct {
	Feature []featureDescription `toml:"feature"`
}

type featureDescription struct {
	Name        string            `toml:"name"`
	Type        string            `toml:"type"`
	Access      string            `toml:"access"`
	Description string            `toml:"description"`
	Unit        string            `toml:"unit"`
	Value       any               `toml:"value"`
	Min         any               `toml:"min"`
	Max         any               `toml:"max"`
	Inc         int64             `toml:"inc"`
	MinNode     string            `toml:"min_node"`
	MaxNode     string            `toml:"max_node"`
	Entries     []EnumEntry       `toml:"entry"`
	Formula     string            `toml:"formula"`
	Variables   map[string]string `toml:"variables"`
}

// Load reads a TOML device description from path.
func Load(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read device description: %w", err)
	}
	return Parse(data)
}

// Parse builds a dictionary from a TOML device description and checks that
// every node reference resolves.
func Parse(data []byte) (*Dictionary, error) {
	var desc description
	if err := toml.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("failed to parse device description: %w", err)
	}

	d := NewDictionary()
	for i, fd := range desc.Feature {
		n, err := fd.node()
		if err != nil {
			return nil, fmt.Errorf("feature %d (%s): %w", i, fd.Name, err)
		}
		if err := d.Add(n); err != nil {
			return nil, err
		}
	}

	if err := d.checkReferences(); err != nil {
		return nil, err
	}
	return d, nil
}

func (fd featureDescription) node() (Node, error) {
	kind, err := ParseKind(fd.Type)
	if err != nil {
		return Node{}, err
	}

	n := Node{
		Name:        fd.Name,
		Description: fd.Description,
		Kind:        kind,
		Access:      AccessRO,
		Unit:        fd.Unit,
		Inc:         fd.Inc,
		HasMin:      fd.Min != nil,
		HasMax:      fd.Max != nil,
		MinNode:     fd.MinNode,
		MaxNode:     fd.MaxNode,
		Entries:     fd.Entries,
		Formula:     fd.Formula,
		Variables:   fd.Variables,
	}

	switch strings.ToUpper(fd.Access) {
	case "", "RO":
	case "RW":
		n.Access = AccessRW
	default:
		return Node{}, fmt.Errorf("%w: unknown access %q", ErrInvalidNode, fd.Access)
	}

	if fd.Value != nil {
		if kind == KindEnumeration {
			if err := setEnumDefault(&n, fd.Value); err != nil {
				return Node{}, err
			}
		} else {
			v, err := ValueFromAny(kind, fd.Value)
			if err != nil {
				return Node{}, err
			}
			n.Int, n.Float, n.Bool, n.Str = v.Int, v.Float, v.Bool, v.Str
		}
	}

	switch kind {
	case KindInteger:
		if fd.Min != nil {
			if n.Min, err = boundInt(fd.Min); err != nil {
				return Node{}, err
			}
		}
		if fd.Max != nil {
			if n.Max, err = boundInt(fd.Max); err != nil {
				return Node{}, err
			}
		}
	case KindFloat:
		if fd.Min != nil {
			if n.FloatMin, err = boundFloat(fd.Min); err != nil {
				return Node{}, err
			}
		}
		if fd.Max != nil {
			if n.FloatMax, err = boundFloat(fd.Max); err != nil {
				return Node{}, err
			}
		}
	}
	return n, nil
}

func setEnumDefault(n *Node, raw any) error {
	if name, ok := raw.(string); ok {
		e, found := n.entryByName(name)
		if !found {
			return fmt.Errorf("%w: default %q is not an entry", ErrInvalidNode, name)
		}
		n.Int = e.Value
		return nil
	}
	i, ok := toInt64(raw)
	if !ok {
		return fmt.Errorf("%w: enumeration default must be an entry name", ErrInvalidNode)
	}
	n.Int = i
	return nil
}

func boundInt(raw any) (int64, error) {
	i, ok := toInt64(raw)
	if !ok {
		return 0, fmt.Errorf("%w: integer bound %v", ErrInvalidNode, raw)
	}
	return i, nil
}

func boundFloat(raw any) (float64, error) {
	f, ok := toFloat64(raw)
	if !ok {
		return 0, fmt.Errorf("%w: float bound %v", ErrInvalidNode, raw)
	}
	return f, nil
}

func (d *Dictionary) checkReferences() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, name := range d.order {
		n := d.nodes[name]
		refs := []string{n.MinNode, n.MaxNode}
		for _, ref := range n.Variables {
			refs = append(refs, ref)
		}
		for _, ref := range refs {
			if ref == "" {
				continue
			}
			if _, ok := d.nodes[ref]; !ok {
				return fmt.Errorf("%w: %s references unknown feature %s", ErrInvalidNode, name, ref)
			}
		}
	}
	return nil
}
