// Package matcher stores per-user industry overrides ("matchers"): named
// tables mapping a blueprint, market group, group, meta group or category to
// the efficiency, facility or production block to use for it.
package matcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrDuplicateName  = errors.New("matcher: name already exists")
	ErrInvalidKind    = errors.New("matcher: invalid matcher kind")
	ErrNotFound       = errors.New("matcher: not found")
	ErrUnknownKeyType = errors.New("matcher: unknown key type")
	ErrInvalidPayload = errors.New("matcher: payload does not fit matcher kind")
	ErrUnknownKey     = errors.New("matcher: unknown key")
)

// Kind decides which payload variant a matcher holds.
type Kind string

const (
	KindBlueprint Kind = "bp"
	KindStructure Kind = "structure"
	KindProdBlock Kind = "prod_block"
)

// Kinds lists every valid matcher kind.
var Kinds = []Kind{KindBlueprint, KindStructure, KindProdBlock}

// ParseKind validates a kind string.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%q (want bp, structure or prod_block): %w", s, ErrInvalidKind)
}

// KeyType selects which classification table a key belongs to.
type KeyType string

const (
	KeyBlueprint   KeyType = "bp"
	KeyMarketGroup KeyType = "market_group"
	KeyGroup       KeyType = "group"
	KeyMeta        KeyType = "meta"
	KeyCategory    KeyType = "category"
)

// KeyTypes is the closed set of key types, most specific first.
var KeyTypes = []KeyType{KeyBlueprint, KeyMarketGroup, KeyGroup, KeyMeta, KeyCategory}

// ParseKeyType validates a key type string.
func ParseKeyType(s string) (KeyType, error) {
	for _, k := range KeyTypes {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownKeyType)
}

// Payload is one override value. The concrete type must match the owning
// matcher's Kind: Efficiency for bp, Facility for structure, Block for
// prod_block.
type Payload interface {
	Kind() Kind
	String() string
	validate() error
}

// Efficiency multipliers for a blueprint matcher. 0.9 means ME 10.
type Efficiency struct {
	ME float64 `json:"mater_eff"`
	TE float64 `json:"time_eff"`
}

// EfficiencyFromLevels converts in-game ME/TE levels (0..10, 0..20) to
// multipliers rounded to two decimals.
func EfficiencyFromLevels(me, te int) (Efficiency, error) {
	if me < 0 || me > 10 || te < 0 || te > 20 {
		return Efficiency{}, fmt.Errorf("ME %d / TE %d out of range: %w", me, te, ErrInvalidPayload)
	}
	round := func(v float64) float64 { return math.Round(v*100) / 100 }
	return Efficiency{ME: round(1 - float64(me)/100), TE: round(1 - float64(te)/100)}, nil
}

func (Efficiency) Kind() Kind { return KindBlueprint }

func (e Efficiency) String() string {
	return fmt.Sprintf("mater_eff %.2f, time_eff %.2f", e.ME, e.TE)
}

func (e Efficiency) validate() error {
	if e.ME <= 0 || e.ME > 1 || e.TE <= 0 || e.TE > 1 {
		return fmt.Errorf("efficiency %v outside (0,1]: %w", e, ErrInvalidPayload)
	}
	return nil
}

// Facility pins production to a structure.
type Facility struct {
	StructureID int64
}

func (Facility) Kind() Kind { return KindStructure }

func (f Facility) String() string { return fmt.Sprintf("structure %d", f.StructureID) }

func (f Facility) validate() error {
	if f.StructureID <= 0 {
		return fmt.Errorf("structure id %d: %w", f.StructureID, ErrInvalidPayload)
	}
	return nil
}

// Block is a production block level.
type Block struct {
	Level int
}

func (Block) Kind() Kind { return KindProdBlock }

func (b Block) String() string { return fmt.Sprintf("block %d", b.Level) }

func (b Block) validate() error {
	if b.Level < 0 {
		return fmt.Errorf("block level %d: %w", b.Level, ErrInvalidPayload)
	}
	return nil
}

// Data holds one table per key type.
type Data map[KeyType]map[string]Payload

// NewData returns a Data with every key type table present and empty.
func NewData() Data {
	d := make(Data, len(KeyTypes))
	for _, kt := range KeyTypes {
		d[kt] = make(map[string]Payload)
	}
	return d
}

// Matcher is a named, user-owned override table.
type Matcher struct {
	Name  string
	Owner int64
	Kind  Kind
	Data  Data
}

// New creates an empty matcher.
func New(name string, owner int64, kind Kind) *Matcher {
	return &Matcher{Name: name, Owner: owner, Kind: kind, Data: NewData()}
}

// Keys returns the keys set under kt, sorted.
func (m *Matcher) Keys(kt KeyType) []string {
	keys := make([]string, 0, len(m.Data[kt]))
	for k := range m.Data[kt] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len is the total number of overrides across all tables.
func (m *Matcher) Len() int {
	n := 0
	for _, t := range m.Data {
		n += len(t)
	}
	return n
}

// MarshalData encodes a matcher's tables in the stored JSON layout:
// {"bp": {"Key": {"mater_eff": 0.9, "time_eff": 0.8}}, "group": {...}, ...}
// Facility and Block payloads are stored as bare integers.
func MarshalData(d Data) ([]byte, error) {
	out := make(map[KeyType]map[string]any, len(KeyTypes))
	for _, kt := range KeyTypes {
		t := make(map[string]any, len(d[kt]))
		for k, p := range d[kt] {
			switch v := p.(type) {
			case Efficiency:
				t[k] = v
			case Facility:
				t[k] = v.StructureID
			case Block:
				t[k] = v.Level
			default:
				return nil, fmt.Errorf("key %q: unsupported payload %T: %w", k, p, ErrInvalidPayload)
			}
		}
		out[kt] = t
	}
	return json.Marshal(out)
}

// UnmarshalData decodes a stored blob for a matcher of the given kind.
// Unknown key types in the blob are ignored; missing ones come back empty.
func UnmarshalData(kind Kind, blob []byte) (Data, error) {
	var raw map[string]map[string]json.RawMessage
	if err := json.Unmarshal(blob, &raw); err != nil {
		return nil, fmt.Errorf("decode matcher data: %w", err)
	}
	d := NewData()
	for _, kt := range KeyTypes {
		for k, msg := range raw[string(kt)] {
			p, err := decodePayload(kind, msg)
			if err != nil {
				return nil, fmt.Errorf("%s/%s: %w", kt, k, err)
			}
			d[kt][k] = p
		}
	}
	return d, nil
}

func decodePayload(kind Kind, msg json.RawMessage) (Payload, error) {
	switch kind {
	case KindBlueprint:
		var e Efficiency
		if err := json.Unmarshal(msg, &e); err != nil {
			return nil, err
		}
		return e, nil
	case KindStructure:
		var id int64
		if err := json.Unmarshal(msg, &id); err != nil {
			return nil, err
		}
		return Facility{StructureID: id}, nil
	case KindProdBlock:
		var lvl int
		if err := json.Unmarshal(msg, &lvl); err != nil {
			return nil, err
		}
		return Block{Level: lvl}, nil
	}
	return nil, fmt.Errorf("%q: %w", kind, ErrInvalidKind)
}
