package matcher

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHasAllTables(t *testing.T) {
	m := New("x", 1, KindBlueprint)
	require.Len(t, m.Data, 5)
	for _, kt := range KeyTypes {
		assert.NotNil(t, m.Data[kt])
		assert.Empty(t, m.Data[kt])
	}
}

func TestParseKindAndKeyType(t *testing.T) {
	for _, k := range []string{"bp", "structure", "prod_block"} {
		_, err := ParseKind(k)
		assert.NoError(t, err, k)
	}
	_, err := ParseKind("reaction")
	assert.ErrorIs(t, err, ErrInvalidKind)

	for _, k := range []string{"bp", "market_group", "group", "meta", "category"} {
		_, err := ParseKeyType(k)
		assert.NoError(t, err, k)
	}
	_, err = ParseKeyType("item")
	assert.ErrorIs(t, err, ErrUnknownKeyType)
}

func TestEfficiencyFromLevels(t *testing.T) {
	tests := []struct {
		me, te int
		want   Efficiency
	}{
		{0, 0, Efficiency{ME: 1, TE: 1}},
		{10, 20, Efficiency{ME: 0.9, TE: 0.8}},
		{3, 7, Efficiency{ME: 0.97, TE: 0.93}},
	}
	for _, tt := range tests {
		got, err := EfficiencyFromLevels(tt.me, tt.te)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
	_, err := EfficiencyFromLevels(11, 0)
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestUnmarshalStoredLayout(t *testing.T) {
	blob := []byte(`{"bp":{"Rifter Blueprint":{"mater_eff":0.9,"time_eff":0.8}},"market_group":{},"group":{},"meta":{},"category":{}}`)
	d, err := UnmarshalData(KindBlueprint, blob)
	require.NoError(t, err)
	assert.Equal(t, Efficiency{ME: 0.9, TE: 0.8}, d[KeyBlueprint]["Rifter Blueprint"])

	// Older blobs without some tables still decode with all tables present.
	d, err = UnmarshalData(KindStructure, []byte(`{"group":{"Frigate":1035466617946}}`))
	require.NoError(t, err)
	assert.Equal(t, Facility{StructureID: 1035466617946}, d[KeyGroup]["Frigate"])
	assert.NotNil(t, d[KeyCategory])

	_, err = UnmarshalData(KindProdBlock, []byte(`{"group":{"Frigate":"high"}}`))
	assert.Error(t, err)
}

func TestMarshalDataBareIntegers(t *testing.T) {
	d := NewData()
	d[KeyMeta]["Faction"] = Block{Level: 2}
	blob, err := MarshalData(d)
	require.NoError(t, err)
	assert.Contains(t, string(blob), `"meta":{"Faction":2}`)
}

func TestPayloadValidate(t *testing.T) {
	bad := []Payload{
		Efficiency{ME: 0, TE: 1},
		Efficiency{ME: 1.1, TE: 1},
		Facility{StructureID: 0},
		Block{Level: -1},
	}
	for _, p := range bad {
		if err := p.validate(); !errors.Is(err, ErrInvalidPayload) {
			t.Errorf("%#v.validate() = %v, want ErrInvalidPayload", p, err)
		}
	}
}
