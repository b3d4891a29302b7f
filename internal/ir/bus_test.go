package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBus(t *testing.T) {
	b, err := ParseBus("1_001")
	require.NoError(t, err)
	assert.Equal(t, Bus{true, false, false, true}, b)
	assert.Equal(t, "1001", b.String())
	assert.Equal(t, 4, b.Width())

	_, err = ParseBus("10x")
	assert.Error(t, err)
}

func TestBusEqualAndClone(t *testing.T) {
	a := MustParseBus("101")
	c := a.Clone()
	assert.True(t, a.Equal(c))

	c[0] = false
	assert.False(t, a.Equal(c), "clone must not alias")
	assert.False(t, a.Equal(MustParseBus("10")))
	assert.Nil(t, Bus(nil).Clone())
}

func TestNewBus(t *testing.T) {
	assert.Equal(t, "000", NewBus(3).String())
	assert.Equal(t, 0, NewBus(-1).Width())
}

func TestBusJSON(t *testing.T) {
	type wrapper struct {
		Value Bus `json:"value"`
	}
	data, err := json.Marshal(wrapper{Value: MustParseBus("0011")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":"0011"}`, string(data))

	var w wrapper
	require.NoError(t, json.Unmarshal(data, &w))
	assert.Equal(t, "0011", w.Value.String())

	assert.Error(t, json.Unmarshal([]byte(`{"value":3}`), &w))
}

func TestMultiplicity(t *testing.T) {
	m := Multiplexable()
	assert.False(t, m.IsFixed())
	assert.Equal(t, 1, m.Width())
	assert.Equal(t, "multiplexable", m.String())

	f := Fixed(8)
	assert.True(t, f.IsFixed())
	assert.Equal(t, 8, f.Width())
	assert.Equal(t, "fixed(8)", f.String())
}

func TestModelErrorHelpers(t *testing.T) {
	err := NewWidthMismatch(IntrinsicAnd, "A has %d bits, B has %d", 2, 3)
	assert.True(t, IsWidthMismatch(err))
	assert.False(t, IsWidthConflict(err))
	assert.Equal(t, "WIDTH_MISMATCH: A has 2 bits, B has 3", err.Error())

	cycle := NewCycleError("Top", []NodeID{"n2", "n1"})
	assert.True(t, IsCycleError(cycle))
	assert.Equal(t, "n1,n2", cycle.Details["stuck_nodes"])
	assert.Contains(t, cycle.Error(), "component=Top")

	assert.True(t, IsMissingEntity(NewMissingEntity("node", "x")))
	assert.True(t, IsRecursionLimit(NewRecursionLimit("Loop", 4)))
	assert.True(t, IsWidthConflict(NewWidthConflict("p", "q", 1, 2)))
}

func TestIntrinsicTypeValid(t *testing.T) {
	for _, k := range IntrinsicTypes {
		assert.True(t, k.Valid(), k)
	}
	assert.False(t, IntrinsicType("NAND").Valid())
}
