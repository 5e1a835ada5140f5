package targeting

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetKeepsInsertionOrder(t *testing.T) {
	m := New(Pair{"pwtsid", "abc"}, Pair{"pwtpid", "pubmatic"}, Pair{"pwtecp", "2.50"})
	m.Set("pwtpid", "openx")

	assert.Equal(t, 3, m.Len())
	assert.Equal(t, []Pair{{"pwtsid", "abc"}, {"pwtpid", "openx"}, {"pwtecp", "2.50"}}, m.Pairs())
	v, ok := m.Get("pwtecp")
	assert.True(t, ok)
	assert.Equal(t, "2.50", v)
}

func TestNilMapReadsEmpty(t *testing.T) {
	var m *Map
	assert.Zero(t, m.Len())
	assert.Empty(t, m.Keywords())
	_, ok := m.Get("x")
	assert.False(t, ok)
	assert.Zero(t, m.Clone().Len())
}

func TestKeywords(t *testing.T) {
	m := New(Pair{"pwtbst", "1"}, Pair{"pwtecp", "2.50"}, Pair{"pwtsz", "320x50"})
	assert.Equal(t, "pwtbst:1,pwtecp:2.50,pwtsz:320x50", m.Keywords())

	assert.Equal(t, "pwtbst:1,pwtecp:2.50,pwtsz:320x50,gender:f", JoinKeywords(m, "gender:f"))
	assert.Equal(t, "gender:f", JoinKeywords(New(), "gender:f"))
	assert.Equal(t, "a:1", JoinKeywords(New(Pair{"a", "1"}), ""))
}

// Mediation SDK keyword joins produce ",gender:f" when targeting is empty.
// The host ad server treats the empty leading pair as noise, so none is emitted.
func TestJoinKeywordsEmptyTargetingHasNoLeadingComma(t *testing.T) {
	assert.Equal(t, "gender:f", JoinKeywords(New(), "gender:f"))
	assert.Equal(t, "", JoinKeywords(New(), ""))
}

func TestFromMap(t *testing.T) {
	m := FromMap(map[string]string{"b": "2", "a": "1"}, []string{"a", "missing", "b"})
	assert.Equal(t, "a:1,b:2", m.Keywords())
}

func TestUnmarshalPreservesDocumentOrder(t *testing.T) {
	var m Map
	err := json.Unmarshal([]byte(`{"zeta":"z","alpha":"a!","price":2.5,"deal":true,"skip":null}`), &m)
	require.NoError(t, err)
	assert.Equal(t, "zeta:z,alpha:a!,price:2.5,deal:true", m.Keywords())
}

func TestUnmarshalRejectsNestedValues(t *testing.T) {
	var m Map
	err := json.Unmarshal([]byte(`{"a":{"b":"c"}}`), &m)
	assert.Error(t, err)
}

func TestUnmarshalNull(t *testing.T) {
	var holder struct {
		Targeting *Map `json:"targeting"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"targeting":null}`), &holder))
	assert.Zero(t, holder.Targeting.Len())
}

func TestMarshalRoundTripKeepsOrder(t *testing.T) {
	m := New(Pair{"b", "2"}, Pair{"a", "1"}, Pair{"quote", `say "hi"`})
	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"b":"2","a":"1","quote":"say \"hi\""}`, string(data))
	assert.Equal(t, `{"b":"2","a":"1","quote":"say \"hi\""}`, string(data))
}
