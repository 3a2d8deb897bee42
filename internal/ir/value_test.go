package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	c := Canonical{}
	values := []IRValue{
		IRString("some text here"),
		IRString("multi\nline \"quoted\" text: with colon"),
		IRInt(99),
		IRFloat(1.5),
		IRFloat(2),
		IRBool(false),
		IRNull{},
		IRArray{IRString("a"), IRInt(1)},
		IRObject{
			"Text":    IRString("hello"),
			"Integer": IRInt(0),
			"Float":   IRFloat(0.25),
			"Nested":  IRObject{"list": IRArray{}},
		},
	}

	for _, v := range values {
		text, err := c.Encode(v)
		require.NoError(t, err)
		assert.NotContains(t, text, "\n")

		decoded, err := c.Decode(text)
		require.NoError(t, err)
		assert.True(t, Equal(v, decoded), "round trip of %s", text)

		again, err := c.Encode(decoded)
		require.NoError(t, err)
		assert.Equal(t, text, again)
	}
}

func TestCodecDecodeTypes(t *testing.T) {
	c := Canonical{}

	v, err := c.Decode(`1.0`)
	require.NoError(t, err)
	assert.Equal(t, IRFloat(1), v)

	v, err = c.Decode(`7`)
	require.NoError(t, err)
	assert.Equal(t, IRInt(7), v)

	v, err = c.Decode(`{"a":null}`)
	require.NoError(t, err)
	assert.Equal(t, IRObject{"a": IRNull{}}, v)
}

func TestCodecDecodeErrors(t *testing.T) {
	c := Canonical{}

	_, err := c.Decode("")
	require.Error(t, err)

	_, err = c.Decode(`{"a":`)
	require.Error(t, err)

	_, err = c.Decode(`"a" "b"`)
	require.Error(t, err)

	_, err = c.Decode(`99999999999999999999`)
	require.Error(t, err)
}

func TestDecodeString(t *testing.T) {
	s, err := DecodeString(Canonical{}, `"Hi"`)
	require.NoError(t, err)
	assert.Equal(t, "Hi", s)

	_, err = DecodeString(Canonical{}, `42`)
	require.Error(t, err)
}

func TestCloneIsDeep(t *testing.T) {
	orig := IRObject{
		"list": IRArray{IRString("a")},
		"obj":  IRObject{"k": IRInt(1)},
	}

	cp := CloneObject(orig)
	cp["list"].(IRArray)[0] = IRString("changed")
	cp["obj"].(IRObject)["k"] = IRInt(2)
	cp["new"] = IRBool(true)

	assert.Equal(t, IRString("a"), orig["list"].(IRArray)[0])
	assert.Equal(t, IRInt(1), orig["obj"].(IRObject)["k"])
	assert.NotContains(t, orig, "new")
	assert.Equal(t, IRObject{}, CloneObject(nil))
}

func TestFromGoStructUsesJSONTags(t *testing.T) {
	type button struct {
		Title string `json:"title"`
		Value string `json:"value"`
	}

	v, err := FromGo(button{Title: "One", Value: "1"})
	require.NoError(t, err)
	assert.Equal(t, IRObject{"title": IRString("One"), "value": IRString("1")}, v)
}

func TestIRObjectJSON(t *testing.T) {
	var obj IRObject
	require.NoError(t, json.Unmarshal([]byte(`{"b":1,"a":"x"}`), &obj))
	assert.Equal(t, IRObject{"a": IRString("x"), "b": IRInt(1)}, obj)

	data, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":1}`, string(data))

	require.Error(t, json.Unmarshal([]byte(`[1]`), &obj))
}
