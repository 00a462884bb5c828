package alertrule

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestEval(t *testing.T) {
	body := decode(t, `{"code":1,"msg":"fail","ok":false,"items":[],"data":{"users":[{"name":"a"}],"n":null},"count":"3"}`)

	cases := []struct {
		rule string
		want bool
	}{
		{"response.code != 0", true},
		{"response.code === 1", true},
		{"response.code == '1'", true},
		{"response.code === '1'", false},
		{"response.msg === \"fail\"", true},
		{"!response.ok", true},
		{"response.items.length === 0", true},
		{"response.data.users[0].name == 'a'", true},
		{"response['data']['users'].length > 0 && response.code >= 1", true},
		{"response.missing === undefined", true},
		{"response.data.n === null", true},
		{"response.data.n == undefined", true},
		{"response.data.n === undefined", false},
		{"response.count > 2", true},
		{"-response.code < 0", true},
		{"(response.code == 0 || response.ok) && true", false},
		{"response.data.users[5] === undefined", true},
		{"response.msg", true},
		{"response.items", true},
	}
	for _, c := range cases {
		r, err := Compile(c.rule)
		require.NoError(t, err, c.rule)
		got, err := r.Eval(body)
		require.NoError(t, err, c.rule)
		assert.Equal(t, c.want, got, c.rule)
	}
}

func TestEval_TextBody(t *testing.T) {
	r, err := Compile("response.length > 3 && response != 'ok'")
	require.NoError(t, err)
	got, err := r.Eval("maintenance")
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEval_StringsCountCharacters(t *testing.T) {
	body := decode(t, `{"name":"héllo"}`)
	for _, rule := range []string{
		"response.name.length === 5",
		`response.name[1] === "é"`,
		"response.name[4] === 'o'",
		"response.name[5] === undefined",
	} {
		r, err := Compile(rule)
		require.NoError(t, err, rule)
		got, err := r.Eval(body)
		require.NoError(t, err, rule)
		assert.True(t, got, rule)
	}
}

func TestEval_ReadOfNullFails(t *testing.T) {
	r, err := Compile("response.data.n.value == 1")
	require.NoError(t, err)
	_, err = r.Eval(decode(t, `{"data":{"n":null}}`))
	assert.True(t, errors.Is(err, ErrEval))
}

func TestCompile_Rejects(t *testing.T) {
	bad := []string{
		"",
		"response.code = 1",
		"alert('x')",
		"response.code(",
		"fetch.x",
		"response.",
		"'unterminated",
		"response.code != 0 response",
		"1.2.3 == 1",
	}
	for _, src := range bad {
		_, err := Compile(src)
		assert.ErrorIs(t, err, ErrSyntax, src)
	}
}

func TestCompile_DepthLimit(t *testing.T) {
	src := ""
	for i := 0; i < 100; i++ {
		src += "("
	}
	src += "1"
	for i := 0; i < 100; i++ {
		src += ")"
	}
	_, err := Compile(src)
	assert.ErrorIs(t, err, ErrSyntax)
}
