package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlack_OK(t *testing.T) {
	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		got = payload["text"]
		w.WriteHeader(200)
	}))
	defer ts.Close()

	s := NewSlack(ts.URL)
	require.NotNil(t, s)
	require.NoError(t, s.Send(context.Background(), "Title", "Hello"))
	assert.Equal(t, "*Title*\nHello", got)
}

func TestSlack_Non2xx(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer ts.Close()

	err := NewSlack(ts.URL).Send(context.Background(), "X", "Y")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestSlack_Disabled(t *testing.T) {
	s := NewSlack("")
	assert.Nil(t, s)
	assert.ErrorIs(t, s.Send(context.Background(), "X", "Y"), ErrSlackDisabled)
}
