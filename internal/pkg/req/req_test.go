package req

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chitchat/internal/pkg/errs"
)

func TestParseFormURLEncoded(t *testing.T) {
	form := url.Values{"name": {"alice"}, "channel": {"lobby"}}
	r := httptest.NewRequest(http.MethodPost, "/auth", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	require.Nil(t, ParseForm(httptest.NewRecorder(), r))
	assert.Equal(t, "alice", r.FormValue("name"))
	assert.Equal(t, "lobby", r.FormValue("channel"))
}

func TestParseFormMultipart(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("name", "bob"))
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/auth", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())

	require.Nil(t, ParseForm(httptest.NewRecorder(), r))
	assert.Equal(t, "bob", r.FormValue("name"))
}

func TestParseFormRejectsJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/auth", strings.NewReader(`{"name":"x"}`))
	r.Header.Set("Content-Type", "application/json")

	customErr := ParseForm(httptest.NewRecorder(), r)
	require.NotNil(t, customErr)
	assert.Equal(t, errs.ErrUnsupportedMediaType, customErr.Code)
}

func TestParseFormTooLarge(t *testing.T) {
	big := url.Values{"name": {strings.Repeat("a", int(MaxFormBodySize)+10)}}
	r := httptest.NewRequest(http.MethodPost, "/auth", strings.NewReader(big.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	customErr := ParseForm(httptest.NewRecorder(), r)
	require.NotNil(t, customErr)
	assert.Equal(t, errs.ErrRequestEntityTooLarge, customErr.Code)
}
