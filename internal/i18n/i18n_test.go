package i18n

import (
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBundle(t *testing.T) {
	b, err := Default("en")
	require.NoError(t, err)
	assert.Equal(t, []string{"en", "es"}, b.Locales())
	assert.Equal(t, "Category not found", b.T("en", "category.not_found"))
	assert.Equal(t, "Unable to load items.", b.T("en", "category.error"))
	assert.Equal(t, "Categoría no encontrada", b.T("es", "category.not_found"))
}

func TestLocalesHaveTheSameKeys(t *testing.T) {
	b, err := Default("en")
	require.NoError(t, err)
	for key := range b.tables["en"] {
		_, ok := b.tables["es"][key]
		assert.True(t, ok, "es is missing %q", key)
	}
}

func TestFallbacks(t *testing.T) {
	b, err := Load(fstest.MapFS{
		"en.json": {Data: []byte(`{"greeting":"Hello","only.en":"English"}`)},
		"fr.json": {Data: []byte(`{"greeting":"Bonjour"}`)},
	}, "en")
	require.NoError(t, err)

	assert.Equal(t, "Bonjour", b.T("fr", "greeting"))
	assert.Equal(t, "English", b.T("fr", "only.en"))
	assert.Equal(t, "English", b.T("de", "only.en"))
	assert.Equal(t, "missing.key", b.T("fr", "missing.key"))
}

func TestLoadRequiresDefault(t *testing.T) {
	_, err := Load(fstest.MapFS{"fr.json": {Data: []byte(`{}`)}}, "en")
	require.Error(t, err)
}

func TestNegotiate(t *testing.T) {
	b, err := Default("en")
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/", nil)
	assert.Equal(t, "en", b.Negotiate(r))

	r = httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Accept-Language", "es-MX,es;q=0.9,en;q=0.5")
	assert.Equal(t, "es", b.Negotiate(r))

	r = httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Accept-Language", "ja")
	assert.Equal(t, "en", b.Negotiate(r))

	r = httptest.NewRequest("GET", "/?lang=es", nil)
	r.Header.Set("Accept-Language", "en")
	assert.Equal(t, "es", b.Negotiate(r))

	r = httptest.NewRequest("GET", "/?lang=xx", nil)
	assert.Equal(t, "en", b.Negotiate(r))
}
