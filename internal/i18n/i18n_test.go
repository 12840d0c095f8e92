package i18n

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestMatchPrefersFirstKnownPreference(t *testing.T) {
	svc := New()

	assert.Equal(t, language.Portuguese, svc.Match("pt"))
	assert.Equal(t, language.Portuguese, svc.Match("", "pt-BR,en;q=0.5"))
	assert.Equal(t, language.English, svc.Match("en", "pt"))
	assert.Equal(t, language.English, svc.Match("zz-invalid-"))
	assert.Equal(t, language.English, svc.Match())
}

func TestTranslatorFallsBackToKey(t *testing.T) {
	svc := New()

	pt := svc.Translator(language.Portuguese)
	assert.Equal(t, "Redes", pt.T("Networks"))
	assert.Equal(t, "sair (jdoe)", pt.T("logout (%s)", "jdoe"))
	assert.Equal(t, "Untranslated", pt.T("Untranslated"))

	en := svc.Translator(language.English)
	assert.Equal(t, "Networks", en.T("Networks"))
	assert.Equal(t, "logout (jdoe)", en.T("logout (%s)", "jdoe"))
}

func TestChoicesAndLocations(t *testing.T) {
	svc := New()

	assert.True(t, svc.HasLanguage("en"))
	assert.True(t, svc.HasLanguage("pt"))
	assert.False(t, svc.HasLanguage("de"))

	zones := svc.Timezones()
	assert.NotEmpty(t, zones)
	for i := 1; i < len(zones); i++ {
		assert.LessOrEqual(t, strings.ToLower(zones[i-1].Label), strings.ToLower(zones[i].Label))
	}

	assert.Equal(t, time.UTC, svc.Location(""))
	assert.Equal(t, time.UTC, svc.Location("Nowhere/Special"))
	lisbon := svc.Location("Europe/Lisbon")
	assert.Equal(t, "Europe/Lisbon", lisbon.String())
	assert.Same(t, lisbon, svc.Location("Europe/Lisbon"))
}
