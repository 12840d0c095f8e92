package config

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseINI_SectionsAndComments(t *testing.T) {
	input := `# header
[ilog]
# the name
cookie_name = ilog_session
flag

[gravatar]
url = "http://example.com/\"x\""
# trailing
`
	parsed, err := parseINI(strings.NewReader(input), "ilog")
	require.NoError(t, err)

	assert.Equal(t, "ilog_session", parsed.values["cookie_name"])
	assert.Equal(t, "", parsed.values["flag"])
	assert.Equal(t, `http://example.com/"x"`, parsed.values["gravatar/url"])
	assert.Equal(t, "# header\n", parsed.comments[sectionCommentKey("ilog")])
	assert.Equal(t, "# the name\n", parsed.comments["cookie_name"])
	assert.Equal(t, "# trailing\n", parsed.comments[endCommentKey])
}

func TestWriteINI_RoundTrip(t *testing.T) {
	values := map[string]string{
		"cookie_name":      "ilog_session",
		"email_signature":  "line one\nline two",
		"gravatar/rating":  "g",
		"rpxnow/api_key":   " padded ",
		"maintenance_mode": "false",
	}
	comments := map[string]string{
		sectionCommentKey("ilog"): "# header\n\n",
		"cookie_name":             "# cookie\n",
	}

	var buf bytes.Buffer
	require.NoError(t, writeINI(&buf, "ilog", values, comments))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "# header\n\n[ilog]\n"))
	assert.Less(t, strings.Index(out, "[gravatar]"), strings.Index(out, "[rpxnow]"))

	parsed, err := parseINI(strings.NewReader(out), "ilog")
	require.NoError(t, err)
	assert.Equal(t, values, parsed.values)
	assert.Equal(t, "# cookie\n", parsed.comments["cookie_name"])
}

func TestQuoteValue(t *testing.T) {
	assert.Equal(t, "plain", quoteValue("plain"))
	assert.Equal(t, `"a\nb"`, quoteValue("a\nb"))
	assert.Equal(t, `" x"`, quoteValue(" x"))
	assert.Equal(t, "a\nb", unquoteValue(`"a\nb"`))
	assert.Equal(t, "it's", unquoteValue(`'it\'s'`))
}
