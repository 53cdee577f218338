package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		maxLen  int
		wantErr error
	}{
		{"plain text", "Hallo, ich brauche eine neue Website.", 0, nil},
		{"empty", "", 0, ErrEmpty},
		{"whitespace only", "   \n\t ", 0, ErrEmpty},
		{"too long", strings.Repeat("a", 2001), 2000, ErrTooLong},
		{"exactly max", strings.Repeat("a", 2000), 2000, nil},
		{"javascript url", "click javascript:alert(1)", 0, ErrDisallowedContent},
		{"data url", "see data:text/html;base64,xx", 0, ErrDisallowedContent},
		{"vbscript", "vbscript:msgbox", 0, ErrDisallowedContent},
		{"event handler", `<img src=x onerror=alert(1)>`, 0, ErrDisallowedContent},
		{"iframe", "<iframe src='x'>", 0, ErrDisallowedContent},
		{"script tag", "<script>alert(1)</script>", 0, ErrDisallowedContent},
		{"script tag with spaces", "< script >alert(1)", 0, ErrDisallowedContent},
		{"object tag", "<object data='x'>", 0, ErrDisallowedContent},
		{"embed tag", "<embed src='x'>", 0, ErrDisallowedContent},
		{"uppercase vector", "JAVASCRIPT:void(0)", 0, ErrDisallowedContent},
		{"invalid utf8", string([]byte{0xff, 0xfe}), 0, ErrInvalidUTF8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.input, tt.maxLen)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidateDoesNotEchoPattern(t *testing.T) {
	err := Validate("<script>alert(1)</script>", 0)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "script")
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"plain text unchanged", "Hallo Welt", 0, "Hallo Welt"},
		{"strips tags", "<b>wichtig</b> und <i>kursiv</i>", 0, "wichtig und kursiv"},
		{"strips attributes with tag", `<a href="http://x">link</a>`, 0, "link"},
		{"trims whitespace", "  abc  ", 0, "abc"},
		{"truncates", "abcdef", 3, "abc"},
		{"keeps text of nested markup", "<div><p>text</p></div>", 0, "text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.input, tt.maxLen))
		})
	}
}

func TestSanitizeTruncatesOnRuneBoundary(t *testing.T) {
	// "ä" is two bytes; cutting at 3 must not split it.
	out := Sanitize("aäb", 3)
	assert.Equal(t, "aä", out)
}
