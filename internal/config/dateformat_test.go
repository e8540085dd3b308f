package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateLayout(t *testing.T) {
	tests := []struct {
		format string
		value  string
		want   time.Time
	}{
		{"d.m.Y", "01.03.2024", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"d.m.Y", "1.3.2024", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"Y-m-d", "2024-12-31", time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)},
		{"d/m/y", "15/01/24", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"d.m.Y H:i", "05.06.2023 14:07", time.Date(2023, 6, 5, 14, 7, 0, 0, time.UTC)},
		{"!d-M-Y", "15-Jan-2024", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{`Y-m-d\TH:i:s`, "2024-01-15T08:09:10", time.Date(2024, 1, 15, 8, 9, 10, 0, time.UTC)},
	}
	for _, tt := range tests {
		layout, err := DateLayout(tt.format)
		require.NoError(t, err, tt.format)
		got, err := time.Parse(layout, tt.value)
		require.NoError(t, err, "format %q layout %q", tt.format, layout)
		assert.Equal(t, tt.want, got, tt.format)
	}
}

func TestDateLayout_Unsupported(t *testing.T) {
	for _, f := range []string{"", "U", "Y-m-d e"} {
		_, err := DateLayout(f)
		assert.Error(t, err, "format %q", f)
	}
}

func TestCompilePattern(t *testing.T) {
	tests := []struct {
		pattern string
		in      string
		want    bool
	}{
		{"/SALARY/", "SALARY MARCH", true},
		{"/SALARY/", "salary", false},
		{"/salary/i", "SALARY", true},
		{"#^POS #", "POS 1234 SHOP", true},
		{"{^a.b$}s", "a\nb", true},
		{"/café/u", "café", true},
		{"plain|expr", "an expr", true},
	}
	for _, tt := range tests {
		re, err := CompilePattern(tt.pattern)
		require.NoError(t, err, tt.pattern)
		assert.Equal(t, tt.want, re.MatchString(tt.in), "%s ~ %q", tt.pattern, tt.in)
	}
}
