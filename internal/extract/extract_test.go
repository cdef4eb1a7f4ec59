package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"ocr confusions", `1l-OO5OOO(O2)1A`, "1|-005000|02|1A"},
		{"spaces dropped", "11 - 005000", "11-005000"},
		{"brackets and slashes", `11-005000[02]1/`, "11-005000|02|1|"},
		{"clean text untouched", "11-005000-02-1", "11-005000-02-1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.in))
		})
	}
}

func TestExtract(t *testing.T) {
	e := MustNew(nil)

	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "dashed id embedded in noise",
			in:   "A4 DRAWING\nREV 3\n11-005000-02-1\nSCALE 1:50",
			want: "11-005000-02-1",
		},
		{
			name: "compact id reflowed",
			in:   "stamp 11-0050000021 end",
			want: "11-005000-00-21",
		},
		{
			name: "piped separators restored and stripped",
			in:   "11-00500010211A",
			want: "11-005000-02-1A",
		},
		{
			name: "pipes read as brackets",
			in:   "11-005000(02)1A",
			want: "11-005000-02-1A",
		},
		{
			name: "no id",
			in:   "HANDLE WITH CARE",
			want: "",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, e.Extract(tc.in))
		})
	}
}

func TestNewRejectsBadPattern(t *testing.T) {
	_, err := New([]string{`\d{2}-(`})
	require.Error(t, err)
}

func TestNewCustomPatterns(t *testing.T) {
	e, err := New([]string{`\d{3}/\d{3}`})
	require.NoError(t, err)
	assert.Equal(t, "123/456", e.Match("id 123/456"))
	// default patterns are replaced, not appended
	assert.Equal(t, "", e.Match("11-005000-02-1"))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "11-005000-00-21", Format("11-0050000021"))
	assert.Equal(t, "short", Format("short"))
	assert.Equal(t, "11-005000-02-1", Format("11-005000-02-1"), "already formatted stays put")
}

func TestMostCommon(t *testing.T) {
	cases := []struct {
		name string
		in   []string
		want string
	}{
		{"majority wins", []string{"a", "b", "b", "", "b", "a"}, "b"},
		{"empty votes ignored", []string{"", "", "x"}, "x"},
		{"tie breaks to first seen", []string{"a", "b", "b", "a"}, "a"},
		{"all empty", []string{"", ""}, ""},
		{"nil", nil, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MostCommon(tc.in))
		})
	}
}
