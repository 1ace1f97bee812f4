package file

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    func(dir string) []string
	}{
		{
			name:    "empty",
			content: "",
			want:    func(string) []string { return nil },
		},
		{
			name:    "comments and blanks",
			content: "\n# owners\nowners.csv\n   # indented\n\n   sub/inspections.csv  \n",
			want: func(dir string) []string {
				return []string{filepath.Join(dir, "owners.csv"), filepath.Join(dir, "sub", "inspections.csv")}
			},
		},
		{
			name:    "absolute paths kept",
			content: "/data/2024.csv\nrel.csv\n",
			want: func(dir string) []string {
				return []string{"/data/2024.csv", filepath.Join(dir, "rel.csv")}
			},
		},
		{
			name:    "crlf",
			content: "a.csv\r\nb.csv\r\n",
			want: func(dir string) []string {
				return []string{filepath.Join(dir, "a.csv"), filepath.Join(dir, "b.csv")}
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			path := filepath.Join(dir, "inputs.txt")
			require.NoError(t, os.WriteFile(path, []byte(tc.content), 0o644))
			got, err := ReadList(path)
			require.NoError(t, err)
			assert.Equal(t, tc.want(dir), got)
		})
	}
}

func TestReadList_Missing(t *testing.T) {
	t.Parallel()

	_, err := ReadList(filepath.Join(t.TempDir(), "nope.txt"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
