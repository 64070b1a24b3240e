package paths

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeYard/DevSession/backend/internal/shared/types"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{".", "/"},
		{"/", "/"},
		{"index.html", "/index.html"},
		{"/index.html", "/index.html"},
		{"src/app.js", "/src/app.js"},
		{"src//app.js", "/src/app.js"},
		{"./src/./app.js", "/src/app.js"},
		{"a/../b.txt", "/b.txt"},
		{"a/b/../../c", "/c"},
		{"dir\\file.txt", "/dir/file.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Normalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeRejectsEscapes(t *testing.T) {
	escapes := []string{
		"..",
		"../x",
		"/../x",
		"a/../../x",
		"../../etc/passwd",
		"..\\..\\etc\\passwd",
	}

	for _, p := range escapes {
		t.Run(p, func(t *testing.T) {
			_, err := Normalize(p)
			assert.True(t, types.IsInvalidArgument(err), "expected invalid_argument for %q", p)
		})
	}
}

func TestResolve(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "srv", "sessions", "sess_x")

	disk, norm, err := Resolve(root, "src/main.go")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "src", "main.go"), disk)
	assert.Equal(t, "/src/main.go", norm)

	disk, norm, err = Resolve(root, "/")
	require.NoError(t, err)
	assert.Equal(t, root, disk)
	assert.Equal(t, "/", norm)

	_, _, err = Resolve(root, "../sess_y/file")
	assert.True(t, types.IsInvalidArgument(err))
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "/a", Join("/", "a"))
	assert.Equal(t, "/a/b", Join("/a", "b"))
}
