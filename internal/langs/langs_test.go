package langs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spectrumoj/judge/internal/langs"
)

func TestDefaultRegistry(t *testing.T) {
	r := langs.Default()

	python, ok := r.Get("python")
	require.True(t, ok)
	require.False(t, python.Compiled())
	require.Equal(t, "main.py", python.CodeFname)

	cpp, ok := r.Get("cpp")
	require.True(t, ok)
	require.True(t, cpp.Compiled())
	require.Equal(t, "main", cpp.CompiledFname)

	_, ok = r.Get("brainfuck")
	require.False(t, ok)
}

func TestLoadToml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "languages.toml")
	content := `
[[languages]]
id = "go"
name = "Go"
code_fname = "main.go"
compile_cmd = "/usr/bin/go build -o main main.go"
compiled_fname = "main"
exec_cmd = "./main"

[[languages]]
id = "lua"
name = "Lua"
code_fname = "main.lua"
exec_cmd = "/usr/bin/lua main.lua"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	r, err := langs.LoadToml(path)
	require.NoError(t, err)

	goLang, ok := r.Get("go")
	require.True(t, ok)
	require.True(t, goLang.Compiled())

	lua, ok := r.Get("lua")
	require.True(t, ok)
	require.False(t, lua.Compiled())
	require.Equal(t, "/usr/bin/lua main.lua", lua.ExecCmd)
}

func TestNewRegistryValidation(t *testing.T) {
	_, err := langs.NewRegistry([]langs.Language{
		{ID: "x", CodeFname: "x.x"},
	})
	require.Error(t, err, "exec_cmd is required")

	_, err = langs.NewRegistry([]langs.Language{
		{ID: "x", CodeFname: "x.x", ExecCmd: "./x", CompileCmd: "cc x.x"},
	})
	require.Error(t, err, "compiled language needs compiled_fname")

	_, err = langs.NewRegistry([]langs.Language{
		{ID: "x", CodeFname: "x.x", ExecCmd: "./x"},
		{ID: "x", CodeFname: "y.y", ExecCmd: "./y"},
	})
	require.Error(t, err, "duplicate id")
}
