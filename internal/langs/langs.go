package langs

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Language describes how to compile and run source code of one language
// inside a sandbox box.
type Language struct {
	ID        string `toml:"id"`
	Name      string `toml:"name"`
	CodeFname string `toml:"code_fname"`
	// CompileCmd is empty for interpreted languages.
	CompileCmd    string `toml:"compile_cmd,omitempty"`
	CompiledFname string `toml:"compiled_fname,omitempty"`
	ExecCmd       string `toml:"exec_cmd"`
}

func (l Language) Compiled() bool { return l.CompileCmd != "" }

type Registry struct {
	byID map[string]Language
}

func NewRegistry(languages []Language) (*Registry, error) {
	r := &Registry{byID: make(map[string]Language, len(languages))}
	for _, l := range languages {
		if l.ID == "" || l.CodeFname == "" || l.ExecCmd == "" {
			return nil, fmt.Errorf("language specification incomplete; require id, code_fname, exec_cmd (id=%q)", l.ID)
		}
		if l.Compiled() && l.CompiledFname == "" {
			return nil, fmt.Errorf("language %s has compile_cmd but no compiled_fname", l.ID)
		}
		if _, dup := r.byID[l.ID]; dup {
			return nil, fmt.Errorf("duplicate language id: %s", l.ID)
		}
		r.byID[l.ID] = l
	}
	return r, nil
}

func (r *Registry) Get(id string) (Language, bool) {
	l, ok := r.byID[id]
	return l, ok
}

type registryFile struct {
	Languages []Language `toml:"languages"`
}

// LoadToml reads a [[languages]] registry file.
func LoadToml(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read language registry: %w", err)
	}
	var root registryFile
	if err := toml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	return NewRegistry(root.Languages)
}

// Default covers the languages the judge ships with out of the box.
func Default() *Registry {
	r, err := NewRegistry([]Language{
		{
			ID:        "python",
			Name:      "Python 3",
			CodeFname: "main.py",
			ExecCmd:   "/usr/bin/python3 main.py",
		},
		{
			ID:            "c",
			Name:          "C 11 (gcc)",
			CodeFname:     "main.c",
			CompileCmd:    "/usr/bin/gcc main.c -o main -O2 -std=c11 -lm",
			CompiledFname: "main",
			ExecCmd:       "./main",
		},
		{
			ID:            "cpp",
			Name:          "C++ 17 (g++)",
			CodeFname:     "main.cpp",
			CompileCmd:    "/usr/bin/g++ main.cpp -o main -O2 -std=c++17",
			CompiledFname: "main",
			ExecCmd:       "./main",
		},
	})
	if err != nil {
		panic(err)
	}
	return r
}
