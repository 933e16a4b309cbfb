package scenario

import (
	"fmt"
	"os"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pelletier/go-toml/v2"

	"github.com/spectrumoj/judge/internal/langs"
	"github.com/spectrumoj/judge/internal/problems"
)

// SpecTest is a single test case in the scenario file.
type SpecTest struct {
	In  string `toml:"in"`
	Ans string `toml:"ans"`
}

// SpecLimits describes resource limits for a scenario.
type SpecLimits struct {
	CpuMs     int64 `toml:"cpu_ms"`
	MemoryKiB int64 `toml:"memory_kib"`
}

// SpecScript is inline helper code (a validator or a generator).
type SpecScript struct {
	Code   string `toml:"code"`
	LangID string `toml:"lang_id"`
}

// SpecExpect describes the expected outcome of a scenario.
type SpecExpect struct {
	Verdict      string   `toml:"verdict"`
	TestVerdicts []string `toml:"test_verdicts"`
}

type specScenario struct {
	Name      string      `toml:"name"`
	Code      string      `toml:"code"`
	LangID    string      `toml:"lang_id"`
	Tests     []SpecTest  `toml:"tests"`
	Limits    SpecLimits  `toml:"limits"`
	Validator *SpecScript `toml:"validator"`
	Expect    SpecExpect  `toml:"expect"`
}

type specRoot struct {
	Languages []langs.Language `toml:"languages"`
	Scenarios []specScenario   `toml:"scenarios"`
}

// Case is a runnable scenario converted from TOML. Test files are
// materialized under a temp directory owned by the caller.
type Case struct {
	Name    string
	Code    string
	LangID  string
	Problem problems.Problem
	Expect  SpecExpect
}

// Suite is the result of parsing a scenario file.
type Suite struct {
	Langs *langs.Registry
	Cases []Case
}

// Parse reads a scenario TOML file and converts it to runnable cases. Test
// inputs and answers are written as files under dir.
func Parse(path string, dir string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	var root specRoot
	if err := toml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	registry := langs.Default()
	if len(root.Languages) > 0 {
		registry, err = langs.NewRegistry(root.Languages)
		if err != nil {
			return nil, err
		}
	}

	cases := make([]Case, 0, len(root.Scenarios))
	for i, sc := range root.Scenarios {
		if sc.Name == "" {
			sc.Name = fmt.Sprintf("scenario-%d", i+1)
		}
		if sc.Code == "" {
			return nil, fmt.Errorf("scenario %q is missing code", sc.Name)
		}
		if _, ok := registry.Get(sc.LangID); !ok {
			return nil, fmt.Errorf("scenario %q: unknown language id %q", sc.Name, sc.LangID)
		}
		if len(sc.Tests) == 0 {
			return nil, fmt.Errorf("scenario %q has no tests", sc.Name)
		}

		limits := problems.Limits{
			CpuSec:    float64(sc.Limits.CpuMs) / 1000.0,
			MemoryKiB: sc.Limits.MemoryKiB,
		}
		if limits.CpuSec == 0 {
			limits.CpuSec = 2.0
		}
		if limits.MemoryKiB == 0 {
			limits.MemoryKiB = 256 * 1024
		}

		prob := problems.Problem{
			ID:             fmt.Sprintf("scenario-%d", i+1),
			Limits:         limits,
			AllowedLangIDs: mapset.NewSet[string](),
		}

		for j, t := range sc.Tests {
			inPath, err := writeTestFile(dir, i, j, "in", t.In)
			if err != nil {
				return nil, err
			}
			ansPath, err := writeTestFile(dir, i, j, "ans", t.Ans)
			if err != nil {
				return nil, err
			}
			prob.Tests = append(prob.Tests, problems.TestCase{
				Ordinal:    j + 1,
				InputPath:  inPath,
				AnswerPath: ansPath,
			})
		}

		if sc.Validator != nil {
			if _, ok := registry.Get(sc.Validator.LangID); !ok {
				return nil, fmt.Errorf("scenario %q validator: unknown language id %q", sc.Name, sc.Validator.LangID)
			}
			prob.Validator = &problems.Script{
				Code:   sc.Validator.Code,
				LangID: sc.Validator.LangID,
			}
		}

		cases = append(cases, Case{
			Name:    sc.Name,
			Code:    sc.Code,
			LangID:  sc.LangID,
			Problem: prob,
			Expect:  sc.Expect,
		})
	}

	return &Suite{Langs: registry, Cases: cases}, nil
}

// Matches reports whether a finished submission matches the expectation.
// Unset expectation fields match anything.
func (e SpecExpect) Matches(verdict string, testVerdicts []string) error {
	if e.Verdict != "" && e.Verdict != verdict {
		return fmt.Errorf("expected verdict %s, got %s", e.Verdict, verdict)
	}
	for i, want := range e.TestVerdicts {
		if want == "" {
			continue
		}
		if i >= len(testVerdicts) {
			return fmt.Errorf("expected verdict %s for test %d, got no result", want, i+1)
		}
		if testVerdicts[i] != want {
			return fmt.Errorf("expected verdict %s for test %d, got %s", want, i+1, testVerdicts[i])
		}
	}
	return nil
}

func writeTestFile(dir string, scenario, test int, kind, content string) (string, error) {
	path := fmt.Sprintf("%s/s%d-t%d.%s", dir, scenario+1, test+1, kind)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write test file: %w", err)
	}
	return path, nil
}
