// Package testrunner implements interp.TestRunnerAdapter by shelling out
// to the Go toolchain. Grounded on the teacher's graph/tool.Tool contract
// (a single narrow capability behind Name()+Call()-style methods,
// validated input, context-respecting execution) adapted here to the
// three fixed capabilities the orchestrator needs: running tests,
// checking types, and validating a JSON document against a schema. No
// library in the example pack wraps `go test`/`go vet` invocation or
// output parsing, so this package is stdlib-only (os/exec, encoding/json,
// regexp) by necessity rather than by default.
package testrunner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/dshills/orchestrator-core/core"
	"github.com/dshills/orchestrator-core/interp"
)

// GoTest runs `go test` and `go vet` in a working directory via the
// standard Go toolchain.
type GoTest struct {
	WorkDir string
}

// New builds a GoTest adapter rooted at workDir.
func New(workDir string) *GoTest {
	return &GoTest{WorkDir: workDir}
}

var (
	testSummaryRe = regexp.MustCompile(`^--- (PASS|FAIL): `)
	coverageRe    = regexp.MustCompile(`coverage: (\d+\.\d+)% of statements`)
)

// RunTests implements interp.TestRunnerAdapter. pattern defaults to "./..."
// when empty; wantCoverage adds -cover and parses the reported percentage.
func (g *GoTest) RunTests(ctx context.Context, pattern string, wantCoverage bool) (core.TestResult, error) {
	if pattern == "" {
		pattern = "./..."
	}

	args := []string{"test", "-v", pattern}
	if wantCoverage {
		args = append(args, "-cover")
	}

	cmd := exec.CommandContext(ctx, "go", args...)
	cmd.Dir = g.WorkDir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	runErr := cmd.Run()

	result := parseGoTestOutput(out.String())
	if wantCoverage {
		if pct, ok := parseCoverage(out.String()); ok {
			result.HasCoverage = true
			result.Coverage = pct
		}
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return core.TestResult{}, fmt.Errorf("run go test: %w", runErr)
		}
		// A non-zero exit from `go test` means some tests failed, which is
		// a reportable TestResult, not an adapter error.
	}

	return result, nil
}

func parseGoTestOutput(output string) core.TestResult {
	var result core.TestResult
	for _, line := range splitLines(output) {
		m := testSummaryRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		result.TestsTotal++
		if m[1] == "PASS" {
			result.TestsPassed++
		} else {
			result.TestsFailed++
		}
	}
	result.Passed = result.TestsFailed == 0 && result.TestsTotal > 0
	return result
}

func parseCoverage(output string) (float64, bool) {
	m := coverageRe.FindStringSubmatch(output)
	if m == nil {
		return 0, false
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return pct, true
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

// CheckTypes implements interp.TestRunnerAdapter by running `go vet`,
// which is this ecosystem's closest equivalent to a standalone
// type-checker given the Go compiler does not expose one separately.
func (g *GoTest) CheckTypes(ctx context.Context) (interp.TypeCheckResult, error) {
	cmd := exec.CommandContext(ctx, "go", "vet", "./...")
	cmd.Dir = g.WorkDir
	var out bytes.Buffer
	cmd.Stderr = &out
	err := cmd.Run()

	if err == nil {
		return interp.TypeCheckResult{Passed: true}, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return interp.TypeCheckResult{}, fmt.Errorf("run go vet: %w", err)
	}
	return interp.TypeCheckResult{Passed: false, Errors: splitLines(out.String())}, nil
}

// schemaDoc is the minimal subset of JSON Schema this validator enforces:
// required top-level properties and their JSON types. Grounded on the
// spec's use of ValidateSchema for structural checks on generated
// artifacts (specs, requirements documents), not arbitrary JSON Schema.
type schemaDoc struct {
	Type       string                `json:"type"`
	Required   []string              `json:"required"`
	Properties map[string]schemaProp `json:"properties"`
}

type schemaProp struct {
	Type string `json:"type"`
}

// ValidateSchema implements interp.TestRunnerAdapter. It loads schemaPath
// and dataPath from the filesystem, interprets the schema as the narrow
// required-properties-and-types subset above, and reports every
// violation rather than failing fast on the first one.
func (g *GoTest) ValidateSchema(ctx context.Context, schemaPath, dataPath string) (interp.SchemaValidationResult, error) {
	if ctx.Err() != nil {
		return interp.SchemaValidationResult{}, ctx.Err()
	}

	schemaBytes, err := readWorkDirFile(g.WorkDir, schemaPath)
	if err != nil {
		return interp.SchemaValidationResult{}, fmt.Errorf("read schema: %w", err)
	}
	dataBytes, err := readWorkDirFile(g.WorkDir, dataPath)
	if err != nil {
		return interp.SchemaValidationResult{}, fmt.Errorf("read data: %w", err)
	}

	var schema schemaDoc
	if err := json.Unmarshal(schemaBytes, &schema); err != nil {
		return interp.SchemaValidationResult{}, fmt.Errorf("parse schema: %w", err)
	}
	var data map[string]any
	if err := json.Unmarshal(dataBytes, &data); err != nil {
		return interp.SchemaValidationResult{Valid: false, Errors: []string{"data is not a JSON object"}}, nil
	}

	var errs []string
	for _, req := range schema.Required {
		if _, ok := data[req]; !ok {
			errs = append(errs, fmt.Sprintf("missing required property %q", req))
		}
	}
	for name, prop := range schema.Properties {
		val, present := data[name]
		if !present {
			continue
		}
		if !matchesJSONType(val, prop.Type) {
			errs = append(errs, fmt.Sprintf("property %q: want type %q", name, prop.Type))
		}
	}

	return interp.SchemaValidationResult{Valid: len(errs) == 0, Errors: errs}, nil
}

func readWorkDirFile(workDir, path string) ([]byte, error) {
	return os.ReadFile(filepath.Join(workDir, path))
}

func matchesJSONType(v any, want string) bool {
	switch want {
	case "string":
		_, ok := v.(string)
		return ok
	case "number":
		_, ok := v.(float64)
		return ok
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "object":
		_, ok := v.(map[string]any)
		return ok
	case "array":
		_, ok := v.([]any)
		return ok
	default:
		return true
	}
}
