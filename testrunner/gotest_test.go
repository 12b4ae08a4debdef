package testrunner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestParseGoTestOutputCountsPassAndFail(t *testing.T) {
	output := "=== RUN   TestA\n--- PASS: TestA (0.00s)\n=== RUN   TestB\n--- FAIL: TestB (0.00s)\nFAIL\n"
	result := parseGoTestOutput(output)

	if result.TestsTotal != 2 || result.TestsPassed != 1 || result.TestsFailed != 1 {
		t.Errorf("result = %+v, want total=2 passed=1 failed=1", result)
	}
	if result.Passed {
		t.Error("Passed = true, want false when any test failed")
	}
}

func TestParseGoTestOutputAllPassing(t *testing.T) {
	output := "--- PASS: TestA (0.00s)\n--- PASS: TestB (0.00s)\nPASS\n"
	result := parseGoTestOutput(output)

	if !result.Passed {
		t.Error("Passed = false, want true when every test passed")
	}
}

func TestParseGoTestOutputNoTestsIsNotPassed(t *testing.T) {
	result := parseGoTestOutput("ok  \tpkg\t0.002s [no tests to run]\n")
	if result.Passed {
		t.Error("Passed = true, want false when zero tests ran")
	}
}

func TestParseCoverageExtractsPercentage(t *testing.T) {
	pct, ok := parseCoverage("ok  \tpkg\t0.01s\tcoverage: 82.5% of statements\n")
	if !ok {
		t.Fatal("expected coverage to be found")
	}
	if pct != 82.5 {
		t.Errorf("pct = %v, want 82.5", pct)
	}
}

func TestParseCoverageMissingReturnsFalse(t *testing.T) {
	_, ok := parseCoverage("ok  \tpkg\t0.01s\n")
	if ok {
		t.Error("expected ok=false when no coverage line is present")
	}
}

func TestValidateSchemaReportsMissingAndWrongTypeFields(t *testing.T) {
	dir := t.TempDir()
	schema := `{"type":"object","required":["title","count"],"properties":{"title":{"type":"string"},"count":{"type":"number"}}}`
	data := `{"count":"not-a-number"}`

	if err := os.WriteFile(filepath.Join(dir, "schema.json"), []byte(schema), 0o644); err != nil {
		t.Fatalf("write schema: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "data.json"), []byte(data), 0o644); err != nil {
		t.Fatalf("write data: %v", err)
	}

	g := New(dir)
	result, err := g.ValidateSchema(context.Background(), "schema.json", "data.json")
	if err != nil {
		t.Fatalf("ValidateSchema() error = %v", err)
	}
	if result.Valid {
		t.Fatal("expected Valid=false")
	}
	if len(result.Errors) != 2 {
		t.Errorf("Errors = %v, want 2 entries (missing title, wrong type count)", result.Errors)
	}
}

func TestValidateSchemaAcceptsConformingData(t *testing.T) {
	dir := t.TempDir()
	schema := `{"type":"object","required":["title"],"properties":{"title":{"type":"string"}}}`
	data := `{"title":"hello"}`

	if err := os.WriteFile(filepath.Join(dir, "schema.json"), []byte(schema), 0o644); err != nil {
		t.Fatalf("write schema: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "data.json"), []byte(data), 0o644); err != nil {
		t.Fatalf("write data: %v", err)
	}

	g := New(dir)
	result, err := g.ValidateSchema(context.Background(), "schema.json", "data.json")
	if err != nil {
		t.Fatalf("ValidateSchema() error = %v", err)
	}
	if !result.Valid {
		t.Errorf("Errors = %v, want no errors", result.Errors)
	}
}
