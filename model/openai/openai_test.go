package openai

import "testing"

func TestParseWriteFileArgsExtractsPathAndContent(t *testing.T) {
	path, content, ok := parseWriteFileArgs(`{"path":"src/main.go","content":"package main\n"}`)
	if !ok {
		t.Fatal("expected ok=true for well-formed arguments")
	}
	if path != "src/main.go" || content != "package main\n" {
		t.Errorf("got path=%q content=%q", path, content)
	}
}

func TestParseWriteFileArgsRejectsMissingPath(t *testing.T) {
	_, _, ok := parseWriteFileArgs(`{"content":"x"}`)
	if ok {
		t.Error("expected ok=false when path is missing")
	}
}

func TestParseWriteFileArgsRejectsMalformedJSON(t *testing.T) {
	_, _, ok := parseWriteFileArgs(`not json`)
	if ok {
		t.Error("expected ok=false for malformed JSON")
	}
}
