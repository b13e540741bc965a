package lsp

import (
	"testing"

	"go.lsp.dev/protocol"
)

func TestDiagnoseValidFile(t *testing.T) {
	diags := diagnose("BUILD", "cc_library(name = \"lib\")\n")
	if diags == nil {
		t.Fatal("want empty slice so client-side diagnostics get cleared")
	}
	if len(diags) != 0 {
		t.Errorf("diagnostics for valid file: %v", diags)
	}
}

func TestDiagnoseSyntaxError(t *testing.T) {
	diags := diagnose("BUILD", "cc_library(name = \"lib\"\n")
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(diags))
	}

	d := diags[0]
	if d.Severity != protocol.DiagnosticSeverityError {
		t.Errorf("severity = %v, want error", d.Severity)
	}
	if d.Source != "bzls" {
		t.Errorf("source = %q, want bzls", d.Source)
	}
	if d.Code != "parse_error" {
		t.Errorf("code = %v, want parse_error", d.Code)
	}
	if d.Message == "" {
		t.Error("empty diagnostic message")
	}
}

func TestDiagnoseErrorPosition(t *testing.T) {
	// The error is on the second line; its diagnostic should be too.
	diags := diagnose("BUILD", "x = 1\ny = (\n")
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(diags))
	}
	if diags[0].Range.Start.Line == 0 {
		t.Errorf("diagnostic at line 0, want the failing line: %+v", diags[0])
	}
}
