package ui

import (
	"strings"
	"testing"
)

func TestTerminalViewConfirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "yes", input: "y\n", want: true},
		{name: "YES uppercase", input: "YES\n", want: true},
		{name: "no", input: "n\n", want: false},
		{name: "bare enter defaults to no", input: "\n", want: false},
		{name: "garbage defaults to no", input: "sure\n", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out strings.Builder
			tv := &TerminalView{R: strings.NewReader(tt.input), W: &out}

			got, err := tv.Confirm("Proceed?")
			if err != nil {
				t.Fatalf("Confirm: %v", err)
			}
			if got != tt.want {
				t.Errorf("Confirm() = %v, want %v", got, tt.want)
			}
			if !strings.Contains(out.String(), "Proceed?") {
				t.Errorf("prompt not written to output: %q", out.String())
			}
		})
	}
}

func TestTerminalViewConfirmEOF(t *testing.T) {
	var out strings.Builder
	tv := &TerminalView{R: strings.NewReader(""), W: &out}

	got, err := tv.Confirm("Proceed?")
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if got {
		t.Errorf("Confirm() on EOF = true, want false")
	}
}

func TestInteractive(t *testing.T) {
	var out strings.Builder
	if Interactive(&FileView{W: &out}) {
		t.Error("FileView should not be interactive")
	}
	if !Interactive(&TerminalView{R: strings.NewReader(""), W: &out}) {
		t.Error("TerminalView should be interactive")
	}
}
