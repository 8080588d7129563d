package contentstream

import (
	"strings"
	"testing"

	"github.com/pdfpage/editkit/coords"
)

func TestParseOperations(t *testing.T) {
	src := "q 1 0 0 1 10 20 cm /F1 12 Tf BT (Hi) Tj ET Q"
	ops, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []string{"q", "cm", "Tf", "BT", "Tj", "ET", "Q"}
	if len(ops) != len(want) {
		t.Fatalf("got %d ops, want %d", len(ops), len(want))
	}
	for i, w := range want {
		if ops[i].Operator != w {
			t.Errorf("op %d = %q, want %q", i, ops[i].Operator, w)
		}
	}
	if tx, ok := ops[1].Float(4); !ok || tx != 10 {
		t.Errorf("cm tx = %v %v", tx, ok)
	}
	if name, ok := ops[2].Name(0); !ok || name != "F1" {
		t.Errorf("Tf font = %q", name)
	}
	if s, ok := ops[4].String(0); !ok || string(s) != "Hi" {
		t.Errorf("Tj text = %q", s)
	}
}

func TestParseArrayAndDictOperands(t *testing.T) {
	ops, err := Parse([]byte("[(A) -120 (B)] TJ /GS1 << /CA 0.5 >> unknown"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("got %d ops", len(ops))
	}
	if ops[0].Operator != "TJ" || len(ops[0].Operands) != 1 {
		t.Errorf("op 0: %+v", ops[0])
	}
	if ops[1].Operator != "unknown" || len(ops[1].Operands) != 2 {
		t.Errorf("op 1: %+v", ops[1])
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	src := "0.5 0 0 RG 2 w 10 10 100 50 re S BT /F2 9 Tf (x) Tj ET"
	ops, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	again, err := Parse(Serialize(ops))
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if len(again) != len(ops) {
		t.Fatalf("got %d ops, want %d", len(again), len(ops))
	}
	for i := range ops {
		if again[i].Operator != ops[i].Operator {
			t.Errorf("op %d: %q vs %q", i, again[i].Operator, ops[i].Operator)
		}
		if len(again[i].Operands) != len(ops[i].Operands) {
			t.Errorf("op %d operand count", i)
		}
	}
}

func TestInlineImagePreserved(t *testing.T) {
	src := "q BI /W 2 /H 2 /BPC 8 /CS /G ID \x00\xFF\x80\x42 EI Q"
	ops, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(ops) != 3 || ops[1].Operator != "EI" {
		t.Fatalf("ops: %+v", ops)
	}
	out := string(Serialize(ops))
	if !strings.Contains(out, "BI") || !strings.Contains(out, "EI") {
		t.Errorf("serialized: %q", out)
	}
}

func TestEmitterText(t *testing.T) {
	e := NewEmitter()
	e.Save().
		SetFillRGB(1, 0, 0).
		BeginText().
		SetFont("F1", 14).
		SetTextMatrix(coords.Translate(72, 700)).
		ShowText([]byte("Hello")).
		EndText().
		Restore()
	out := string(e.Bytes())
	want := "q\n1 0 0 rg\nBT\n/F1 14 Tf\n1 0 0 1 72 700 Tm\n(Hello) Tj\nET\nQ\n"
	if out != want {
		t.Errorf("got:\n%s\nwant:\n%s", out, want)
	}
}

func TestEmitterEllipseCloses(t *testing.T) {
	ops := NewEmitter().Ellipse(0, 0, 100, 50).Stroke().Ops()
	if ops[0].Operator != "m" {
		t.Errorf("first op %q", ops[0].Operator)
	}
	if ops[len(ops)-2].Operator != "h" {
		t.Errorf("penultimate op %q", ops[len(ops)-2].Operator)
	}
	curves := 0
	for _, op := range ops {
		if op.Operator == "c" {
			curves++
		}
	}
	if curves != 4 {
		t.Errorf("curves = %d", curves)
	}
}
