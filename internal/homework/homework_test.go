package homework

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestExtractItemsBoundaries(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		record Record
		kind   Kind
		ok     bool
	}{
		{name: "nil", record: nil, kind: EmptyResponse},
		{name: "list instead of object", record: []any{}, kind: UnexpectedShape},
		{name: "string instead of object", record: "oops", kind: UnexpectedShape},
		{name: "homeworks not a list", record: map[string]any{"homeworks": "not-a-list"}, kind: UnexpectedShape},
		{name: "homeworks missing", record: map[string]any{"other": []any{}}, kind: MissingField},
		{name: "empty list", record: map[string]any{"homeworks": []any{}}, ok: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			items, err := ExtractItems(tt.record)
			if tt.ok {
				if err != nil {
					t.Fatalf("ExtractItems error: %v", err)
				}
				if items == nil || len(items) != 0 {
					t.Fatalf("items = %#v, want empty non-nil slice", items)
				}
				return
			}
			if got := KindOf(err); got != tt.kind {
				t.Fatalf("kind = %v, want %v (err=%v)", got, tt.kind, err)
			}
		})
	}
}

func TestExtractItemsReturnsListUnmodified(t *testing.T) {
	t.Parallel()
	list := []any{
		map[string]any{"homework_name": "A", "status": "approved"},
		map[string]any{"homework_name": "B", "status": "rejected"},
	}
	items, err := ExtractItems(map[string]any{"homeworks": list})
	if err != nil {
		t.Fatalf("ExtractItems: %v", err)
	}
	if len(items) != 2 || items[0].(map[string]any)["homework_name"] != "A" {
		t.Fatalf("unexpected items: %#v", items)
	}
}

func TestInterpretClosedStatusSet(t *testing.T) {
	t.Parallel()
	p, err := NewInterpreter(nil)
	if err != nil {
		t.Fatalf("NewInterpreter: %v", err)
	}
	verdicts := DefaultVerdicts()
	for _, status := range []string{"approved", "reviewing", "rejected"} {
		msg, err := p.Interpret(map[string]any{"homework_name": "hw", "status": status})
		if err != nil {
			t.Fatalf("Interpret(%s): %v", status, err)
		}
		if !strings.HasSuffix(msg, verdicts[status]) {
			t.Fatalf("Interpret(%s) = %q, want verdict %q", status, msg, verdicts[status])
		}
	}

	for _, status := range []string{"", "Approved", "approve", "done", "reviewing "} {
		_, err := p.Interpret(map[string]any{"homework_name": "hw", "status": status})
		if KindOf(err) != UnknownStatus {
			t.Fatalf("Interpret(%q) kind = %v, want UnknownStatus", status, KindOf(err))
		}
	}
}

func TestInterpretMessageFormat(t *testing.T) {
	t.Parallel()
	p, _ := NewInterpreter(nil)
	msg, err := p.Interpret(map[string]any{"homework_name": "hw1", "status": "reviewing"})
	if err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	want := `Изменился статус проверки работы "hw1". Работа взята на проверку ревьюером.`
	if msg != want {
		t.Fatalf("msg = %q, want %q", msg, want)
	}
}

func TestInterpretMissingAndMistyped(t *testing.T) {
	t.Parallel()
	p, _ := NewInterpreter(nil)
	tests := []struct {
		name string
		item any
		kind Kind
	}{
		{name: "no name", item: map[string]any{"status": "approved"}, kind: MissingField},
		{name: "no status", item: map[string]any{"homework_name": "x"}, kind: MissingField},
		{name: "null name", item: map[string]any{"homework_name": nil, "status": "approved"}, kind: MissingField},
		{name: "numeric status", item: map[string]any{"homework_name": "x", "status": 3.0}, kind: UnexpectedShape},
		{name: "not an object", item: "x", kind: UnexpectedShape},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Interpret(tt.item)
			if got := KindOf(err); got != tt.kind {
				t.Fatalf("kind = %v, want %v (err=%v)", got, tt.kind, err)
			}
		})
	}
}

func TestCustomVerdictTableStaysClosed(t *testing.T) {
	t.Parallel()
	p, err := NewInterpreter(map[string]string{"done": "Готово."})
	if err != nil {
		t.Fatalf("NewInterpreter: %v", err)
	}
	if _, err := p.Interpret(map[string]any{"homework_name": "x", "status": "done"}); err != nil {
		t.Fatalf("custom status rejected: %v", err)
	}
	if _, err := p.Interpret(map[string]any{"homework_name": "x", "status": "approved"}); KindOf(err) != UnknownStatus {
		t.Fatalf("default status accepted by custom table: %v", err)
	}
	if got := p.Statuses(); len(got) != 1 || got[0] != "done" {
		t.Fatalf("Statuses = %v", got)
	}

	if _, err := NewInterpreter(map[string]string{"x": " "}); err == nil {
		t.Fatal("expected error for empty verdict text")
	}
}

func TestKindOfAndIs(t *testing.T) {
	t.Parallel()
	err := fmt.Errorf("cycle: %w", Missing("homeworks"))
	if KindOf(err) != MissingField {
		t.Fatalf("KindOf = %v", KindOf(err))
	}
	if !errors.Is(err, &Error{Kind: MissingField}) {
		t.Fatal("errors.Is by kind failed")
	}
	if KindOf(errors.New("boom")) != Unclassified {
		t.Fatal("foreign error should be unclassified")
	}
	if ConfigurationMissing.Recoverable() || !EndpointUnreachable.Recoverable() {
		t.Fatal("unexpected recoverability")
	}
}

func TestRender(t *testing.T) {
	t.Parallel()
	cause := errors.New("http status 503")
	if got := Render(Unreachable(cause, "https://example.test/api")); !strings.Contains(got, "https://example.test/api") || !strings.Contains(got, "не отвечает") {
		t.Fatalf("Render(unreachable) = %q", got)
	}
	if got := Render(Shape("x")); got != "Неверный тип данных" {
		t.Fatalf("Render(shape) = %q", got)
	}
	if got := Render(errors.New("boom")); !strings.Contains(got, "boom") {
		t.Fatalf("Render(foreign) = %q", got)
	}
	if Render(nil) != "" {
		t.Fatal("Render(nil) should be empty")
	}
	rejected := Rejected(cause, "Учетные данные неверные (PRACTICUM_TOKEN)", "https://example.test/api")
	if got := Render(rejected); got != "Учетные данные неверные (PRACTICUM_TOKEN)" {
		t.Fatalf("Render(rejected) = %q", got)
	}
	if !errors.Is(rejected, &Error{Kind: EndpointUnreachable}) || !errors.Is(rejected, cause) {
		t.Fatal("rejected error lost its kind or cause")
	}
}
