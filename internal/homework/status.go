package homework

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultVerdicts maps review status codes to the text sent to the student.
func DefaultVerdicts() map[string]string {
	return map[string]string{
		"approved":  "Работа проверена: ревьюеру всё понравилось. Ура!",
		"reviewing": "Работа взята на проверку ревьюером.",
		"rejected":  "Работа проверена: у ревьюера есть замечания.",
	}
}

// Interpreter turns a homework record into a notification sentence.
// The verdict table is a closed set; it is copied at construction and never mutated.
type Interpreter struct {
	verdicts map[string]string
}

// NewInterpreter builds an interpreter over verdicts.
// A nil or empty table falls back to DefaultVerdicts.
func NewInterpreter(verdicts map[string]string) (*Interpreter, error) {
	if len(verdicts) == 0 {
		verdicts = DefaultVerdicts()
	}
	cp := make(map[string]string, len(verdicts))
	for code, text := range verdicts {
		if strings.TrimSpace(code) == "" {
			return nil, fmt.Errorf("verdict table: empty status code")
		}
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("verdict table: empty text for %q", code)
		}
		cp[code] = text
	}
	return &Interpreter{verdicts: cp}, nil
}

// Statuses lists the recognized status codes in sorted order.
func (p *Interpreter) Statuses() []string {
	out := make([]string, 0, len(p.verdicts))
	for k := range p.verdicts {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Item is a validated homework entry.
type Item struct {
	Name   string
	Status string
}

// ParseItem checks that raw is a homework object with string name and status.
func ParseItem(raw any) (Item, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return Item{}, Shape("homework is %T, want object", raw)
	}
	name, err := stringField(obj, KeyName)
	if err != nil {
		return Item{}, err
	}
	status, err := stringField(obj, KeyStatus)
	if err != nil {
		return Item{}, err
	}
	return Item{Name: name, Status: status}, nil
}

func stringField(obj map[string]any, key string) (string, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return "", Missing(key)
	}
	s, ok := v.(string)
	if !ok {
		return "", Shape("%s is %T, want string", key, v)
	}
	return s, nil
}

// Interpret renders the status-change message for one homework entry.
func (p *Interpreter) Interpret(raw any) (string, error) {
	it, err := ParseItem(raw)
	if err != nil {
		return "", err
	}
	verdict, ok := p.verdicts[it.Status]
	if !ok {
		return "", Unknown(it.Status)
	}
	return fmt.Sprintf("Изменился статус проверки работы \"%s\". %s", it.Name, verdict), nil
}
