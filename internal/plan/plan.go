package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/tidwall/gjson"
)

// ListField is the top-level array the oracle must return.
const ListField = "subquestion_bundle_list"

// Unit is one validated sub-question with its strategy and target document.
type Unit struct {
	Question string     `json:"question"`
	Strategy Strategy   `json:"function"`
	Target   DocumentID `json:"file_name"`
}

// Plan is an ordered list of units. The empty plan is valid.
type Plan []Unit

// Policy decides what happens to an invalid unit.
type Policy string

const (
	// DropInvalid drops invalid units and keeps the rest.
	DropInvalid Policy = "drop_invalid"
	// Strict rejects the whole plan on the first invalid unit.
	Strict Policy = "strict"
)

// ParsePolicy maps a configured name to a Policy; empty selects DropInvalid.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case DropInvalid, "":
		return DropInvalid, nil
	case Strict:
		return Strict, nil
	default:
		return "", fmt.Errorf("unknown plan policy %q", s)
	}
}

// Rejection reasons.
const (
	ReasonNotObject       = "not_object"
	ReasonMissingField    = "missing_field"
	ReasonBlankQuestion   = "blank_question"
	ReasonUnknownStrategy = "unknown_strategy"
	ReasonUnknownDocument = "unknown_document"
)

// Rejection describes one unit that failed validation.
type Rejection struct {
	Index  int
	Reason string
	Err    error
}

func (r Rejection) Error() string {
	return fmt.Sprintf("unit %d: %v", r.Index, r.Err)
}

func (r Rejection) Unwrap() error {
	return r.Err
}

// ErrMalformed marks top-level parse or shape failures.
var ErrMalformed = errors.New("malformed plan")

// Parse validates raw oracle output into a Plan. The text must be a JSON object
// whose ListField is an array of {question, function, file_name} objects; one
// surrounding markdown code fence is tolerated. Any top-level failure, or any
// invalid unit under Strict, yields an empty plan and an error. Under
// DropInvalid the invalid units are returned as rejections.
func Parse(raw string, vocab *Vocabulary, policy Policy) (Plan, []Rejection, error) {
	text := StripFence(raw)
	if !gjson.Valid(text) {
		return nil, nil, fmt.Errorf("%w: not valid JSON", ErrMalformed)
	}
	root := gjson.Parse(text)
	if !root.IsObject() {
		return nil, nil, fmt.Errorf("%w: top level is not an object", ErrMalformed)
	}
	list := root.Get(ListField)
	if !list.IsArray() {
		return nil, nil, fmt.Errorf("%w: %s is missing or not an array", ErrMalformed, ListField)
	}

	elems := list.Array()
	p := make(Plan, 0, len(elems))
	var rejected []Rejection
	for i, el := range elems {
		u, rej := parseUnit(i, el, vocab)
		if rej != nil {
			if policy == Strict {
				return nil, []Rejection{*rej}, fmt.Errorf("strict policy: %w", rej)
			}
			rejected = append(rejected, *rej)
			continue
		}
		p = append(p, u)
	}
	return p, rejected, nil
}

func parseUnit(i int, el gjson.Result, vocab *Vocabulary) (Unit, *Rejection) {
	reject := func(reason string, err error) (Unit, *Rejection) {
		return Unit{}, &Rejection{Index: i, Reason: reason, Err: err}
	}
	if !el.IsObject() {
		return reject(ReasonNotObject, errors.New("not an object"))
	}
	fields := make(map[string]string, 3)
	for _, name := range []string{"question", "function", "file_name"} {
		f := el.Get(name)
		if f.Type != gjson.String {
			return reject(ReasonMissingField, fmt.Errorf("field %q missing or not a string", name))
		}
		fields[name] = f.Str
	}
	question := strings.TrimSpace(fields["question"])
	if question == "" {
		return reject(ReasonBlankQuestion, errors.New("blank question"))
	}
	strategy, err := ParseStrategy(fields["function"])
	if err != nil {
		return reject(ReasonUnknownStrategy, err)
	}
	target, err := vocab.Lookup(fields["file_name"])
	if err != nil {
		return reject(ReasonUnknownDocument, err)
	}
	return Unit{Question: question, Strategy: strategy, Target: target}, nil
}

// StripFence removes one markdown code fence (``` or ```json) around s.
func StripFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") || !strings.HasSuffix(t, "```") || len(t) < 6 {
		return t
	}
	t = strings.TrimSuffix(t[3:], "```")
	if i := strings.IndexAny(t, "{["); i > 0 && isFenceTag(strings.TrimSpace(t[:i])) {
		t = t[i:]
	} else if nl := strings.IndexByte(t, '\n'); nl >= 0 && !strings.ContainsAny(t[:nl], "{[") {
		t = t[nl+1:]
	}
	return strings.TrimSpace(t)
}

// isFenceTag reports whether s is a fence info string such as "json".
func isFenceTag(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' && r != '+' {
			return false
		}
	}
	return true
}

// Encode renders p in the wire shape Parse accepts.
func Encode(p Plan) (string, error) {
	if p == nil {
		p = Plan{}
	}
	b, err := json.Marshal(map[string]Plan{ListField: p})
	if err != nil {
		return "", err
	}
	return string(b), nil
}
