package scanning

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// replyShape accepts an array of objects. Field presence is not required:
// missing fields become empty strings. Values are only checked for the keys
// that map onto a field; everything else is ignored.
var replyShape = jsonschema.MustCompileString("reply.json", `{
  "type": "array",
  "items": {"type": "object"}
}`)

// fieldAliases lists the keys accepted for each field, most preferred first.
// Replies sometimes echo the localized column headers of the sheet.
var fieldAliases = map[string][]string{
	FieldPhone: {"phone", "전화번호", "phone_number", "phonenumber", "tel", "telephone", "mobile", "연락처", "휴대폰", "핸드폰"},
	FieldName:  {"name", "고객명", "customer_name", "customer", "이름", "성명"},
	FieldNote:  {"note", "비고", "notes", "memo", "remark", "remarks", "메모"},
}

// Decode turns fence-free reply text into a record set, preserving row order
func Decode(text string) (RecordSet, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, &ValidationError{Reason: ReasonMalformedJSON, Err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &ValidationError{Reason: ReasonMalformedJSON, Err: errors.New("trailing data after JSON value")}
	}

	if err := replyShape.Validate(doc); err != nil {
		return nil, &ValidationError{Reason: ReasonUnexpectedShape, Err: err}
	}

	items, _ := doc.([]any)
	records := make(RecordSet, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, &ValidationError{Reason: ReasonUnexpectedShape, Err: fmt.Errorf("row %d is not an object", i)}
		}
		rec, err := recordFromObject(obj)
		if err != nil {
			return nil, &ValidationError{Reason: ReasonUnexpectedShape, Err: fmt.Errorf("row %d: %w", i, err)}
		}
		records = append(records, rec)
	}
	return records, nil
}

func recordFromObject(obj map[string]any) (Record, error) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var values [3]string
	for i, field := range Fields() {
		for _, alias := range fieldAliases[field] {
			key, ok := matchKey(obj, keys, alias)
			if !ok {
				continue
			}
			s, err := fieldText(obj[key])
			if err != nil {
				return Record{}, fmt.Errorf("field %q: %w", key, err)
			}
			values[i] = s
			break
		}
	}
	return Record{Phone: values[0], Name: values[1], Note: values[2]}, nil
}

// matchKey finds the key for alias: an exact match first, then the first
// key in sorted order that equals alias ignoring case and surrounding space
func matchKey(obj map[string]any, sortedKeys []string, alias string) (string, bool) {
	if _, ok := obj[alias]; ok {
		return alias, true
	}
	for _, k := range sortedKeys {
		if strings.ToLower(strings.TrimSpace(k)) == alias {
			return k, true
		}
	}
	return "", false
}

// fieldText renders a scalar JSON value as text
func fieldText(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}

// ParseReply runs the two reply stages: fence stripping then decoding
func ParseReply(reply string) (RecordSet, error) {
	return Decode(StripFences(reply))
}
