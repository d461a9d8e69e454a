package replicate

import (
	"bytes"
	"encoding/json"
	"strings"
)

// OutputKind tags the shape of a prediction output.
type OutputKind int

const (
	OutputAbsent OutputKind = iota
	OutputText
	OutputList
	OutputObject
	OutputUnrecognized
)

func (k OutputKind) String() string {
	switch k {
	case OutputAbsent:
		return "absent"
	case OutputText:
		return "text"
	case OutputList:
		return "list"
	case OutputObject:
		return "object"
	default:
		return "unrecognized"
	}
}

// urlFields are the object keys accepted as carrying the output URL, in priority order.
var urlFields = []string{"url", "uri", "image", "href"}

// Output is a tagged union over the output shapes the service is known to
// return. Exactly one of Text, List or URL is meaningful, selected by Kind.
type Output struct {
	Kind OutputKind
	Text string
	List []string
	URL  string
	Raw  json.RawMessage
}

// TextOutput, ListOutput and ObjectOutput build outputs in tests and fixtures.
func TextOutput(s string) Output { return Output{Kind: OutputText, Text: s} }

func ListOutput(items ...string) Output { return Output{Kind: OutputList, List: items} }

func ObjectOutput(url string) Output { return Output{Kind: OutputObject, URL: url} }

func (o *Output) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*o = Output{Raw: append(json.RawMessage(nil), b...)}
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		o.Kind = OutputAbsent
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		o.Kind = OutputText
		o.Text = s
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		list := make([]string, 0, len(items))
		for _, item := range items {
			var s string
			if err := json.Unmarshal(item, &s); err != nil {
				break
			}
			list = append(list, s)
		}
		if len(list) == 0 || len(list) != len(items) {
			o.Kind = OutputUnrecognized
			return nil
		}
		o.Kind = OutputList
		o.List = list
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(b, &fields); err != nil {
			return err
		}
		o.Kind = OutputUnrecognized
		for _, key := range urlFields {
			raw, ok := fields[key]
			if !ok {
				continue
			}
			var s string
			if err := json.Unmarshal(raw, &s); err == nil && strings.TrimSpace(s) != "" {
				o.Kind = OutputObject
				o.URL = s
				break
			}
		}
	default:
		o.Kind = OutputUnrecognized
	}
	return nil
}

func (o Output) MarshalJSON() ([]byte, error) {
	switch o.Kind {
	case OutputAbsent:
		return []byte("null"), nil
	case OutputText:
		return json.Marshal(o.Text)
	case OutputList:
		return json.Marshal(o.List)
	case OutputObject:
		return json.Marshal(map[string]string{"url": o.URL})
	default:
		if len(o.Raw) == 0 {
			return []byte("null"), nil
		}
		return o.Raw, nil
	}
}

// FirstURL returns the candidate URL carried by the output itself, ignoring
// top-level prediction fields.
func (o Output) FirstURL() (string, bool) {
	switch o.Kind {
	case OutputText:
		return o.Text, true
	case OutputList:
		if len(o.List) > 0 {
			return o.List[0], true
		}
	case OutputObject:
		return o.URL, true
	}
	return "", false
}
