package imagegen

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Defaults substituted for omitted request fields.
const (
	DefaultGender         = "girl"
	DefaultAge            = "baby"
	DefaultPositivePrompt = "cute, adorable, innocent"
	DefaultExpression     = "smiling"
	DefaultClothing       = "appropriate"
	DefaultDressCode      = "baby clothes"
	MaxParentImages       = 2
)

// Request is the JSON body of a generation call. Every field is optional.
type Request struct {
	UserID            string   `json:"userId"`
	ChildKey          string   `json:"childKey"`
	Gender            string   `json:"gender"`
	Age               string   `json:"age"`
	PositivePrompt    string   `json:"positivePrompt"`
	NegativePrompt    string   `json:"negativePrompt"`
	Expression        string   `json:"expression"`
	Clothing          string   `json:"clothing"`
	DressCode         string   `json:"dressCode"`
	RemoveFacialHair  Flag     `json:"removeFacialHair"`
	FacialHairRemoval string   `json:"facialHairRemoval"`
	ChildSafety       string   `json:"childSafety"`
	// ParentRoles names uploaded images, e.g. "mother" and "father". When
	// empty the request is prompt-only.
	ParentRoles []string `json:"parentRoles"`
}

// Validate reports request shapes that can never be served.
func (r Request) Validate() error {
	if len(r.ParentRoles) > MaxParentImages {
		return fmt.Errorf("%w: at most %d parent images", ErrInvalidRequest, MaxParentImages)
	}
	for _, role := range r.ParentRoles {
		if strings.TrimSpace(role) == "" {
			return fmt.Errorf("%w: empty parent role", ErrInvalidRequest)
		}
	}
	return nil
}

// Flag is a tri-state boolean that also accepts "true"/"false" strings,
// which older clients send.
type Flag struct {
	Set   bool
	Value bool
}

func (f *Flag) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = Flag{}
		return nil
	}
	var v bool
	if err := json.Unmarshal(b, &v); err == nil {
		*f = Flag{Set: true, Value: v}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("flag: expected boolean, got %s", b)
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "false", "0", "no", "off":
		*f = Flag{Set: true, Value: false}
	case "":
		*f = Flag{}
	default:
		*f = Flag{Set: true, Value: true}
	}
	return nil
}

func (f Flag) MarshalJSON() ([]byte, error) {
	if !f.Set {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// Or returns the flag's value, or def when unset.
func (f Flag) Or(def bool) bool {
	if !f.Set {
		return def
	}
	return f.Value
}
