package cms

import (
	_ "embed"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

//go:embed fixture.json
var defaultFixture []byte

// Fixture is a complete data set used to seed a store.
type Fixture struct {
	PageTypes              []*PageType              `json:"page_types"`
	Pages                  []*Page                  `json:"pages"`
	Attributes             []*Attribute             `json:"attributes"`
	AttributeValues        []*AttributeValue        `json:"attribute_values"`
	AttributePages         []*AttributePage         `json:"attribute_pages"`
	AssignedPageAttributes []*AssignedPageAttribute `json:"assigned_page_attributes"`
	PageTranslations       []*PageTranslation       `json:"page_translations"`
}

// ReadFixture decodes a JSON fixture.
func ReadFixture(r io.Reader) (*Fixture, error) {
	var f Fixture
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	return &f, nil
}

// DefaultFixture returns the demo data set shipped with the binary.
func DefaultFixture() *Fixture {
	var f Fixture
	if err := json.Unmarshal(defaultFixture, &f); err != nil {
		panic(fmt.Sprintf("cms: embedded fixture: %v", err))
	}
	return &f
}
