// Package cms holds the page and page type models, the storage contract
// that backs them and the per-operation loaders that batch reads from it.
package cms

import "time"

// Metadata is a set of public or private key/value pairs attached to an object.
type Metadata map[string]string

// A static page that can be manually added by a shop operator through the dashboard.
type Page struct {
	ID              int        `json:"id" bson:"_id"`
	PageTypeID      int        `json:"page_type_id" bson:"page_type_id"`
	Title           string     `json:"title" bson:"title"`
	Slug            string     `json:"slug" bson:"slug"`
	Content         string     `json:"content" bson:"content"`
	ContentJSON     string     `json:"content_json" bson:"content_json"`
	Created         time.Time  `json:"created" bson:"created"`
	IsPublished     bool       `json:"is_published" bson:"is_published"`
	PublicationDate *time.Time `json:"publication_date,omitempty" bson:"publication_date,omitempty"`
	SEOTitle        string     `json:"seo_title" bson:"seo_title"`
	SEODescription  string     `json:"seo_description" bson:"seo_description"`
	Metadata        Metadata   `json:"metadata,omitempty" bson:"metadata,omitempty"`
	PrivateMetadata Metadata   `json:"private_metadata,omitempty" bson:"private_metadata,omitempty"`
}

// VisibleAt reports whether the page is published and its publication date,
// if any, is not in the future.
func (p *Page) VisibleAt(now time.Time) bool {
	if !p.IsPublished {
		return false
	}
	return p.PublicationDate == nil || !p.PublicationDate.After(now)
}

// PageType defines what attributes are available to pages of this type.
type PageType struct {
	ID              int      `json:"id" bson:"_id"`
	Name            string   `json:"name" bson:"name"`
	Slug            string   `json:"slug" bson:"slug"`
	Metadata        Metadata `json:"metadata,omitempty" bson:"metadata,omitempty"`
	PrivateMetadata Metadata `json:"private_metadata,omitempty" bson:"private_metadata,omitempty"`
}

// AttributeType tells which kind of type an attribute can be assigned to.
type AttributeType string

const (
	AttributeTypePage    AttributeType = "PAGE_TYPE"
	AttributeTypeProduct AttributeType = "PRODUCT_TYPE"
)

type Attribute struct {
	ID                  int           `json:"id" bson:"_id"`
	Name                string        `json:"name" bson:"name"`
	Slug                string        `json:"slug" bson:"slug"`
	Type                AttributeType `json:"type" bson:"type"`
	InputType           string        `json:"input_type" bson:"input_type"`
	ValueRequired       bool          `json:"value_required" bson:"value_required"`
	VisibleInStorefront bool          `json:"visible_in_storefront" bson:"visible_in_storefront"`
	Metadata            Metadata      `json:"metadata,omitempty" bson:"metadata,omitempty"`
	PrivateMetadata     Metadata      `json:"private_metadata,omitempty" bson:"private_metadata,omitempty"`
}

type AttributeValue struct {
	ID          int    `json:"id" bson:"_id"`
	AttributeID int    `json:"attribute_id" bson:"attribute_id"`
	Name        string `json:"name" bson:"name"`
	Slug        string `json:"slug" bson:"slug"`
	Value       string `json:"value" bson:"value"`
}

// AttributePage assigns an attribute to a page type.
type AttributePage struct {
	ID          int `json:"id" bson:"_id"`
	PageTypeID  int `json:"page_type_id" bson:"page_type_id"`
	AttributeID int `json:"attribute_id" bson:"attribute_id"`
	SortOrder   int `json:"sort_order" bson:"sort_order"`
}

// AssignedPageAttribute records the values a page selected for one attribute.
type AssignedPageAttribute struct {
	ID          int   `json:"id" bson:"_id"`
	PageID      int   `json:"page_id" bson:"page_id"`
	AttributeID int   `json:"attribute_id" bson:"attribute_id"`
	ValueIDs    []int `json:"value_ids" bson:"value_ids"`
}

// SelectedAttribute is an attribute of a page together with its chosen values.
type SelectedAttribute struct {
	Attribute *Attribute
	Values    []*AttributeValue
}

type PageTranslation struct {
	ID             int    `json:"id" bson:"_id"`
	PageID         int    `json:"page_id" bson:"page_id"`
	LanguageCode   string `json:"language_code" bson:"language_code"`
	Title          string `json:"title" bson:"title"`
	Content        string `json:"content" bson:"content"`
	SEOTitle       string `json:"seo_title" bson:"seo_title"`
	SEODescription string `json:"seo_description" bson:"seo_description"`
}

// TranslationKey identifies the translation of one page into one language.
type TranslationKey struct {
	PageID       int
	LanguageCode string
}
