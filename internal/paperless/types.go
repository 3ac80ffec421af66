package paperless

// Document is a Paperless-ngx document as returned by the documents API.
// Only the fields the pipeline reads or writes are mapped.
type Document struct {
	ID           int                `json:"id"`
	Title        string             `json:"title"`
	Content      string             `json:"content"`
	Created      string             `json:"created,omitempty"`
	Tags         []int              `json:"tags,omitempty"`
	CustomFields []CustomFieldValue `json:"custom_fields,omitempty"`
}

// CustomFieldValue is one entry of a document's custom_fields list.
type CustomFieldValue struct {
	Field int `json:"field"`
	Value any `json:"value"`
}

// CustomFieldByID returns the value of the given custom field and whether it
// is present on the document.
func (d *Document) CustomFieldByID(id int) (any, bool) {
	for _, cf := range d.CustomFields {
		if cf.Field == id {
			return cf.Value, true
		}
	}
	return nil, false
}

// CustomField is a Paperless custom field definition.
type CustomField struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	DataType string `json:"data_type"`
}

// Patch holds the mutable document attributes for an update. Nil fields are
// left untouched by the backend.
type Patch struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

// IsEmpty reports whether the patch would change nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Content == nil
}

// documentPage is one page of a paginated document listing.
type documentPage struct {
	Count    int        `json:"count"`
	Next     string     `json:"next"`
	Previous string     `json:"previous"`
	Results  []Document `json:"results"`
}

// customFieldPage is one page of the custom fields listing.
type customFieldPage struct {
	Count   int           `json:"count"`
	Next    string        `json:"next"`
	Results []CustomField `json:"results"`
}
