package core

// ToWire returns the stored form of the comment, linked to its parent alert
// through RootField.
func (c Comment) ToWire(parentGUID string) map[string]any {
	return map[string]any{
		"author":    c.Author,
		"comment":   c.Text,
		"timestamp": float64(c.Timestamp),
		RootField:   parentGUID,
	}
}

// ParseComment reads a stored comment element. Elements that are not objects
// report false.
func ParseComment(v any) (Comment, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		if f, isFields := v.(Fields); isFields {
			m = f
		} else {
			return Comment{}, false
		}
	}
	c := Comment{}
	c.Author, _ = m["author"].(string)
	c.Text, _ = m["comment"].(string)
	if ts, ok := m["timestamp"]; ok {
		if n, err := toInt64(Normalize(ts)); err == nil {
			c.Timestamp = n
		}
	}
	return c, true
}

// Comments returns the comments stored on the document, in list order.
func (d Document) Comments() []Comment {
	list, _ := d.Fields[CommentsField].([]any)
	out := make([]Comment, 0, len(list))
	for _, e := range list {
		if c, ok := ParseComment(e); ok {
			out = append(out, c)
		}
	}
	return out
}
