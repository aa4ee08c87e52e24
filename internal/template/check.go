package template

import (
	"errors"
	"fmt"
)

// FieldError is a parse error located in one text field of a message.
type FieldError struct {
	Field  string
	Source string
	Err    *Error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Err.Annotate(e.Source))
}

func (e *FieldError) Unwrap() error { return e.Err }

type leaf struct {
	field string
	src   string
}

func schemaLeaves(m MessageSchema) []leaf {
	leaves := []leaf{{"content", m.Content}}
	for i, e := range m.Embeds {
		p := fmt.Sprintf("embeds[%d].", i)
		leaves = append(leaves,
			leaf{p + "author.name", e.Author.Name},
			leaf{p + "author.icon_url", e.Author.IconURL},
			leaf{p + "author.url", e.Author.URL},
			leaf{p + "title", e.Title},
			leaf{p + "description", e.Description},
			leaf{p + "url", e.URL},
			leaf{p + "image", e.Image},
			leaf{p + "thumbnail", e.Thumbnail},
			leaf{p + "footer.text", e.Footer.Text},
			leaf{p + "footer.icon_url", e.Footer.IconURL},
		)
		for j, f := range e.Fields {
			leaves = append(leaves,
				leaf{fmt.Sprintf("%sfields[%d].name", p, j), f.Name},
				leaf{fmt.Sprintf("%sfields[%d].value", p, j), f.Value},
			)
		}
	}
	return leaves
}

func Check(input MessageSchema) []*FieldError {
	return Default().Check(input)
}

// Check parses every text field of input and reports each one that fails,
// in field order.
func (r *Registry) Check(input MessageSchema) []*FieldError {
	var errs []*FieldError
	for _, l := range schemaLeaves(input) {
		if _, err := r.ParseText(l.src); err != nil {
			var perr *Error
			if !errors.As(err, &perr) {
				perr = &Error{Msg: err.Error(), Pos: -1}
			}
			errs = append(errs, &FieldError{Field: l.field, Source: l.src, Err: perr})
		}
	}
	return errs
}
