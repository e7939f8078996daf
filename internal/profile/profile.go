package profile

import "strings"

type Child struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

// Context holds the facts collected about a user across turns. A field is
// unset while it holds its zero value; once set it is never overwritten.
type Context struct {
	Name       string  `json:"name,omitempty"`
	Age        int     `json:"age,omitempty"`
	Children   []Child `json:"children,omitempty"`
	Conditions string  `json:"conditions,omitempty"`
	Location   string  `json:"location,omitempty"`
}

func (c Context) IsEmpty() bool {
	return c.Name == "" && c.Age == 0 && c.Children == nil && c.Conditions == "" && c.Location == ""
}

func (c Context) IsComplete() bool {
	return strings.TrimSpace(c.Name) != "" && c.Age > 0 && strings.TrimSpace(c.Location) != ""
}

func (c Context) Clone() Context {
	out := c
	if c.Children != nil {
		out.Children = make([]Child, len(c.Children))
		copy(out.Children, c.Children)
	}
	return out
}

// Merge fills every unset field of base from update and returns the result.
// Neither argument is modified.
func Merge(base, update Context) Context {
	out := base.Clone()
	if out.Name == "" {
		out.Name = update.Name
	}
	if out.Age == 0 {
		out.Age = update.Age
	}
	if out.Children == nil && update.Children != nil {
		out.Children = make([]Child, len(update.Children))
		copy(out.Children, update.Children)
	}
	if out.Conditions == "" {
		out.Conditions = update.Conditions
	}
	if out.Location == "" {
		out.Location = update.Location
	}
	return out
}
