package uml

// KindSpecialization is the relation kind denoting inheritance.
const KindSpecialization = "specialization"

// DefaultMultiplicity is applied to attributes that declare none.
const DefaultMultiplicity = "1"

// Document is the top-level shape of an import file.
type Document struct {
	UMLModel *Model `json:"umlModel"`
}

// Model is the set of classes and relations from one imported file.
// A Model is treated as immutable once loaded; reimporting replaces it.
type Model struct {
	Classes   []Class    `json:"classes"`
	Relations []Relation `json:"relations"`
}

// Class is one class definition.
type Class struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Owner      string      `json:"owner"`
	Attributes []Attribute `json:"attributes"`
}

// Attribute is one attribute of a class.
type Attribute struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Multiplicity string  `json:"multiplicity"`
	Datatype     string  `json:"datatype"`
	Format       *string `json:"format"`
	Example      string  `json:"example"`
}

// ShowMultiplicity reports whether the multiplicity is worth displaying.
// The default "1" is implied and left out of class cards.
func (a Attribute) ShowMultiplicity() bool {
	return a.Multiplicity != "" && a.Multiplicity != DefaultMultiplicity
}

// Relation is one relationship between two classes.
type Relation struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Type               string `json:"type"`
	Source             string `json:"source"`
	Target             string `json:"target"`
	SourceMultiplicity string `json:"sourceMultiplicity"`
	TargetMultiplicity string `json:"targetMultiplicity"`
}

// IsSpecialization returns true if the relation denotes inheritance.
func (r Relation) IsSpecialization() bool { return r.Type == KindSpecialization }

// Class returns the class with the given id.
func (m *Model) Class(id string) (Class, bool) {
	if m == nil {
		return Class{}, false
	}
	for _, c := range m.Classes {
		if c.ID == id {
			return c, true
		}
	}
	return Class{}, false
}

// ClassIndex returns the classes keyed by id.
// When ids collide the first class wins, matching [Model.Class].
func (m *Model) ClassIndex() map[string]Class {
	if m == nil {
		return nil
	}
	idx := make(map[string]Class, len(m.Classes))
	for _, c := range m.Classes {
		if _, ok := idx[c.ID]; !ok {
			idx[c.ID] = c
		}
	}
	return idx
}

// HasClass reports whether a class with the given id exists.
func (m *Model) HasClass(id string) bool {
	_, ok := m.Class(id)
	return ok
}

// normalize fills in defaults the import format leaves implicit.
func (m *Model) normalize() {
	for i := range m.Classes {
		for j := range m.Classes[i].Attributes {
			a := &m.Classes[i].Attributes[j]
			if a.Multiplicity == "" {
				a.Multiplicity = DefaultMultiplicity
			}
		}
	}
}

// Clone returns a deep copy of the class.
func (c Class) Clone() Class {
	out := c
	if c.Attributes != nil {
		out.Attributes = make([]Attribute, len(c.Attributes))
		for i, a := range c.Attributes {
			if a.Format != nil {
				f := *a.Format
				a.Format = &f
			}
			out.Attributes[i] = a
		}
	}
	return out
}
