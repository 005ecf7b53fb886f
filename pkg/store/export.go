package store

import (
	"encoding/json"

	"github.com/matzehuels/umlboard/pkg/diagram"
	"github.com/matzehuels/umlboard/pkg/errors"
)

// ExportToText returns the record as JSON indented by two spaces.
func ExportToText(d SavedDiagram) (string, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "Failed to export diagram.")
	}
	return string(data), nil
}

// ExportFilename is the download name for an exported record.
func ExportFilename(d SavedDiagram) string {
	return d.Name + ".json"
}

// importRecord mirrors SavedDiagram with pointers so absent fields can be
// told apart from zero values.
type importRecord struct {
	ID             *string       `json:"id"`
	Name           *string       `json:"name"`
	State          *diagram.View `json:"state"`
	ModelTimestamp int64         `json:"modelTimestamp"`
}

// ImportFromText parses one exported record. It returns an INVALID_FORMAT
// error when the text is not JSON or id, name or state is missing or empty.
func ImportFromText(text string) (SavedDiagram, error) {
	var rec importRecord
	if err := json.Unmarshal([]byte(text), &rec); err != nil {
		return SavedDiagram{}, errors.Wrap(errors.ErrCodeInvalidFormat, err, "Failed to import diagram.")
	}
	d := SavedDiagram{ModelTimestamp: rec.ModelTimestamp}
	if rec.ID != nil {
		d.ID = *rec.ID
	}
	if rec.Name != nil {
		d.Name = *rec.Name
	}
	if rec.State == nil {
		return SavedDiagram{}, errors.New(errors.ErrCodeInvalidFormat, "Failed to import diagram. Missing required field: state")
	}
	d.State = *rec.State
	if err := validateRecord(d); err != nil {
		return SavedDiagram{}, err
	}
	return d, nil
}

func validateRecord(d SavedDiagram) error {
	switch {
	case d.ID == "":
		return errors.New(errors.ErrCodeInvalidFormat, "Failed to import diagram. Missing required field: id")
	case d.Name == "":
		return errors.New(errors.ErrCodeInvalidFormat, "Failed to import diagram. Missing required field: name")
	}
	return nil
}
