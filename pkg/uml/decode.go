package uml

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/umlboard/pkg/errors"
)

// ContentTypeJSON is the only accepted upload content type.
const ContentTypeJSON = "application/json"

// Source is one uploaded file: its name, its declared content type and a
// way to open its bytes.
type Source struct {
	Name        string
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// FileSource describes a file on disk. The content type is derived from the
// extension, the way a browser declares it for a picked file.
func FileSource(path string) Source {
	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	return Source{
		Name:        filepath.Base(path),
		ContentType: ct,
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// ReaderSource wraps an in-memory body, such as an HTTP request body.
func ReaderSource(name, contentType string, r io.Reader) Source {
	return Source{
		Name:        name,
		ContentType: contentType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(r), nil
		},
	}
}

// CheckContentType rejects anything that does not declare JSON.
// Media type parameters such as charset are ignored.
func CheckContentType(contentType string) error {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil || mt != ContentTypeJSON {
		return errors.New(errors.ErrCodeInvalidFormat, "Please upload a JSON file.")
	}
	return nil
}

// Decode parses an import file into a Model.
//
// The content type is checked before r is read. Decode returns an
// INVALID_FORMAT error if the type is not JSON, the body is not valid JSON,
// or the required umlModel.classes / umlModel.relations arrays are missing.
// An explicit JSON null counts as missing. Attributes without a
// multiplicity get [DefaultMultiplicity].
func Decode(contentType string, r io.Reader) (*Model, error) {
	if err := CheckContentType(contentType); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "Failed to read file.")
	}
	// Unmarshal rejects trailing data after the document.
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "Invalid JSON format.")
	}

	if err := validate(&doc); err != nil {
		return nil, err
	}

	doc.UMLModel.normalize()
	return doc.UMLModel, nil
}

// DecodeFile reads and decodes the import file at path.
func DecodeFile(path string) (*Model, error) {
	src := FileSource(path)
	if err := CheckContentType(src.ContentType); err != nil {
		return nil, err
	}
	rc, err := src.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer rc.Close()
	return Decode(src.ContentType, rc)
}

func validate(doc *Document) error {
	switch {
	case doc.UMLModel == nil:
		return errors.New(errors.ErrCodeInvalidFormat, "Invalid JSON format. Missing required fields: umlModel")
	case doc.UMLModel.Classes == nil:
		return errors.New(errors.ErrCodeInvalidFormat, "Invalid JSON format. Missing required fields: umlModel.classes")
	case doc.UMLModel.Relations == nil:
		return errors.New(errors.ErrCodeInvalidFormat, "Invalid JSON format. Missing required fields: umlModel.relations")
	}
	return nil
}
