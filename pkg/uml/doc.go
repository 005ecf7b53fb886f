// Package uml holds the domain model of class definitions and relations and
// the loader that imports it from an uploaded JSON file.
//
// # Import Format
//
// The import file must be JSON with a top-level "umlModel" object carrying
// both a "classes" and a "relations" array:
//
//	{
//	  "umlModel": {
//	    "classes": [
//	      {"id": "A", "name": "Order", "owner": "sales",
//	       "attributes": [{"id": "A1", "name": "total", "multiplicity": "1",
//	                       "datatype": "Decimal", "format": null, "example": "9.99"}]}
//	    ],
//	    "relations": [
//	      {"id": "R1", "name": "placedBy", "type": "association",
//	       "source": "A", "target": "B",
//	       "sourceMultiplicity": "0..*", "targetMultiplicity": "1"}
//	    ]
//	  }
//	}
//
// Documents missing "umlModel", "umlModel.classes" or "umlModel.relations"
// are rejected with an INVALID_FORMAT error, as is any upload whose declared
// content type is not application/json. The content type check happens
// before a single byte is read.
//
// # Relation Kinds
//
// The relation "type" is an open string tag. Only "specialization" has a
// dedicated meaning downstream (inheritance styling); everything else is an
// association as far as the diagram is concerned.
//
// # Loading
//
// [Decode] is the pure parse step. [Loader] wraps it as a cancellable,
// single-shot task with in-flight tracking: starting a new load cancels the
// one still running, and only the most recent load may commit its result.
package uml
