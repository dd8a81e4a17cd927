// Package ddoc loads design documents from couchapp-style directories
// and pushes them to a database, either directly or through a staged
// copy that lets views build before they replace the live ones.
package ddoc

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// View is the source of a single view.
type View struct {
	Map    string `json:"map"`
	Reduce string `json:"reduce,omitempty"`
}

// DesignDoc is an unmarshaled design document. Fields not covered by
// Language or Views live in Extra and are marshaled at the top level of
// the document.
type DesignDoc struct {
	Name     string                 `json:"-"`
	Language string                 `json:"language,omitempty"`
	Views    map[string]View        `json:"views,omitempty"`
	Extra    map[string]interface{} `json:"-"`
}

// ID returns the document ID under which the design document is stored.
func (d *DesignDoc) ID() string {
	return "_design/" + d.Name
}

// MarshalJSON satisfies the json.Marshaler interface.
func (d *DesignDoc) MarshalJSON() ([]byte, error) {
	for key := range d.Extra {
		if key == "" || key[0] == '_' || key == "language" || key == "views" {
			return nil, errors.Errorf("ddoc: reserved field %q", key)
		}
	}
	type clean DesignDoc
	doc, err := json.Marshal((*clean)(d))
	if err != nil {
		return nil, err
	}
	if len(d.Extra) == 0 {
		return doc, nil
	}
	extra, err := json.Marshal(d.Extra)
	if err != nil {
		return nil, err
	}
	if len(doc) <= 2 {
		return extra, nil
	}
	doc[len(doc)-1] = ','
	return append(doc, extra[1:]...), nil
}

func (d *DesignDoc) toMap() (map[string]interface{}, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
