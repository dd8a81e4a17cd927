package ddoc

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/icza/dyno"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// DefaultLanguage is assumed when a design directory carries no language
// file.
const DefaultLanguage = "javascript"

type decoder interface {
	Decode(io.Reader, interface{}) error
}

var decoders = map[string]decoder{
	"json": jsonDecoder{},
	"yaml": yamlDecoder{},
	"yml":  yamlDecoder{},
}

type jsonDecoder struct{}

func (jsonDecoder) Decode(r io.Reader, i interface{}) error {
	return json.NewDecoder(r).Decode(i)
}

type yamlDecoder struct{}

func (yamlDecoder) Decode(r io.Reader, i interface{}) error {
	return yaml.NewDecoder(r).Decode(i)
}

// explodeFilename returns the base name, extension, and a boolean
// indicating whether the extension is decodable.
func explodeFilename(filename string) (basename, ext string, ok bool) {
	dotExt := filepath.Ext(filename)
	basename = strings.TrimSuffix(filename, dotExt)
	ext = strings.TrimPrefix(dotExt, ".")
	_, ok = decoders[ext]
	return basename, ext, ok
}

func decodeFile(path, ext string) (interface{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	var v interface{}
	if err := decoders[ext].Decode(f, &v); err != nil {
		return nil, errors.Wrapf(err, "ddoc: decoding %s", path)
	}
	// YAML maps decode with interface{} keys, which json.Marshal
	// rejects.
	return dyno.ConvertMapI2MapS(v), nil
}

// Load reads a single design document from a directory. The directory
// name becomes the document name. It may contain a views/ directory with
// one subdirectory per view holding map.js and an optional reduce.js, a
// language file, and any number of <field>.json, <field>.yaml or
// <field>.yml files decoded into top-level fields.
func Load(path string) (*DesignDoc, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	doc := &DesignDoc{
		Name:     filepath.Base(path),
		Language: DefaultLanguage,
		Extra:    map[string]interface{}{},
	}
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case entry.IsDir():
			if name != "views" {
				continue
			}
			views, err := loadViews(filepath.Join(path, name))
			if err != nil {
				return nil, err
			}
			doc.Views = views
		case name == "language":
			lang, err := os.ReadFile(filepath.Join(path, name))
			if err != nil {
				return nil, err
			}
			doc.Language = strings.TrimSpace(string(lang))
		default:
			base, ext, ok := explodeFilename(name)
			if !ok {
				continue
			}
			if base == "" || base[0] == '_' || base == "language" || base == "views" {
				return nil, errors.Errorf("ddoc: reserved field file %s", filepath.Join(path, name))
			}
			v, err := decodeFile(filepath.Join(path, name), ext)
			if err != nil {
				return nil, err
			}
			doc.Extra[base] = v
		}
	}
	return doc, nil
}

func loadViews(path string) (map[string]View, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	views := make(map[string]View, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		mapSrc, err := os.ReadFile(filepath.Join(path, name, "map.js"))
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.Errorf("ddoc: view %s has no map.js", filepath.Join(path, name))
			}
			return nil, err
		}
		view := View{Map: strings.TrimSpace(string(mapSrc))}
		reduceSrc, err := os.ReadFile(filepath.Join(path, name, "reduce.js"))
		switch {
		case err == nil:
			view.Reduce = strings.TrimSpace(string(reduceSrc))
		case !os.IsNotExist(err):
			return nil, err
		}
		views[name] = view
	}
	return views, nil
}

// LoadDir reads every design document under root, one subdirectory per
// document, in lexical order.
func LoadDir(root string) ([]*DesignDoc, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	docs := make([]*DesignDoc, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		doc, err := Load(filepath.Join(root, entry.Name()))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return nil, errors.Errorf("ddoc: no design documents in %s", root)
	}
	return docs, nil
}
