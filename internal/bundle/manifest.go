package bundle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Manifest is the subset of manifest.json the orchestrator cares about:
// identity fields plus the UI page paths used for direct-URL navigation.
type Manifest struct {
	Name            string `json:"name"`
	Version         string `json:"version"`
	ManifestVersion int    `json:"manifest_version"`

	PopupPath     string `json:"-"`
	OptionsPath   string `json:"-"`
	SidePanelPath string `json:"-"`
}

// manifestSchema structurally validates the fields the engine depends on.
// manifest_version is numeric in MV2/MV3 but some generators emit it wrapped
// in an object, so both are accepted.
const manifestSchema = `{
	"type": "object",
	"required": ["name", "version", "manifest_version"],
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"version": {"type": "string", "minLength": 1},
		"manifest_version": {"type": ["integer", "object"]}
	}
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(manifestSchema)))
		if err != nil {
			schemaErr = fmt.Errorf("unmarshal manifest schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("manifest.schema.json", doc); err != nil {
			schemaErr = fmt.Errorf("add manifest schema resource: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile("manifest.schema.json")
	})
	return schema, schemaErr
}

// ParseManifest parses and validates raw manifest.json content.
func ParseManifest(raw []byte) (*Manifest, error) {
	sch, err := compiledSchema()
	if err != nil {
		return nil, err
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("manifest.json is not valid JSON: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		return nil, fmt.Errorf("manifest.json failed validation: %w", err)
	}

	var full struct {
		Name            string          `json:"name"`
		Version         string          `json:"version"`
		ManifestVersion json.RawMessage `json:"manifest_version"`
		Action          struct {
			DefaultPopup string `json:"default_popup"`
		} `json:"action"`
		BrowserAction struct {
			DefaultPopup string `json:"default_popup"`
		} `json:"browser_action"`
		OptionsPage string `json:"options_page"`
		OptionsUI   struct {
			Page string `json:"page"`
		} `json:"options_ui"`
		SidePanel struct {
			DefaultPath string `json:"default_path"`
		} `json:"side_panel"`
	}
	if err := json.Unmarshal(raw, &full); err != nil {
		return nil, fmt.Errorf("decode manifest.json: %w", err)
	}

	m := &Manifest{
		Name:    full.Name,
		Version: full.Version,
	}

	// MV3 uses a bare integer; tolerate an object wrapper by defaulting to 3.
	var mv int
	if err := json.Unmarshal(full.ManifestVersion, &mv); err == nil {
		m.ManifestVersion = mv
	} else {
		m.ManifestVersion = 3
	}

	m.PopupPath = full.Action.DefaultPopup
	if m.PopupPath == "" {
		m.PopupPath = full.BrowserAction.DefaultPopup
	}
	m.OptionsPath = full.OptionsPage
	if m.OptionsPath == "" {
		m.OptionsPath = full.OptionsUI.Page
	}
	m.SidePanelPath = full.SidePanel.DefaultPath

	return m, nil
}
