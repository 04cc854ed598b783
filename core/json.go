package core

import (
	"bytes"
	"encoding/json"
	"sort"
)

// The manifest wire format must survive round-trips through newer and older
// versions of Merlin: fields this version does not recognize are captured in
// the Extra maps on unmarshal and written back on marshal.

var descriptorKnownKeys = []string{
	"name", "display_name", "source_type", "url", "description",
	"install_commands", "start_command", "web_interface", "gui_mode",
	"folder_name", "use_venv", "python_version", "requirements_file",
	"auto_configured",
}

var metaKnownKeys = []string{"version", "created_by", "last_updated", "description"}

var manifestKnownKeys = []string{"metadata", "tools"}

func splitUnknown(data []byte, known []string) (map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(raw, k)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return raw, nil
}

func mergeUnknown(data []byte, extra map[string]json.RawMessage) ([]byte, error) {
	if len(extra) == 0 {
		return data, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, ok := raw[k]; !ok {
			raw[k] = v
		}
	}
	// Deterministic key order keeps saved manifests diff-friendly.
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(raw[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a descriptor and captures unrecognized fields.
func (d *ToolDescriptor) UnmarshalJSON(data []byte) error {
	type alias ToolDescriptor
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := splitUnknown(data, descriptorKnownKeys)
	if err != nil {
		return err
	}
	*d = ToolDescriptor(a)
	d.Extra = extra
	return nil
}

// MarshalJSON encodes a descriptor including preserved unknown fields.
func (d ToolDescriptor) MarshalJSON() ([]byte, error) {
	type alias ToolDescriptor
	data, err := json.Marshal(alias(d))
	if err != nil {
		return nil, err
	}
	return mergeUnknown(data, d.Extra)
}

// UnmarshalJSON decodes manifest metadata and captures unrecognized fields.
func (m *ManifestMeta) UnmarshalJSON(data []byte) error {
	type alias ManifestMeta
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := splitUnknown(data, metaKnownKeys)
	if err != nil {
		return err
	}
	*m = ManifestMeta(a)
	m.Extra = extra
	return nil
}

// MarshalJSON encodes manifest metadata including preserved unknown fields.
func (m ManifestMeta) MarshalJSON() ([]byte, error) {
	type alias ManifestMeta
	data, err := json.Marshal(alias(m))
	if err != nil {
		return nil, err
	}
	return mergeUnknown(data, m.Extra)
}

// UnmarshalJSON decodes a manifest and captures unrecognized top-level fields.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	type alias Manifest
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := splitUnknown(data, manifestKnownKeys)
	if err != nil {
		return err
	}
	*m = Manifest(a)
	m.Extra = extra
	return nil
}

// MarshalJSON encodes a manifest including preserved unknown fields.
func (m Manifest) MarshalJSON() ([]byte, error) {
	type alias Manifest
	a := alias(m)
	if a.Tools == nil {
		a.Tools = []ToolDescriptor{}
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return mergeUnknown(data, m.Extra)
}
