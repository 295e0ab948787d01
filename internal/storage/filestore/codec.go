package filestore

import (
	"encoding/json"
	"strings"

	"howett.net/plist"

	"github.com/wirecap/wirecap/internal/errdef"
	"github.com/wirecap/wirecap/pkg/session"
)

// Format selects the on-disk encoding of session files and export
// documents.
type Format string

const (
	FormatJSON  Format = "json"
	FormatPlist Format = "plist"
)

// ParseFormat maps a configuration string or file extension to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "json":
		return FormatJSON, nil
	case "plist", "xml":
		return FormatPlist, nil
	default:
		return "", errdef.New(errdef.CodeValidate, "unknown storage format %q", s)
	}
}

// Ext returns the file extension used for the format, without the dot.
func (f Format) Ext() string {
	if f == FormatPlist {
		return "plist"
	}
	return "json"
}

// encodeSession renders one session in the given format.
func encodeSession(f Format, s session.Session) ([]byte, error) {
	return encodeDoc(f, s)
}

// decodeSession parses one session file.
func decodeSession(f Format, data []byte) (session.Session, error) {
	var s session.Session
	if err := decodeDoc(f, data, &s); err != nil {
		return session.Session{}, err
	}
	return s, nil
}

// encodeSessions renders a whole-array export document.
func encodeSessions(f Format, sessions []session.Session) ([]byte, error) {
	if sessions == nil {
		sessions = []session.Session{}
	}
	return encodeDoc(f, sessions)
}

// decodeSessions parses a whole-array export document.
func decodeSessions(f Format, data []byte) ([]session.Session, error) {
	var out []session.Session
	if err := decodeDoc(f, data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func encodeDoc(f Format, v any) ([]byte, error) {
	switch f {
	case FormatPlist:
		doc, err := toGeneric(v)
		if err != nil {
			return nil, errdef.Wrap(errdef.CodeEncode, err, "encode plist document")
		}
		data, err := plist.MarshalIndent(doc, plist.XMLFormat, "\t")
		if err != nil {
			return nil, errdef.Wrap(errdef.CodeEncode, err, "encode plist document")
		}
		return data, nil
	default:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, errdef.Wrap(errdef.CodeEncode, err, "encode json document")
		}
		return data, nil
	}
}

func decodeDoc(f Format, data []byte, v any) error {
	switch f {
	case FormatPlist:
		var doc any
		if _, err := plist.Unmarshal(data, &doc); err != nil {
			return errdef.Wrap(errdef.CodeDecode, err, "decode plist document")
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return errdef.Wrap(errdef.CodeDecode, err, "decode plist document")
		}
		if err := json.Unmarshal(raw, v); err != nil {
			return errdef.Wrap(errdef.CodeCorrupt, err, "decode plist document")
		}
		return nil
	default:
		if err := json.Unmarshal(data, v); err != nil {
			return errdef.Wrap(errdef.CodeCorrupt, err, "decode json document")
		}
		return nil
	}
}

// toGeneric lowers a typed value to the maps/slices/scalars shape that both
// formats share, going through the JSON representation so plist files carry
// exactly the same document structure as json files.
func toGeneric(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// genericDoc parses a raw document into the generic shape for schema
// validation, regardless of format.
func genericDoc(f Format, data []byte) (any, error) {
	var doc any
	switch f {
	case FormatPlist:
		if _, err := plist.Unmarshal(data, &doc); err != nil {
			return nil, errdef.Wrap(errdef.CodeDecode, err, "decode plist document")
		}
		// Normalize plist scalars (uint64 integers, time.Time dates) to the
		// JSON shape the schema describes.
		return toGeneric(doc)
	default:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, errdef.Wrap(errdef.CodeDecode, err, "decode json document")
		}
		return doc, nil
	}
}
