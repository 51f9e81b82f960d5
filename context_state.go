package declare

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// StateEntry is the persisted form of one resource.
type StateEntry struct {
	ID            string `json:"-"`
	ConstructorID string `json:"constructorId"`
	Data          any    `json:"data"`
}

// ContextState is the persisted form of a whole store. Entries keep
// declaration order, which is also the key order of the encoded object:
//
//	{"resourceData": {"<id>": {"constructorId": "...", "data": ...}}}
type ContextState struct {
	Entries []StateEntry
}

// Len reports the number of entries.
func (s ContextState) Len() int {
	return len(s.Entries)
}

// Lookup returns the entry stored under id.
func (s ContextState) Lookup(id string) (StateEntry, bool) {
	for _, entry := range s.Entries {
		if entry.ID == id {
			return entry, true
		}
	}
	return StateEntry{}, false
}

// IDs lists entry ids in order.
func (s ContextState) IDs() []string {
	ids := make([]string, 0, len(s.Entries))
	for _, entry := range s.Entries {
		ids = append(ids, entry.ID)
	}
	return ids
}

// Put replaces the entry with the same id or appends a new one.
func (s *ContextState) Put(entry StateEntry) {
	for i := range s.Entries {
		if s.Entries[i].ID == entry.ID {
			s.Entries[i] = entry
			return
		}
	}
	s.Entries = append(s.Entries, entry)
}

// Remove drops the entry stored under id and reports whether it existed.
func (s *ContextState) Remove(id string) bool {
	for i := range s.Entries {
		if s.Entries[i].ID == id {
			s.Entries = append(s.Entries[:i], s.Entries[i+1:]...)
			return true
		}
	}
	return false
}

// MarshalJSON writes entries as an object keyed by id, in order.
func (s ContextState) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"resourceData":{`)
	for i, entry := range s.Entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(entry.ID)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(entry)
		if err != nil {
			return nil, fmt.Errorf("declare: encode %s: %w", entry.ID, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteString(`}}`)
	return buf.Bytes(), nil
}

// UnmarshalJSON reads entries in file order. Unknown top-level keys are
// ignored; a null document or a missing resourceData yields no entries.
func (s *ContextState) UnmarshalJSON(data []byte) error {
	s.Entries = nil
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("declare: decode state: %w", err)
	}
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("declare: decode state: expected object, got %v", tok)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("declare: decode state: %w", err)
		}
		key, _ := keyTok.(string)
		if key != "resourceData" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return fmt.Errorf("declare: decode state: %w", err)
			}
			continue
		}
		if err := s.decodeEntries(dec); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}

func (s *ContextState) decodeEntries(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("declare: decode resourceData: %w", err)
	}
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("declare: decode resourceData: expected object, got %v", tok)
	}
	for dec.More() {
		idTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("declare: decode resourceData: %w", err)
		}
		id, _ := idTok.(string)
		var entry StateEntry
		if err := dec.Decode(&entry); err != nil {
			return fmt.Errorf("declare: decode %s: %w", id, err)
		}
		entry.ID = id
		s.Put(entry)
	}
	_, err = dec.Token()
	return err
}
