package protection

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/BasedHardware/omi-sub000/internal/encryption"
	"github.com/BasedHardware/omi-sub000/internal/models"
	"github.com/BasedHardware/omi-sub000/internal/store"
)

var (
	// ErrDecode indicates a corrupt compressed frame or a payload that does
	// not parse as the expected JSON shape.
	ErrDecode = errors.New("protection: decode failed")
	// ErrInvariant indicates an enhanced-level document carrying a sensitive
	// field in plaintext. Only the migration path treats this as an error.
	ErrInvariant = errors.New("protection: enhanced document carries plaintext sensitive field")
)

// DocLevel returns the protection level stamped on the document. A missing
// or unknown level reads as standard.
func DocLevel(doc store.Document) models.ProtectionLevel {
	if s, ok := doc[models.LevelKey].(string); ok {
		if l := models.ProtectionLevel(s); l.Valid() {
			return l
		}
	}
	return models.LevelStandard
}

// Transformer applies per-field encodings on the write path and reverses
// them on the read path. Both directions operate on deep copies; the
// caller's document is never mutated.
type Transformer struct {
	keys *encryption.KeyService
	log  *zap.Logger
}

// NewTransformer creates a Transformer using the given key service.
func NewTransformer(keys *encryption.KeyService, log *zap.Logger) *Transformer {
	return &Transformer{keys: keys, log: log}
}

// PrepareForWrite encodes the family's sensitive fields for storage at the
// given level. Text fields are encrypted at enhanced; segment lists are
// JSON-encoded and compressed at every level, and at enhanced the compressed
// frame is hex-encoded and encrypted. Hash-indexed fields gain their query
// hash sibling before encryption. Any failure aborts the write.
func (t *Transformer) PrepareForWrite(doc store.Document, uid string, level models.ProtectionLevel, spec FamilySpec) (store.Document, error) {
	if doc == nil {
		return nil, nil
	}
	out := store.Clone(doc)
	for _, f := range spec.Fields {
		v, ok := out[f.Name]
		if !ok || v == nil {
			continue
		}
		switch f.Kind {
		case FieldText, FieldHashedText:
			s, ok := v.(string)
			if !ok {
				continue
			}
			if f.Kind == FieldHashedText {
				if level == models.LevelEnhanced {
					// the hash is derived from cleartext, before encryption
					out[f.HashField()] = encryption.QueryHash(s)
				} else {
					delete(out, f.HashField())
				}
			}
			if level == models.LevelEnhanced {
				env, err := t.encrypt([]byte(s), uid)
				if err != nil {
					return nil, err
				}
				out[f.Name] = env
			}
		case FieldSegments:
			list, ok := v.([]any)
			if !ok {
				continue
			}
			raw, err := json.Marshal(list)
			if err != nil {
				return nil, fmt.Errorf("protection: encode %s: %w", f.Name, err)
			}
			frame, err := deflate(raw)
			if err != nil {
				return nil, err
			}
			if level == models.LevelEnhanced {
				env, err := t.encrypt([]byte(hex.EncodeToString(frame)), uid)
				if err != nil {
					return nil, err
				}
				out[f.Name] = env
			} else {
				out[f.Name] = frame
			}
			out[f.Marker()] = true
		}
	}
	return out, nil
}

// PrepareForRead reverses the encoding of the family's sensitive fields
// based on the level stamped on the document itself. Fields that cannot be
// decrypted or decoded are returned exactly as stored, with a structured log
// entry; this is the only place such failures are swallowed.
func (t *Transformer) PrepareForRead(doc store.Document, uid string, spec FamilySpec) store.Document {
	out, _ := t.decode(doc, uid, spec, false)
	return out
}

// DecodeStrict is the migration-path variant of PrepareForRead: any decrypt
// or decode failure, or an enhanced document carrying plaintext, is returned
// as an error instead of being absorbed.
func (t *Transformer) DecodeStrict(doc store.Document, uid string, spec FamilySpec) (store.Document, error) {
	return t.decode(doc, uid, spec, true)
}

func (t *Transformer) decode(doc store.Document, uid string, spec FamilySpec, strict bool) (store.Document, error) {
	if doc == nil {
		return nil, nil
	}
	out := store.Clone(doc)
	level := DocLevel(doc)
	for _, f := range spec.Fields {
		v, ok := out[f.Name]
		if !ok || v == nil {
			continue
		}
		var err error
		switch f.Kind {
		case FieldText, FieldHashedText:
			err = t.decodeText(out, uid, f, level)
		case FieldSegments:
			err = t.decodeSegments(out, uid, f, level, strict)
		}
		if err != nil {
			if strict {
				return nil, err
			}
			t.log.Warn("returning sensitive field as stored",
				zap.String("uid", uid),
				zap.String("field", f.Name),
				zap.Error(err))
		}
	}
	return out, nil
}

func (t *Transformer) decodeText(out store.Document, uid string, f FieldSpec, level models.ProtectionLevel) error {
	if level != models.LevelEnhanced {
		return nil
	}
	s, ok := out[f.Name].(string)
	if !ok {
		return nil
	}
	key, err := t.keys.Derive(uid)
	if err != nil {
		return err
	}
	plain, err := encryption.Decrypt(s, key)
	if err != nil {
		return err
	}
	out[f.Name] = string(plain)
	return nil
}

func (t *Transformer) decodeSegments(out store.Document, uid string, f FieldSpec, level models.ProtectionLevel, strict bool) error {
	marker, _ := out[f.Marker()].(bool)
	switch val := out[f.Name].(type) {
	case []any:
		// plaintext list; at enhanced this is leaked plaintext, legal only
		// outside migration
		if level == models.LevelEnhanced && strict {
			return fmt.Errorf("%w: %s", ErrInvariant, f.Name)
		}
		return nil
	case []byte:
		// compressed frame at standard; the marker may be absent on legacy docs
		if list, err := inflateSegments(val); err == nil {
			return t.setDecoded(out, f, list)
		}
		if list, err := parseSegments(val); err == nil {
			return t.setDecoded(out, f, list)
		}
		return fmt.Errorf("%w: %s is neither a compressed frame nor JSON", ErrDecode, f.Name)
	case string:
		if level == models.LevelEnhanced {
			key, err := t.keys.Derive(uid)
			if err != nil {
				return err
			}
			payload, err := encryption.Decrypt(val, key)
			if err != nil {
				return err
			}
			// hex-encoded compressed frame, or direct JSON from the
			// pre-compression era
			if frame, herr := hex.DecodeString(string(payload)); herr == nil {
				if list, ierr := inflateSegments(frame); ierr == nil {
					return t.setDecoded(out, f, list)
				}
			}
			if list, jerr := parseSegments(payload); jerr == nil {
				return t.setDecoded(out, f, list)
			}
			return fmt.Errorf("%w: decrypted %s payload did not decode", ErrDecode, f.Name)
		}
		if marker {
			// legacy: compressed frame persisted as a string value
			if list, err := inflateSegments([]byte(val)); err == nil {
				return t.setDecoded(out, f, list)
			}
			return fmt.Errorf("%w: %s marked compressed but frame is corrupt", ErrDecode, f.Name)
		}
		return nil
	default:
		return nil
	}
}

// setDecoded replaces the stored representation with the decoded list and
// lowers the compression marker if one was present.
func (t *Transformer) setDecoded(out store.Document, f FieldSpec, list []any) error {
	out[f.Name] = list
	if _, ok := out[f.Marker()]; ok {
		out[f.Marker()] = false
	}
	return nil
}

func (t *Transformer) encrypt(plaintext []byte, uid string) (string, error) {
	key, err := t.keys.Derive(uid)
	if err != nil {
		return "", err
	}
	return encryption.Encrypt(plaintext, key)
}

func inflateSegments(frame []byte) ([]any, error) {
	raw, err := inflate(frame)
	if err != nil {
		return nil, err
	}
	return parseSegments(raw)
}

func parseSegments(raw []byte) ([]any, error) {
	var list []any
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return list, nil
}
