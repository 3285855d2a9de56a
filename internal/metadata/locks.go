package metadata

import "maps"

// LockSet holds the lock state of a record. A locked field is never written
// by an automatic refresh, and AllFieldsLocked freezes the whole record.
type LockSet struct {
	AllFieldsLocked bool               `json:"allFieldsLocked,omitempty"`
	Fields          map[LockField]bool `json:"fields,omitempty"`
}

// IsLocked reports whether f is locked, either individually or through the
// master lock.
func (l LockSet) IsLocked(f LockField) bool {
	return l.AllFieldsLocked || l.Fields[f]
}

// Set changes the lock state of a single field.
func (l *LockSet) Set(f LockField, locked bool) {
	if l.Fields == nil {
		l.Fields = make(map[LockField]bool)
	}
	if locked {
		l.Fields[f] = true
		return
	}
	delete(l.Fields, f)
}

// LockedFields returns the individually locked fields in AllLockFields order.
func (l LockSet) LockedFields() []LockField {
	var out []LockField
	for _, f := range AllLockFields {
		if l.Fields[f] {
			out = append(out, f)
		}
	}
	return out
}

// Clone returns a deep copy.
func (l LockSet) Clone() LockSet {
	return LockSet{AllFieldsLocked: l.AllFieldsLocked, Fields: maps.Clone(l.Fields)}
}

// LockUpdate carries lock instructions alongside fetched metadata. A nil
// AllFieldsLocked or a field absent from Fields means "leave unchanged".
type LockUpdate struct {
	AllFieldsLocked *bool              `json:"allFieldsLocked,omitempty" yaml:"allFieldsLocked,omitempty"`
	Fields          map[LockField]bool `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u LockUpdate) IsEmpty() bool {
	return u.AllFieldsLocked == nil && len(u.Fields) == 0
}

// ApplyTo writes the instructions into ls and reports whether anything changed.
func (u LockUpdate) ApplyTo(ls *LockSet) bool {
	changed := false
	if u.AllFieldsLocked != nil && *u.AllFieldsLocked != ls.AllFieldsLocked {
		ls.AllFieldsLocked = *u.AllFieldsLocked
		changed = true
	}
	for _, f := range AllLockFields {
		locked, ok := u.Fields[f]
		if !ok || ls.Fields[f] == locked {
			continue
		}
		ls.Set(f, locked)
		changed = true
	}
	return changed
}
