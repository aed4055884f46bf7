package record

import (
	"fmt"
	"path/filepath"
)

// SnapshotExt is the file extension of every stored snapshot.
const SnapshotExt = "yml"

// Identity names a stored object. TypeTag selects the Registry factory used to
// rebuild it; ClassName and ID alone decide where it is stored.
type Identity struct {
	TypeTag   string
	ClassName string
	ID        string
}

func NewIdentity(typeTag, className, id string) Identity {
	return Identity{TypeTag: typeTag, ClassName: className, ID: id}
}

// Path returns the snapshot path relative to the repository root, always
// slash separated since it is handed to git.
func (id Identity) Path() string {
	return id.ClassName + "/" + id.ID + "." + SnapshotExt
}

func (id Identity) ClassDirectory(base string) string {
	return filepath.Join(base, id.ClassName)
}

func (id Identity) Filename(base string) string {
	return filepath.Join(id.ClassDirectory(base), id.ID+"."+SnapshotExt)
}

// SameObject reports whether both identities address the same snapshot.
func (id Identity) SameObject(other Identity) bool {
	return id.ClassName == other.ClassName && id.ID == other.ID
}

func (id Identity) String() string {
	if id.TypeTag == "" {
		return id.ClassName + "/" + id.ID
	}
	return fmt.Sprintf("%s/%s (%s)", id.ClassName, id.ID, id.TypeTag)
}
