package project

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// LockFileName is the resolved-dependency lock file at the project root.
const LockFileName = "PklProject.deps.json"

// LockSchemaVersion is the only lock file schema this runtime reads.
const LockSchemaVersion = 1

// LockFile maps canonical package URIs to the one concrete version the
// project resolved them to.
type LockFile struct {
	SchemaVersion        int                         `json:"schemaVersion"`
	ResolvedDependencies map[string]LockedDependency `json:"resolvedDependencies"`
}

// LockedDependency is one lock entry: a remote package with pinned
// checksums, or a local sub-project with a filesystem path.
type LockedDependency struct {
	Type      string            `json:"type"`
	URI       string            `json:"uri"`
	Checksums map[string]string `json:"checksums,omitempty"`
	Path      string            `json:"path,omitempty"`
}

const (
	LockTypeRemote = "remote"
	LockTypeLocal  = "local"
)

// LoadLockFile reads and decodes the lock file in dir.
func LoadLockFile(dir string) (*LockFile, error) {
	path := filepath.Join(dir, LockFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newPackageLoadError(ErrInvalidLockFile,
			"cannot read lock file %s: %v", path, err)
	}
	var lock LockFile
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, newPackageLoadError(ErrInvalidLockFile,
			"cannot parse lock file %s: %v", path, err)
	}
	if lock.SchemaVersion != LockSchemaVersion {
		return nil, newPackageLoadError(ErrInvalidLockFile,
			"lock file %s has schema version %d, expected %d",
			path, lock.SchemaVersion, LockSchemaVersion)
	}
	return &lock, nil
}
