package project

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ManifestFileName is the project manifest at the project root.
const ManifestFileName = "PklProject.yaml"

// Manifest declares a project: its own package coordinates and the
// dependencies it imports under short names.
type Manifest struct {
	Package      PackageCoordinates            `yaml:"package"`
	Dependencies map[string]DeclaredDependency `yaml:"dependencies"`
}

type PackageCoordinates struct {
	Name    string `yaml:"name"`
	BaseURI string `yaml:"baseUri"`
	Version string `yaml:"version"`
}

// DeclaredDependency is one manifest entry: a remote package pinned to a
// minimum version, or a local sub-project referenced by relative path.
type DeclaredDependency struct {
	URI      string `yaml:"uri,omitempty"`
	Version  string `yaml:"version,omitempty"`
	Checksum string `yaml:"checksum,omitempty"`
	Path     string `yaml:"path,omitempty"`
}

func (d DeclaredDependency) IsLocal() bool { return d.Path != "" }

// LoadManifest reads and decodes the manifest in dir.
func LoadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newPackageLoadError(ErrInvalidManifest,
			"cannot read project manifest %s: %v", path, err)
	}
	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, newPackageLoadError(ErrInvalidManifest,
			"cannot parse project manifest %s: %v", path, err)
	}
	for name, dep := range manifest.Dependencies {
		if dep.IsLocal() {
			continue
		}
		if dep.URI == "" || dep.Version == "" {
			return nil, newPackageLoadError(ErrInvalidManifest,
				"dependency %q must declare either a path or a uri and version", name)
		}
	}
	return &manifest, nil
}

func (m *Manifest) String() string {
	return fmt.Sprintf("%s@%s", m.Package.Name, m.Package.Version)
}
