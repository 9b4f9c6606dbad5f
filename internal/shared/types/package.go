package types

import (
	"encoding/json"

	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/shared/apierr"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/shared/jsonutil"
)

// PackagingVersion discriminates the package definition variants.
type PackagingVersion string

const (
	PackagingV2 PackagingVersion = "2.0"
	PackagingV3 PackagingVersion = "3.0"
	PackagingV4 PackagingVersion = "4.0"
	PackagingV5 PackagingVersion = "5.0"
)

// PackageDefinition is one of V2Package, V3Package, V4Package or V5Package.
// The interface is sealed; use Normalize for a variant-independent view.
type PackageDefinition interface {
	Packaging() PackagingVersion
	common() *Common
}

// Common holds the fields every packaging version defines.
type Common struct {
	Name               string                 `json:"name"`
	Version            string                 `json:"version"`
	ReleaseVersion     int64                  `json:"releaseVersion"`
	Maintainer         string                 `json:"maintainer"`
	Description        string                 `json:"description"`
	Tags               []string               `json:"tags,omitempty"`
	Selected           *bool                  `json:"selected,omitempty"`
	Framework          *bool                  `json:"framework,omitempty"`
	Website            string                 `json:"website,omitempty"`
	Scm                string                 `json:"scm,omitempty"`
	PreInstallNotes    string                 `json:"preInstallNotes,omitempty"`
	PostInstallNotes   string                 `json:"postInstallNotes,omitempty"`
	PostUninstallNotes string                 `json:"postUninstallNotes,omitempty"`
	Marathon           *Marathon              `json:"marathon,omitempty"`
	Config             map[string]interface{} `json:"config,omitempty"`
	Resource           *Resource              `json:"resource,omitempty"`
}

// Marathon carries the application template. Absent means the package has
// nothing to deploy; an empty template is still a template.
type Marathon struct {
	V2AppMustacheTemplate []byte `json:"v2AppMustacheTemplate"`
}

// Resource lists the external artifacts a package references.
type Resource struct {
	Assets *Assets `json:"assets,omitempty"`
	Images *Images `json:"images,omitempty"`
}

// Assets are the downloadable artifacts of a package.
type Assets struct {
	URIs      map[string]string `json:"uris,omitempty"`
	Container *Container        `json:"container,omitempty"`
}

// Container lists docker images by name.
type Container struct {
	Docker map[string]string `json:"docker"`
}

// Images are display assets.
type Images struct {
	IconSmall   string   `json:"icon-small,omitempty"`
	IconMedium  string   `json:"icon-medium,omitempty"`
	IconLarge   string   `json:"icon-large,omitempty"`
	Screenshots []string `json:"screenshots,omitempty"`
}

// Command lists python requirements for a package CLI (2.0 only).
type Command struct {
	Pip []string `json:"pip"`
}

// Manager names the package that manages this one (5.0 only).
type Manager struct {
	PackageName       string `json:"packageName"`
	MinPackageVersion string `json:"minPackageVersion,omitempty"`
}

// V2Package is a packaging version 2.0 definition.
type V2Package struct {
	Common
	Command *Command `json:"command,omitempty"`
}

// V3Package is a packaging version 3.0 definition.
type V3Package struct {
	Common
	MinDcosReleaseVersion string `json:"minDcosReleaseVersion,omitempty"`
}

// V4Package is a packaging version 4.0 definition.
type V4Package struct {
	Common
	MinDcosReleaseVersion string   `json:"minDcosReleaseVersion,omitempty"`
	UpgradesFrom          []string `json:"upgradesFrom,omitempty"`
	DowngradesTo          []string `json:"downgradesTo,omitempty"`
}

// V5Package is a packaging version 5.0 definition.
type V5Package struct {
	Common
	MinDcosReleaseVersion string   `json:"minDcosReleaseVersion,omitempty"`
	UpgradesFrom          []string `json:"upgradesFrom,omitempty"`
	DowngradesTo          []string `json:"downgradesTo,omitempty"`
	Manager               *Manager `json:"manager,omitempty"`
}

func (p *V2Package) Packaging() PackagingVersion { return PackagingV2 }
func (p *V3Package) Packaging() PackagingVersion { return PackagingV3 }
func (p *V4Package) Packaging() PackagingVersion { return PackagingV4 }
func (p *V5Package) Packaging() PackagingVersion { return PackagingV5 }

func (p *V2Package) common() *Common { return &p.Common }
func (p *V3Package) common() *Common { return &p.Common }
func (p *V4Package) common() *Common { return &p.Common }
func (p *V5Package) common() *Common { return &p.Common }

// MarshalJSON writes the packagingVersion discriminator next to the fields.
func (p *V2Package) MarshalJSON() ([]byte, error) {
	type plain V2Package
	return json.Marshal(struct {
		PackagingVersion PackagingVersion `json:"packagingVersion"`
		*plain
	}{PackagingV2, (*plain)(p)})
}

// MarshalJSON writes the packagingVersion discriminator next to the fields.
func (p *V3Package) MarshalJSON() ([]byte, error) {
	type plain V3Package
	return json.Marshal(struct {
		PackagingVersion PackagingVersion `json:"packagingVersion"`
		*plain
	}{PackagingV3, (*plain)(p)})
}

// MarshalJSON writes the packagingVersion discriminator next to the fields.
func (p *V4Package) MarshalJSON() ([]byte, error) {
	type plain V4Package
	return json.Marshal(struct {
		PackagingVersion PackagingVersion `json:"packagingVersion"`
		*plain
	}{PackagingV4, (*plain)(p)})
}

// MarshalJSON writes the packagingVersion discriminator next to the fields.
func (p *V5Package) MarshalJSON() ([]byte, error) {
	type plain V5Package
	return json.Marshal(struct {
		PackagingVersion PackagingVersion `json:"packagingVersion"`
		*plain
	}{PackagingV5, (*plain)(p)})
}

// DecodePackageDefinition decodes a definition, choosing the variant from
// its packagingVersion field.
func DecodePackageDefinition(data []byte) (PackageDefinition, error) {
	var probe struct {
		PackagingVersion PackagingVersion `json:"packagingVersion"`
	}
	if err := jsonutil.Decode(data, &probe); err != nil {
		return nil, err
	}

	var def PackageDefinition
	switch probe.PackagingVersion {
	case PackagingV2:
		def = &V2Package{}
	case PackagingV3:
		def = &V3Package{}
	case PackagingV4:
		def = &V4Package{}
	case PackagingV5:
		def = &V5Package{}
	default:
		return nil, apierr.InvalidPackage(string(probe.PackagingVersion))
	}

	if err := jsonutil.Decode(data, def); err != nil {
		return nil, err
	}

	c := def.common()
	if c.Name == "" {
		return nil, apierr.JSONDecoding("name", "package name must not be empty", nil)
	}
	if c.Version == "" {
		return nil, apierr.JSONDecoding("version", "package version must not be empty", nil)
	}
	return def, nil
}
