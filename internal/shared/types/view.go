package types

// PackageView is the variant-independent projection of a PackageDefinition.
// Fields a variant does not define are left at their zero value.
type PackageView struct {
	Common
	PackagingVersion      PackagingVersion
	Command               *Command
	MinDcosReleaseVersion string
	UpgradesFrom          []string
	DowngradesTo          []string
	Manager               *Manager
}

// Normalize projects any definition variant onto a PackageView.
func Normalize(def PackageDefinition) PackageView {
	view := PackageView{
		Common:           *def.common(),
		PackagingVersion: def.Packaging(),
	}

	switch p := def.(type) {
	case *V2Package:
		view.Command = p.Command
	case *V3Package:
		view.MinDcosReleaseVersion = p.MinDcosReleaseVersion
	case *V4Package:
		view.MinDcosReleaseVersion = p.MinDcosReleaseVersion
		view.UpgradesFrom = p.UpgradesFrom
		view.DowngradesTo = p.DowngradesTo
	case *V5Package:
		view.MinDcosReleaseVersion = p.MinDcosReleaseVersion
		view.UpgradesFrom = p.UpgradesFrom
		view.DowngradesTo = p.DowngradesTo
		view.Manager = p.Manager
	}

	return view
}

// PackageMetadata is the descriptive subset of a package recorded on
// deployed applications.
type PackageMetadata struct {
	PackagingVersion   PackagingVersion `json:"packagingVersion"`
	Name               string           `json:"name"`
	Version            string           `json:"version"`
	Maintainer         string           `json:"maintainer"`
	Description        string           `json:"description"`
	Tags               []string         `json:"tags"`
	Selected           bool             `json:"selected"`
	Framework          bool             `json:"framework"`
	Website            string           `json:"website,omitempty"`
	Scm                string           `json:"scm,omitempty"`
	PreInstallNotes    string           `json:"preInstallNotes,omitempty"`
	PostInstallNotes   string           `json:"postInstallNotes,omitempty"`
	PostUninstallNotes string           `json:"postUninstallNotes,omitempty"`
	Images             *Images          `json:"images,omitempty"`
}

// Metadata extracts the descriptive metadata from the view.
func (v PackageView) Metadata() PackageMetadata {
	tags := v.Tags
	if tags == nil {
		tags = []string{}
	}

	meta := PackageMetadata{
		PackagingVersion:   v.PackagingVersion,
		Name:               v.Name,
		Version:            v.Version,
		Maintainer:         v.Maintainer,
		Description:        v.Description,
		Tags:               tags,
		Selected:           v.Selected != nil && *v.Selected,
		Framework:          v.Framework != nil && *v.Framework,
		Website:            v.Website,
		Scm:                v.Scm,
		PreInstallNotes:    v.PreInstallNotes,
		PostInstallNotes:   v.PostInstallNotes,
		PostUninstallNotes: v.PostUninstallNotes,
	}
	if v.Resource != nil {
		meta.Images = v.Resource.Images
	}
	return meta
}

// HasTemplate reports whether the package defines an application template.
func (v PackageView) HasTemplate() bool {
	return v.Marathon != nil && v.Marathon.V2AppMustacheTemplate != nil
}
