// Package types provides the data structures shared by the catalog store,
// the renderer and the HTTP layer.
//
// Core Types:
//   - PackageRepository, RepositoryList: the ordered repository catalog
//   - PackageDefinition: sealed sum over V2Package..V5Package
//   - PackageView: variant-independent projection used for rendering
//   - PackageMetadata: descriptive subset recorded on deployed apps
//
// Example Usage:
//
//	def, err := types.DecodePackageDefinition(raw)
//	view := types.Normalize(def)
//	if view.HasTemplate() {
//	    ...
//	}
package types
