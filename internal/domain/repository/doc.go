// Package repository manages the package repository catalog.
//
// The catalog is an ordered list of package repositories stored as a single
// enveloped node in the coordination service. It is created on first use,
// seeded with the default repository, and afterwards only replaced.
//
// Components:
//   - Store: catalog reads and mutations
//   - Seed: the catalog written when no node exists
//
// Consistency:
//   - Read, Add and Delete always start from an authoritative read.
//   - ReadCached serves the watch-refreshed mirror when it has a copy.
//   - Mutations write with the version they read. A racing writer makes the
//     loser fail with ConcurrentModification; nothing is retried here, since
//     only the caller knows whether its intended index still makes sense.
//
// Example Usage:
//
//	store := repository.NewStore(client, mirror, repository.Config{
//		Path:    "/package/repositories",
//		Default: types.PackageRepository{Name: "Universe", URI: "https://universe.mesosphere.com/repo"},
//	}, logger, metrics)
//	repos, err := store.Add(ctx, nil, types.PackageRepository{Name: "local", URI: "http://localhost/repo"})
package repository
