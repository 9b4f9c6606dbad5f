package types

import (
	"fmt"
	"net/url"

	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/shared/apierr"
)

// PackageRepository is one entry of the repository catalog.
type PackageRepository struct {
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// Validate checks that the repository has a name and an absolute URI.
func (r PackageRepository) Validate() error {
	if r.Name == "" {
		return apierr.JSONDecoding("name", "repository name must not be empty", nil)
	}
	u, err := url.Parse(r.URI)
	if err != nil {
		return apierr.RepositoryURI(r.URI, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return apierr.RepositoryURI(r.URI, fmt.Errorf("uri must be absolute"))
	}
	return nil
}

// RepositoryList is the stored catalog payload. Order is significant.
type RepositoryList struct {
	Repositories []PackageRepository `json:"repositories"`
}

// InsertAt returns a copy of repos with repo inserted at index. The index is
// clamped to [0, len(repos)].
func InsertAt(repos []PackageRepository, index int, repo PackageRepository) []PackageRepository {
	if index < 0 {
		index = 0
	}
	if index > len(repos) {
		index = len(repos)
	}

	out := make([]PackageRepository, 0, len(repos)+1)
	out = append(out, repos[:index]...)
	out = append(out, repo)
	out = append(out, repos[index:]...)
	return out
}

// RemoveWhere returns a copy of repos without the entries matching drop.
func RemoveWhere(repos []PackageRepository, drop func(PackageRepository) bool) []PackageRepository {
	out := make([]PackageRepository, 0, len(repos))
	for _, repo := range repos {
		if !drop(repo) {
			out = append(out, repo)
		}
	}
	return out
}
