package repository

import (
	"context"
	"fmt"

	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/infrastructure/coordination"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/shared/apierr"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/shared/envelope"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/shared/types"
	"go.uber.org/zap"
)

const (
	opAdd    = "add"
	opDelete = "delete"
	opSeed   = "seed"
)

// CachedReader serves a possibly stale copy of the catalog node.
type CachedReader interface {
	ReadCached() *coordination.NodeState
}

// Config locates the catalog and names the repository it starts with.
type Config struct {
	Path    string
	Default types.PackageRepository
}

// Store handles catalog persistence
type Store struct {
	client  coordination.Client
	mirror  CachedReader
	path    string
	seed    []types.PackageRepository
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewStore creates a catalog store. mirror may be nil, in which case
// ReadCached reads through to the coordination service.
func NewStore(client coordination.Client, mirror CachedReader, cfg Config, logger *zap.Logger, metrics *monitoring.Metrics) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		client:  client,
		mirror:  mirror,
		path:    cfg.Path,
		seed:    []types.PackageRepository{cfg.Default},
		logger:  logger,
		metrics: metrics,
	}
}

// Seed returns a copy of the catalog written when no node exists.
func (s *Store) Seed() []types.PackageRepository {
	return append([]types.PackageRepository(nil), s.seed...)
}

// Read returns the committed catalog, creating the default one if none exists.
func (s *Store) Read(ctx context.Context) ([]types.PackageRepository, error) {
	state, err := s.client.Read(ctx, s.path)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return s.create(ctx)
	}
	return s.decode(state)
}

// ReadCached returns the mirrored catalog when one is available and falls
// back to Read otherwise. The result may trail recent writes.
func (s *Store) ReadCached(ctx context.Context) ([]types.PackageRepository, error) {
	if s.mirror != nil {
		if state := s.mirror.ReadCached(); state != nil {
			return s.decode(state)
		}
	}
	return s.Read(ctx)
}

// Add inserts repo at index, clamped to the catalog bounds. A nil index appends.
func (s *Store) Add(ctx context.Context, index *int, repo types.PackageRepository) ([]types.PackageRepository, error) {
	if err := repo.Validate(); err != nil {
		return nil, err
	}

	repos, err := s.mutate(ctx, opAdd, func(current []types.PackageRepository) []types.PackageRepository {
		at := len(current)
		if index != nil {
			at = *index
		}
		return types.InsertAt(current, at, repo)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("repository added",
		zap.String("name", repo.Name),
		zap.String("uri", repo.URI),
		zap.Int("repositories", len(repos)),
	)
	return repos, nil
}

// Delete removes every repository matching the name or the uri filter.
// Exactly one filter must be given. Deleting an absent entry leaves the
// catalog unchanged.
func (s *Store) Delete(ctx context.Context, name, uri *string) ([]types.PackageRepository, error) {
	var drop func(types.PackageRepository) bool
	switch {
	case name == nil && uri == nil:
		return nil, apierr.MissingFilter()
	case name != nil && uri != nil:
		return nil, apierr.AmbiguousFilter(*name, *uri)
	case name != nil:
		drop = func(r types.PackageRepository) bool { return r.Name == *name }
	default:
		drop = func(r types.PackageRepository) bool { return r.URI == *uri }
	}

	repos, err := s.mutate(ctx, opDelete, func(current []types.PackageRepository) []types.PackageRepository {
		return types.RemoveWhere(current, drop)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("repository deleted", zap.Int("repositories", len(repos)))
	return repos, nil
}

// mutate applies change to a fresh read and writes the result with the
// version that read observed. An absent node starts from the seed catalog.
func (s *Store) mutate(ctx context.Context, op string, change func([]types.PackageRepository) []types.PackageRepository) ([]types.PackageRepository, error) {
	state, err := s.client.Read(ctx, s.path)
	if err != nil {
		s.metrics.RecordCatalogMutation(op, "fault")
		return nil, err
	}

	current := s.Seed()
	if state != nil {
		if current, err = s.decode(state); err != nil {
			s.metrics.RecordCatalogMutation(op, "decode_error")
			return nil, err
		}
	}

	updated := change(current)
	data, err := encode(updated)
	if err != nil {
		return nil, err
	}

	if state == nil {
		err = s.client.Create(ctx, s.path, data)
	} else {
		err = s.client.WriteIfVersion(ctx, s.path, state.Version, data)
	}
	if err != nil {
		s.metrics.RecordCatalogMutation(op, outcome(err))
		return nil, err
	}

	s.metrics.RecordCatalogMutation(op, "ok")
	s.metrics.SetCatalogRepositories(len(updated))
	return updated, nil
}

// create writes the seed catalog. Losing the race to another creator is not
// a failure for a read, so the winner's catalog is read back instead.
func (s *Store) create(ctx context.Context) ([]types.PackageRepository, error) {
	seed := s.Seed()
	data, err := encode(seed)
	if err != nil {
		return nil, err
	}

	err = s.client.Create(ctx, s.path, data)
	switch {
	case err == nil:
		s.metrics.RecordCatalogMutation(opSeed, "ok")
		s.metrics.SetCatalogRepositories(len(seed))
		s.logger.Info("repository catalog seeded", zap.String("path", s.path))
		return seed, nil
	case apierr.IsKind(err, apierr.KindConcurrentModification):
		s.metrics.RecordCatalogMutation(opSeed, "conflict")
		state, err := s.client.Read(ctx, s.path)
		if err != nil {
			return nil, err
		}
		if state == nil {
			return nil, apierr.CoordinationFault("read", s.path, fmt.Errorf("node vanished after create conflict"))
		}
		return s.decode(state)
	default:
		s.metrics.RecordCatalogMutation(opSeed, outcome(err))
		return nil, err
	}
}

func (s *Store) decode(state *coordination.NodeState) ([]types.PackageRepository, error) {
	var list types.RepositoryList
	if err := envelope.Decode(envelope.RepositoryListV1, state.Data, &list); err != nil {
		s.logger.Error("stored repository catalog is unreadable",
			zap.String("path", s.path),
			zap.Int32("version", int32(state.Version)),
			zap.Error(err),
		)
		return nil, err
	}
	if list.Repositories == nil {
		list.Repositories = []types.PackageRepository{}
	}
	return list.Repositories, nil
}

func encode(repos []types.PackageRepository) ([]byte, error) {
	if repos == nil {
		repos = []types.PackageRepository{}
	}
	return envelope.Encode(envelope.RepositoryListV1, types.RepositoryList{Repositories: repos})
}

func outcome(err error) string {
	if apierr.IsKind(err, apierr.KindConcurrentModification) {
		return "conflict"
	}
	return "fault"
}
