package repository

import (
	"context"
	"reflect"
	"sync"
	"testing"

	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/infrastructure/coordination"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/shared/apierr"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/shared/envelope"
	"github.com/GriffinCanCode/AgentOS/pkgplane/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const catalogPath = "/package/repositories"

var universe = types.PackageRepository{Name: "Universe", URI: "https://universe.mesosphere.com/repo"}

func newTestStore(client coordination.Client, mirror CachedReader) *Store {
	return NewStore(client, mirror, Config{Path: catalogPath, Default: universe}, nil, nil)
}

func storeWith(t require.TestingT, repos []types.PackageRepository) *coordination.Memory {
	data, err := encode(repos)
	require.NoError(t, err)
	mem := coordination.NewMemory()
	require.NoError(t, mem.Create(context.Background(), catalogPath, data))
	return mem
}

func repo(name string) types.PackageRepository {
	return types.PackageRepository{Name: name, URI: "https://" + name + ".example.com/repo"}
}

func intPtr(i int) *int       { return &i }
func strPtr(s string) *string { return &s }

type mockClient struct {
	mock.Mock
}

func (m *mockClient) Read(ctx context.Context, path string) (*coordination.NodeState, error) {
	args := m.Called(ctx, path)
	state, _ := args.Get(0).(*coordination.NodeState)
	return state, args.Error(1)
}

func (m *mockClient) Create(ctx context.Context, path string, data []byte) error {
	return m.Called(ctx, path, data).Error(0)
}

func (m *mockClient) WriteIfVersion(ctx context.Context, path string, version coordination.Version, data []byte) error {
	return m.Called(ctx, path, version, data).Error(0)
}

type stubMirror struct {
	state *coordination.NodeState
}

func (s stubMirror) ReadCached() *coordination.NodeState { return s.state }

func TestReadSeedsDefaultCatalog(t *testing.T) {
	ctx := context.Background()
	mem := coordination.NewMemory()
	store := newTestStore(mem, nil)

	repos, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.PackageRepository{universe}, repos)

	state, err := mem.Read(ctx, catalogPath)
	require.NoError(t, err)
	require.NotNil(t, state)

	repos, err = store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.PackageRepository{universe}, repos)

	again, err := mem.Read(ctx, catalogPath)
	require.NoError(t, err)
	assert.Equal(t, state.Version, again.Version, "second read must not write")
}

func TestReadLosingSeedRaceReadsWinner(t *testing.T) {
	ctx := context.Background()
	winner, err := encode([]types.PackageRepository{repo("first")})
	require.NoError(t, err)

	client := new(mockClient)
	client.On("Read", mock.Anything, catalogPath).Return(nil, nil).Once()
	client.On("Create", mock.Anything, catalogPath, mock.Anything).
		Return(apierr.ConcurrentModification("create", catalogPath))
	client.On("Read", mock.Anything, catalogPath).Return(&coordination.NodeState{Data: winner}, nil).Once()

	repos, err := newTestStore(client, nil).Read(ctx)

	require.NoError(t, err)
	assert.Equal(t, []types.PackageRepository{repo("first")}, repos)
	client.AssertExpectations(t)
}

func TestReadRejectsForeignContentType(t *testing.T) {
	ctx := context.Background()
	data, err := envelope.Encode(envelope.PackageDefinitionV1, map[string]string{"name": "x"})
	require.NoError(t, err)
	mem := coordination.NewMemory()
	require.NoError(t, mem.Create(ctx, catalogPath, data))

	_, err = newTestStore(mem, nil).Read(ctx)
	assert.True(t, apierr.IsKind(err, apierr.KindStorageSchema), "got %v", err)

	_, err = newTestStore(mem, nil).Add(ctx, nil, repo("x"))
	assert.True(t, apierr.IsKind(err, apierr.KindStorageSchema))

	state, err := mem.Read(ctx, catalogPath)
	require.NoError(t, err)
	assert.Equal(t, data, state.Data, "unreadable catalog must not be replaced")
}

func TestReadRejectsMalformedPayload(t *testing.T) {
	ctx := context.Background()
	mem := coordination.NewMemory()
	require.NoError(t, mem.Create(ctx, catalogPath, []byte("not json")))

	_, err := newTestStore(mem, nil).Read(ctx)
	assert.True(t, apierr.IsKind(err, apierr.KindJSONParsing), "got %v", err)
}

func TestReadCachedPrefersMirror(t *testing.T) {
	ctx := context.Background()
	cached, err := encode([]types.PackageRepository{repo("cached")})
	require.NoError(t, err)
	mem := storeWith(t, []types.PackageRepository{repo("fresh")})

	store := newTestStore(mem, stubMirror{state: &coordination.NodeState{Data: cached}})

	repos, err := store.ReadCached(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.PackageRepository{repo("cached")}, repos)

	repos, err = store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.PackageRepository{repo("fresh")}, repos)
}

func TestReadCachedMissSeeds(t *testing.T) {
	ctx := context.Background()
	mem := coordination.NewMemory()

	repos, err := newTestStore(mem, stubMirror{}).ReadCached(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.PackageRepository{universe}, repos)

	state, err := mem.Read(ctx, catalogPath)
	require.NoError(t, err)
	assert.NotNil(t, state)
}

func TestAddInsertsAtIndex(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		names := rapid.SliceOfN(rapid.StringMatching(`[a-d]{1,3}`), 0, 8).Draw(t, "names")
		catalog := make([]types.PackageRepository, 0, len(names))
		for _, n := range names {
			catalog = append(catalog, repo(n))
		}
		index := rapid.IntRange(0, len(catalog)).Draw(t, "index")
		added := repo(rapid.StringMatching(`[a-d]{1,3}`).Draw(t, "added"))

		store := newTestStore(storeWith(t, catalog), nil)
		ctx := context.Background()

		if _, err := store.Add(ctx, &index, added); err != nil {
			t.Fatalf("add: %v", err)
		}
		got, err := store.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}

		want := types.InsertAt(catalog, index, added)
		if len(got) != len(catalog)+1 {
			t.Fatalf("length %d, want %d", len(got), len(catalog)+1)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("got %v, want %v", got, want)
		}
	})
}

func TestAddIndexHandling(t *testing.T) {
	base := []types.PackageRepository{repo("a"), repo("b")}
	tests := []struct {
		name  string
		index *int
		want  []string
	}{
		{"append when absent", nil, []string{"a", "b", "new"}},
		{"front", intPtr(0), []string{"new", "a", "b"}},
		{"middle", intPtr(1), []string{"a", "new", "b"}},
		{"negative clamps to front", intPtr(-3), []string{"new", "a", "b"}},
		{"past end clamps to back", intPtr(42), []string{"a", "b", "new"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repos, err := newTestStore(storeWith(t, base), nil).Add(context.Background(), tt.index, repo("new"))
			require.NoError(t, err)

			var names []string
			for _, r := range repos {
				names = append(names, r.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestAddWithoutCatalogStartsFromSeed(t *testing.T) {
	ctx := context.Background()
	mem := coordination.NewMemory()

	repos, err := newTestStore(mem, nil).Add(ctx, intPtr(0), repo("local"))
	require.NoError(t, err)
	assert.Equal(t, []types.PackageRepository{repo("local"), universe}, repos)

	state, err := mem.Read(ctx, catalogPath)
	require.NoError(t, err)
	assert.Equal(t, coordination.Version(0), state.Version)
}

func TestAddRejectsInvalidRepository(t *testing.T) {
	client := new(mockClient)
	store := newTestStore(client, nil)

	_, err := store.Add(context.Background(), nil, types.PackageRepository{Name: "x", URI: "not a uri"})
	assert.True(t, apierr.IsKind(err, apierr.KindRepositoryURI))

	_, err = store.Add(context.Background(), nil, types.PackageRepository{URI: "https://x.example.com"})
	assert.True(t, apierr.IsKind(err, apierr.KindJSONDecoding))

	client.AssertNotCalled(t, "Read", mock.Anything, mock.Anything)
}

type barrierClient struct {
	coordination.Client
	reads sync.WaitGroup
}

func (b *barrierClient) Read(ctx context.Context, path string) (*coordination.NodeState, error) {
	state, err := b.Client.Read(ctx, path)
	b.reads.Done()
	b.reads.Wait()
	return state, err
}

func TestConcurrentAddsOneWins(t *testing.T) {
	client := &barrierClient{Client: storeWith(t, []types.PackageRepository{universe})}
	client.reads.Add(2)
	store := newTestStore(client, nil)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, name := range []string{"left", "right"} {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			_, errs[i] = store.Add(context.Background(), nil, repo(name))
		}(i, name)
	}
	wg.Wait()

	succeeded, conflicted := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case apierr.IsKind(err, apierr.KindConcurrentModification):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicted)
}

func TestDeleteFilterValidation(t *testing.T) {
	tests := []struct {
		name          string
		byName, byURI *string
		want          apierr.Kind
	}{
		{"no filter", nil, nil, apierr.KindMissingFilter},
		{"both filters", strPtr("Universe"), strPtr(universe.URI), apierr.KindAmbiguousFilter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := new(mockClient)

			_, err := newTestStore(client, nil).Delete(context.Background(), tt.byName, tt.byURI)

			assert.True(t, apierr.IsKind(err, tt.want), "got %v", err)
			client.AssertNotCalled(t, "Read", mock.Anything, mock.Anything)
			client.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
			client.AssertNotCalled(t, "WriteIfVersion", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestDeleteByName(t *testing.T) {
	ctx := context.Background()
	catalog := []types.PackageRepository{repo("a"), repo("b"), {Name: "a", URI: "https://mirror.example.com"}, repo("c")}
	store := newTestStore(storeWith(t, catalog), nil)

	repos, err := store.Delete(ctx, strPtr("a"), nil)
	require.NoError(t, err)
	assert.Equal(t, []types.PackageRepository{repo("b"), repo("c")}, repos)

	again, err := store.Delete(ctx, strPtr("a"), nil)
	require.NoError(t, err)
	assert.Equal(t, repos, again)

	read, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, repos, read)
}

func TestDeleteByURI(t *testing.T) {
	catalog := []types.PackageRepository{repo("a"), repo("b")}

	repos, err := newTestStore(storeWith(t, catalog), nil).Delete(context.Background(), nil, strPtr(repo("b").URI))

	require.NoError(t, err)
	assert.Equal(t, []types.PackageRepository{repo("a")}, repos)
}

func TestDeleteLastEntryLeavesEmptyCatalog(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(storeWith(t, []types.PackageRepository{universe}), nil)

	repos, err := store.Delete(ctx, strPtr("Universe"), nil)
	require.NoError(t, err)
	assert.Empty(t, repos)

	read, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.PackageRepository{}, read, "an empty catalog is not re-seeded")
}

func TestDeleteWithoutCatalogFiltersSeed(t *testing.T) {
	ctx := context.Background()
	mem := coordination.NewMemory()

	repos, err := newTestStore(mem, nil).Delete(ctx, strPtr("Universe"), nil)
	require.NoError(t, err)
	assert.Empty(t, repos)

	state, err := mem.Read(ctx, catalogPath)
	require.NoError(t, err)
	assert.NotNil(t, state)
}
