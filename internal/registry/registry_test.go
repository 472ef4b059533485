package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/flowengine/internal/errs"
	"github.com/lyzr/flowengine/internal/flownode"
	"github.com/lyzr/flowengine/internal/registry"
)

func noopFactory(cfg *flownode.NodeConfig) (flownode.Node, error) { return nil, nil }

func TestRegisterAndLookup(t *testing.T) {
	r := registry.New()
	require.NoError(t, r.Register("http-fetcher", noopFactory))

	factory, err := r.Lookup("http-fetcher")
	require.NoError(t, err)
	assert.NotNil(t, factory)
}

func TestDuplicateRegistrationFailsLoudly(t *testing.T) {
	r := registry.New()
	require.NoError(t, r.Register("http-fetcher", noopFactory))

	err := r.Register("http-fetcher", noopFactory)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindBuild))
}

func TestLookupUnknownType(t *testing.T) {
	r := registry.New()
	_, err := r.Lookup("nope")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindBuild))
}

func TestNonKebabCaseTypeIdentifierRejected(t *testing.T) {
	r := registry.New()
	for _, bad := range []string{"HttpFetcher", "http_fetcher", "http fetcher", "-leading", "trailing-"} {
		err := r.Register(bad, noopFactory)
		assert.Error(t, err, "expected %q to be rejected", bad)
	}
}

func TestCaseSensitiveIdentifiers(t *testing.T) {
	r := registry.New()
	require.NoError(t, r.Register("http-fetcher", noopFactory))
	_, err := r.Lookup("HTTP-FETCHER")
	require.Error(t, err)
}

func TestMustRegisterPanicsOnDuplicate(t *testing.T) {
	r := registry.New()
	r.MustRegister("a", noopFactory)
	assert.Panics(t, func() { r.MustRegister("a", noopFactory) })
}

func TestCreateWrapsFactoryError(t *testing.T) {
	r := registry.New()
	require.NoError(t, r.Register("broken", func(cfg *flownode.NodeConfig) (flownode.Node, error) {
		return nil, assert.AnError
	}))
	_, err := r.Create(&flownode.NodeConfig{ID: "n1", Type: "broken"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindBuild))
}

func TestTypesSorted(t *testing.T) {
	r := registry.New()
	r.MustRegister("zeta", noopFactory)
	r.MustRegister("alpha", noopFactory)
	assert.Equal(t, []string{"alpha", "zeta"}, r.Types())
}
