package selection

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/originbots/tradebot/negotiation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = negotiation.Proposal{Offered: "dino_egg", OfferedQty: 3, Wanted: "majestic_chair", WantedQty: 1}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore(filepath.Join(t.TempDir(), "cfg", "selection.toml"))

	_, err := s.Load(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save(ctx, Selection{Base: base}))
	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, base, got.Base)
	assert.Nil(t, got.Active)
	assert.Equal(t, base, got.Pair().Active)

	dual := base.Dual()
	require.NoError(t, s.SaveActive(ctx, dual))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, base, got.Base)
	require.NotNil(t, got.Active)
	assert.Equal(t, dual, *got.Active)
	assert.Equal(t, dual, got.Pair().Active)
}

func TestStoreRejectsInvalidProposal(t *testing.T) {
	t.Parallel()
	s := NewStore(filepath.Join(t.TempDir(), "selection.toml"))
	err := s.Save(context.Background(), Selection{Base: negotiation.Proposal{Offered: "dino_egg", OfferedQty: 120, Wanted: "hc_sofa", WantedQty: 1}})
	require.ErrorIs(t, err, negotiation.ErrInvalidProposal)
}

func TestStoreFileIsTOML(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "selection.toml")
	s := NewStore(path)
	require.NoError(t, s.Save(context.Background(), Selection{Base: base}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "[proposal]")
	assert.Contains(t, string(raw), "offered = 'dino_egg'")
	assert.Contains(t, string(raw), "version = 1")
}

func TestStoreUnsupportedVersion(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "selection.toml")
	require.NoError(t, os.WriteFile(path, []byte("version = 7\n"), 0o600))

	_, err := NewStore(path).Load(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
