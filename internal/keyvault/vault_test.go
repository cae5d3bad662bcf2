package keyvault

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sentra/pkg/platform/sentinel"
)

func TestNewVaultHasCurrentKey(t *testing.T) {
	v, err := New(time.Hour)
	require.NoError(t, err)

	keyID := v.CurrentKeyID()
	require.False(t, keyID.String() == "00000000-0000-0000-0000-000000000000")

	id, material := v.CurrentKey()
	require.Equal(t, keyID, id)
	require.Len(t, material, KeySize)
}

func TestRotateKeepsOldKeyAvailable(t *testing.T) {
	v, err := New(time.Hour)
	require.NoError(t, err)

	oldID := v.CurrentKeyID()
	require.NoError(t, v.Rotate())

	newID := v.CurrentKeyID()
	require.NotEqual(t, oldID, newID)

	// Superseded key is still locatable for decryption.
	material, err := v.KeyByID(oldID)
	require.NoError(t, err)
	require.Len(t, material, KeySize)
}

func TestPruneExpiredDestroysRetiredKeys(t *testing.T) {
	v, err := New(time.Minute)
	require.NoError(t, err)

	oldID := v.CurrentKeyID()
	require.NoError(t, v.Rotate())

	// Before the retention window elapses, nothing is destroyed.
	require.Equal(t, 0, v.PruneExpired(time.Now()))
	_, err = v.KeyByID(oldID)
	require.NoError(t, err)

	// Past the window the retired key is gone.
	require.Equal(t, 1, v.PruneExpired(time.Now().Add(2*time.Minute)))
	_, err = v.KeyByID(oldID)
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestHandedOutMaterialSurvivesDestruction(t *testing.T) {
	v, err := New(time.Minute)
	require.NoError(t, err)

	oldID := v.CurrentKeyID()
	material, err := v.KeyByID(oldID)
	require.NoError(t, err)
	saved := append([]byte(nil), material...)

	require.NoError(t, v.Rotate())
	require.Equal(t, 1, v.PruneExpired(time.Now().Add(2*time.Minute)))

	// A decrypt that fetched the key before destruction keeps valid bytes;
	// zeroization scrubs only the vault's own copy.
	require.Equal(t, saved, material)
	require.NotEqual(t, make([]byte, KeySize), material)
}

func TestPruneNeverDestroysCurrentKey(t *testing.T) {
	v, err := New(time.Nanosecond)
	require.NoError(t, err)

	require.Equal(t, 0, v.PruneExpired(time.Now().Add(time.Hour)))
	_, err = v.KeyByID(v.CurrentKeyID())
	require.NoError(t, err)
}

func TestRotationHookAndCounts(t *testing.T) {
	var rotated []KeyInfo
	v, err := New(time.Hour, WithRotationHook(func(info KeyInfo) {
		rotated = append(rotated, info)
	}))
	require.NoError(t, err)
	require.NoError(t, v.Rotate())

	require.Len(t, rotated, 2)
	require.Equal(t, 1, rotated[0].RotationCount)
	require.Equal(t, 2, rotated[1].RotationCount)

	infos := v.Keys()
	require.Len(t, infos, 2)
	require.True(t, infos[0].Current)
}
