package inmemstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-portal/core/device"
)

func TestStore(t *testing.T) {
	st := New(map[string]string{device.KeyUserID: "7"})

	got, err := st.Get(device.KeyUserID)
	require.NoError(t, err)
	assert.Equal(t, "7", got)

	_, err = st.Get(device.KeyUserRole)
	assert.Equal(t, device.ErrNotFound, err)

	require.NoError(t, st.Set(device.KeyUserRole, "parent"))
	got, _ = st.Get(device.KeyUserRole)
	assert.Equal(t, "parent", got)

	require.NoError(t, st.Delete(device.KeyUserRole))
	_, err = st.Get(device.KeyUserRole)
	assert.Equal(t, device.ErrNotFound, err)
	assert.NoError(t, st.Close())
}
