package response

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaged(t *testing.T) {
	res := Paged(200, []string{"a", "b"}, 5, 1, 2)
	assert.Equal(t, "success", res.Status)

	page, ok := res.Data.(Page)
	require.True(t, ok)
	assert.Equal(t, int64(3), page.TotalPages)

	empty := Paged(200, []string{}, 0, 1, 20).Data.(Page)
	assert.Zero(t, empty.TotalPages)
}

func TestError_OmitsData(t *testing.T) {
	raw, err := json.Marshal(Error(404, "product not found"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"error","status_code":404,"error":"product not found"}`, string(raw))
}
