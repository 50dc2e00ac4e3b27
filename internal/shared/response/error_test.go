package response

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

var errMissing = errors.New("missing")

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHandleError(t *testing.T) {
	mappings := []ErrorMapping{
		{Err: errMissing, Status: http.StatusNotFound, Message: "object not found"},
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	assert.True(t, HandleError(c, fmt.Errorf("delete: %w", errMissing), mappings))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"object not found"}`, w.Body.String())

	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	assert.False(t, HandleError(c, errors.New("other"), mappings))
}

func TestHandleErrorWithDefault(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	HandleErrorWithDefault(c, errors.New("s3 down"), nil, "Failed to list media")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to list media"}`, w.Body.String())
	assert.Len(t, c.Errors, 1)
}
