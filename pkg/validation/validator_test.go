package validation

import (
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,pwd"`
	Username string `json:"username" binding:"required,uname"`
}

func validate(t *testing.T, v sample) error {
	t.Helper()
	gin.SetMode(gin.TestMode)
	Init()
	return binding.Validator.ValidateStruct(v)
}

func TestToDetails_UsesJSONFieldNames(t *testing.T) {
	err := validate(t, sample{Email: "not-an-email", Password: "short", Username: "a_b"})
	require.Error(t, err)

	details := ToDetails(err)
	assert.Equal(t, "must be a valid email", details["email"])
	assert.Equal(t, "min length 8", details["password"])
	assert.Equal(t, "must be 3-50 alphanumeric characters", details["username"])
}

func TestToDetails_Required(t *testing.T) {
	err := validate(t, sample{})
	require.Error(t, err)

	details := ToDetails(err)
	assert.Equal(t, "is required", details["email"])
}

func TestToDetails_ValidInput(t *testing.T) {
	err := validate(t, sample{Email: "a@b.co", Password: "password123", Username: "alice1"})
	assert.NoError(t, err)
	assert.Nil(t, ToDetails(nil))
}
