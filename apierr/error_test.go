package apierr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeout_Shape(t *testing.T) {
	e := Timeout()
	assert.Equal(t, KindTimeout, e.Kind())
	assert.Equal(t, http.StatusRequestTimeout, e.StatusCode())
	assert.Equal(t, "Request timeout", e.Message())
	assert.True(t, e.Retryable())
}

func TestNetwork_WrapsCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	e := Network(cause)
	assert.Equal(t, KindNetwork, e.Kind())
	assert.True(t, e.Retryable())
	assert.ErrorIs(t, e, cause)
	assert.Contains(t, e.Error(), "connection refused")
}

func TestFromResponse_NestedErrorBody(t *testing.T) {
	body := []byte(`{"error":{"code":"vehicle_not_found","message":"Vehicle does not exist","details":{"id":"veh-1"}}}`)
	e := FromResponse(404, body)

	assert.Equal(t, KindValidation, e.Kind())
	assert.Equal(t, 404, e.StatusCode())
	assert.Equal(t, "vehicle_not_found", e.Code())
	assert.Equal(t, "Vehicle does not exist", e.Message())
	assert.Equal(t, "veh-1", e.Details()["id"])
	assert.False(t, e.Retryable())
}

func TestFromResponse_FlatBody(t *testing.T) {
	e := FromResponse(422, []byte(`{"code":"invalid_filter","message":"Unknown body style"}`))
	assert.Equal(t, "invalid_filter", e.Code())
	assert.Equal(t, "Unknown body style", e.Message())
}

func TestFromResponse_UnparsableBodyFallsBack(t *testing.T) {
	e := FromResponse(500, []byte("<html>oops</html>"))
	assert.Equal(t, KindHTTP, e.Kind())
	assert.Equal(t, "http_500", e.Code())
	assert.Equal(t, "Request failed with status 500", e.Message())
	assert.True(t, e.Retryable())
}

func TestFromResponse_EmptyBody(t *testing.T) {
	e := FromResponse(503, nil)
	assert.Equal(t, "http_503", e.Code())
	assert.True(t, e.Retryable())
}

func TestRetryable_Matrix(t *testing.T) {
	cases := []struct {
		name string
		err  *Error
		want bool
	}{
		{"timeout", Timeout(), true},
		{"network", Network(errors.New("x")), true},
		{"http 500", FromResponse(500, nil), true},
		{"http 503", FromResponse(503, nil), true},
		{"http 400", FromResponse(400, nil), false},
		{"http 404", FromResponse(404, nil), false},
		{"parse", Parse(errors.New("bad json")), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.err.Retryable())
		})
	}
}

func TestIs_SurvivesClones(t *testing.T) {
	base := Timeout()
	modified := base.WithMsgf("Request timeout after %d attempts", 3).Wrap(errors.New("deadline"))
	assert.ErrorIs(t, modified, Timeout())
	assert.Equal(t, "Request timeout after 3 attempts", modified.Message())
	// Original untouched.
	assert.Equal(t, "Request timeout", base.Message())
}

func TestWithDetail_DoesNotMutateOriginal(t *testing.T) {
	base := FromResponse(400, nil)
	withDetail := base.WithDetail("field", "vin")
	require.Nil(t, base.Details())
	assert.Equal(t, "vin", withDetail.Details()["field"])
}

func TestIsRetryable_NonAPIError(t *testing.T) {
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(Timeout()))
}
