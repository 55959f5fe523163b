package csrf

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, cfg Config, req *http.Request) (*httptest.ResponseRecorder, bool, error) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	called := false
	err := Middleware(cfg)(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})(c)
	return rec, called, err
}

func forbidden(t *testing.T, err error) {
	t.Helper()
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusForbidden, he.Code)
}

func TestSafeMethodIssuesToken(t *testing.T) {
	rec, called, err := serve(t, Config{}, httptest.NewRequest(http.MethodGet, "/checkout", nil))
	require.NoError(t, err)
	assert.True(t, called)

	tok := rec.Header().Get("X-CSRF-Token")
	require.NotEmpty(t, tok)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, tok, cookies[0].Value)
}

func postForm(token, cookie string) *http.Request {
	form := url.Values{"csrf_token": {token}, "shipping_address_id": {"x"}}
	req := httptest.NewRequest(http.MethodPost, "http://shop.test/checkout", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	req.Header.Set("Origin", "http://shop.test")
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: "XSRF-TOKEN", Value: cookie})
	}
	return req
}

func TestUnsafeMethod(t *testing.T) {
	_, called, err := serve(t, Config{}, postForm("abc", "abc"))
	require.NoError(t, err)
	assert.True(t, called)

	_, called, err = serve(t, Config{}, postForm("abc", "xyz"))
	forbidden(t, err)
	assert.False(t, called)

	_, _, err = serve(t, Config{}, postForm("", ""))
	forbidden(t, err)
}

func TestUnsafeMethod_CrossOrigin(t *testing.T) {
	req := postForm("abc", "abc")
	req.Header.Set("Origin", "http://evil.test")
	_, called, err := serve(t, Config{EnforceSameOrigin: true}, req)
	forbidden(t, err)
	assert.False(t, called)
}

func TestBearerAndSkipPaths(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer t")
	_, called, err := serve(t, Config{SkipBearer: true}, req)
	require.NoError(t, err)
	assert.True(t, called)

	req = httptest.NewRequest(http.MethodPost, "/hooks", nil)
	_, called, err = serve(t, Config{SkipPaths: []string{"/hooks"}}, req)
	require.NoError(t, err)
	assert.True(t, called)
}
