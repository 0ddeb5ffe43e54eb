package patient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fhir/pats/internal/platform/httperr"
	"github.com/fhir/pats/internal/platform/jsonx"
)

const daisyJSON = `{
	"active": true,
	"birthDate": "2010-10-09",
	"gender": "female",
	"name": [{"family": "Dog", "given": ["Daisy"]}],
	"telecom": [{"system": "phone", "value": "5107939896", "use": "home"}],
	"address": [{"use": "home", "line": ["2000 Highland"], "city": "Hayward",
		"state": "CA", "postalCode": "98765", "country": "USA"}]
}`

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	svc, _ := newTestService(t)
	e := echo.New()
	e.JSONSerializer = jsonx.Serializer{}
	e.HTTPErrorHandler = httperr.Handler(zerolog.Nop(), ErrorRules()...)
	NewHandler(svc).RegisterRoutes(e.Group(""))
	return e
}

func do(e *echo.Echo, method, target, contentType, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func createDaisy(t *testing.T, e *echo.Echo) ProfileDocument {
	t.Helper()
	rec := do(e, http.MethodPost, "/pats", echo.MIMEApplicationJSON, daisyJSON)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out ProfileDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotNil(t, out.ID)
	return out
}

func envelope(t *testing.T, rec *httptest.ResponseRecorder) httperr.Response {
	t.Helper()
	var resp httperr.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func TestHandler_CreateProfile(t *testing.T) {
	e := newTestServer(t)

	rec := do(e, http.MethodPost, "/pats", "application/json; charset=utf-8", daisyJSON)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	id := int64(out["id"].(float64))
	assert.Equal(t, "/pats/"+strconv.FormatInt(id, 10), rec.Header().Get(echo.HeaderLocation))
	assert.Equal(t, "5107939896", out["phone_home"])
	assert.Nil(t, out["phone_office"])
	assert.Nil(t, out["email"])
	assert.Nil(t, out["resourceType"])
	assert.NotContains(t, out, "telecom")

	name := out["name"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, []interface{}{"Daisy"}, name["given"])
	assert.Equal(t, []interface{}{}, name["prefix"])
	assert.Equal(t, out["id"], name["pat_id"])
}

func TestHandler_CreateProfile_ValidationEnvelope(t *testing.T) {
	e := newTestServer(t)
	body := strings.Replace(daisyJSON, `"98765"`, `"9876"`, 1)

	rec := do(e, http.MethodPost, "/pats", echo.MIMEApplicationJSON, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := envelope(t, rec)
	assert.Equal(t, 400, resp.Status)
	assert.Equal(t, "Bad Request", resp.Error)
	assert.Contains(t, resp.Message, "Invalid postal code")

	list := do(e, http.MethodGet, "/pats", "", "")
	assert.JSONEq(t, `[]`, list.Body.String())
}

func TestHandler_CreateProfile_BadBodies(t *testing.T) {
	e := newTestServer(t)
	for _, body := range []string{`{`, `[]`, `null`, `"x"`, `{}`} {
		rec := do(e, http.MethodPost, "/pats", echo.MIMEApplicationJSON, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestHandler_SerializedProfileIsRejected(t *testing.T) {
	e := newTestServer(t)
	created := createDaisy(t, e)
	raw, err := json.Marshal(created)
	require.NoError(t, err)

	rec := do(e, http.MethodPost, "/pats", echo.MIMEApplicationJSON, string(raw))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, envelope(t, rec).Message, "missing telecom")
}

func TestHandler_UnsupportedMediaType(t *testing.T) {
	e := newTestServer(t)
	for _, ct := range []string{"", "text/plain", "application/xml", "application/json-patch+json"} {
		rec := do(e, http.MethodPost, "/pats", ct, daisyJSON)
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code, ct)
		assert.Equal(t, "Unsupported media type", envelope(t, rec).Error)
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	e := newTestServer(t)
	rec := do(e, http.MethodPut, "/pats", echo.MIMEApplicationJSON, daisyJSON)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method not Allowed", envelope(t, rec).Error)
}

func TestHandler_GetProfile(t *testing.T) {
	e := newTestServer(t)
	created := createDaisy(t, e)
	path := "/pats/" + strconv.FormatInt(*created.ID, 10)

	rec := do(e, http.MethodGet, path, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out ProfileDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, created, out)

	tests := []struct {
		path    string
		message string
	}{
		{"/pats/999", "Patient with id '999' was not found."},
		{"/pats/abc", "Patient with id 'abc' was not found."},
		{"/pats/-1", "Patient with id '-1' was not found."},
	}
	for _, tt := range tests {
		rec := do(e, http.MethodGet, tt.path, "", "")
		assert.Equal(t, http.StatusNotFound, rec.Code, tt.path)
		resp := envelope(t, rec)
		assert.Equal(t, "Not Found", resp.Error)
		assert.Equal(t, tt.message, resp.Message)
	}
}

func TestHandler_UpdateProfile(t *testing.T) {
	e := newTestServer(t)
	created := createDaisy(t, e)
	path := "/pats/" + strconv.FormatInt(*created.ID, 10)

	body := strings.Replace(daisyJSON, `"Daisy"`, `"Rosie"`, 1)
	rec := do(e, http.MethodPut, path, echo.MIMEApplicationJSON, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out ProfileDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Name, 2)
	assert.Equal(t, []string{"Rosie"}, out.Name[1].Given)

	rec = do(e, http.MethodPut, "/pats/999", echo.MIMEApplicationJSON, daisyJSON)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(e, http.MethodPut, path, "text/plain", daisyJSON)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestHandler_DeleteProfile(t *testing.T) {
	e := newTestServer(t)
	created := createDaisy(t, e)
	path := "/pats/" + strconv.FormatInt(*created.ID, 10)

	for i := 0; i < 2; i++ {
		rec := do(e, http.MethodDelete, path, "", "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
	assert.Equal(t, http.StatusNoContent, do(e, http.MethodDelete, "/pats/nope", "", "").Code)

	rec := do(e, http.MethodGet, path+"/name/1", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Patient with id '"+strconv.FormatInt(*created.ID, 10)+"' was not found.", envelope(t, rec).Message)
}

func TestHandler_ListProfiles_Filters(t *testing.T) {
	e := newTestServer(t)
	createDaisy(t, e)

	rec := do(e, http.MethodGet, "/pats?phone_home=5107939896", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out []ProfileDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Len(t, out, 1)

	rec = do(e, http.MethodGet, "/pats?phone_home=0000000000&family=Dog", "", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Empty(t, out, "phone_home takes precedence over family")

	rec = do(e, http.MethodGet, "/pats?family=Dog&given=Daisy", "", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Len(t, out, 1)

	rec = do(e, http.MethodGet, "/pats?gender=robot", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_NameRoutes(t *testing.T) {
	e := newTestServer(t)
	created := createDaisy(t, e)
	base := "/pats/" + strconv.FormatInt(*created.ID, 10)

	rec := do(e, http.MethodPost, base+"/name", echo.MIMEApplicationJSON, `{"family": "Dog", "given": ["Rosie"], "prefix": ["Ms"]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var added NameDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &added))
	namePath := base + "/name/" + strconv.FormatInt(*added.ID, 10)
	assert.Equal(t, namePath, rec.Header().Get(echo.HeaderLocation))
	assert.Equal(t, []string{"Ms"}, added.Prefix)

	rec = do(e, http.MethodGet, namePath, "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(e, http.MethodPut, base+"/latest_name", echo.MIMEApplicationJSON, `{"family": "Hound", "given": ["Rosie"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var latest NameDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &latest))
	assert.Equal(t, *added.ID, *latest.ID)
	assert.Equal(t, "Hound", latest.Family)

	rec = do(e, http.MethodPut, namePath, echo.MIMEApplicationJSON, `{"given": ["Rosie"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, envelope(t, rec).Message, "missing family")

	rec = do(e, http.MethodGet, base+"/name", "", "")
	var names []NameDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &names))
	assert.Len(t, names, 2)

	assert.Equal(t, http.StatusNoContent, do(e, http.MethodDelete, namePath, "", "").Code)
	rec = do(e, http.MethodGet, namePath, "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Name with id '"+strconv.FormatInt(*added.ID, 10)+"' was not found.", envelope(t, rec).Message)
}

func TestHandler_ChildRoutesAreScoped(t *testing.T) {
	e := newTestServer(t)
	first := createDaisy(t, e)
	second := createDaisy(t, e)

	foreignName := "/pats/" + strconv.FormatInt(*first.ID, 10) + "/name/" + strconv.FormatInt(*second.Name[0].ID, 10)
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, foreignName, "", "").Code)

	foreignAddr := "/pats/" + strconv.FormatInt(*first.ID, 10) + "/address/" + strconv.FormatInt(*second.Address[0].ID, 10)
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, foreignAddr, "", "").Code)
	rec := do(e, http.MethodPut, foreignAddr, echo.MIMEApplicationJSON,
		`{"use": "home", "line": ["1 Elm"], "city": "Hayward", "state": "CA", "postalCode": "98765", "country": "USA"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_AddressRoutes(t *testing.T) {
	e := newTestServer(t)
	created := createDaisy(t, e)
	base := "/pats/" + strconv.FormatInt(*created.ID, 10)
	body := `{"use": "work", "type": "postal", "line": ["1 Main St", "Suite 4"], "city": "Oakland",
		"state": "CA", "postalCode": "94607", "country": "USA"}`

	rec := do(e, http.MethodPost, base+"/address", echo.MIMEApplicationJSON, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var added AddressDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &added))
	addrPath := base + "/address/" + strconv.FormatInt(*added.ID, 10)
	assert.Equal(t, addrPath, rec.Header().Get(echo.HeaderLocation))
	assert.Equal(t, []string{"1 Main St", "Suite 4"}, added.Line)
	assert.Equal(t, created.ID, added.PatID)

	rec = do(e, http.MethodPut, addrPath, echo.MIMEApplicationJSON, strings.Replace(body, "94607", "9460", 1))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, envelope(t, rec).Message, "Invalid postal code")

	rec = do(e, http.MethodPut, addrPath, echo.MIMEApplicationJSON, strings.Replace(body, "94607", "94612", 1))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(e, http.MethodGet, base+"/address", "", "")
	var addrs []AddressDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &addrs))
	require.Len(t, addrs, 2)
	assert.Equal(t, "94612", addrs[1].PostalCode)

	assert.Equal(t, http.StatusNoContent, do(e, http.MethodDelete, addrPath, "", "").Code)
	assert.Equal(t, http.StatusNoContent, do(e, http.MethodDelete, addrPath, "", "").Code)
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodDelete, "/pats/999/address/1", "", "").Code)
}
