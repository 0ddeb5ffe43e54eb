package jsonx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestSerializer_Serialize(t *testing.T) {
	e := echo.New()
	e.JSONSerializer = Serializer{}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := c.JSON(http.StatusOK, map[string]interface{}{"id": nil, "given": []string{"Daisy"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := strings.TrimSpace(rec.Body.String())
	if body != `{"given":["Daisy"],"id":null}` {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestSerializer_DeserializeErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"syntax", `{"active": tru`},
		{"type", `{"active": "yes"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			c := e.NewContext(req, httptest.NewRecorder())

			var target struct {
				Active bool `json:"active"`
			}
			err := Serializer{}.Deserialize(c, &target)
			var he *echo.HTTPError
			if !errors.As(err, &he) {
				t.Fatalf("expected *echo.HTTPError, got %T (%v)", err, err)
			}
			if he.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", he.Code)
			}
		})
	}
}
