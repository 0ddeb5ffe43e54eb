package patient

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/fhir/pats/internal/platform/httperr"
)

// Handler serves the /pats routes.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/pats", h.ListProfiles)
	api.POST("/pats", h.CreateProfile)
	api.GET("/pats/:id", h.GetProfile)
	api.PUT("/pats/:id", h.UpdateProfile)
	api.DELETE("/pats/:id", h.DeleteProfile)

	api.GET("/pats/:id/name", h.ListNames)
	api.POST("/pats/:id/name", h.AddName)
	api.GET("/pats/:id/name/:name_id", h.GetName)
	api.PUT("/pats/:id/name/:name_id", h.UpdateName)
	api.DELETE("/pats/:id/name/:name_id", h.DeleteName)
	api.PUT("/pats/:id/latest_name", h.UpdateLatestName)

	api.GET("/pats/:id/address", h.ListAddresses)
	api.POST("/pats/:id/address", h.AddAddress)
	api.GET("/pats/:id/address/:address_id", h.GetAddress)
	api.PUT("/pats/:id/address/:address_id", h.UpdateAddress)
	api.DELETE("/pats/:id/address/:address_id", h.DeleteAddress)
}

// ErrorRules maps patient errors onto HTTP statuses.
func ErrorRules() []httperr.Rule {
	return []httperr.Rule{
		{Match: IsValidation, Status: http.StatusBadRequest},
		{
			Match:   func(err error) bool { return errors.Is(err, ErrNotFound) },
			Status:  http.StatusNotFound,
			Message: NotFoundMessage,
		},
	}
}

// -- Profile Handlers --

func (h *Handler) ListProfiles(c echo.Context) error {
	q := Query{
		PhoneHome:  c.QueryParam("phone_home"),
		Email:      c.QueryParam("email"),
		Active:     c.QueryParam("active"),
		Gender:     c.QueryParam("gender"),
		Family:     c.QueryParam("family"),
		Given:      c.QueryParam("given"),
		PostalCode: c.QueryParam("postalCode"),
	}
	profiles, err := h.svc.ListProfiles(c.Request().Context(), q)
	if err != nil {
		return err
	}
	out := make([]ProfileDocument, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, Serialize(p))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) CreateProfile(c echo.Context) error {
	doc, err := readDocument(c)
	if err != nil {
		return err
	}
	p, err := h.svc.CreateProfile(c.Request().Context(), doc)
	if err != nil {
		return err
	}
	setLocation(c, p.ID)
	return c.JSON(http.StatusCreated, Serialize(p))
}

func (h *Handler) GetProfile(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.svc.GetProfile(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, Serialize(p))
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	doc, err := readDocument(c)
	if err != nil {
		return err
	}
	p, err := h.svc.UpdateProfile(c.Request().Context(), id, doc)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, Serialize(p))
}

// DeleteProfile answers 204 whether or not the profile existed.
func (h *Handler) DeleteProfile(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.NoContent(http.StatusNoContent)
	}
	if err := h.svc.DeleteProfile(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Name Handlers --

func (h *Handler) ListNames(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	names, err := h.svc.ListNames(c.Request().Context(), id)
	if err != nil {
		return err
	}
	out := make([]NameDocument, 0, len(names))
	for _, n := range names {
		out = append(out, SerializeName(n))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) AddName(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	doc, err := readDocument(c)
	if err != nil {
		return err
	}
	n, err := h.svc.AddName(c.Request().Context(), id, doc)
	if err != nil {
		return err
	}
	setLocation(c, n.ID)
	return c.JSON(http.StatusCreated, SerializeName(n))
}

func (h *Handler) GetName(c echo.Context) error {
	id, nameID, err := pathIDs(c, "name_id")
	if err != nil {
		return err
	}
	n, err := h.svc.GetName(c.Request().Context(), id, nameID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SerializeName(n))
}

func (h *Handler) UpdateName(c echo.Context) error {
	id, nameID, err := pathIDs(c, "name_id")
	if err != nil {
		return err
	}
	doc, err := readDocument(c)
	if err != nil {
		return err
	}
	n, err := h.svc.UpdateName(c.Request().Context(), id, nameID, doc)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SerializeName(n))
}

func (h *Handler) UpdateLatestName(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	doc, err := readDocument(c)
	if err != nil {
		return err
	}
	n, err := h.svc.UpdateLatestName(c.Request().Context(), id, doc)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SerializeName(n))
}

func (h *Handler) DeleteName(c echo.Context) error {
	id, nameID, err := pathIDs(c, "name_id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteName(c.Request().Context(), id, nameID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Address Handlers --

func (h *Handler) ListAddresses(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	addrs, err := h.svc.ListAddresses(c.Request().Context(), id)
	if err != nil {
		return err
	}
	out := make([]AddressDocument, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, SerializeAddress(a))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) AddAddress(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	doc, err := readDocument(c)
	if err != nil {
		return err
	}
	a, err := h.svc.AddAddress(c.Request().Context(), id, doc)
	if err != nil {
		return err
	}
	setLocation(c, a.ID)
	return c.JSON(http.StatusCreated, SerializeAddress(a))
}

func (h *Handler) GetAddress(c echo.Context) error {
	id, addressID, err := pathIDs(c, "address_id")
	if err != nil {
		return err
	}
	a, err := h.svc.GetAddress(c.Request().Context(), id, addressID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SerializeAddress(a))
}

func (h *Handler) UpdateAddress(c echo.Context) error {
	id, addressID, err := pathIDs(c, "address_id")
	if err != nil {
		return err
	}
	doc, err := readDocument(c)
	if err != nil {
		return err
	}
	a, err := h.svc.UpdateAddress(c.Request().Context(), id, addressID, doc)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SerializeAddress(a))
}

func (h *Handler) DeleteAddress(c echo.Context) error {
	id, addressID, err := pathIDs(c, "address_id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteAddress(c.Request().Context(), id, addressID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// -- helpers --

// readDocument checks the content type and decodes the request body.
func readDocument(c echo.Context) (Document, error) {
	mediaType, _, err := mime.ParseMediaType(c.Request().Header.Get(echo.HeaderContentType))
	if err != nil || mediaType != echo.MIMEApplicationJSON {
		return nil, echo.NewHTTPError(http.StatusUnsupportedMediaType, "Content type must be application/json")
	}
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, err
	}
	return DecodeDocument(body)
}

// pathID parses a numeric path parameter. Ids that cannot name a stored
// record are reported as not found.
func pathID(c echo.Context, param string) (int64, error) {
	raw := c.Param(param)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &NotFoundError{Resource: pathResources[param], ID: raw}
	}
	return id, nil
}

var pathResources = map[string]string{
	"id":         "Patient",
	"name_id":    "Name",
	"address_id": "Address",
}

func pathIDs(c echo.Context, child string) (int64, int64, error) {
	id, err := pathID(c, "id")
	if err != nil {
		return 0, 0, err
	}
	childID, err := pathID(c, child)
	if err != nil {
		return 0, 0, err
	}
	return id, childID, nil
}

func setLocation(c echo.Context, id int64) {
	base := strings.TrimSuffix(c.Request().URL.Path, "/")
	c.Response().Header().Set(echo.HeaderLocation, base+"/"+strconv.FormatInt(id, 10))
}
