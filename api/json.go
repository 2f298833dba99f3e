package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
)

// SonicJSONSerializer implements echo.JSONSerializer on top of sonic.
type SonicJSONSerializer struct{}

func (SonicJSONSerializer) Serialize(c echo.Context, i interface{}, indent string) error {
	enc := sonic.ConfigStd.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (SonicJSONSerializer) Deserialize(c echo.Context, i interface{}) error {
	err := sonic.ConfigStd.NewDecoder(c.Request().Body).Decode(i)
	if err == nil {
		return nil
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err)).SetInternal(err)
}
