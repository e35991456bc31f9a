package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": message})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{"error": "authentication required"})
}

func serverError(c echo.Context) error {
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

// relayFailed: единственная ошибка цепочки, видимая вызывающему.
func relayFailed(c echo.Context) error {
	return c.JSON(http.StatusBadGateway, map[string]string{"error": "upstream relay failed"})
}
