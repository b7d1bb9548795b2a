package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/qrave1/StudyRoom/internal/application/constant"
	"github.com/qrave1/StudyRoom/internal/domain"
	"github.com/qrave1/StudyRoom/internal/domain/models"
	"github.com/qrave1/StudyRoom/internal/infra/appctx"
)

var statuses = []struct {
	err    error
	status int
}{
	{domain.ErrInvalidInput, http.StatusBadRequest},
	{domain.ErrForbidden, http.StatusForbidden},
	{domain.ErrNotMember, http.StatusForbidden},
	{domain.ErrApprovalRequired, http.StatusForbidden},
	{domain.ErrInvalidKey, http.StatusForbidden},
	{domain.ErrNotFound, http.StatusNotFound},
	{domain.ErrAlreadyPending, http.StatusConflict},
	{domain.ErrInvalidContent, http.StatusUnprocessableEntity},
	{domain.ErrStoreUnavailable, http.StatusServiceUnavailable},
	{domain.ErrTransportUnavailable, http.StatusServiceUnavailable},
}

func statusFor(err error) int {
	for _, s := range statuses {
		if errors.Is(err, s.err) {
			return s.status
		}
	}

	return http.StatusInternalServerError
}

// respondError отдает доменную ошибку клиенту, подробности остаются в логах
func respondError(c echo.Context, err error) error {
	status := statusFor(err)

	if status >= http.StatusInternalServerError {
		slog.Error(
			"request failed",
			slog.Any(constant.Error, err),
			slog.String("path", c.Path()),
		)
	}

	return c.JSON(status, map[string]string{
		"error": domain.PublicMessage(err),
		"code":  domain.Code(err),
	})
}

func currentUser(c echo.Context) (models.User, bool) {
	return appctx.User(c.Request().Context())
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid user ID in context"})
}

func paramUUID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s", domain.ErrInvalidInput, name)
	}

	return id, nil
}

func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return fmt.Errorf("%w: malformed request body", domain.ErrInvalidInput)
	}

	return c.Validate(req)
}
