package httpserver

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/identity"
	"github.com/Skotchmaster/storefront/internal/transport"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type UserHTTP struct {
	Svc *identity.Service
}

func (h *UserHTTP) ListUsers(c echo.Context) error {
	ctx := c.Request().Context()
	users, err := h.Svc.ListUsers(ctx)
	if err != nil {
		logging.FromContext(ctx).Error("list_users_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list users")
	}
	return c.JSON(http.StatusOK, users)
}

func (h *UserHTTP) CreateUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "users.create")

	var req transport.CreateUserRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("create_user_error", "status", 400, "reason", "invalid body", "error", err)
		return badRequest("invalid body")
	}

	user, err := h.Svc.CreateCustomer(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrValidation):
			l.Warn("create_user_error", "status", 400, "reason", "validation", "error", err)
			return badRequest(err.Error())
		case errors.Is(err, identity.ErrUserExists):
			l.Warn("create_user_error", "status", 409, "reason", "email taken")
			return echo.NewHTTPError(http.StatusConflict, "a user with this email already exists")
		default:
			l.Error("create_user_error", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot create user")
		}
	}

	l.Info("create_user_success", "new_user_id", user.ID)
	return c.JSON(http.StatusCreated, user)
}

func (h *UserHTTP) DeleteUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "users.delete")

	actor, err := resolveActor(c, h.Svc)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest("id must be a uuid")
	}

	if err := h.Svc.DeleteUser(ctx, actor, id); err != nil {
		switch {
		case errors.Is(err, identity.ErrForbidden):
			l.Warn("delete_user_error", "status", 403, "reason", "protected account", "error", err)
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		case errors.Is(err, identity.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		default:
			l.Error("delete_user_error", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot delete user")
		}
	}

	l.Info("delete_user_success", "deleted_user_id", id)
	return c.NoContent(http.StatusNoContent)
}
