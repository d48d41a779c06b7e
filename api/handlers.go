package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"tasktrack-api/domain"
)

// Register wires up all API routes on the provided Echo instance. deduper may
// be nil, in which case Idempotency-Key headers are ignored.
func Register(e *echo.Echo, store Storage, auth Authenticator, deduper Deduper, events *EventDispatcher, log *log.Logger) {
	mw := []echo.MiddlewareFunc{RequestMetrics(log), RequireAuth(auth)}

	e.GET("/tasks", listTasks(store), mw...)
	e.POST("/tasks", createTask(store, deduper, events), mw...)
	e.GET("/tasks/:id", getTask(store), mw...)
	e.PUT("/tasks/:id", updateTask(store, events, false), mw...)
	e.PATCH("/tasks/:id", updateTask(store, events, true), mw...)
	e.DELETE("/tasks/:id", deleteTask(store, events), mw...)

	e.GET("/settings", getSettings(store), mw...)
	e.POST("/settings", saveSettings(store, events), mw...)
	e.PUT("/settings", saveSettings(store, events), mw...)
	e.PATCH("/settings", saveSettings(store, events), mw...)

	e.DELETE("/account", deleteAccount(store, events), mw...)
	e.GET("/healthz", healthz(store))
}

func healthz(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			c.Logger().Errorf("healthz: %v", err)
			return c.String(http.StatusServiceUnavailable, "unavailable")
		}
		return c.NoContent(http.StatusOK)
	}
}

func listTasks(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		metrics := metricsFrom(c)
		storeStart := time.Now()
		tasks, err := store.ListTasks(c.Request().Context(), userIDFrom(c))
		metrics.ObserveStore(time.Since(storeStart))
		if err != nil {
			return respondError(c, err)
		}
		metrics.SetItemsReturned(len(tasks))
		return encode(c, http.StatusOK, tasks)
	}
}

func getTask(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		metrics := metricsFrom(c)
		storeStart := time.Now()
		task, err := store.GetTask(c.Request().Context(), userIDFrom(c), c.Param("id"))
		metrics.ObserveStore(time.Since(storeStart))
		if err != nil {
			return respondError(c, err)
		}
		metrics.SetItemsReturned(1)
		return encode(c, http.StatusOK, task)
	}
}

func createTask(store Storage, deduper Deduper, events *EventDispatcher) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID := userIDFrom(c)
		metrics := metricsFrom(c)

		in, err := decodeTaskInput(c)
		if err != nil {
			return respondDecodeError(c, err)
		}
		nt, err := in.ForCreate()
		if err != nil {
			return respondError(c, err)
		}

		key := strings.TrimSpace(c.Request().Header.Get(headerIdempotencyKey))
		if key != "" && deduper != nil {
			added, err := deduper.Add(ctx, userID, key)
			if err != nil {
				metrics.SetErrorStage("dedupe")
				c.Logger().Errorf("dedupe add failed: %v", err)
				return c.String(http.StatusInternalServerError, "failed to record idempotency key")
			}
			if !added {
				metrics.SetErrorStage("duplicate")
				return c.JSON(http.StatusConflict, duplicateResponse)
			}
		} else {
			key = ""
		}

		storeStart := time.Now()
		task, err := store.CreateTask(ctx, userID, nt)
		metrics.ObserveStore(time.Since(storeStart))
		if err != nil {
			if key != "" {
				if rerr := deduper.Remove(context.Background(), userID, key); rerr != nil {
					c.Logger().Errorf("dedupe rollback failed, err: %v, key: %s, user: %s", rerr, key, userID)
				}
			}
			return respondError(c, err)
		}

		events.Dispatch(userID, domain.NewEvent(domain.TaskCreated, domain.EntityTask, task.ID, userID, task))
		metrics.SetItemsReturned(1)
		return encode(c, http.StatusCreated, task)
	}
}

func updateTask(store Storage, events *EventDispatcher, partial bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID := userIDFrom(c)
		metrics := metricsFrom(c)

		in, err := decodeTaskInput(c)
		if err != nil {
			return respondDecodeError(c, err)
		}
		upd, err := in.ForUpdate(partial)
		if err != nil {
			return respondError(c, err)
		}

		storeStart := time.Now()
		task, err := store.UpdateTask(c.Request().Context(), userID, c.Param("id"), upd)
		metrics.ObserveStore(time.Since(storeStart))
		if err != nil {
			return respondError(c, err)
		}

		events.Dispatch(userID, domain.NewEvent(domain.TaskUpdated, domain.EntityTask, task.ID, userID, task))
		metrics.SetItemsReturned(1)
		return encode(c, http.StatusOK, task)
	}
}

func deleteTask(store Storage, events *EventDispatcher) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID := userIDFrom(c)
		taskID := c.Param("id")
		metrics := metricsFrom(c)

		storeStart := time.Now()
		err := store.DeleteTask(c.Request().Context(), userID, taskID)
		metrics.ObserveStore(time.Since(storeStart))
		if err != nil {
			return respondError(c, err)
		}

		events.Dispatch(userID, domain.NewEvent(domain.TaskDeleted, domain.EntityTask, taskID, userID, nil))
		return c.NoContent(http.StatusNoContent)
	}
}

func getSettings(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		metrics := metricsFrom(c)
		storeStart := time.Now()
		settings, err := store.FetchSettings(c.Request().Context(), userIDFrom(c))
		metrics.ObserveStore(time.Since(storeStart))
		if err != nil {
			return respondError(c, err)
		}
		return encode(c, http.StatusOK, settings)
	}
}

// saveSettings serves POST, PUT and PATCH: the record is fetched or created
// first and the supplied keys are overlaid on it.
func saveSettings(store Storage, events *EventDispatcher) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID := userIDFrom(c)
		metrics := metricsFrom(c)

		in, err := decodeSettingsInput(c)
		if err != nil {
			return respondDecodeError(c, err)
		}

		storeStart := time.Now()
		current, err := store.FetchSettings(ctx, userID)
		metrics.ObserveStore(time.Since(storeStart))
		if err != nil {
			return respondError(c, err)
		}
		next, err := in.Apply(current)
		if err != nil {
			return respondError(c, err)
		}

		storeStart = time.Now()
		saved, err := store.SaveSettings(ctx, userID, next)
		metrics.ObserveStore(time.Since(storeStart))
		if err != nil {
			return respondError(c, err)
		}

		events.Dispatch(userID, domain.NewEvent(domain.SettingsUpdated, domain.EntitySettings, userID, userID, saved))
		return encode(c, http.StatusOK, saved)
	}
}

func deleteAccount(store Storage, events *EventDispatcher) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID := userIDFrom(c)
		metrics := metricsFrom(c)

		storeStart := time.Now()
		err := store.DeleteUser(c.Request().Context(), userID)
		metrics.ObserveStore(time.Since(storeStart))
		if err != nil {
			return respondError(c, err)
		}

		events.Dispatch(userID, domain.NewEvent(domain.UserDeleted, domain.EntityUser, userID, userID, nil))
		return c.NoContent(http.StatusNoContent)
	}
}

// respondDecodeError answers field-keyed type errors as validation failures
// and everything else as an unreadable body.
func respondDecodeError(c echo.Context, err error) error {
	metricsFrom(c).SetErrorStage("decode")
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return c.JSON(http.StatusBadRequest, verr)
	}
	return c.String(http.StatusBadRequest, errInvalidBody.Error())
}

func encode(c echo.Context, status int, body any) error {
	metrics := metricsFrom(c)
	encodeStart := time.Now()
	err := c.JSON(status, body)
	metrics.ObserveEncode(time.Since(encodeStart))
	if err != nil {
		metrics.SetErrorStage("encode_response")
	}
	return err
}

// respondError maps domain and storage errors onto HTTP responses.
func respondError(c echo.Context, err error) error {
	metrics := metricsFrom(c)
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		metrics.SetErrorStage("validation")
		return c.JSON(http.StatusBadRequest, verr)
	case errors.Is(err, domain.ErrNotFound):
		metrics.SetErrorStage("not_found")
		return c.JSON(http.StatusNotFound, notFoundResponse)
	case errors.Is(err, domain.ErrFieldTypeMismatch):
		metrics.SetErrorStage("validation")
		inner := &domain.ValidationError{}
		inner.Add("field_value", err.Error())
		outer := &domain.ValidationError{}
		outer.Nest("custom_field", inner)
		return c.JSON(http.StatusBadRequest, outer)
	default:
		metrics.SetErrorStage("storage")
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
}
