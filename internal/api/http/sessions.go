package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/agri-weather-dashboard/internal/export"
	"github.com/i474232898/agri-weather-dashboard/internal/period"
	"github.com/i474232898/agri-weather-dashboard/internal/selection"
	"github.com/i474232898/agri-weather-dashboard/internal/store"
	"github.com/i474232898/agri-weather-dashboard/internal/weather"
)

// maxEventAttempts bounds how often an event is re-applied after a
// concurrent state change.
const maxEventAttempts = 3

// sessionResponse is a session with its derived selector view.
type sessionResponse struct {
	ID         string         `json:"id"`
	Generation uint64         `json:"generation"`
	Selection  selection.View `json:"selection"`
}

func newSessionResponse(s store.Session) sessionResponse {
	return sessionResponse{ID: s.ID, Generation: s.Generation, Selection: s.State.View()}
}

type createSessionRequest struct {
	Institution string `json:"institution" validate:"omitempty,oneof=RDA KMA rda kma"`
}

// exportQuery selects the file format and whether the chosen window or the
// station's whole period is downloaded.
type exportQuery struct {
	Format string `validate:"omitempty,oneof=csv xlsx excel"`
	Scope  string `validate:"omitempty,oneof=range all"`
}

func (e *exportQuery) bind(c *fiber.Ctx) {
	e.Format = strings.ToLower(strings.TrimSpace(c.Query("format")))
	e.Scope = strings.ToLower(strings.TrimSpace(c.Query("scope")))
}

func registerSessionRoutes(v1 fiber.Router, deps Deps) {
	sessions := deps.Sessions
	machine := deps.Machine
	service := deps.Service

	sg := v1.Group("/sessions")

	sg.Post("/", func(c *fiber.Ctx) error {
		var req createSessionRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
			}
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		var state selection.State
		if req.Institution != "" {
			var err error
			state, err = machine.Apply(c.UserContext(), state, selection.Event{Kind: selection.KindInstitution, Value: req.Institution})
			if err != nil {
				return err
			}
		}

		sess := sessions.Create(state)
		return c.Status(fiber.StatusCreated).JSON(newSessionResponse(sess))
	})

	sg.Get("/:id", func(c *fiber.Ctx) error {
		sess, err := sessions.Get(c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(newSessionResponse(sess))
	})

	sg.Delete("/:id", func(c *fiber.Ctx) error {
		sessions.Delete(c.Params("id"))
		return c.SendStatus(fiber.StatusNoContent)
	})

	sg.Post("/:id/events", func(c *fiber.Ctx) error {
		var ev selection.Event
		if err := c.BodyParser(&ev); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(ev); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		// Events are re-applied on top of a concurrent update.
		for attempt := 1; ; attempt++ {
			sess, err := sessions.Get(c.Params("id"))
			if err != nil {
				return err
			}
			next, err := machine.Apply(c.UserContext(), sess.State, ev)
			if err != nil {
				return err
			}
			sess, err = sessions.SetState(sess.ID, sess.Revision, next)
			if errors.Is(err, store.ErrStateConflict) && attempt < maxEventAttempts {
				continue
			}
			if err != nil {
				return err
			}
			return c.JSON(newSessionResponse(sess))
		}
	})

	sg.Get("/:id/history", func(c *fiber.Ctx) error {
		var offset, limit int
		if err := bindPaging(c, &offset, &limit); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		sess, err := sessions.BeginQuery(c.Params("id"))
		if err != nil {
			return err
		}
		gen := sess.Generation
		w, err := sess.State.Window()
		if err != nil {
			return err
		}

		page, err := service.History(c.UserContext(), sess.State.Institution, sess.State.Station.ID, w, offset, limit)
		if err != nil {
			return err
		}
		applied, err := sessions.CommitResult(sess.ID, gen, page)
		if err != nil {
			return err
		}
		if !applied {
			return errSuperseded
		}

		return c.JSON(fiber.Map{
			"generation": gen,
			"start":      period.FormatDate(w.Start),
			"end":        period.FormatDate(w.End),
			"page":       page,
		})
	})

	sg.Get("/:id/export", func(c *fiber.Ctx) error {
		var req exportQuery
		req.bind(c)
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		format, err := export.ParseFormat(req.Format)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		sess, err := sessions.Get(c.Params("id"))
		if err != nil {
			return err
		}
		state := sess.State
		if state.Station == nil {
			return fmt.Errorf("%w: choose a station first", selection.ErrNotReady)
		}

		var window *period.Window
		if req.Scope != "all" {
			w, err := state.Window()
			if err != nil {
				return err
			}
			window = &w
		}

		dl, err := service.Download(c.UserContext(), state.Institution, state.Station.ID, window)
		if errors.Is(err, weather.ErrNoData) {
			err = export.ErrEmpty
		}
		if err != nil {
			countDownload(deps, format, err)
			return err
		}

		var buf bytes.Buffer
		if err := export.Write(&buf, format, state.Institution, dl.Records); err != nil {
			countDownload(deps, format, err)
			return err
		}
		countDownload(deps, format, nil)

		label := dl.Station.Name
		if label == "" {
			label = dl.Station.ID
		}
		name := export.Filename(format, label, dl.Window, dl.All)
		c.Set(fiber.HeaderContentType, format.ContentType())
		c.Set(fiber.HeaderContentDisposition, `attachment; filename*=UTF-8''`+url.PathEscape(name))
		return c.Send(buf.Bytes())
	})
}

func countDownload(deps Deps, format export.Format, err error) {
	if deps.Metrics == nil {
		return
	}
	outcome := "success"
	switch {
	case err == nil:
	case errors.Is(err, export.ErrEmpty):
		outcome = "empty"
	case errors.Is(err, weather.ErrDownloadTimeout):
		outcome = "timeout"
	default:
		outcome = "error"
	}
	deps.Metrics.Downloads.WithLabelValues(string(format), outcome).Inc()
}
