package server

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/librarydesk/circdesk/pkg/rpa"
	"github.com/librarydesk/circdesk/pkg/store"
)

type issuePayload struct {
	Barcode  string `json:"barcode" validate:"required"`
	Cardcode string `json:"cardcode" validate:"required"`
	ReaderID int64  `json:"reader_id"`
	LoanDays int    `json:"loan_days"`
}

type returnPayload struct {
	Barcode  string `json:"barcode" validate:"required"`
	Cardcode string `json:"cardcode"`
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	st := s.desk.Health()
	status := fiber.StatusOK
	if !st.OK {
		status = fiber.StatusServiceUnavailable
	}
	return respond(c, status, st.Message, st)
}

func (s *Server) handleManualLogin(c *fiber.Ctx) error {
	st := s.desk.ManualLogin()
	status := fiber.StatusOK
	if !st.OK {
		status = fiber.StatusServiceUnavailable
	}
	return respond(c, status, st.Message, st)
}

func (s *Server) handleIssue(c *fiber.Ctx) error {
	var p issuePayload
	if err := c.BodyParser(&p); err != nil {
		return respondError(c, fiber.StatusBadRequest, "malformed request body")
	}
	if err := s.validate.Struct(p); err != nil {
		return respondError(c, fiber.StatusBadRequest, err.Error())
	}
	return s.issue(c, p)
}

// issue runs one issue through the core and records the result.
func (s *Server) issue(c *fiber.Ctx, p issuePayload) error {
	loanDays := s.cfg.ClampLoanDays(p.LoanDays)
	res := s.desk.IssueItem(rpa.ActionRequest{
		ItemBarcode:      p.Barcode,
		ReaderID:         p.ReaderID,
		ReaderMatchQuery: p.Cardcode,
		LoanDays:         loanDays,
	})

	if res.OK {
		due := time.Now().AddDate(0, 0, loanDays).Format("2006-01-02")
		if s.store != nil {
			if err := s.store.RecordIssue(p.Barcode, p.ReaderID, p.Cardcode, loanDays, due); err != nil {
				s.log.Warn("could not record issue", zap.Error(err))
			}
		}
		s.notify(fmt.Sprintf("Issued %s to reader %s until %s (%s)", p.Barcode, p.Cardcode, due, res.Outcome))
		return respond(c, fiber.StatusOK, res.Message, res)
	}

	s.notify(fmt.Sprintf("Issue of %s to reader %s failed: %s", p.Barcode, p.Cardcode, res.Message))
	return respond(c, fiber.StatusBadGateway, res.Message, res)
}

func (s *Server) handleReturn(c *fiber.Ctx) error {
	var p returnPayload
	if err := c.BodyParser(&p); err != nil {
		return respondError(c, fiber.StatusBadRequest, "malformed request body")
	}
	if err := s.validate.Struct(p); err != nil {
		return respondError(c, fiber.StatusBadRequest, err.Error())
	}

	res := s.desk.ReturnItem(rpa.ActionRequest{
		ItemBarcode:      p.Barcode,
		ReaderMatchQuery: p.Cardcode,
	})

	switch {
	case res.SecurityRejection:
		s.notify(fmt.Sprintf("Return of %s rejected: held by a different reader", p.Barcode))
		return respond(c, fiber.StatusConflict, res.Message, res)
	case res.OK:
		s.notify(fmt.Sprintf("Returned %s (%s)", p.Barcode, res.Outcome))
		return respond(c, fiber.StatusOK, res.Message, res)
	default:
		return respond(c, fiber.StatusBadGateway, res.Message, res)
	}
}

func (s *Server) handleReaderSearch(c *fiber.Ctx) error {
	q := c.Query("q")
	if q == "" {
		return respondError(c, fiber.StatusBadRequest, "query parameter q is required")
	}

	key := "q:" + q
	if cached, ok := s.readers.Get(key); ok {
		return respond(c, fiber.StatusOK, "from cache", cached)
	}

	records, err := s.desk.SearchReaders(q, s.cfg.DefaultResults)
	if err != nil {
		return respondError(c, fiber.StatusBadGateway, err.Error())
	}
	s.readers.SetDefault(key, records)
	return respond(c, fiber.StatusOK, "", records)
}

func (s *Server) handleReaderSearchByCardcode(c *fiber.Ctx) error {
	cardcode := c.Query("cardcode")
	if cardcode == "" {
		return respondError(c, fiber.StatusBadRequest, "query parameter cardcode is required")
	}

	key := "cc:" + cardcode
	if cached, ok := s.readers.Get(key); ok {
		return respond(c, fiber.StatusOK, "from cache", cached)
	}

	records, err := s.desk.SearchReaders(cardcode, s.cfg.DefaultResults)
	if err != nil {
		return respondError(c, fiber.StatusBadGateway, err.Error())
	}
	for _, rec := range records {
		if rec.Field(rpa.FieldCardBarcode) == cardcode {
			s.readers.SetDefault(key, rec)
			return respond(c, fiber.StatusOK, "", rec)
		}
	}
	return respondError(c, fiber.StatusNotFound, "no reader with that card barcode")
}

// handleSubmit is the scan page's form target. Issues run immediately;
// returns are queued for admin approval.
func (s *Server) handleSubmit(c *fiber.Ctx) error {
	barcode := c.FormValue("barcode")
	cardcode := c.FormValue("cardcode")
	action := c.FormValue("action")
	if barcode == "" {
		return respondError(c, fiber.StatusBadRequest, "barcode is required")
	}

	switch action {
	case "issue":
		if cardcode == "" {
			return respondError(c, fiber.StatusBadRequest, "cardcode is required to issue")
		}
		return s.issue(c, issuePayload{
			Barcode:  barcode,
			Cardcode: cardcode,
			LoanDays: atoiDefault(c.FormValue("loan_days"), 14),
		})
	case "return":
		req, err := s.store.CreateReturnRequest(barcode, cardcode)
		if err != nil {
			return respondError(c, fiber.StatusInternalServerError, err.Error())
		}
		s.notify(fmt.Sprintf("Return of %s queued for approval (request %d)", barcode, req.ID))
		return respond(c, fiber.StatusAccepted, "return queued for admin approval", req)
	default:
		return respondError(c, fiber.StatusBadRequest, "action must be issue or return")
	}
}

func (s *Server) handleListReturns(c *fiber.Ctx) error {
	reqs, err := s.store.PendingReturns()
	if err != nil {
		return respondError(c, fiber.StatusInternalServerError, err.Error())
	}
	return respond(c, fiber.StatusOK, "", reqs)
}

// handleApproveReturn replays the queued return through the browser and
// records the outcome.
func (s *Server) handleApproveReturn(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "invalid request id")
	}
	req, err := s.store.GetReturnRequest(uint(id))
	if err != nil {
		return respondError(c, fiber.StatusNotFound, err.Error())
	}

	res := s.desk.ReturnItem(rpa.ActionRequest{
		ItemBarcode:      req.Barcode,
		ReaderMatchQuery: req.CardBarcode,
	})
	if !res.OK {
		if derr := s.store.Decide(req.ID, store.ReturnFailed, res.Message); derr != nil {
			s.log.Warn("could not record failed return", zap.Error(derr))
		}
		s.notify(fmt.Sprintf("Approved return of %s failed: %s", req.Barcode, res.Message))
		return respond(c, fiber.StatusBadGateway, res.Message, res)
	}

	if err := s.store.Decide(req.ID, store.ReturnApproved, res.Message); err != nil {
		return respondError(c, fiber.StatusInternalServerError, err.Error())
	}
	s.notify(fmt.Sprintf("Return of %s approved and completed", req.Barcode))
	return respond(c, fiber.StatusOK, res.Message, res)
}

func (s *Server) handleRejectReturn(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return respondError(c, fiber.StatusBadRequest, "invalid request id")
	}
	if err := s.store.Decide(uint(id), store.ReturnRejected, "rejected by admin"); err != nil {
		return respondError(c, fiber.StatusNotFound, err.Error())
	}
	s.notify(fmt.Sprintf("Return request %d rejected", id))
	return respond(c, fiber.StatusOK, "rejected", nil)
}

func (s *Server) notify(message string) {
	if s.notifier != nil {
		s.notifier.Event(message)
	}
}

func atoiDefault(v string, fallback int) int {
	if v == "" {
		return fallback
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil || n <= 0 {
		return fallback
	}
	return n
}
