package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/peter-kozarec/tickreplay/pkg/common"
	"github.com/peter-kozarec/tickreplay/pkg/datasource"
	"github.com/peter-kozarec/tickreplay/pkg/simulation"
	"github.com/peter-kozarec/tickreplay/pkg/utility/fixed"
)

type sessionRequest struct {
	Day         string `json:"day" binding:"required"`
	StartMinute *int   `json:"startMinute"`
}

type speedRequest struct {
	Speed float64 `json:"speed" binding:"required"`
}

type seekRequest struct {
	Minute *int `json:"minute" binding:"required"`
}

type orderRequest struct {
	Symbol string       `json:"symbol" binding:"required"`
	Side   *common.Side `json:"side" binding:"required"`
	Size   uint32       `json:"size"`
}

type stopRequest struct {
	Price string `json:"price" binding:"required"`
}

type orderResponse struct {
	Fill     common.Fill            `json:"fill"`
	Position *common.Position       `json:"position"`
	Closed   *common.PositionClosed `json:"closed,omitempty"`
}

func (s *Server) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// do runs fn on the engine and answers with the resulting snapshot.
func (s *Server) do(c *gin.Context, fn func(*simulation.Engine) error) {
	var snapshot simulation.Snapshot
	err := s.controller.Do(c.Request.Context(), func(e *simulation.Engine) error {
		if err := fn(e); err != nil {
			return err
		}
		snapshot = e.Snapshot()
		return nil
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return false
	}
	return true
}

func (s *Server) postSession(c *gin.Context) {
	var req sessionRequest
	if !s.bind(c, &req) {
		return
	}
	startMinute := s.options.DefaultStartMinute
	if req.StartMinute != nil {
		startMinute = *req.StartMinute
	}
	ctx := c.Request.Context()
	s.do(c, func(e *simulation.Engine) error {
		return e.Load(ctx, req.Day, startMinute)
	})
}

func (s *Server) postPlay(c *gin.Context) {
	s.do(c, func(e *simulation.Engine) error {
		return e.Play()
	})
}

func (s *Server) postPause(c *gin.Context) {
	s.do(c, func(e *simulation.Engine) error {
		e.Pause()
		return nil
	})
}

func (s *Server) putSpeed(c *gin.Context) {
	var req speedRequest
	if !s.bind(c, &req) {
		return
	}
	s.do(c, func(e *simulation.Engine) error {
		e.SetSpeed(req.Speed)
		return nil
	})
}

func (s *Server) postSeek(c *gin.Context) {
	var req seekRequest
	if !s.bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	s.do(c, func(e *simulation.Engine) error {
		return e.SeekToMinute(ctx, *req.Minute)
	})
}

func (s *Server) postOrder(c *gin.Context) {
	var req orderRequest
	if !s.bind(c, &req) {
		return
	}

	var resp orderResponse
	err := s.controller.Do(c.Request.Context(), func(e *simulation.Engine) error {
		result, err := e.PlaceOrder(req.Symbol, *req.Side, req.Size)
		if err != nil {
			return err
		}
		resp = orderResponse{Fill: result.Fill, Position: result.Position, Closed: result.Closed}
		return nil
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) putStop(c *gin.Context) {
	kind, err := common.ParseStopKind(c.Param("kind"))
	if err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	var req stopRequest
	if !s.bind(c, &req) {
		return
	}
	price, err := fixed.Parse(req.Price)
	if err != nil || !price.Gt(fixed.Zero) {
		s.fail(c, fmt.Errorf("%w: price %q", errBadRequest, req.Price))
		return
	}

	symbol := c.Param("instrument")
	s.stop(c, func(e *simulation.Engine) (common.Position, error) {
		return e.SetStop(symbol, kind, price)
	})
}

func (s *Server) deleteStop(c *gin.Context) {
	kind, err := common.ParseStopKind(c.Param("kind"))
	if err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	symbol := c.Param("instrument")
	s.stop(c, func(e *simulation.Engine) (common.Position, error) {
		return e.ClearStop(symbol, kind)
	})
}

func (s *Server) stop(c *gin.Context, fn func(*simulation.Engine) (common.Position, error)) {
	var p common.Position
	err := s.controller.Do(c.Request.Context(), func(e *simulation.Engine) error {
		var err error
		p, err = fn(e)
		return err
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) getSnapshot(c *gin.Context) {
	s.do(c, func(*simulation.Engine) error { return nil })
}

func (s *Server) getReport(c *gin.Context) {
	var report simulation.Report
	err := s.controller.Do(c.Request.Context(), func(e *simulation.Engine) error {
		if !e.Loaded() {
			return simulation.ErrNotLoaded
		}
		report = e.Report()
		return nil
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) getTicks(c *gin.Context) {
	req := datasource.PageRequest{
		Symbol: c.Query("symbol"),
		Day:    c.Query("day"),
		Cursor: datasource.Cursor(c.Query("cursor")),
	}
	var err error
	if req.StartMinute, err = queryInt(c, "start", 0); err != nil {
		s.fail(c, err)
		return
	}
	if req.EndMinute, err = queryInt(c, "end", datasource.MinutesPerDay); err != nil {
		s.fail(c, err)
		return
	}
	if req.Limit, err = queryInt(c, "limit", datasource.DefaultLimit); err != nil {
		s.fail(c, err)
		return
	}

	page, err := s.provider.FetchTicks(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	if page.Ticks == nil {
		page.Ticks = []common.Tick{}
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) getAvailability(c *gin.Context) {
	weeks, err := s.provider.Availability(c.Request.Context(), c.Param("instrument"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if weeks == nil {
		weeks = []datasource.Week{}
	}
	c.JSON(http.StatusOK, weeks)
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	v, ok := c.GetQuery(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", errBadRequest, key, v)
	}
	return n, nil
}
