package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/peter-kozarec/tickreplay/pkg/common"
	"github.com/peter-kozarec/tickreplay/pkg/datasource"
	"github.com/peter-kozarec/tickreplay/pkg/simulation"
	"go.uber.org/zap"
)

var errBadRequest = errors.New("bad request")

func statusOf(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, datasource.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrUnknownInstrument), errors.Is(err, common.ErrPositionNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrNoData), errors.Is(err, simulation.ErrNotLoaded):
		return http.StatusConflict
	case errors.Is(err, common.ErrInvalidStop), errors.Is(err, common.ErrInvalidOrder),
		errors.Is(err, common.ErrInvalidSize), errors.Is(err, common.ErrNoPrice):
		return http.StatusUnprocessableEntity
	case errors.Is(err, simulation.ErrRunnerStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
