package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/austinkregel/local-media/mediasessiond/internal/bridge"
	"github.com/austinkregel/local-media/mediasessiond/internal/ipc"
	"github.com/austinkregel/local-media/mediasessiond/internal/media"
)

func (s *Server) handlePair(c *gin.Context) {
	var req ipc.PairRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ipc.NewErrorResponse(ipc.CodeInvalidRequest, "invalid pair request"))
			return
		}
	}

	pairing, err := s.authManager.Pair(req.ClientName)
	if err != nil {
		log.Errorf("Pairing failed: %v", err)
		c.JSON(http.StatusInternalServerError, ipc.NewErrorResponse("INTERNAL", err.Error()))
		return
	}

	resp, _ := ipc.NewSuccessResponse(pairing)
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleMethods(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"methods": s.handler.Methods()})
}

// handleCall invokes a bridge method with the raw request body as its
// arguments.
func (s *Server) handleCall(c *gin.Context) {
	method := c.Param("method")

	args, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, ipc.NewErrorResponse(ipc.CodeInvalidRequest, "failed to read body"))
		return
	}

	result, err := s.handler.Call(method, args)
	if err != nil {
		c.JSON(statusFor(err), ipc.NewCallErrorResponse(err))
		return
	}

	resp, err := ipc.NewSuccessResponse(result)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ipc.NewErrorResponse("INTERNAL", "failed to encode result"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// statusFor maps a bridge error to an HTTP status
func statusFor(err error) int {
	if code, ok := media.CodeOf(err); ok {
		switch code {
		case media.CodePermissionDenied:
			return http.StatusForbidden
		case media.CodeInvalidToken:
			return http.StatusNotFound
		case media.CodeNoSessionSelected:
			return http.StatusConflict
		case media.CodeInvalidArgument:
			return http.StatusBadRequest
		case media.CodeTransportError:
			return http.StatusBadGateway
		}
	}
	if errors.Is(err, bridge.ErrNotImplemented) {
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}
