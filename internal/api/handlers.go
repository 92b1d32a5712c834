package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"marketflow/internal/analysis"
	"marketflow/internal/auth"
	"marketflow/internal/marketdata"
	"marketflow/internal/processor"
)

// loginRequest is the credential payload for token issuing
type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// analyzeRequest is the payload for a full analysis
type analyzeRequest struct {
	Ticker     string                 `json:"ticker" binding:"required"`
	Timeframes []marketdata.Timeframe `json:"timeframes,omitempty"`
}

// scanRequest is the payload for a multi-ticker signal scan
type scanRequest struct {
	Tickers    []string               `json:"tickers" binding:"required"`
	SignalType string                 `json:"signal_type,omitempty"`
	Strength   string                 `json:"strength,omitempty"`
	Timeframes []marketdata.Timeframe `json:"timeframes,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}
	if req.Username != s.credentials.Username ||
		!auth.VerifyPassword(s.credentials.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := s.jwtManager.GenerateToken(auth.UserClaims{UserID: req.Username, Name: req.Username})
	if err != nil {
		s.logger.Error().Err(err).Msg("token generation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ticker is required"})
		return
	}

	result, err := s.facade.AnalyzeTicker(c.Request.Context(), req.Ticker, req.Timeframes)
	if err != nil {
		s.respondAnalysisError(c, err)
		return
	}

	if s.store != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.store.Save(ctx, result); err != nil {
				s.logger.Warn().Err(err).Str("ticker", result.Ticker).Msg("snapshot save failed")
			}
		}()
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleSignals(c *gin.Context) {
	ticker := c.Param("ticker")
	summary, err := s.facade.GetSignals(c.Request.Context(), ticker, nil)
	if err != nil {
		s.respondAnalysisError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleScan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tickers are required"})
		return
	}

	results, err := s.facade.ScanForSignals(
		c.Request.Context(), req.Tickers,
		analysis.SignalType(req.SignalType),
		analysis.SignalStrength(req.Strength),
		req.Timeframes,
	)
	if err != nil {
		s.respondAnalysisError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) handleExplain(c *gin.Context) {
	ticker := c.Param("ticker")
	explanation, err := s.facade.ExplainSignal(c.Request.Context(), ticker, nil)
	if err != nil {
		s.respondAnalysisError(c, err)
		return
	}
	c.String(http.StatusOK, explanation)
}

func (s *Server) handleSnapshots(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "snapshot store not configured"})
		return
	}
	ticker := c.Param("ticker")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	records, err := s.store.ListByTicker(c.Request.Context(), ticker, time.Time{}, time.Now().UTC(), limit)
	if err != nil {
		s.logger.Error().Err(err).Str("ticker", ticker).Msg("snapshot query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query snapshots"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": records})
}

// respondAnalysisError maps engine failures onto HTTP status codes
func (s *Server) respondAnalysisError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, processor.ErrInsufficientData), errors.Is(err, processor.ErrDataIntegrity):
		status = http.StatusUnprocessableEntity
	case marketdata.CategoryOf(err) == marketdata.ErrorRateLimit:
		status = http.StatusTooManyRequests
	case marketdata.CategoryOf(err) == marketdata.ErrorAuthentication:
		status = http.StatusBadGateway
	case marketdata.CategoryOf(err) == marketdata.ErrorNetwork:
		status = http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusRequestTimeout
	}
	s.logger.Warn().Err(err).Int("status", status).Msg("analysis request failed")
	c.JSON(status, gin.H{"error": err.Error()})
}
