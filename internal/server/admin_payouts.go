package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	approvaldomain "github.com/smallbiznis/creatorpay/internal/approval/domain"
	clawbackdomain "github.com/smallbiznis/creatorpay/internal/clawback/domain"
)

func (s *Server) ProcessEvidenceDeadlines(c *gin.Context) {
	res, err := s.sweeperSvc.ProcessEvidenceDeadlines(c.Request.Context(), s.cfg.Scheduler.BatchSize)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"run_id":    res.RunID,
		"processed": res.Processed,
		"rejected":  res.Rejected,
		"skipped":   res.Skipped,
		"errors":    res.Errors,
	})
}

type executeClawbackBody struct {
	PayoutItemID string `json:"payout_item_id"`
	Reason       string `json:"reason"`
}

func (s *Server) ExecuteClawback(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var body executeClawbackBody
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	itemID, err := snowflake.ParseString(strings.TrimSpace(body.PayoutItemID))
	if err != nil || itemID == 0 {
		AbortWithError(c, newValidationError("payout_item_id", "invalid_payout_item_id", "payout_item_id is required"))
		return
	}

	res, err := s.clawbackSvc.Execute(c.Request.Context(), clawbackdomain.ExecuteInput{
		PayoutItemID: itemID,
		Reason:       body.Reason,
		ActorID:      userID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"message":         "Payout item clawed back",
		"refunded_amount": money(res.RefundedAmount),
		"brand_id":        res.BrandID,
		"request_status":  res.RequestStatus,
	})
}

type requestCryptoPayoutBody struct {
	PayoutRequestID string `json:"payout_request_id"`
}

func (s *Server) RequestCryptoPayout(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var body requestCryptoPayoutBody
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	requestID, err := snowflake.ParseString(strings.TrimSpace(body.PayoutRequestID))
	if err != nil || requestID == 0 {
		AbortWithError(c, newValidationError("payout_request_id", "invalid_payout_request_id", "payout_request_id is required"))
		return
	}

	detail, err := s.approvalSvc.RequestCryptoPayout(c.Request.Context(), approvaldomain.RequestInput{
		PayoutRequestID: requestID,
		AdminID:         userID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"approval_id":        detail.ID,
		"required_approvals": detail.RequiredApprovals,
		"current_approvals":  detail.CurrentApprovals,
		"tier":               detail.Tier,
		"delay_minutes":      detail.DelayMinutes,
		"can_execute":        detail.CanExecute,
		"expires_at":         detail.ExpiresAt,
	})
}

type castVoteBody struct {
	Vote    string `json:"vote"`
	Comment string `json:"comment"`
}

func (s *Server) CastApprovalVote(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	approvalID, err := pathSnowflakeID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var body castVoteBody
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	detail, err := s.approvalSvc.CastVote(c.Request.Context(), approvaldomain.VoteInput{
		ApprovalID: approvalID,
		AdminID:    userID,
		Vote:       approvaldomain.VoteChoice(strings.ToLower(strings.TrimSpace(body.Vote))),
		Comment:    body.Comment,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "approval": detail})
}

func (s *Server) GetApproval(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	approvalID, err := pathSnowflakeID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	detail, err := s.approvalSvc.Get(c.Request.Context(), userID, approvalID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": detail})
}
