package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	frauddomain "github.com/smallbiznis/creatorpay/internal/fraud/domain"
	payoutdomain "github.com/smallbiznis/creatorpay/internal/payout/domain"
	"github.com/smallbiznis/creatorpay/pkg/db/pagination"
)

type requestPayoutBody struct {
	SourceType        string `json:"sourceType"`
	SourceID          string `json:"sourceId"`
	VideoSubmissionID string `json:"videoSubmissionId"`
	BoostSubmissionID string `json:"boostSubmissionId"`
	PayoutMethod      string `json:"payoutMethod"`
}

type payoutRequestView struct {
	ID             string                     `json:"id"`
	TotalAmount    json.Number                `json:"totalAmount"`
	EntriesCount   int                        `json:"entriesCount"`
	ClearingEndsAt time.Time                  `json:"clearingEndsAt"`
	Status         payoutdomain.RequestStatus `json:"status"`
	FraudCheck     *payoutdomain.FraudVerdict `json:"fraudCheck"`
}

// money renders an amount as a JSON number with two decimals.
func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

func (s *Server) RequestPayout(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var body requestPayoutBody
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	videoSubmissionID, err := optionalSnowflakeID("videoSubmissionId", body.VideoSubmissionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	boostSubmissionID, err := optionalSnowflakeID("boostSubmissionId", body.BoostSubmissionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	method := payoutdomain.PayoutMethod(strings.ToLower(strings.TrimSpace(body.PayoutMethod)))
	switch method {
	case "", payoutdomain.PayoutMethodBank, payoutdomain.PayoutMethodCrypto:
	default:
		AbortWithError(c, newValidationError("payoutMethod", "invalid_payout_method", "payoutMethod must be bank or crypto"))
		return
	}

	res, err := s.payoutSvc.RequestPayout(c.Request.Context(), payoutdomain.RequestPayoutInput{
		UserID:            userID,
		SourceType:        strings.TrimSpace(body.SourceType),
		SourceID:          strings.TrimSpace(body.SourceID),
		VideoSubmissionID: videoSubmissionID,
		BoostSubmissionID: boostSubmissionID,
		PayoutMethod:      method,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"payoutRequest": payoutRequestView{
			ID:             res.ID.String(),
			TotalAmount:    money(res.TotalAmount),
			EntriesCount:   res.EntriesCount,
			ClearingEndsAt: res.ClearingEndsAt,
			Status:         res.Status,
			FraudCheck:     res.FraudCheck,
		},
	})
}

func (s *Server) ListPayoutRequests(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var query pagination.Pagination
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.payoutSvc.List(c.Request.Context(), payoutdomain.ListPayoutRequestsRequest{
		Pagination: query,
		UserID:     userID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.PayoutRequests, "page_info": resp.PageInfo})
}

func (s *Server) GetPayoutRequest(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	id, err := pathSnowflakeID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	detail, err := s.payoutSvc.Get(c.Request.Context(), userID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": detail})
}

func (s *Server) PayoutStatement(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	id, err := pathSnowflakeID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	doc, err := s.payoutSvc.Statement(c.Request.Context(), userID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `inline; filename="payout-`+id.String()+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", doc)
}

type submitEvidenceBody struct {
	EvidenceType string `json:"evidence_type"`
	URL          string `json:"url"`
	Notes        string `json:"notes"`
}

func (s *Server) SubmitEvidence(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	id, err := pathSnowflakeID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var body submitEvidenceBody
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	evidence, err := s.evidenceSvc.SubmitEvidence(c.Request.Context(), frauddomain.SubmitEvidenceInput{
		PayoutRequestID: id,
		UserID:          userID,
		EvidenceType:    frauddomain.EvidenceType(strings.TrimSpace(body.EvidenceType)),
		URL:             strings.TrimSpace(body.URL),
		Notes:           strings.TrimSpace(body.Notes),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "evidence": evidence})
}

// pathSnowflakeID parses a snowflake path parameter. Malformed ids read as
// missing rows.
func pathSnowflakeID(c *gin.Context, name string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param(name)))
	if err != nil || id == 0 {
		return 0, ErrNotFound
	}
	return id, nil
}

// optionalSnowflakeID parses an optional body id. Blank means unset.
func optionalSnowflakeID(field, value string) (*snowflake.ID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	id, err := snowflake.ParseString(value)
	if err != nil || id == 0 {
		return nil, newValidationError(field, "invalid_id", field+" must be a numeric id")
	}
	return &id, nil
}
