package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	submissiondomain "github.com/smallbiznis/creatorpay/internal/submission/domain"
)

func (s *Server) GetSubmission(c *gin.Context) {
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

	detail, err := s.submissionSvc.Get(c.Request.Context(), userID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": detail})
}

type updatePlatformStatusBody struct {
	Status    string `json:"status"`
	PostedURL string `json:"posted_url"`
}

func (s *Server) UpdatePlatformStatus(c *gin.Context) {
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

	var body updatePlatformStatusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	detail, err := s.submissionSvc.UpdatePlatformStatus(c.Request.Context(), submissiondomain.UpdatePlatformStatusInput{
		SubmissionID: id,
		Platform:     strings.ToLower(strings.TrimSpace(c.Param("platform"))),
		Status:       submissiondomain.Status(strings.TrimSpace(body.Status)),
		PostedURL:    strings.TrimSpace(body.PostedURL),
		ActorID:      userID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": detail})
}

type updateCaptionBody struct {
	Caption string `json:"caption"`
}

func (s *Server) UpdateCaption(c *gin.Context) {
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

	var body updateCaptionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	detail, err := s.submissionSvc.UpdateCaption(c.Request.Context(), submissiondomain.UpdateCaptionInput{
		SubmissionID: id,
		Caption:      body.Caption,
		ActorID:      userID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": detail})
}
