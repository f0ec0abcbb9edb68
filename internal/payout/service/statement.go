package service

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/creatorpay/internal/payout/domain"
	"github.com/smallbiznis/creatorpay/internal/providers/pdf"
	"go.uber.org/zap"
)

var errStatementUnavailable = errors.New("statement_unavailable")

// Statement renders a request and its items as a PDF. Visibility follows Get.
func (s *Service) Statement(ctx context.Context, actorID string, id snowflake.ID) ([]byte, error) {
	detail, err := s.Get(ctx, actorID, id)
	if err != nil {
		return nil, err
	}

	data := pdf.StatementData{
		RequestID:          detail.ID.String(),
		CreatorName:        detail.UserID,
		RequestedAt:        detail.CreatedAt.Format("2006-01-02 15:04 MST"),
		ClearingEndsAt:     detail.ClearingEndsAt.Format("2006-01-02 15:04 MST"),
		Status:             string(detail.Status),
		AutoApprovalStatus: string(detail.AutoApproval()),
		PayoutMethod:       string(detail.PayoutMethod),
		Total:              detail.TotalAmount.StringFixed(2),
		GeneratedAt:        s.clock.Now().Format(time.RFC3339),
	}
	if s.profiles != nil {
		profile, err := s.profiles.Resolve(ctx, detail.UserID)
		if err != nil {
			s.log.Warn("statement profile lookup failed", zap.String("user_id", detail.UserID), zap.Error(err))
		}
		if profile != nil {
			if profile.Username != "" {
				data.CreatorName = profile.Username
			}
			data.CreatorEmail = profile.Email
		}
	}

	clawedBack := decimal.Zero
	for _, item := range detail.Items {
		reference := item.LedgerEntryID.String()
		if item.VideoSubmissionID != nil {
			reference = "video " + item.VideoSubmissionID.String()
		} else if item.BoostSubmissionID != nil {
			reference = "boost " + item.BoostSubmissionID.String()
		}
		brand := "-"
		if item.BrandID != nil {
			brand = *item.BrandID
		}
		if item.ClawbackStatus == domain.ClawbackStatusClawedBack {
			clawedBack = clawedBack.Add(item.Amount)
		}
		data.Items = append(data.Items, pdf.StatementItem{
			Reference:      reference,
			Brand:          brand,
			Amount:         item.Amount.StringFixed(2),
			ClawbackStatus: string(item.ClawbackStatus),
		})
	}
	data.ClawedBack = clawedBack.StringFixed(2)
	data.NetPayable = detail.TotalAmount.Sub(clawedBack).StringFixed(2)

	reader, err := s.pdf.GenerateStatement(ctx, data)
	if err != nil {
		return nil, err
	}
	if reader == nil {
		return nil, errStatementUnavailable
	}
	return io.ReadAll(reader)
}
