package fraud

import (
	"github.com/smallbiznis/creatorpay/internal/fraud/domain"
	"github.com/smallbiznis/creatorpay/internal/fraud/repository"
	"github.com/smallbiznis/creatorpay/internal/fraud/service"
	payoutdomain "github.com/smallbiznis/creatorpay/internal/payout/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("fraud.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(func(s *service.Service) payoutdomain.FraudGate { return s }),
	fx.Provide(func(s *service.Service) domain.EvidenceService { return s }),
)
