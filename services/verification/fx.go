package verification

import (
	"evcarbon-marketplace/pkg/repository"
	"evcarbon-marketplace/services/issuance"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("verification.service",
	fx.Provide(
		repository.ProvideStore[VerificationRequest],
		NewValidationEngine,
		NewService,
		NewHandler,
		func(s *issuance.Service) CreditIssuer { return s },
	),
	fx.Invoke(registerRoutes),
)

func registerRoutes(handler *Handler, engine *gin.Engine) {
	handler.RegisterRoutes(engine)
}
