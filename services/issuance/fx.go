package issuance

import (
	"evcarbon-marketplace/pkg/repository"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("issuance.service",
	fx.Provide(
		repository.ProvideStore[CreditIssuance],
		NewCalculator,
		NewService,
		NewHandler,
	),
	fx.Invoke(registerRoutes),
)

func registerRoutes(handler *Handler, engine *gin.Engine) {
	handler.RegisterRoutes(engine)
}
