package wallet

import "go.uber.org/fx"

var Module = fx.Module("wallet.client",
	fx.Provide(NewHTTPClient),
)
