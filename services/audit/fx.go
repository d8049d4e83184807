package audit

import "go.uber.org/fx"

var Module = fx.Module("audit.notifier",
	fx.Provide(
		NewNotifier,
		func(n *Notifier) Recorder { return n },
	),
)

var Worker = fx.Module("audit.worker",
	fx.Provide(NewHTTPClient),
	fx.Invoke(RegisterHandlers),
)
