package content

import (
	"github.com/looksell/looksell/internal/content/service"
	"go.uber.org/fx"
)

var Module = fx.Module("content.service",
	fx.Provide(service.NewService),
)
