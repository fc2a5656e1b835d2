package creator

import (
	"github.com/looksell/looksell/internal/creator/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("creator",
	fx.Provide(repository.Provide),
)
