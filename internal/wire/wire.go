//go:build wireinject

package wire

import (
	"github.com/google/wire"
)

// BuildContainer is a placeholder replaced by wire with the generated
// implementation (internal/wire/wire_gen.go).
func BuildContainer() (*Container, error) {
	wire.Build(ContainerSet)
	return nil, nil
}
