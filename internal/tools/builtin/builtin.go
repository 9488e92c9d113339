// Package builtin assembles the standard tool set.
package builtin

import (
	"fmt"

	"github.com/ggcode-ai/ggcode/internal/tools"
	"github.com/ggcode-ai/ggcode/internal/tools/file"
	"github.com/ggcode-ai/ggcode/internal/tools/search"
	"github.com/ggcode-ai/ggcode/internal/tools/shell"
)

// Definitions returns every builtin tool definition.
func Definitions() []tools.Definition {
	return []tools.Definition{
		file.Read(),
		file.Write(),
		file.Edit(),
		file.Mkdir(),
		search.Glob(),
		search.Grep(),
		shell.Shell(),
	}
}

// Register installs the builtin set into the registry.
func Register(reg *tools.Registry) error {
	for _, def := range Definitions() {
		if err := reg.Register(def); err != nil {
			return fmt.Errorf("register builtin %q: %w", def.Name, err)
		}
	}
	return nil
}
