// Package arch registers the supported instruction sets.
package arch

import (
	"fmt"
	"sort"

	"armlift/internal/arch/a32"
	"armlift/internal/arch/a64"
	"armlift/internal/disasm"
	"armlift/internal/lift"
)

// Arch bundles the three per-architecture collaborators of a translator.
type Arch struct {
	Name    string
	Decoder disasm.Decoder
	Library *lift.Library
	Resolve lift.ResolveFunc
}

// Translator returns a block translator for the architecture.
func (a Arch) Translator(opts lift.Options) *lift.Translator {
	return lift.New(a.Decoder, a.Library, a.Resolve, opts)
}

var registry = map[string]Arch{
	"a64": {Name: "a64", Decoder: a64.Decoder{}, Library: a64.Library(), Resolve: a64.Resolve},
	"a32": {Name: "a32", Decoder: a32.Decoder{}, Library: a32.Library(), Resolve: a32.Resolve},
}

// aliases maps common spellings to registry names.
var aliases = map[string]string{
	"arm64":   "a64",
	"aarch64": "a64",
	"arm":     "a32",
}

// Lookup returns the architecture called name.
func Lookup(name string) (Arch, error) {
	if alias, ok := aliases[name]; ok {
		name = alias
	}
	a, ok := registry[name]
	if !ok {
		return Arch{}, fmt.Errorf("unknown architecture %q (have %v)", name, Names())
	}
	return a, nil
}

// Names returns the registered architecture names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
