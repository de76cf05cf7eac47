// Package plugins registers the builtin content providers. Registration is
// an explicit, auditable step at startup, not a side effect of scanning a
// directory.
package plugins

import (
	"github.com/ayusman/paperframe/internal/plugin"
	"github.com/ayusman/paperframe/internal/plugins/clock"
	"github.com/ayusman/paperframe/internal/plugins/photo"
	"github.com/ayusman/paperframe/internal/plugins/quote"
	"github.com/ayusman/paperframe/internal/plugins/wordday"
)

// RegisterBuiltins adds every builtin provider to the registry.
func RegisterBuiltins(r *plugin.Registry) error {
	builtins := []struct {
		meta plugin.Metadata
		impl plugin.Plugin
	}{
		{clock.Meta(), clock.New()},
		{quote.Meta(), quote.New()},
		{wordday.Meta(), wordday.New()},
		{photo.Meta(), photo.New()},
	}
	for _, b := range builtins {
		if err := r.Register(b.meta, b.impl); err != nil {
			return err
		}
	}
	return nil
}
