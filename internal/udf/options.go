package udf

import "github.com/go-logr/logr"

// readerConfig holds Reader's runtime-tunable knobs. defaultReaderConfig
// returns the reference implementation's defaults (cache on, legacy AD-chain
// translation on, MaxADChains at its compile-time value, a discarding
// logger); the zero value has all of these off or empty. This follows the
// same struct-plus-Default-constructor shape the teacher's internal/settings
// used for the CLI tools' own options.
type readerConfig struct {
	cacheEnabled           bool
	legacyBlockTranslation bool
	maxADChains            int
	logger                 logr.Logger
}

func defaultReaderConfig() readerConfig {
	return readerConfig{
		cacheEnabled:           true,
		legacyBlockTranslation: true,
		maxADChains:            MaxADChains,
		logger:                 logr.Discard(),
	}
}

// Option configures a Reader at construction time.
type Option func(*readerConfig)

// WithCache enables or disables the block cache. Disabling it is mostly
// useful for tests that want to observe raw BlockSource reads.
func WithCache(enabled bool) Option {
	return func(c *readerConfig) { c.cacheEnabled = enabled }
}

// WithLegacyBlockTranslation controls whether FileBlockFile/FileBlockDir
// reproduce the reference implementation's AD-chain quirk (the running
// block offset is computed but never advanced between allocation
// descriptors, so every lookup resolves through AD[0]) or track the offset
// correctly across the whole chain. Defaults to true: most images in the
// wild only ever populate one AD per ICB, so the quirk is invisible, and
// images that exercise it rely on callers reproducing it exactly.
func WithLegacyBlockTranslation(enabled bool) Option {
	return func(c *readerConfig) { c.legacyBlockTranslation = enabled }
}

// WithMaxADChains overrides MaxADChains for this Reader. The constant
// exists because the reference implementation bounds its AD_chain array at
// compile time; Go callers that know their images need more chained extents
// can raise it instead of forking the package.
func WithMaxADChains(n int) Option {
	return func(c *readerConfig) {
		if n > 0 {
			c.maxADChains = n
		}
	}
}

// WithLogger attaches a structured logger. Volume-walk, ICB-mapping, and
// directory-scan diagnostics that the reference implementation gated behind
// #ifdef DEBUG go through here at V(1) (debug) and V(2) (trace).
func WithLogger(l logr.Logger) Option {
	return func(c *readerConfig) { c.logger = l }
}
