// Package config holds the compile-time configuration recognized by the
// template compiler: directive prefix, component prefix, the fragment-marker
// tag, the void-tag set, component search locations and the debug flag.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultVoidTags is the set of tag names that never take a closing tag
var DefaultVoidTags = []string{
	"area", "base", "br", "col", "embed", "hr", "img", "input",
	"link", "meta", "param", "source", "track", "wbr",
}

// Options represents the compile-time configuration of an engine instance
type Options struct {
	// DirectivePrefix is the reserved attribute prefix, including the
	// separator (default "s:").
	DirectivePrefix string `yaml:"directive_prefix"`

	// ComponentPrefix marks tags that invoke components (default "s-").
	ComponentPrefix string `yaml:"component_prefix"`

	// FragmentTag is the non-emitting grouping tag name (default "s-template").
	FragmentTag string `yaml:"fragment_tag"`

	// VoidTags lists tag names treated as self-closing without an explicit "/>".
	VoidTags []string `yaml:"void_tags"`

	// ComponentDirs lists the directories searched for component sources,
	// in order.
	ComponentDirs []string `yaml:"component_dirs"`

	// DefaultSuffix is appended to a template path and retried once when the
	// path does not resolve as written (default ".stencil").
	DefaultSuffix string `yaml:"default_suffix"`

	// Debug enables cache freshness checking and template watching.
	Debug bool `yaml:"debug"`

	// StrictDirectives makes a reserved-prefixed attribute with no registered
	// meaning a hard error instead of passing it through as a plain attribute.
	StrictDirectives bool `yaml:"strict_directives"`

	// ValidateGenerated compiles every expression of a generated unit before
	// the unit is cached, surfacing invalid embedded code at compile time.
	ValidateGenerated bool `yaml:"validate_generated"`

	voidSet map[string]bool
}

// Default returns the default engine options
func Default() *Options {
	return &Options{
		DirectivePrefix:   "s:",
		ComponentPrefix:   "s-",
		FragmentTag:       "s-template",
		VoidTags:          DefaultVoidTags,
		DefaultSuffix:     ".stencil",
		ComponentDirs:     []string{"components"},
		StrictDirectives:  true,
		ValidateGenerated: true,
	}
}

// Load reads options from a YAML file, overlaying them onto the defaults
func Load(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	opts := Default()
	if err := yaml.Unmarshal(data, opts); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return opts.Normalize()
}

// Normalize fills in defaults for unset fields and validates the options
func (o *Options) Normalize() (*Options, error) {
	def := Default()
	if o.DirectivePrefix == "" {
		o.DirectivePrefix = def.DirectivePrefix
	}
	if o.ComponentPrefix == "" {
		o.ComponentPrefix = def.ComponentPrefix
	}
	if o.FragmentTag == "" {
		o.FragmentTag = def.FragmentTag
	}
	if len(o.VoidTags) == 0 {
		o.VoidTags = def.VoidTags
	}
	if o.DefaultSuffix == "" {
		o.DefaultSuffix = def.DefaultSuffix
	}
	if len(o.ComponentDirs) == 0 {
		o.ComponentDirs = def.ComponentDirs
	}
	if !strings.HasSuffix(o.DirectivePrefix, ":") {
		return nil, fmt.Errorf("directive prefix %q must end with ':'", o.DirectivePrefix)
	}
	o.voidSet = nil
	return o, nil
}

// IsVoidTag checks if a tag name is in the configured void/self-closing set
func (o *Options) IsVoidTag(name string) bool {
	if o.voidSet == nil {
		o.voidSet = make(map[string]bool, len(o.VoidTags))
		for _, t := range o.VoidTags {
			o.voidSet[strings.ToLower(t)] = true
		}
	}
	return o.voidSet[strings.ToLower(name)]
}

// IsFragmentTag checks if a tag name is the fragment-marker tag
func (o *Options) IsFragmentTag(name string) bool {
	return strings.EqualFold(name, o.FragmentTag)
}

// IsComponentTag checks if a tag name invokes a component. The fragment tag
// wins over the component prefix even though it shares it.
func (o *Options) IsComponentTag(name string) bool {
	return !o.IsFragmentTag(name) && strings.HasPrefix(strings.ToLower(name), o.ComponentPrefix)
}

// ComponentName returns the logical component name for a component tag:
// the tag with the component prefix stripped.
func (o *Options) ComponentName(tag string) string {
	return strings.TrimPrefix(strings.ToLower(tag), o.ComponentPrefix)
}

// IsDirectiveAttr checks if an attribute name carries the directive prefix
func (o *Options) IsDirectiveAttr(name string) bool {
	return strings.HasPrefix(name, o.DirectivePrefix)
}

// DirectiveName returns the directive name with the prefix stripped
func (o *Options) DirectiveName(attr string) string {
	return strings.TrimPrefix(attr, o.DirectivePrefix)
}
