package config

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/leapstack-labs/fwd/pkg/forward"
	"github.com/leapstack-labs/fwd/pkg/provider"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// OutputModes lists the accepted values of the output setting.
var OutputModes = []string{"auto", "text", "markdown", "json"}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("root is required")
	}
	if !identPattern.MatchString(c.Root) {
		return fmt.Errorf("root %q is not a valid identifier", c.Root)
	}
	if forward.IsReserved(c.Root) {
		return fmt.Errorf("root %q is a reserved name", c.Root)
	}

	if c.Runtime.Type == "" {
		return fmt.Errorf("runtime.type is required")
	}
	if !provider.IsRegistered(c.Runtime.Type) {
		return &provider.UnknownProviderError{Type: c.Runtime.Type, Available: provider.List()}
	}

	if c.OutputFormat != "" && !slices.Contains(OutputModes, c.OutputFormat) {
		return fmt.Errorf("unknown output format %q (expected one of %v)", c.OutputFormat, OutputModes)
	}
	return nil
}
