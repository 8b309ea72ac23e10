package core

import (
	"fmt"
	"net/url"
	"strings"
)

// TargetContext describes the change under verification. It is created once
// per session and immutable thereafter; agents receive it read-only.
type TargetContext struct {
	// FeatureID identifies the feature or issue the session verifies.
	FeatureID string `json:"feature_id"`

	// TargetFiles lists source files the change touched.
	TargetFiles []string `json:"target_files,omitempty"`

	// TargetEndpoints lists HTTP paths (relative to BaseURL) the change affects.
	TargetEndpoints []string `json:"target_endpoints,omitempty"`

	// BaseURL is the root of the running application under test.
	BaseURL string `json:"base_url,omitempty"`

	// DiffRange is the VCS revision range the change spans (e.g. "main...HEAD").
	// Empty means "working tree vs HEAD".
	DiffRange string `json:"diff_range,omitempty"`

	// DepthOverride forces a depth regardless of trigger defaults. Zero value
	// means no override; the depth selector decides.
	DepthOverride Depth `json:"depth_override,omitempty"`
}

// Validate reports whether the context is usable for dispatch. A context needs
// at least a feature identifier and, when a base URL is present, it must parse.
func (t TargetContext) Validate() error {
	if strings.TrimSpace(t.FeatureID) == "" {
		return fmt.Errorf("%w: target context requires a feature id", ErrConfig)
	}
	if t.BaseURL != "" {
		u, err := url.Parse(t.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: base url %q is not an absolute URL", ErrConfig, t.BaseURL)
		}
	}
	if t.DepthOverride != "" {
		if err := t.DepthOverride.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// HasEndpoint reports whether the context declares the given endpoint path.
func (t TargetContext) HasEndpoint(path string) bool {
	for _, ep := range t.TargetEndpoints {
		if ep == path {
			return true
		}
	}
	return false
}

// HasFile reports whether the context declares the given target file.
func (t TargetContext) HasFile(path string) bool {
	for _, f := range t.TargetFiles {
		if f == path {
			return true
		}
	}
	return false
}
