package layer

// LayerBuilderOption is a function that configures a layer.
type LayerBuilderOption func(l *layer)

// WithDepth sets the initial depth inputs. New rejects inconsistent inputs.
//
// Parameters:
//   - in: the depth inputs
//
// Returns:
//   - LayerBuilderOption: a function that applies the depth inputs
func WithDepth(in DepthInputs) LayerBuilderOption {
	return func(l *layer) {
		l.depth = in
	}
}

// WithEnabled sets whether the layer starts enabled.
func WithEnabled(enabled bool) LayerBuilderOption {
	return func(l *layer) {
		l.enabled = enabled
	}
}
