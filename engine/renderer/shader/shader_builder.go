package shader

// ShaderBuilderOption is a functional option applied to a shader during construction.
type ShaderBuilderOption func(*shader)

// WithInclude registers an include available to @oxy:include and @oxy:group annotations.
//
// Parameters:
//   - inc: the include to register
//
// Returns:
//   - ShaderBuilderOption: a function that registers the include on the shader's pre-processor
func WithInclude(inc Include) ShaderBuilderOption {
	return func(s *shader) {
		s.pp.Register(inc)
	}
}

// WithEntryPoint selects an entry point by name instead of the first one of the shader's stage.
// This allows several shaders of the same stage to be built from one source file.
//
// Parameters:
//   - name: the WGSL function name
//
// Returns:
//   - ShaderBuilderOption: a function that sets the entry point
func WithEntryPoint(name string) ShaderBuilderOption {
	return func(s *shader) {
		s.entryPoint = name
	}
}
