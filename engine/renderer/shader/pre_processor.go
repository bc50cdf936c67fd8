// pre_processor.go implements the Oxy WGSL shader pre-processor. It scans shader
// source code for @oxy: annotations, replaces them with generated WGSL declarations
// or injected include source, and collects a declarations list that element pipelines
// and renderables use to wire GPU buffers to bindings without manual string lookups.
//
// The pre-processor maintains two registries:
//   - includeRegistry: maps include names to WGSL source and the type name they declare.
//     Used by @oxy:include (to inject the source) and @oxy:group (to resolve the WGSL
//     type name in the generated declaration).
//   - addressSpaceRegistry: maps address space argument keys to WGSL var<> syntax strings.
package shader

import (
	"fmt"
	"strings"
)

// Include is a named WGSL source fragment that can be injected with @oxy:include and
// referenced as a type by @oxy:group.
type Include struct {
	// Name is the include key used in annotations.
	Name AnnotationArg

	// Source is the raw WGSL text injected at the annotation site.
	Source string

	// Type is the WGSL type name emitted in @oxy:group declarations. Empty for includes that
	// only contribute functions or constants.
	Type string
}

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	includeRegistry      map[AnnotationArg]Include
	addressSpaceRegistry map[AnnotationArg]string

	// declarations accumulates annotations of type AnnotationTypeBindingGroup and
	// AnnotationTypeProvider during a Process call. Reset at the start of each Process invocation.
	declarations []Annotation
}

// PreProcessor processes raw WGSL shader source code containing @oxy: annotations,
// replacing them with generated declarations or injected sources while collecting
// a declarations list for downstream resource wiring.
type PreProcessor interface {
	// Register adds or replaces an include.
	//
	// Parameters:
	//   - inc: the include to register
	Register(inc Include)

	// Process takes raw WGSL shader source code and pre-processes it by replacing
	// @oxy: annotations with their corresponding WGSL output. @oxy:include annotations
	// are replaced with the registered source text. @oxy:group annotations are replaced
	// with generated @group/@binding variable declarations. @oxy:provider annotations
	// produce no WGSL output but are recorded in the declarations list.
	//
	// Parameters:
	//   - source: the raw WGSL shader source code containing annotations to be processed
	//
	// Returns:
	//   - string: the processed WGSL shader source code with annotations replaced
	//   - error: an error if any annotation is malformed or references an unknown include
	Process(source string) (string, error)

	// Declarations returns the list of AnnotationTypeBindingGroup and AnnotationTypeProvider
	// annotations collected during the most recent call to Process, in source-order.
	//
	// Returns:
	//   - []Annotation: the declarations collected during the last Process call
	Declarations() []Annotation
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a new PreProcessor with the given includes registered.
//
// Parameters:
//   - includes: the includes available to @oxy:include and @oxy:group
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor(includes ...Include) PreProcessor {
	p := &preProcessor{
		includeRegistry: make(map[AnnotationArg]Include, len(includes)),
		addressSpaceRegistry: map[AnnotationArg]string{
			annotationArgStorageTypeUniform:   "var<uniform>",
			annotationArgStorageTypeRead:      "var<storage, read>",
			annotationArgStorageTypeReadWrite: "var<storage, read_write>",
		},
	}
	for _, inc := range includes {
		p.Register(inc)
	}
	return p
}

func (p *preProcessor) Register(inc Include) {
	p.includeRegistry[inc.Name] = inc
}

func (p *preProcessor) Process(source string) (string, error) {
	p.declarations = p.declarations[:0]

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))
	included := make(map[AnnotationArg]bool)

	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case annotationTypeInclude:
			entry, ok := p.includeRegistry[a.Args[0]]
			if !ok {
				return "", fmt.Errorf("line %d: unknown @oxy:include argument %q", i+1, a.Args[0])
			}
			// including the same source twice would redeclare its structs
			if !included[a.Args[0]] {
				out = append(out, entry.Source)
				included[a.Args[0]] = true
			}
		case AnnotationTypeBindingGroup:
			key, isArray := a.TypeKey()
			entry, ok := p.includeRegistry[key]
			if !ok || entry.Type == "" {
				return "", fmt.Errorf("line %d: @oxy:group type %q does not name a registered struct", i+1, key)
			}
			wgslType := entry.Type
			if isArray {
				wgslType = fmt.Sprintf("array<%s>", entry.Type)
			}
			addrSpace := p.addressSpaceRegistry[a.Args[0]]
			out = append(out, fmt.Sprintf("@group(%d) @binding(%d) %s %s: %s;", *a.Group, *a.Binding, addrSpace, a.Args[1], wgslType))
			p.declarations = append(p.declarations, *a)
		case AnnotationTypeProvider:
			p.declarations = append(p.declarations, *a)
		default:
			return "", fmt.Errorf("line %d: unknown annotation type %q", i+1, a.Type)
		}
	}
	return strings.Join(out, "\n"), nil
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}
