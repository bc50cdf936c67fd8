package window

// WindowBuilderOption is a functional option for configuring an engineWindow.
// Use the With* functions to create options.
type WindowBuilderOption func(w *engineWindow)

// WithTitle sets the window title displayed in the title bar.
//
// Parameters:
//   - title: the window title text
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithTitle(title string) WindowBuilderOption {
	return func(w *engineWindow) {
		w.title = title
	}
}

// WithMaxWidth caps the width a user can resize the window to.
//
// Parameters:
//   - maxWidth: maximum width in pixels, 0 keeps the default
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithMaxWidth(maxWidth int) WindowBuilderOption {
	return func(w *engineWindow) {
		if maxWidth > 0 {
			w.maxWidth = maxWidth
		}
	}
}

// WithMaxHeight caps the height a user can resize the window to.
func WithMaxHeight(maxHeight int) WindowBuilderOption {
	return func(w *engineWindow) {
		if maxHeight > 0 {
			w.maxHeight = maxHeight
		}
	}
}

// WithMinWidth sets the smallest width a user can resize the window to.
//
// Parameters:
//   - minWidth: minimum width in pixels, 0 keeps the default
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithMinWidth(minWidth int) WindowBuilderOption {
	return func(w *engineWindow) {
		if minWidth > 0 {
			w.minWidth = minWidth
		}
	}
}

// WithMinHeight sets the smallest height a user can resize the window to.
func WithMinHeight(minHeight int) WindowBuilderOption {
	return func(w *engineWindow) {
		if minHeight > 0 {
			w.minHeight = minHeight
		}
	}
}

// WithWidth sets the initial window width.
//
// Parameters:
//   - width: initial width in pixels
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithWidth(width int) WindowBuilderOption {
	return func(w *engineWindow) {
		w.width = width
	}
}

// WithHeight sets the initial window height.
//
// Parameters:
//   - height: initial height in pixels
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithHeight(height int) WindowBuilderOption {
	return func(w *engineWindow) {
		w.height = height
	}
}
