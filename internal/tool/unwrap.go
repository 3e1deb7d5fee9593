package tool

// wrapperKeys are checked in order for legacy clients that nest the real
// arguments one level down.
var wrapperKeys = []string{"args", "model"}

// Unwrap returns the first wrapper value that is an object, or args itself.
func Unwrap(args map[string]any) map[string]any {
	for _, key := range wrapperKeys {
		if inner, ok := args[key].(map[string]any); ok {
			return inner
		}
	}
	return args
}
