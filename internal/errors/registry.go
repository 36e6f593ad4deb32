package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// Registered codes.
const (
	CodeComponentNotFound = "H001"
	CodeInvalidOperation  = "H002"
	CodeUnhandledRender   = "H003"
	CodeDispatcherClosed  = "H004"
	CodeInvalidSelector   = "H010"
	CodeNoMatch           = "H011"
	CodeConfigInvalid     = "C001"
	CodeConfigParse       = "C002"
	CodeInputRead         = "X001"
)

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// Harness runtime (H001-H009)
	CodeComponentNotFound: {
		Category: CategoryRuntime,
		Message:  "component not found",
		Detail:   "No component of the requested type is rendered below the root.",
	},
	CodeInvalidOperation: {
		Category: CategoryRuntime,
		Message:  "invalid operation",
		Detail:   "The call is not valid in the current state of the view or builder.",
	},
	CodeUnhandledRender: {
		Category: CategoryRuntime,
		Message:  "unhandled render error",
		Detail:   "A dispatched callback or the render pass it triggered failed or panicked.",
	},
	CodeDispatcherClosed: {
		Category: CategoryRuntime,
		Message:  "dispatcher closed",
		Detail:   "The harness was closed; no further work can be dispatched.",
	},

	// Markup queries (H010-H019)
	CodeInvalidSelector: {
		Category: CategoryQuery,
		Message:  "invalid selector",
		Detail:   "The CSS selector uses syntax outside the supported subset.",
	},
	CodeNoMatch: {
		Category: CategoryQuery,
		Message:  "no element matches selector",
		Detail:   "The rendered markup contains no element matching the selector.",
	},

	// Configuration (C001-C009)
	CodeConfigInvalid: {
		Category: CategoryConfig,
		Message:  "invalid configuration",
		Detail:   "A configuration value is out of range or unknown.",
	},
	CodeConfigParse: {
		Category: CategoryConfig,
		Message:  "configuration parse error",
		Detail:   "The configuration file is not valid JSON or YAML.",
	},

	// CLI (X001-X009)
	CodeInputRead: {
		Category: CategoryCLI,
		Message:  "cannot read input",
		Detail:   "The markup file could not be read.",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
