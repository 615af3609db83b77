package errors

// Registered error codes.
const (
	CodeInvalidSelector   = "S001"
	CodeDuplicateKey      = "S002"
	CodeSubscriptionFault = "S003"
	CodeNotificationFault = "S004"
	CodeSetterFault       = "S005"

	CodeConfigNotFound = "S100"
	CodeConfigInvalid  = "S101"
)

// Template defines a registered error type.
type Template struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]Template{
	// ============================================
	// Store Errors (S001-S099)
	// ============================================

	CodeInvalidSelector: {
		Category:   CategorySelector,
		Message:    "Invalid selector",
		Detail:     "Bind was called with a request that is neither a value selector, a field list, nor a full-access request.",
		Suggestion: "Use store.ValueSelector, store.FieldListSelector or store.FullAccessRequest",
	},
	CodeDuplicateKey: {
		Category: CategoryRegistry,
		Message:  "Key already claimed",
		Detail:   "Only produced by registries with exclusive key ownership. The default registry allows any number of subscribers per key.",
	},
	CodeSubscriptionFault: {
		Category: CategoryRegistry,
		Message:  "Subscription failed",
		Detail:   "The callback could not be registered. A no-op unsubscribe was returned in its place.",
	},
	CodeNotificationFault: {
		Category: CategoryDispatch,
		Message:  "Subscriber callback failed",
		Detail:   "A callback panicked during a notification pass. Remaining callbacks still ran and the update stays committed.",
	},
	CodeSetterFault: {
		Category:   CategoryUpdate,
		Message:    "Setter failed",
		Detail:     "The setter panicked or was nil. The update was aborted and the previous state is unchanged.",
		Suggestion: "Setters must be non-nil pure functions returning the fields to merge",
	},

	// ============================================
	// Config Errors (S100-S199)
	// ============================================

	CodeConfigNotFound: {
		Category:   CategoryConfig,
		Message:    "Config file not found",
		Suggestion: "Create slicestore.json or run without --config to use defaults",
	},
	CodeConfigInvalid: {
		Category: CategoryConfig,
		Message:  "Invalid config",
	},
}

// Lookup returns the template registered for code.
func Lookup(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}
