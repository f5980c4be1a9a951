package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// Tree document errors (VP100-VP119)

	"VP100": {
		Category:   CategoryTree,
		Message:    "Invalid tree document",
		Detail:     "The tree document could not be parsed. Tree documents are YAML or JSON with a root element and an optional components section.",
		Suggestion: "Check the indentation and quoting around the reported line",
	},
	"VP101": {
		Category:   CategoryTree,
		Message:    "Unknown component",
		Detail:     "An element references a component that is neither a builtin (fragment, text, chunk) nor declared under components:.",
		Suggestion: "Define the component under components: or fix its name",
	},
	"VP102": {
		Category: CategoryTree,
		Message:  "Invalid element",
		Detail:   "An element must name exactly one of component, text, fragment or chunk.",
	},
	"VP103": {
		Category:   CategoryTree,
		Message:    "Invalid weight",
		Detail:     "Weights multiply along the path to a leaf and must be numbers.",
		Suggestion: "Write the weight without quotes, e.g. weight: 0.5",
	},

	// Reconcile errors (VP120-VP139)

	"VP120": {
		Category:   CategoryReconcile,
		Message:    "Duplicate keys found",
		Detail:     "Two or more siblings share an explicit key. Keys identify components across passes and must be unique among siblings.",
		Suggestion: "Derive keys from a unique field of the rendered item",
	},
	"VP121": {
		Category:   CategoryReconcile,
		Message:    "Hook order changed between renders",
		Detail:     "A component called its hooks in a different order or number than on its previous render. Hooks are matched by call position.",
		Suggestion: "Call hooks unconditionally at the top of the render function",
	},
	"VP122": {
		Category: CategoryReconcile,
		Message:  "Component render failed",
		Detail:   "A component panicked while rendering. The pass was abandoned and the previous tree is still committed.",
	},
	"VP123": {
		Category: CategoryReconcile,
		Message:  "Reconcile cancelled",
		Detail:   "The pass was abandoned because its context was done. Nothing was committed.",
	},

	// Data errors (VP140-VP159)

	"VP140": {
		Category:   CategoryData,
		Message:    "No tree to pump data into",
		Detail:     "Data can only be pumped after a successful reconcile pass.",
		Suggestion: "Reconcile the tree before pumping data",
	},
	"VP141": {
		Category: CategoryData,
		Message:  "Data consumer failed",
		Detail:   "A data hook returned an error while consuming a pumped value.",
	},
	"VP142": {
		Category:   CategoryData,
		Message:    "Invalid snapshot path",
		Detail:     `Paths use dotted names with ["key"] or [index] segments, as printed by the paths command.`,
		Suggestion: "Run vprompt snapshot --paths to list valid paths",
	},

	// Config errors (VP160-VP179)

	"VP160": {
		Category:   CategoryConfig,
		Message:    "Invalid configuration file",
		Detail:     "vprompt.json could not be parsed.",
		Suggestion: "Validate the file with a JSON linter",
	},
	"VP161": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
	},

	// Archive errors (VP180-VP189)

	"VP180": {
		Category:   CategoryArchive,
		Message:    "Archive upload failed",
		Detail:     "The snapshot record could not be stored.",
		Suggestion: "Check AWS credentials, region and bucket name",
	},
	"VP181": {
		Category: CategoryArchive,
		Message:  "Archive record not found",
	},

	// CLI errors (VP190-VP199)

	"VP190": {
		Category: CategoryCLI,
		Message:  "Invalid arguments",
	},
	"VP191": {
		Category:   CategoryCLI,
		Message:    "Template not found",
		Suggestion: "Run vprompt init --list to see the available templates",
	},
	"VP192": {
		Category: CategoryCLI,
		Message:  "File already exists",
		Detail:   "vprompt init does not overwrite existing files.",
	},
}

// GetAllCodes returns all registered error codes in order.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a custom error template. Registration is not safe for
// concurrent use and belongs in init functions.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
