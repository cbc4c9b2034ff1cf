package models

// InferenceRequest is one structured-output call to the inference engine.
type InferenceRequest struct {
	SystemPrompt string
	UserPrompt   string
	// SchemaName and Schema describe the JSON schema the response must follow.
	SchemaName string
	Schema     map[string]any
}
