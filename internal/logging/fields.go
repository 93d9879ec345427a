package logging

// Field names shared by every component.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldProject    = "project"
	FieldInsightID  = "insight_id"
	FieldFile       = "file"
	FieldSide       = "side"
	FieldRows       = "rows"
	FieldProvider   = "provider"
	FieldModel      = "model"
	FieldBackend    = "backend"
)

// Component names.
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentAnalysis  = "analysis"
	ComponentParser    = "parser"
	ComponentNarrative = "narrative"
	ComponentMemory    = "memory"
	ComponentChart     = "chart"
	ComponentRateLimit = "rate_limit"
)

// Operation names.
const (
	OpAnalyze  = "analyze"
	OpParse    = "parse"
	OpGenerate = "generate"
	OpEmbed    = "embed"
	OpSave     = "save"
	OpSimilar  = "similar"
	OpRender   = "render"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)
