package core

// EffectKind tags the variant of an Effect. The interpreter (package
// interp) executes effects strictly in the order Decide returned them;
// later effects may depend on earlier ones having already been issued
// (e.g. a StartSpan before the InvokeLLM it wraps).
type EffectKind string

const (
	EffInvokeLLM       EffectKind = "invoke_llm"
	EffWriteFile       EffectKind = "write_file"
	EffReadFile        EffectKind = "read_file"
	EffDeleteFile      EffectKind = "delete_file"
	EffListDirectory   EffectKind = "list_directory"
	EffRunTests        EffectKind = "run_tests"
	EffCheckTypes      EffectKind = "check_types"
	EffValidateSchema  EffectKind = "validate_schema"
	EffStartSpan       EffectKind = "start_span"
	EffEndSpan         EffectKind = "end_span"
	EffRecordMetric    EffectKind = "record_metric"
	EffLog             EffectKind = "log"
	EffEmitCheckpoint  EffectKind = "emit_checkpoint"
	EffWaitForApproval EffectKind = "wait_for_approval"
	EffPersistEvent    EffectKind = "persist_event"
	EffCreateSnapshot  EffectKind = "create_snapshot"
)

// LogLevel is one of the four canonical log levels the core emits.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// Effect is a tagged description of an intended side effect. Decide never
// executes an Effect; it only describes one. Only the fields relevant to
// Kind are populated.
type Effect struct {
	Kind EffectKind

	// InvokeLLM
	Prompt       string
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
	HasTemp      bool

	// WriteFile
	Path    string
	Content string

	// ListDirectory
	Recursive bool

	// RunTests
	TestPattern  string
	WantCoverage bool

	// ValidateSchema
	SchemaPath string
	DataPath   string

	// StartSpan
	SpanName string
	SpanAttrs map[string]string

	// EndSpan
	SpanID    string
	SpanOK    bool
	SpanError string

	// RecordMetric
	MetricName string
	Value      float64
	Tags       map[string]string

	// Log
	Level   LogLevel
	Message string
	Context map[string]any

	// EmitCheckpoint
	Summary CheckpointSummary

	// WaitForApproval
	CheckpointID string
	TimeoutMs    int

	// PersistEvent
	Event Event

	// CreateSnapshot
	State        State
	AtEventIndex int64
}

// logEffect is a small constructor helper used throughout Decide to cut
// down on repetition; it is unexported because only this package's
// decider builds Log effects directly.
func logEffect(level LogLevel, message string, ctx map[string]any) Effect {
	return Effect{Kind: EffLog, Level: level, Message: message, Context: ctx}
}

func metricEffect(name string, value float64, tags map[string]string) Effect {
	return Effect{Kind: EffRecordMetric, MetricName: name, Value: value, Tags: tags}
}
