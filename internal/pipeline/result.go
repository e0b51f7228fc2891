package pipeline

// Kind names a Result variant.
type Kind string

const (
	KindOutput      Kind = "output"
	KindRawFallback Kind = "raw_fallback"
	KindError       Kind = "error"
)

// Result is one of Output, RawFallback or Error. The set is closed.
type Result interface {
	Kind() Kind
	// Content is the text to show: the answer, the raw body, or the error message.
	Content() string
	isResult()
}

// Output is a well-formed model answer.
type Output struct {
	Text string
}

// RawFallback is the raw response text, used when the answer field was absent.
type RawFallback struct {
	Text string
}

// Error describes a failed model call.
type Error struct {
	Message string
}

func (Output) Kind() Kind      { return KindOutput }
func (RawFallback) Kind() Kind { return KindRawFallback }
func (Error) Kind() Kind       { return KindError }

func (r Output) Content() string      { return r.Text }
func (r RawFallback) Content() string { return r.Text }
func (r Error) Content() string       { return r.Message }

func (Output) isResult()      {}
func (RawFallback) isResult() {}
func (Error) isResult()       {}

// NewResult rebuilds a Result from its kind and content. Unknown kinds yield
// an Error.
func NewResult(kind Kind, content string) Result {
	switch kind {
	case KindOutput:
		return Output{Text: content}
	case KindRawFallback:
		return RawFallback{Text: content}
	case KindError:
		return Error{Message: content}
	}
	return Error{Message: "unknown result kind " + string(kind)}
}
