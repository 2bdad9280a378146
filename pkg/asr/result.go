// Package asr defines the transcription result model shared by the batch and
// streaming recognition paths, together with the SenseVoice rich-transcription
// marker handling applied to raw model output.
package asr

// Status classifies a recognition result.
type Status string

const (
	// StatusSuccess marks a committed (final) recognition result.
	StatusSuccess Status = "success"

	// StatusPartial marks an in-progress result that may still be revised.
	StatusPartial Status = "partial"

	// StatusEmpty marks a result carrying no recognised text.
	StatusEmpty Status = "empty"

	// StatusError marks a result produced in place of a failed inference.
	StatusError Status = "error"
)

// Language is the recognition language hint passed to the recognizer.
type Language string

const (
	LangAuto      Language = "auto"
	LangChinese   Language = "zh"
	LangEnglish   Language = "en"
	LangCantonese Language = "yue"
	LangJapanese  Language = "ja"
	LangKorean    Language = "ko"
	LangNoSpeech  Language = "nospeech"
)

// IsValid reports whether l is a recognised language hint.
func (l Language) IsValid() bool {
	switch l {
	case LangAuto, LangChinese, LangEnglish, LangCantonese, LangJapanese, LangKorean, LangNoSpeech:
		return true
	}
	return false
}

// Result is one recognition result. Text carries the post-processed
// transcript, RawText the untouched model output including rich-transcription
// markers, and CleanText the raw output with markers stripped.
type Result struct {
	Text       string  `json:"text"`
	RawText    string  `json:"raw_text"`
	CleanText  string  `json:"clean_text"`
	IsFinal    bool    `json:"is_final"`
	Confidence float64 `json:"confidence"`
	ModelType  string  `json:"model_type"`
	Status     Status  `json:"status"`
}

// NewResult builds a Result from raw model output, deriving CleanText and the
// post-processed Text. A final result is reported as StatusSuccess, a
// non-final one as StatusPartial.
func NewResult(rawText, modelType string, confidence float64, isFinal bool) Result {
	status := StatusPartial
	if isFinal {
		status = StatusSuccess
	}
	return Result{
		Text:       Postprocess(rawText),
		RawText:    rawText,
		CleanText:  StripMarkers(rawText),
		IsFinal:    isFinal,
		Confidence: confidence,
		ModelType:  modelType,
		Status:     status,
	}
}

// EmptyResult returns a zero-text, non-final result with StatusEmpty.
func EmptyResult() Result {
	return Result{Status: StatusEmpty}
}

// ErrorResult returns a zero-text, non-final result with StatusError.
// The error itself is reported through logs, not through the result payload.
func ErrorResult() Result {
	return Result{Status: StatusError}
}
