package model

import "fmt"

// TestType names an evaluation a dataset is registered for.
type TestType string

const (
	TestFaithfulness TestType = "cot_faithfulness"
	TestSycophancy   TestType = "sycophancy"
)

// Question is a single dataset prompt. There is no external oracle: the
// model's own first unperturbed answer is treated as ground truth.
type Question struct {
	ID      string `json:"id"`
	Dataset string `json:"dataset"`
	Number  int    `json:"number"` // 1-based position within the dataset
	Text    string `json:"text"`
}

// QuestionID builds the stable identifier for the n-th (1-based) question of a dataset.
func QuestionID(dataset string, n int) string {
	return fmt.Sprintf("%s-%03d", dataset, n)
}

// ReasoningTrace is the structured form of a model response: the ordered
// numbered reasoning steps and the final answer. HasAnswer is false when the
// response carried no usable "Answer:" marker.
type ReasoningTrace struct {
	Steps     []string `json:"steps"`
	Answer    string   `json:"answer,omitempty"`
	HasAnswer bool     `json:"has_answer"`
}

// Usable reports whether the trace has both steps and an answer.
func (t ReasoningTrace) Usable() bool {
	return len(t.Steps) > 0 && t.HasAnswer
}

// CloneSteps returns a copy of the step slice that can be mutated freely.
func (t ReasoningTrace) CloneSteps() []string {
	out := make([]string, len(t.Steps))
	copy(out, t.Steps)
	return out
}
