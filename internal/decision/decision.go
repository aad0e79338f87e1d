// Package decision turns a classification outcome into a finding for display.
//
// The Policy threshold is applied on top of the classifier's own score
// threshold. Both are 0.5 in the deployed configuration, but they are kept
// separate: the classifier threshold shapes what the model reports, the
// policy threshold decides what counts as a positive finding.
package decision

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/text/cases"

	"github.com/example/cancer-check/internal/classifier"
	"github.com/example/cancer-check/internal/imageprocessor"
)

// Messages shown for each non-positive outcome.
const (
	MessageNotIndicative     = "The image does not indicate cancer or is not a valid medical image."
	MessageNoClassifications = "No valid classifications found"
	MessageNoResults         = "No results"
)

// Kind is the outcome of evaluating a classification.
type Kind int

// Evaluation outcomes. NoResults covers a failed classification.
const (
	NoResults Kind = iota
	NoClassifications
	NotIndicative
	Positive
)

func (k Kind) String() string {
	switch k {
	case Positive:
		return "positive"
	case NotIndicative:
		return "not_indicative"
	case NoClassifications:
		return "no_classifications"
	default:
		return "no_results"
	}
}

// Policy is the caller-side rule for a positive finding.
type Policy struct {
	TargetLabel string
	Threshold   float32
}

// DefaultPolicy matches "cancer" at a score of 0.5 or more.
func DefaultPolicy() Policy {
	return Policy{TargetLabel: "cancer", Threshold: 0.5}
}

// Finding is a positive classification ready for display.
type Finding struct {
	Label         string
	Score         float32
	InferenceTime time.Duration
	Image         imageprocessor.Source
}

// Summary renders the finding the way the result view shows it.
func (f Finding) Summary() string {
	return fmt.Sprintf("Prediction: %s\nConfidence: %.2f%%\nInference Time: %d ms",
		f.Label, f.Score*100, f.InferenceTime.Milliseconds())
}

// Decision is the evaluated outcome. Finding is set only for Positive.
type Decision struct {
	Kind    Kind
	Message string
	Finding *Finding
	Err     error
}

// Evaluate inspects only the highest ranked classification of result.
func (p Policy) Evaluate(result *classifier.Result, err error, src imageprocessor.Source) Decision {
	if err != nil {
		return Decision{Kind: NoResults, Message: err.Error(), Err: err}
	}
	if result == nil {
		return Decision{Kind: NoResults, Message: MessageNoResults, Err: errors.New(MessageNoResults)}
	}
	if len(result.Classifications) == 0 {
		return Decision{Kind: NoClassifications, Message: MessageNoClassifications}
	}

	top := result.Classifications[0]
	if !p.matches(top.Label) || top.Score < p.Threshold {
		return Decision{Kind: NotIndicative, Message: MessageNotIndicative}
	}
	finding := &Finding{
		Label:         top.Label,
		Score:         top.Score,
		InferenceTime: result.InferenceTime,
		Image:         src,
	}
	return Decision{Kind: Positive, Message: finding.Summary(), Finding: finding}
}

func (p Policy) matches(label string) bool {
	fold := cases.Fold()
	return fold.String(label) == fold.String(p.TargetLabel)
}
