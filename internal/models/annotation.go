// Package models defines the core domain types for margin.
package models

import (
	"strings"
	"time"
)

// SelectorType identifies how a selector anchors an annotation to a document.
type SelectorType string

const (
	SelectorTextQuote    SelectorType = "TextQuoteSelector"
	SelectorTextPosition SelectorType = "TextPositionSelector"
	SelectorRange        SelectorType = "RangeSelector"
)

// Selector locates the annotated region inside a target document.
type Selector struct {
	Type   SelectorType `json:"type" yaml:"type"`
	Exact  string       `json:"exact,omitempty" yaml:"exact,omitempty"`
	Prefix string       `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Suffix string       `json:"suffix,omitempty" yaml:"suffix,omitempty"`
	Start  int          `json:"start,omitempty" yaml:"start,omitempty"`
	End    int          `json:"end,omitempty" yaml:"end,omitempty"`
}

// Target is the document (and optional region) an annotation refers to.
type Target struct {
	Source    string     `json:"source" yaml:"source"`
	Selectors []Selector `json:"selector,omitempty" yaml:"selector,omitempty"`
}

// Annotation is a single note, highlight, or reply on a document.
type Annotation struct {
	// ID is the server-assigned identifier. Empty until the annotation is saved.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	// Tag is a client-local identifier assigned before the annotation is saved.
	Tag string `json:"tag,omitempty" yaml:"tag,omitempty"`

	// URI is the annotated document.
	URI string `json:"uri" yaml:"uri"`

	// User is the author.
	User string `json:"user" yaml:"user"`

	// Text is the annotation body.
	Text string `json:"text,omitempty" yaml:"text,omitempty"`

	// Tags are free-form labels.
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// References lists ancestor annotation IDs, thread root first.
	References []string `json:"references,omitempty" yaml:"references,omitempty"`

	// Target anchors the annotation. Empty for page notes and replies.
	Target []Target `json:"target,omitempty" yaml:"target,omitempty"`

	// Hidden marks an annotation removed by a moderator.
	Hidden bool `json:"hidden,omitempty" yaml:"hidden,omitempty"`

	Created time.Time `json:"created" yaml:"created"`
	Updated time.Time `json:"updated" yaml:"updated"`
}

// Key returns the identifier threads use for this annotation.
func (a *Annotation) Key() string {
	if a == nil {
		return ""
	}
	if id := strings.TrimSpace(a.ID); id != "" {
		return id
	}
	return strings.TrimSpace(a.Tag)
}

// ParentID returns the direct parent of a reply, or "" for top-level annotations.
func (a *Annotation) ParentID() string {
	if a == nil || len(a.References) == 0 {
		return ""
	}
	return strings.TrimSpace(a.References[len(a.References)-1])
}

// IsNew reports whether the annotation has not been saved yet.
func IsNew(a *Annotation) bool {
	return a != nil && strings.TrimSpace(a.ID) == ""
}

// IsReply reports whether the annotation replies to another annotation.
func IsReply(a *Annotation) bool {
	return a != nil && len(a.References) > 0
}

// HasSelector reports whether any target carries a selector.
func HasSelector(a *Annotation) bool {
	if a == nil {
		return false
	}
	for _, target := range a.Target {
		if len(target.Selectors) > 0 {
			return true
		}
	}
	return false
}

// IsPageNote reports whether the annotation refers to the whole document.
func IsPageNote(a *Annotation) bool {
	return a != nil && !HasSelector(a) && !IsReply(a)
}

// IsHighlight reports whether the annotation is an anchored region with no
// text and no tags.
func IsHighlight(a *Annotation) bool {
	if a == nil || IsPageNote(a) || IsReply(a) || a.Hidden {
		return false
	}
	if strings.TrimSpace(a.Text) != "" {
		return false
	}
	return len(a.Tags) == 0
}

// Quote returns the exact quoted text of the first quote selector.
func Quote(a *Annotation) string {
	if a == nil {
		return ""
	}
	for _, target := range a.Target {
		for _, sel := range target.Selectors {
			if sel.Type == SelectorTextQuote && strings.TrimSpace(sel.Exact) != "" {
				return sel.Exact
			}
		}
	}
	return ""
}

// Location returns the text-position start offset, or -1 when unanchored.
func Location(a *Annotation) int {
	if a == nil {
		return -1
	}
	for _, target := range a.Target {
		for _, sel := range target.Selectors {
			if sel.Type == SelectorTextPosition {
				return sel.Start
			}
		}
	}
	return -1
}

// Clone returns a deep copy of the annotation.
func (a *Annotation) Clone() *Annotation {
	if a == nil {
		return nil
	}
	out := *a
	out.Tags = append([]string(nil), a.Tags...)
	out.References = append([]string(nil), a.References...)
	if len(a.Target) > 0 {
		out.Target = make([]Target, len(a.Target))
		for i, target := range a.Target {
			out.Target[i] = Target{
				Source:    target.Source,
				Selectors: append([]Selector(nil), target.Selectors...),
			}
		}
	}
	return &out
}
