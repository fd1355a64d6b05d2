package domain

import "time"

// Document is one generated legal document of a policy.
type Document struct {
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	MimeType   string    `json:"mimeType"`
	CreatedAt  time.Time `json:"createdAt"`
	ArchiveKey string    `json:"archiveKey,omitempty"`
}

// DocumentSet is the ordered list of documents of a policy.
// NotYetAvailable marks the soft outcome where generation has not finished.
type DocumentSet struct {
	PolicyID        string     `json:"policyId"`
	Documents       []Document `json:"documents"`
	NotYetAvailable bool       `json:"notYetAvailable"`
}

// Empty reports whether no documents were returned.
func (s DocumentSet) Empty() bool {
	return len(s.Documents) == 0
}

// Find returns the document with the given code.
func (s DocumentSet) Find(code string) (Document, bool) {
	for _, d := range s.Documents {
		if d.Code == code {
			return d, true
		}
	}
	return Document{}, false
}
