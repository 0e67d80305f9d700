package crm

// Record is one CRM object as returned by the list/search endpoints:
// an id plus a property bag. Associations are present only when requested.
type Record struct {
	ID           string                  `json:"id"`
	Properties   map[string]*string      `json:"properties"`
	Associations map[string]Associations `json:"associations,omitempty"`
}

// Associations is the association list for one related object type.
type Associations struct {
	Results []AssociationRef `json:"results"`
}

// AssociationRef points at one associated object.
type AssociationRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Property returns the named property value, or "" when absent or null.
func (r Record) Property(name string) string {
	if v, ok := r.Properties[name]; ok && v != nil {
		return *v
	}
	return ""
}

// AssociatedID returns the first associated object id of the given type,
// or "" when the record has none.
func (r Record) AssociatedID(objectType string) string {
	assoc, ok := r.Associations[objectType]
	if !ok || len(assoc.Results) == 0 {
		return ""
	}
	return assoc.Results[0].ID
}

// FetchResult is what one entity fetch yields: the accumulated records and
// how many API calls pagination consumed.
type FetchResult struct {
	Records   []Record
	CallCount int
}

// Filter is one search-endpoint filter clause.
type Filter struct {
	PropertyName string `json:"propertyName"`
	Operator     string `json:"operator"`
	Value        string `json:"value"`
}

type filterGroup struct {
	Filters []Filter `json:"filters"`
}

type searchRequest struct {
	Limit        int           `json:"limit"`
	Properties   []string      `json:"properties"`
	FilterGroups []filterGroup `json:"filterGroups"`
	After        string        `json:"after,omitempty"`
}

type pagedResponse struct {
	Results []Record `json:"results"`
	Paging  *paging  `json:"paging,omitempty"`
}

type paging struct {
	Next *pagingNext `json:"next,omitempty"`
}

type pagingNext struct {
	After string `json:"after"`
}

// Owner is one CRM user from the owners endpoint.
type Owner struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	UserID    int64  `json:"userId"`
	Archived  bool   `json:"archived"`
}

type ownersResponse struct {
	Results []Owner `json:"results"`
}

// Pipeline is one deal pipeline definition with its stages.
type Pipeline struct {
	ID     string          `json:"id"`
	Label  string          `json:"label"`
	Stages []PipelineStage `json:"stages"`
}

// PipelineStage is one stage within a deal pipeline.
type PipelineStage struct {
	ID           string        `json:"id"`
	Label        string        `json:"label"`
	DisplayOrder int32         `json:"displayOrder"`
	Metadata     stageMetadata `json:"metadata"`
}

type stageMetadata struct {
	IsClosed    flexibleBool   `json:"isClosed"`
	Probability flexibleNumber `json:"probability"`
}

// IsClosed reports whether the stage is flagged closed.
func (s PipelineStage) IsClosed() bool {
	return bool(s.Metadata.IsClosed)
}

// Probability returns the stage's win probability.
func (s PipelineStage) Probability() float64 {
	return float64(s.Metadata.Probability)
}
