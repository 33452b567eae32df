package realtime

import "fmt"

// TopicKind scopes a subscription to one identifier space.
type TopicKind string

const (
	TopicJob      TopicKind = "job"
	TopicCustomer TopicKind = "customer"
	TopicCleaner  TopicKind = "cleaner"
	TopicCompany  TopicKind = "company"
)

// Topic identifies one stream of job-state events.
type Topic struct {
	Kind TopicKind
	ID   int64
}

func (t Topic) String() string {
	return fmt.Sprintf("%s:%d", t.Kind, t.ID)
}

// Event is a job-state change fanned out to matching subscribers. A
// subscriber receives the event when any of its topics matches the job,
// customer, cleaner or company identifier.
type Event struct {
	Type       string `json:"type"`
	JobID      int64  `json:"job_id"`
	CustomerID int64  `json:"customer_id"`
	CleanerID  *int64 `json:"cleaner_id,omitempty"`
	CompanyID  int64  `json:"company_id"`
	Status     string `json:"status"`
	Payload    any    `json:"payload,omitempty"`
}

// Topics lists every topic the event is addressed to.
func (e Event) Topics() []Topic {
	topics := []Topic{
		{Kind: TopicJob, ID: e.JobID},
		{Kind: TopicCustomer, ID: e.CustomerID},
		{Kind: TopicCompany, ID: e.CompanyID},
	}
	if e.CleanerID != nil {
		topics = append(topics, Topic{Kind: TopicCleaner, ID: *e.CleanerID})
	}
	return topics
}
