package model

import (
	"strings"
	"time"
)

// WorkflowStatus represents where an organization sits in the sales workflow.
type WorkflowStatus string

const (
	StatusNew       WorkflowStatus = "NEW"
	StatusContacted WorkflowStatus = "CONTACTED"
	StatusQualified WorkflowStatus = "QUALIFIED"
	StatusLost      WorkflowStatus = "LOST"
)

// ContactField identifies one of the enrichable contact fields.
type ContactField string

const (
	FieldPhone    ContactField = "phone"
	FieldFax      ContactField = "fax"
	FieldEmail    ContactField = "email"
	FieldHomepage ContactField = "homepage"
	FieldAddress  ContactField = "address"
)

// TargetFields is the fixed, ordered set of fields the enrichment
// process tries to fill. Gap detection and extraction both follow
// this order.
var TargetFields = []ContactField{
	FieldPhone,
	FieldFax,
	FieldEmail,
	FieldHomepage,
	FieldAddress,
}

// Organization is a CRM record for a church or institution.
// ID is unique and immutable; Name is required; every contact field
// is optional and may be empty.
type Organization struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Category       string         `json:"category,omitempty"`
	Address        string         `json:"address,omitempty"`
	PostalCode     string         `json:"postal_code,omitempty"`
	Phone          string         `json:"phone,omitempty"`
	Fax            string         `json:"fax,omitempty"`
	Email          string         `json:"email,omitempty"`
	Homepage       string         `json:"homepage,omitempty"`
	Status         WorkflowStatus `json:"status"`
	PriorityTag    string         `json:"priority_tag,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	LastEnrichedAt *time.Time     `json:"last_enriched_at,omitempty"`
}

// FieldValue returns the current value of a contact field.
func (o Organization) FieldValue(f ContactField) string {
	switch f {
	case FieldPhone:
		return o.Phone
	case FieldFax:
		return o.Fax
	case FieldEmail:
		return o.Email
	case FieldHomepage:
		return o.Homepage
	case FieldAddress:
		return o.Address
	}
	return ""
}

// SetFieldValue writes a contact field value on the snapshot.
func (o *Organization) SetFieldValue(f ContactField, v string) {
	switch f {
	case FieldPhone:
		o.Phone = v
	case FieldFax:
		o.Fax = v
	case FieldEmail:
		o.Email = v
	case FieldHomepage:
		o.Homepage = v
	case FieldAddress:
		o.Address = v
	}
}

// HasField reports whether a contact field is present after trimming
// whitespace. Whitespace-only values count as absent.
func (o Organization) HasField(f ContactField) bool {
	return strings.TrimSpace(o.FieldValue(f)) != ""
}

// HasName reports whether the record carries a usable name.
func (o Organization) HasName() bool {
	return strings.TrimSpace(o.Name) != ""
}
