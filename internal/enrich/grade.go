package enrich

import (
	"github.com/EnzoMH/cradcrawl-enrich/internal/model"
)

// Grade is a letter summarizing how complete a contact record is.
type Grade string

const (
	GradeA Grade = "A" // all six fields present
	GradeB Grade = "B" // name+address+phone plus fax or email
	GradeC Grade = "C" // name+address+phone only
	GradeD Grade = "D" // name+address, no phone
	GradeE Grade = "E" // name only
	GradeF Grade = "F" // no usable name
)

// GradeOrganization maps field presence to a letter grade. Rules are
// evaluated strictly in A-to-F order and the first match wins, so a
// record satisfying both B and C is graded B. Pure and stable: the
// same presence vector always yields the same grade. A fax number
// identical to the phone number is not counted as a distinct field.
func GradeOrganization(org model.Organization) Grade {
	name := org.HasName()
	address := org.HasField(model.FieldAddress)
	phone := org.HasField(model.FieldPhone)
	fax := org.HasField(model.FieldFax)
	if fax && phone && phoneDigits(org.Fax) == phoneDigits(org.Phone) {
		fax = false
	}
	email := org.HasField(model.FieldEmail)
	homepage := org.HasField(model.FieldHomepage)

	switch {
	case name && address && phone && fax && email && homepage:
		return GradeA
	case name && address && phone && (fax || email):
		return GradeB
	case name && address && phone:
		return GradeC
	case name && address:
		return GradeD
	case name:
		return GradeE
	default:
		return GradeF
	}
}

// GradeDistribution counts organizations per grade.
func GradeDistribution(orgs []model.Organization) map[Grade]int {
	dist := make(map[Grade]int, 6)
	for _, org := range orgs {
		dist[GradeOrganization(org)]++
	}
	return dist
}
