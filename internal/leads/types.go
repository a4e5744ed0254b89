// Package leads mines stored conversations for structured lead records and
// forwards qualified ones to the external spreadsheet endpoint.
package leads

// Branches are the only clinic branch names a lead may carry, exactly as
// the booking sheet expects them.
var Branches = []string{
	"Upper Hill, Nairobi",
	"Parklands, Nairobi",
	"United Mall, Kisumu",
}

// Lead is the four-field extraction result. All fields are nullable; a
// response of any other shape is treated as a parse failure.
type Lead struct {
	Name            *string `json:"name"`
	PhoneNumber     *string `json:"phoneNumber"`
	HospitalBranch  *string `json:"hospitalBranch"`
	AppointmentDate *string `json:"appointmentDate"`
}

// Qualified reports whether the lead is worth forwarding: at least one of
// name, branch, or appointment date must be present. The phone number alone
// does not qualify — it is usually just the conversation's contact number.
func (l Lead) Qualified() bool {
	return l.Name != nil || l.HospitalBranch != nil || l.AppointmentDate != nil
}

func validBranch(branch string) bool {
	for _, b := range Branches {
		if b == branch {
			return true
		}
	}
	return false
}
