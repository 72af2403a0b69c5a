package lead

import (
	"testing"

	"github.com/ridgeline-services/crm-server/cmd/models"
)

func TestLeadPushBody(t *testing.T) {
	cases := []struct {
		name string
		lead models.Lead
		want string
	}{
		{"with service type", models.Lead{ServiceType: "Roofing", Source: "website"}, "Roofing inquiry from website"},
		{"without service type", models.Lead{Source: "referral"}, "New inquiry from referral"},
	}

	for _, tc := range cases {
		if got := leadPushBody(tc.lead); got != tc.want {
			t.Errorf("%s: leadPushBody = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestValidLeadStatus(t *testing.T) {
	valid := []string{
		models.LeadStatusNew,
		models.LeadStatusContacted,
		models.LeadStatusNeedsFollowUp,
		models.LeadStatusBooked,
		models.LeadStatusEstimateSent,
		models.LeadStatusWon,
		models.LeadStatusLost,
		models.LeadStatusAppointmentCancelled,
	}
	for _, status := range valid {
		if !validLeadStatus(status) {
			t.Errorf("validLeadStatus(%q) = false, want true", status)
		}
	}

	for _, status := range []string{"", "archived", "BOOKED", "in_progress"} {
		if validLeadStatus(status) {
			t.Errorf("validLeadStatus(%q) = true, want false", status)
		}
	}
}
