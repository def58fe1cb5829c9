// services/eligibility.go
package services

import "giveaway-draw-service/models"

// FilterEligibleParticipants returns the subset of participants that
// qualify for the giveaway's eligibility rules. Pure and deterministic:
// it never touches the database, so it can be re-run at commit time on
// whatever participant set the orchestrator loaded.
//
// Only INTERESTED participants are considered — withdrawn ones are out
// even if they would otherwise qualify. For gender-restricted giveaways
// a participant with no user snapshot, or a snapshot without a gender,
// is excluded (fail closed) rather than assumed eligible.
func FilterEligibleParticipants(participants []models.Participant, giveaway *models.Giveaway) []models.Participant {
	eligible := make([]models.Participant, 0, len(participants))
	for _, p := range participants {
		if p.Status != models.ParticipantStatusInterested {
			continue
		}
		if giveaway.EligibilityGender != models.EligibilityAll {
			if p.User == nil || p.User.Gender == "" {
				continue
			}
			if p.User.Gender != giveaway.EligibilityGender {
				continue
			}
		}
		eligible = append(eligible, p)
	}
	return eligible
}
