package config

import "time"

const (
	// Impact score
	ImpactPointsPerResolved = 50
	GuardianThreshold       = 5
	CommunityHeroThreshold  = 10

	// Activity timeline
	CitizenActivityLimit = 10

	// OTP
	OTPLength      = 6
	OTPTTL         = 5 * time.Minute
	OTPMaxAttempts = 5

	// Chat
	ChatRoomPrefix      = "citizen_"
	ChatMaxMessageBytes = 2000

	// Classifier
	FallbackSuggestedTitle = "General civic issue"
)

// Badges in ascending order of resolved complaints.
const (
	BadgeObserver      = "Observer"
	BadgeGuardian      = "Guardian"
	BadgeCommunityHero = "Community Hero"
)

// SuggestedTitles maps classifier labels to complaint titles.
var SuggestedTitles = map[string]string{
	"pothole":         "Pothole on road",
	"garbage":         "Garbage not collected",
	"street_light":    "Street light not working",
	"drainage":        "Drainage overflow issue",
	"water_leak":      "Water leakage issue",
	"fallen_tree":     "Fallen tree blocking road",
	"illegal_dumping": "Illegal garbage dumping",
	"road_damage":     "Road damage issue",
}
