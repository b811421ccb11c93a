package model

type TierID string

const (
	TierTeaser  TierID = "teaser"
	TierShort   TierID = "short"
	TierStory   TierID = "story"
	TierFeature TierID = "feature"
)

// Tier is a purchasable video length. It is copied into the job at submission
// so later catalog changes never affect jobs in flight.
type Tier struct {
	ID                   TierID `json:"id"`
	SceneCount           int    `json:"sceneCount"`
	ClipDurationSeconds  int    `json:"clipDurationSeconds"`
	TotalDurationSeconds int    `json:"totalDurationSeconds"`
	CreditCost           int64  `json:"creditCost"`
}

var Tiers = []Tier{
	{ID: TierTeaser, SceneCount: 2, ClipDurationSeconds: 5, TotalDurationSeconds: 10, CreditCost: 10},
	{ID: TierShort, SceneCount: 3, ClipDurationSeconds: 5, TotalDurationSeconds: 15, CreditCost: 20},
	{ID: TierStory, SceneCount: 5, ClipDurationSeconds: 5, TotalDurationSeconds: 25, CreditCost: 35},
	{ID: TierFeature, SceneCount: 6, ClipDurationSeconds: 10, TotalDurationSeconds: 60, CreditCost: 60},
}

func LookupTier(id TierID) (Tier, bool) {
	for _, t := range Tiers {
		if t.ID == id {
			return t, true
		}
	}
	return Tier{}, false
}
