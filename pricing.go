package main

// The fixed upgrade catalog. Order matters for schema writes and profile
// responses; the set itself never changes at runtime.
var upgradeIDs = []string{"drill", "armor", "speed"}

var upgradeBaseCosts = map[string]int64{
	"drill": 100,
	"armor": 200,
	"speed": 300,
}

func isValidUpgrade(upgradeID string) bool {
	_, ok := upgradeBaseCosts[upgradeID]
	return ok
}

// upgradeCost returns the price of buying the next level of an upgrade given
// the level currently owned: base cost for level 0->1, twice that for 1->2,
// and so on. Unknown upgrades cost 0; callers must check isValidUpgrade
// first.
func upgradeCost(upgradeID string, currentLevel int64) int64 {
	base, ok := upgradeBaseCosts[upgradeID]
	if !ok {
		return 0
	}
	return base * (currentLevel + 1)
}
