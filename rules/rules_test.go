package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/shoprank/core"
	"github.com/rushteam/shoprank/store"
)

func TestSnapshot_ResolveUnknownMerchant(t *testing.T) {
	snap := Builtin()
	set := snap.Resolve("unknown_merchant")
	assert.Equal(t, DefaultBlendWeights(), set.BlendWeights)
	assert.Equal(t, 1.0, set.CategoryBoost("Luxury"))
	assert.Equal(t, 1.0, set.LoyaltyWeight("gold"))

	var nilSnap *Snapshot
	assert.Equal(t, DefaultRuleSet(), nilSnap.Resolve("airlinex"))
	assert.Zero(t, nilSnap.Len())
}

func TestBuiltin(t *testing.T) {
	snap := Builtin()
	assert.Equal(t, []string{"airlinex", "dnata_shop"}, snap.MerchantIDs())

	airlinex, ok := snap.Get("airlinex")
	require.True(t, ok)
	assert.Equal(t, 1.3, airlinex.CategoryBoost("Luxury"))
	first, ok := airlinex.Cabin("FIRST")
	require.True(t, ok)
	assert.Equal(t, 1.4, first.Luxury())
	economy, _ := airlinex.Cabin("economy")
	assert.Equal(t, 1.0, economy.Luxury())

	dnata, _ := snap.Get("dnata_shop")
	assert.Equal(t, BlendWeights{ML: 0.5, Boost: 0.4, Similarity: 0.1}, dnata.BlendWeights)
}

func TestTripRule_Matches(t *testing.T) {
	r := TripRule{Route: []string{"DXB", "CDG"}, BoostCategory: "Fragrance & Beauty", Weight: 1.25}
	assert.True(t, r.Matches(&core.Trip{From: "DXB", To: "CDG"}))
	assert.True(t, r.Matches(&core.Trip{From: "cdg", To: "dxb"}))
	assert.True(t, r.Matches(&core.Trip{From: "Dxb", To: "cDG"}))
	assert.False(t, r.Matches(&core.Trip{From: "DXB", To: "LHR"}))
	assert.False(t, r.Matches(&core.Trip{From: "DXB"}))
	assert.False(t, r.Matches(nil))
}

func TestLoadYAML(t *testing.T) {
	snap, err := LoadYAML("testdata/merchant_rules.yaml")
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Len())

	airlinex, ok := snap.Get("airlinex")
	require.True(t, ok)
	assert.Len(t, airlinex.TripRules, 2)
	business, ok := airlinex.Cabin("business")
	require.True(t, ok, "cabin keys are normalised to lower case")
	assert.Equal(t, 1.2, business.Luxury())

	partial, ok := snap.Get("partial_shop")
	require.True(t, ok)
	assert.Equal(t, BlendWeights{ML: 0.2, Boost: 0.3, Similarity: 0.1}, partial.BlendWeights)
}

func TestLoadJSON(t *testing.T) {
	snap, err := LoadFile("testdata/merchant_rules.json")
	require.NoError(t, err)
	set, ok := snap.Get("dnata_shop")
	require.True(t, ok)
	assert.Equal(t, 0.4, set.BlendWeights.Boost)
	assert.Empty(t, set.TripRules)
}

func TestLoad_Errors(t *testing.T) {
	_, err := LoadYAML("testdata/does_not_exist.yaml")
	assert.Error(t, err)

	_, err = LoadYAML("testdata/invalid_route.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly 2 locations")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		set  MerchantRuleSet
	}{
		{"negative weight", MerchantRuleSet{BlendWeights: BlendWeights{ML: -0.1}}},
		{"negative category boost", MerchantRuleSet{CategoryBoosts: map[string]float64{"A": -1}}},
		{"negative trip weight", MerchantRuleSet{TripRules: []TripRule{{Route: []string{"A", "B"}, Weight: -1}}}},
		{"negative cabin boost", MerchantRuleSet{CabinRules: map[string]CabinRule{"first": {LuxuryCategoryBoost: f64(-2)}}}},
		{"negative loyalty", MerchantRuleSet{LoyaltyWeights: map[string]float64{"gold": -1}}},
		{"cabin keys collide", MerchantRuleSet{CabinRules: map[string]CabinRule{
			"Business": {LuxuryCategoryBoost: f64(1.2)},
			"business": {LuxuryCategoryBoost: f64(1.5)},
		}}},
		{"loyalty keys collide", MerchantRuleSet{LoyaltyWeights: map[string]float64{"Gold": 1.1, "GOLD": 1.2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.set.Validate())
		})
	}
	assert.NoError(t, DefaultRuleSet().Validate())

	err := MerchantRuleSet{CabinRules: map[string]CabinRule{"First": {}, "first": {}}}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"First" and "first" collide`)
}

func TestLoadYAML_CabinKeyCollision(t *testing.T) {
	_, err := LoadYAML("testdata/cabin_collision.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cabin_rules")
}

func TestNewSnapshot_IsolatedFromInput(t *testing.T) {
	boosts := map[string]float64{"Luxury": 1.3}
	snap, err := NewSnapshot(map[string]MerchantRuleSet{"m": {CategoryBoosts: boosts}})
	require.NoError(t, err)

	boosts["Luxury"] = 9
	set, _ := snap.Get("m")
	assert.Equal(t, 1.3, set.CategoryBoost("Luxury"))
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	defer s.Close()

	require.NoError(t, SaveToStore(ctx, s, Builtin()))

	snap, err := LoadFromStore(ctx, s, []string{"airlinex", "dnata_shop", "missing"})
	require.NoError(t, err)
	assert.Equal(t, []string{"airlinex", "dnata_shop"}, snap.MerchantIDs())

	airlinex, _ := snap.Get("airlinex")
	want, _ := Builtin().Get("airlinex")
	assert.Equal(t, want, airlinex)
}

func TestLoadFromStore_BadJSON(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	defer s.Close()
	require.NoError(t, s.Set(ctx, StoreKeyPrefix+"m", []byte("{not json")))

	_, err := LoadFromStore(ctx, s, []string{"m"})
	assert.Error(t, err)

	_, err = LoadFromStore(ctx, nil, nil)
	assert.Error(t, err)
}
